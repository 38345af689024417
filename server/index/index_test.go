package index

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	t "github.com/hubchat/chat/server/store/types"
)

type fakeHandler struct {
	ready   bool
	input   chan *Event
	results []Entry
	err     error
	stopped bool
}

func (f *fakeHandler) Init(jsonconf json.RawMessage) (bool, error) {
	var cfg struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(jsonconf, &cfg); err != nil {
		return false, err
	}
	f.ready = cfg.Enabled
	if f.ready {
		f.input = make(chan *Event, 1)
	}
	return f.ready, nil
}

func (f *fakeHandler) IsReady() bool                  { return f.ready }
func (f *fakeHandler) Input() chan<- *Event           { return f.input }
func (f *fakeHandler) Search(*Query) ([]Entry, error) { return f.results, f.err }
func (f *fakeHandler) Stop()                          { f.stopped = true }

func reset() {
	handlers = nil
	enabled = nil
	purgeQueue = nil
}

func TestInitAndDispatch(tt *testing.T) {
	reset()
	defer reset()

	blind := &fakeHandler{err: ErrNotSupported}
	seeing := &fakeHandler{results: []Entry{{SeqId: 5}}}
	off := &fakeHandler{}
	Register("blind", blind)
	Register("seeing", seeing)
	Register("off", off)

	names, err := Init(json.RawMessage(`[
		{"name": "blind", "config": {"enabled": true}},
		{"name": "seeing", "config": {"enabled": true}},
		{"name": "off", "config": {"enabled": false}},
		{"name": "missing", "config": {}}
	]`))
	if err != nil {
		tt.Fatal(err)
	}
	if len(names) != 2 || names[0] != "blind" || names[1] != "seeing" {
		tt.Fatalf("enabled = %v", names)
	}

	Index(&Entry{Hub: t.Uid(1), SeqId: 1})
	// Input is buffered to one: the second event is dropped, not blocked on.
	Index(&Entry{Hub: t.Uid(1), SeqId: 2})
	if evt := <-seeing.input; evt.What != ActIndex || evt.Entry.SeqId != 1 {
		tt.Errorf("unexpected event %+v", evt)
	}
	// Purges wait for room instead of being dropped.
	PurgeChannel(t.Uid(1), t.Uid(2))
	if evt := <-blind.input; evt.What != ActIndex {
		tt.Errorf("unexpected event %+v", evt)
	}
	for _, hnd := range []*fakeHandler{blind, seeing} {
		select {
		case evt := <-hnd.input:
			if evt.What != ActPurge || evt.Hub != t.Uid(1) || evt.Channel != t.Uid(2) {
				tt.Errorf("unexpected event %+v", evt)
			}
		case <-time.After(time.Second):
			tt.Fatal("purge was dropped by a full indexer")
		}
	}

	res, err := Search(&Query{Hub: t.Uid(1), Text: "x"})
	if err != nil || len(res) != 1 || res[0].SeqId != 5 {
		tt.Errorf("Search = %v, %v", res, err)
	}

	Stop()
	if !blind.stopped || !seeing.stopped || off.stopped {
		tt.Error("Stop did not reach exactly the enabled handlers")
	}
}

func TestSearchUnsupported(tt *testing.T) {
	reset()
	defer reset()

	if _, err := Search(&Query{Text: "x"}); !errors.Is(err, ErrNotSupported) {
		tt.Errorf("Search without handlers = %v", err)
	}
}

func TestRegisterTwicePanics(tt *testing.T) {
	reset()
	defer reset()

	Register("a", &fakeHandler{})
	defer func() {
		if recover() == nil {
			tt.Error("duplicate Register did not panic")
		}
	}()
	Register("a", &fakeHandler{})
}
