package stdout

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hubchat/chat/server/index"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWritesEvents(t *testing.T) {
	out := &syncBuffer{}
	h := &stdoutIndex{out: out}
	ok, err := h.Init(json.RawMessage(`{"enabled": true, "buffer": 4}`))
	if err != nil || !ok {
		t.Fatalf("Init = %v, %v", ok, err)
	}
	h.Input() <- &index.Event{What: index.ActIndex, Entry: &index.Entry{SeqId: 3, Content: "hello"}}

	deadline := time.Now().Add(time.Second)
	for !strings.Contains(out.String(), "hello") {
		if time.Now().After(deadline) {
			t.Fatal("event was not written")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.Stop()

	if _, err := h.Search(&index.Query{Text: "hello"}); err != index.ErrNotSupported {
		t.Errorf("Search error = %v, want ErrNotSupported", err)
	}
}

func TestDisabled(t *testing.T) {
	h := &stdoutIndex{}
	ok, err := h.Init(json.RawMessage(`{"enabled": false}`))
	if err != nil || ok {
		t.Fatalf("Init = %v, %v", ok, err)
	}
	if h.IsReady() {
		t.Error("disabled handler is ready")
	}
	if _, err := h.Init(json.RawMessage(`{}`)); err == nil {
		t.Error("second Init succeeded")
	}
}
