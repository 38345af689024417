package memory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hubchat/chat/server/index"
	t "github.com/hubchat/chat/server/store/types"
)

var (
	hub1 = t.Uid(100)
	hub2 = t.Uid(200)
	chA  = t.Uid(1)
	chB  = t.Uid(2)
	base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func entry(hub, ch t.Uid, seq int, content string) *index.Entry {
	return &index.Entry{
		Hub:       hub,
		Channel:   ch,
		SeqId:     seq,
		From:      t.Uid(7),
		Content:   content,
		CreatedAt: base.Add(time.Duration(seq) * time.Second),
	}
}

func seqs(res []index.Entry) []int {
	out := []int{}
	for _, e := range res {
		out = append(out, e.SeqId)
	}
	return out
}

func TestTokenize(tt *testing.T) {
	got := tokenize("Hello, WORLD! hello ÉCOLE ｆｕｌｌ")
	want := []string{"hello", "world", "école", "full"}
	if diff := cmp.Diff(want, got); diff != "" {
		tt.Errorf("tokenize mismatch (-want +got):\n%s", diff)
	}
	if len(tokenize(" ,.!? ")) != 0 {
		tt.Error("punctuation produced words")
	}
}

func TestSearch(tt *testing.T) {
	m := newMemoryIndex()
	m.add(entry(hub1, chA, 1, "the quick brown fox"))
	m.add(entry(hub1, chA, 2, "a lazy dog"))
	m.add(entry(hub1, chB, 3, "Quick thinking"))
	m.add(entry(hub2, chA, 4, "quick everywhere"))

	res, err := m.Search(&index.Query{Hub: hub1, Channels: []t.Uid{chA, chB}, Text: "QUICK"})
	if err != nil {
		tt.Fatal(err)
	}
	if diff := cmp.Diff([]int{3, 1}, seqs(res)); diff != "" {
		tt.Errorf("newest first mismatch (-want +got):\n%s", diff)
	}

	res, _ = m.Search(&index.Query{Hub: hub1, Channels: []t.Uid{chA}, Text: "quick"})
	if diff := cmp.Diff([]int{1}, seqs(res)); diff != "" {
		tt.Errorf("channel filter mismatch (-want +got):\n%s", diff)
	}

	res, _ = m.Search(&index.Query{Hub: hub1, Channels: []t.Uid{chA, chB}, Text: "quick fox"})
	if diff := cmp.Diff([]int{1}, seqs(res)); diff != "" {
		tt.Errorf("all words mismatch (-want +got):\n%s", diff)
	}

	res, _ = m.Search(&index.Query{Hub: hub1, Channels: []t.Uid{chA, chB}, Text: "quick", Limit: 1})
	if diff := cmp.Diff([]int{3}, seqs(res)); diff != "" {
		tt.Errorf("limit mismatch (-want +got):\n%s", diff)
	}
}

func TestPurge(tt *testing.T) {
	m := newMemoryIndex()
	m.add(entry(hub1, chA, 1, "alpha"))
	m.add(entry(hub1, chB, 2, "alpha"))
	m.add(entry(hub2, chA, 3, "alpha"))

	m.apply(&index.Event{What: index.ActPurge, Hub: hub1, Channel: chA})
	res, _ := m.Search(&index.Query{Hub: hub1, Channels: []t.Uid{chA, chB}, Text: "alpha"})
	if diff := cmp.Diff([]int{2}, seqs(res)); diff != "" {
		tt.Errorf("after channel purge (-want +got):\n%s", diff)
	}

	m.apply(&index.Event{What: index.ActPurge, Hub: hub1})
	res, _ = m.Search(&index.Query{Hub: hub1, Channels: []t.Uid{chA, chB}, Text: "alpha"})
	if len(res) != 0 {
		tt.Errorf("hub purge left %d entries", len(res))
	}
	res, _ = m.Search(&index.Query{Hub: hub2, Channels: []t.Uid{chA}, Text: "alpha"})
	if len(res) != 1 {
		tt.Errorf("other hub lost entries: %d", len(res))
	}
}

func TestEviction(tt *testing.T) {
	m := newMemoryIndex()
	m.maxEntries = 2
	m.add(entry(hub1, chA, 1, "word"))
	m.add(entry(hub1, chA, 2, "word"))
	m.add(entry(hub1, chA, 3, "word"))

	res, _ := m.Search(&index.Query{Hub: hub1, Channels: []t.Uid{chA}, Text: "word"})
	if diff := cmp.Diff([]int{3, 2}, seqs(res)); diff != "" {
		tt.Errorf("eviction mismatch (-want +got):\n%s", diff)
	}
}

func TestWorker(tt *testing.T) {
	m := newMemoryIndex()
	ok, err := m.Init(json.RawMessage(`{"enabled": true}`))
	if err != nil || !ok {
		tt.Fatalf("Init = %v, %v", ok, err)
	}
	m.Input() <- &index.Event{What: index.ActIndex, Entry: entry(hub1, chA, 1, "queued")}

	deadline := time.Now().Add(time.Second)
	for {
		res, _ := m.Search(&index.Query{Hub: hub1, Channels: []t.Uid{chA}, Text: "queued"})
		if len(res) == 1 {
			break
		}
		if time.Now().After(deadline) {
			tt.Fatal("entry was not indexed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
}
