package testsuite

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	adapter "github.com/hubchat/chat/server/db"
	"github.com/hubchat/chat/server/db/common/test_data"
	"github.com/hubchat/chat/server/store/types"
)

// RunMessageSave stores test messages and checks that SeqIds are unique per channel.
func RunMessageSave(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	for _, msg := range td.Msgs {
		if err := adp.MessageSave(msg); err != nil {
			t.Fatalf("MessageSave(%d): %v", msg.SeqId, err)
		}
	}
	if err := adp.MessageSave(td.Msgs[0]); !errors.Is(err, types.ErrDuplicate) {
		t.Errorf("duplicate MessageSave: expected ErrDuplicate, got %v", err)
	}
}

// RunMessageGetAll checks ordering, limits and the 'before' bound.
func RunMessageGetAll(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	hub, ch := td.Hubs[0].Id, td.Channels[0]

	got, err := adp.MessageGetAll(hub, ch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("Messages length mismatch: got %d want %d", len(got), 5)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].SeqId <= got[i].SeqId {
			t.Fatalf("messages are not newest first: %d before %d", got[i-1].SeqId, got[i].SeqId)
		}
	}
	if diff := cmp.Diff(*td.Msgs[4], got[0]); diff != "" {
		t.Errorf("newest message mismatch (-want +got):\n%s", diff)
	}

	got, err = adp.MessageGetAll(hub, ch, &types.BrowseOpt{Before: 3, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	var seqs []int
	for _, m := range got {
		seqs = append(seqs, m.SeqId)
	}
	if diff := cmp.Diff([]int{3, 2}, seqs); diff != "" {
		t.Errorf("before/limit mismatch (-want +got):\n%s", diff)
	}

	got, err = adp.MessageGetAll(hub, types.Uid(4242), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("messages of unknown channel: %v, %v", got, err)
	}
}

// RunMessageLastSeq checks the per-channel maximum SeqId.
func RunMessageLastSeq(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	got, err := adp.MessageLastSeq(td.Hubs[0].Id)
	if err != nil {
		t.Fatal(err)
	}
	want := map[types.Uid]int{td.Channels[0]: 5, td.Channels[1]: 7}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MessageLastSeq mismatch (-want +got):\n%s", diff)
	}
}

// RunMessageDeleteAll removes one channel log and leaves the other intact.
func RunMessageDeleteAll(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	hub := td.Hubs[0].Id
	if err := adp.MessageDeleteAll(hub, td.Channels[0]); err != nil {
		t.Fatal(err)
	}
	if got, _ := adp.MessageGetAll(hub, td.Channels[0], nil); len(got) != 0 {
		t.Errorf("channel log not deleted: %d messages left", len(got))
	}
	if got, _ := adp.MessageGetAll(hub, td.Channels[1], nil); len(got) != 1 {
		t.Errorf("unrelated channel log affected: %d messages", len(got))
	}
}
