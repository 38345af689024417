package testsuite

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	adapter "github.com/hubchat/chat/server/db"
	"github.com/hubchat/chat/server/db/common/test_data"
	"github.com/hubchat/chat/server/store/types"
)

// RunInviteCreate stores the test invites.
func RunInviteCreate(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	for _, inv := range td.Invites {
		if err := adp.InviteCreate(inv); err != nil {
			t.Fatalf("InviteCreate(%s): %v", inv.Token, err)
		}
	}
	if err := adp.InviteCreate(td.Invites[0]); !errors.Is(err, types.ErrDuplicate) {
		t.Errorf("duplicate InviteCreate: expected ErrDuplicate, got %v", err)
	}
}

// RunInviteGet reads invites back.
func RunInviteGet(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	got, err := adp.InviteGet(td.Invites[1].Token)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(td.Invites[1], got); diff != "" {
		t.Errorf("InviteGet mismatch (-want +got):\n%s", diff)
	}
	if got, err = adp.InviteGet("no-such-invite"); err != nil || got != nil {
		t.Errorf("InviteGet of missing invite = %v, %v; want nil, nil", got, err)
	}

	list, err := adp.InvitesForHub(td.Hubs[0].Id)
	if err != nil {
		t.Fatal(err)
	}
	var tokens []string
	for _, inv := range list {
		tokens = append(tokens, inv.Token)
	}
	if diff := cmp.Diff([]string{"invite-unlimited", "invite-single"}, tokens); diff != "" {
		t.Errorf("InvitesForHub mismatch (-want +got):\n%s", diff)
	}
}

// RunInviteUse checks the conditional use counter.
func RunInviteUse(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	single := td.Invites[1].Token
	if err := adp.InviteUse(single); err != nil {
		t.Fatalf("first use of single-use invite: %v", err)
	}
	if err := adp.InviteUse(single); !errors.Is(err, types.ErrInviteExhausted) {
		t.Errorf("second use: expected ErrInviteExhausted, got %v", err)
	}
	if inv, _ := adp.InviteGet(single); inv == nil || inv.Uses != 1 {
		t.Errorf("use count not persisted: %+v", inv)
	}

	for i := 0; i < 3; i++ {
		if err := adp.InviteUse(td.Invites[0].Token); err != nil {
			t.Fatalf("unlimited invite use %d: %v", i, err)
		}
	}
	if err := adp.InviteUse("no-such-invite"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("use of missing invite: expected ErrNotFound, got %v", err)
	}
}

// RunInviteDelete revokes an invite.
func RunInviteDelete(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	if err := adp.InviteDelete(td.Invites[0].Token); err != nil {
		t.Fatal(err)
	}
	if err := adp.InviteDelete(td.Invites[0].Token); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

// RunAll runs the complete suite in dependency order against an empty database.
func RunAll(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Run("HubCreate", func(t *testing.T) { RunHubCreate(t, adp, td) })
	t.Run("HubGet", func(t *testing.T) { RunHubGet(t, adp, td) })
	t.Run("HubUpdate", func(t *testing.T) { RunHubUpdate(t, adp, td) })
	t.Run("MessageSave", func(t *testing.T) { RunMessageSave(t, adp, td) })
	t.Run("MessageGetAll", func(t *testing.T) { RunMessageGetAll(t, adp, td) })
	t.Run("MessageLastSeq", func(t *testing.T) { RunMessageLastSeq(t, adp, td) })
	t.Run("InviteCreate", func(t *testing.T) { RunInviteCreate(t, adp, td) })
	t.Run("InviteGet", func(t *testing.T) { RunInviteGet(t, adp, td) })
	t.Run("InviteUse", func(t *testing.T) { RunInviteUse(t, adp, td) })
	t.Run("InviteDelete", func(t *testing.T) { RunInviteDelete(t, adp, td) })
	t.Run("MessageDeleteAll", func(t *testing.T) { RunMessageDeleteAll(t, adp, td) })
	t.Run("HubDelete", func(t *testing.T) { RunHubDelete(t, adp, td) })
}
