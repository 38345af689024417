// Package testsuite contains adapter tests shared by all database adapters.
package testsuite

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	adapter "github.com/hubchat/chat/server/db"
	"github.com/hubchat/chat/server/db/common/test_data"
	"github.com/hubchat/chat/server/store/types"
)

// RunHubCreate inserts test hubs and checks duplicate detection.
func RunHubCreate(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	for _, rec := range td.Hubs {
		if err := adp.HubCreate(rec); err != nil {
			t.Fatalf("HubCreate(%s): %v", rec.Id, err)
		}
	}
	if err := adp.HubCreate(td.Hubs[0]); !errors.Is(err, types.ErrDuplicate) {
		t.Errorf("duplicate HubCreate: expected ErrDuplicate, got %v", err)
	}
}

// RunHubGet checks that a stored hub record is returned unchanged and a missing one is (nil, nil).
func RunHubGet(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	got, err := adp.HubGet(td.Hubs[0].Id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(td.Hubs[0], got); diff != "" {
		t.Errorf("HubGet mismatch (-want +got):\n%s", diff)
	}

	got, err = adp.HubGet(types.Uid(12345))
	if err != nil || got != nil {
		t.Errorf("HubGet of missing hub = %v, %v; want nil, nil", got, err)
	}
}

// RunHubUpdate replaces the snapshot and reads it back.
func RunHubUpdate(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	rec := *td.Hubs[0]
	rec.Name = "gophers united"
	rec.State = []byte(`{"name":"gophers united"}`)
	rec.UpdatedAt = td.Now
	if err := adp.HubUpdate(&rec); err != nil {
		t.Fatal(err)
	}
	got, err := adp.HubGet(rec.Id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&rec, got); diff != "" {
		t.Errorf("HubUpdate mismatch (-want +got):\n%s", diff)
	}
}

// RunHubDelete deletes the second hub and checks its invites are gone too.
func RunHubDelete(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	id := td.Hubs[1].Id
	if err := adp.HubDelete(id); err != nil {
		t.Fatal(err)
	}
	if got, err := adp.HubGet(id); err != nil || got != nil {
		t.Errorf("hub still present after delete: %v, %v", got, err)
	}
	invites, err := adp.InvitesForHub(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(invites) != 0 {
		t.Errorf("invites of deleted hub remain: %d", len(invites))
	}
	// The other hub is untouched.
	if got, err := adp.HubGet(td.Hubs[0].Id); err != nil || got == nil {
		t.Errorf("unrelated hub affected by delete: %v, %v", got, err)
	}
}
