package sqlite

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/hubchat/chat/server/db/common/test_data"
	"github.com/hubchat/chat/server/db/common/testsuite"
)

func openTestAdapter(t *testing.T) *sqliteAdapter {
	t.Helper()

	conf, _ := json.Marshal(configType{Path: filepath.Join(t.TempDir(), "test.db")})
	adp := &sqliteAdapter{}
	if err := adp.Open(conf); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { adp.Close() })
	if err := adp.CreateDb(false); err != nil {
		t.Fatal(err)
	}
	return adp
}

func TestSuite(t *testing.T) {
	adp := openTestAdapter(t)
	testsuite.RunAll(t, adp, test_data.InitTestData())
}

func TestDbVersion(t *testing.T) {
	adp := openTestAdapter(t)
	if err := adp.CheckDbVersion(); err != nil {
		t.Fatal(err)
	}
	// Cached version is dropped, the value comes from kvmeta.
	adp.version = -1
	if v, err := adp.GetDbVersion(); err != nil || v != adpVersion {
		t.Errorf("GetDbVersion() = %d, %v; want %d", v, err, adpVersion)
	}
}

func TestCreateDbReset(t *testing.T) {
	adp := openTestAdapter(t)
	td := test_data.InitTestData()
	if err := adp.HubCreate(td.Hubs[0]); err != nil {
		t.Fatal(err)
	}
	if err := adp.CreateDb(true); err != nil {
		t.Fatal(err)
	}
	if rec, err := adp.HubGet(td.Hubs[0].Id); err != nil || rec != nil {
		t.Errorf("hub survived reset: %v, %v", rec, err)
	}
}

func TestUninitialized(t *testing.T) {
	conf, _ := json.Marshal(configType{Path: filepath.Join(t.TempDir(), "empty.db")})
	adp := &sqliteAdapter{}
	if err := adp.Open(conf); err != nil {
		t.Fatal(err)
	}
	defer adp.Close()
	if err := adp.CheckDbVersion(); err == nil {
		t.Error("expected error on uninitialized database")
	}
}
