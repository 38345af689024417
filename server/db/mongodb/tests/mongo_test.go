//go:build mongodb
// +build mongodb

// Tests of the mongodb adapter against a live database. The database named in the config
// is dropped and recreated. Run with:
//
//	go test -tags mongodb ./server/db/mongodb/tests -config ./test.conf
package tests

import (
	"encoding/json"
	"flag"
	"os"
	"testing"

	adapter "github.com/hubchat/chat/server/db"
	"github.com/hubchat/chat/server/db/common/test_data"
	"github.com/hubchat/chat/server/db/common/testsuite"
	backend "github.com/hubchat/chat/server/db/mongodb"
	"github.com/hubchat/chat/server/logs"
	jcr "github.com/tinode/jsonco"
)

type configType struct {
	// Configurations for individual adapters.
	Adapters map[string]json.RawMessage `json:"adapters"`
}

var conffile = flag.String("config", "./test.conf", "config of the database connection")

var adp adapter.Adapter

func TestMain(m *testing.M) {
	flag.Parse()

	file, err := os.Open(*conffile)
	if err != nil {
		logs.Warn.Println("mongodb adapter tests skipped, no config:", err)
		os.Exit(0)
	}
	var config configType
	err = json.NewDecoder(jcr.New(file)).Decode(&config)
	file.Close()
	if err != nil {
		logs.Err.Fatal("Failed to parse config file:", err)
	}

	adp = backend.GetTestAdapter()
	if err = adp.Open(config.Adapters[adp.GetName()]); err != nil {
		logs.Err.Fatal(err)
	}
	if err = adp.CreateDb(true); err != nil {
		logs.Err.Fatal(err)
	}

	code := m.Run()
	adp.Close()
	os.Exit(code)
}

func TestSuite(t *testing.T) {
	testsuite.RunAll(t, adp, test_data.InitTestData())
}

func TestDbVersion(t *testing.T) {
	if err := adp.CheckDbVersion(); err != nil {
		t.Fatal(err)
	}
	if v, err := adp.GetDbVersion(); err != nil || v != adp.Version() {
		t.Errorf("GetDbVersion() = %d, %v; want %d", v, err, adp.Version())
	}
}
