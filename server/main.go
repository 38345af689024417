/******************************************************************************
 *
 *  Description :
 *
 *  Setup & initialization.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	gh "github.com/gorilla/handlers"
	"github.com/hubchat/chat/server/auth"
	"github.com/hubchat/chat/server/index"
	"github.com/hubchat/chat/server/logs"
	"github.com/hubchat/chat/server/store"
	jcr "github.com/tinode/jsonco"

	// Authenticators.
	_ "github.com/hubchat/chat/server/auth/token"

	// Search indexers.
	_ "github.com/hubchat/chat/server/index/memory"
	_ "github.com/hubchat/chat/server/index/stdout"

	// Default database adapter. Other adapters are selected with build tags, see db_*.go.
	_ "github.com/hubchat/chat/server/db/sqlite"
)

const (
	// currentVersion is the current API/protocol version
	currentVersion = "0.1"

	// Prefix of the API routes.
	apiPrefix = "/v1"

	// Default time to wait for hubs and connections to finish on shutdown.
	defaultShutdownTimeout = 10 * time.Second

	// Prefix of environment variables which override config values.
	envPrefix = "HUBCHAT_"
)

// Build version number defined by the compiler:
//
//	-ldflags "-X main.buildstamp=value_to_assign_to_buildstamp"
//
// Reported by the /healthz endpoint.
// For instance, to define the buildstamp as a timestamp of when the server was built add a
// flag to compiler command line:
//
//	-ldflags "-X main.buildstamp=`date -u '+%Y%m%dT%H:%M:%SZ'`"
//
// or to set it to git tag:
//
//	-ldflags "-X main.buildstamp=`git describe --tags`"
var buildstamp = "undef"

var globals struct {
	// Live hubs.
	registry *Registry

	// Add Strict-Transport-Security to headers, the value signifies age.
	// Empty string "" turns it off
	tlsStrictMaxAge string
}

// Contents of the configuration file
type configType struct {
	// HTTP(S) address:port to listen on for API requests. Default ":6080".
	Listen string `json:"listen" env:"LISTEN"`
	// Snowflake worker id, unique per process sharing a database. Default 1.
	WorkerID int `json:"worker_id" env:"WORKER_ID"`
	// URL path for exposing metrics in Prometheus format. "-" disables.
	StatsPath string `json:"stats_path" env:"STATS_PATH"`
	// Seconds a request waits for a hub to reply.
	RequestTimeout int `json:"request_timeout" env:"REQUEST_TIMEOUT"`
	// Seconds to wait for hubs to stop on shutdown.
	ShutdownTimeout int `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Log access requests in Apache combined format.
	AccessLog bool `json:"access_log" env:"ACCESS_LOG"`

	// Hub registry settings.
	Hubs registryConfig `json:"hubs"`

	// Configs for subsystems
	TLS         json.RawMessage `json:"tls"`
	StoreConfig json.RawMessage `json:"store_config"`
	AuthConfig  json.RawMessage `json:"auth_config"`
	IndexConfig json.RawMessage `json:"index_config"`
}

func main() {
	executable, _ := os.Executable()

	logFlags := flag.String("log_flags", "stdflags",
		"Comma-separated list of log flags (as defined in https://golang.org/pkg/log/#pkg-constants without the L prefix)")
	logOutput := flag.String("log_output", "stderr", "Where to write logs: stdout or stderr")
	configfile := flag.String("config", "hubchat.conf", "Path to config file.")
	listenOn := flag.String("listen", "", "Override address and port to listen on for HTTP(S) clients.")
	tlsEnabled := flag.Bool("tls_enabled", false, "Override config value for enabling TLS.")
	flag.Parse()

	logs.Init(*logOutput, *logFlags)

	logs.Info.Printf("Server v%s:%s:%s; pid %d; %d process(es)",
		currentVersion, executable, buildstamp,
		os.Getpid(), runtime.GOMAXPROCS(runtime.NumCPU()))

	logs.Info.Printf("Using config from '%s'", *configfile)

	config, err := loadConfig(*configfile)
	if err != nil {
		logs.Err.Fatal(err)
	}

	if *listenOn != "" {
		config.Listen = *listenOn
	}
	if config.Listen == "" {
		config.Listen = ":6080"
	}
	if config.WorkerID <= 0 {
		config.WorkerID = 1
	}

	err = store.Store.Open(config.WorkerID, config.StoreConfig)
	logs.Info.Println("DB adapter", store.Store.GetAdapterName(), store.Store.GetAdapterVersion())
	if err != nil {
		logs.Err.Fatal("Failed to connect to DB: ", err)
	}
	defer func() {
		store.Store.Close()
		logs.Info.Println("Closed database connection(s)")
		logs.Info.Println("All done, good bye")
	}()
	statsRegisterDb(store.Store.DbStats())

	if err = auth.Init(config.AuthConfig); err != nil {
		logs.Err.Fatal("Failed to initialize authentication: ", err)
	}

	names, err := index.Init(config.IndexConfig)
	if err != nil {
		logs.Err.Fatal("Failed to initialize search index: ", err)
	}
	if len(names) > 0 {
		logs.Info.Println("Search indexers:", strings.Join(names, ", "))
	} else {
		logs.Info.Println("Search is disabled: no indexers configured")
	}

	globals.registry = newRegistry(config.Hubs)

	tlsConfig, tlsParams, err := parseTLSConfig(*tlsEnabled, config.TLS)
	if err != nil {
		logs.Err.Fatal(err)
	}

	api := newAPIServer(globals.registry, time.Duration(config.RequestTimeout)*time.Second)

	mux := http.NewServeMux()
	mux.Handle(apiPrefix+"/", http.StripPrefix(apiPrefix, api.routes()))
	mux.HandleFunc("/healthz", serveHealth)
	statsInit(mux, config.StatsPath)

	var handler http.Handler = hstsHandler(mux)
	if config.AccessLog {
		handler = gh.CombinedLoggingHandler(logs.Info.Writer(), handler)
	}

	shutdownTimeout := defaultShutdownTimeout
	if config.ShutdownTimeout > 0 {
		shutdownTimeout = time.Duration(config.ShutdownTimeout) * time.Second
	}

	if err = listenAndServe(config.Listen, handler, tlsConfig, tlsParams.RedirectHTTP,
		globals.registry, shutdownTimeout, signalHandler()); err != nil {
		logs.Err.Fatal(err)
	}
}

// loadConfig reads the JSON config file, which may contain comments, then applies
// overrides from HUBCHAT_* environment variables.
func loadConfig(path string) (*configType, error) {
	var config configType

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	jr := jcr.New(file)
	if err = json.NewDecoder(jr).Decode(&config); err != nil {
		switch jerr := err.(type) {
		case *json.UnmarshalTypeError:
			lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
			return nil, fmt.Errorf("unmarshal error in config file in %s at %d:%d (offset %d bytes): %w",
				jerr.Field, lnum, cnum, jerr.Offset, err)
		case *json.SyntaxError:
			lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
			return nil, fmt.Errorf("syntax error in config file at %d:%d (offset %d bytes): %w",
				lnum, cnum, jerr.Offset, err)
		}
		return nil, err
	}

	if err = env.ParseWithOptions(&config, env.Options{Prefix: envPrefix}); err != nil {
		return nil, err
	}
	return &config, nil
}

func serveHealth(wrt http.ResponseWriter, req *http.Request) {
	writeJSON(wrt, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": currentVersion,
		"build":   buildstamp,
		"hubs":    globals.registry.liveCount(),
	})
}
