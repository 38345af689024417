/******************************************************************************
 *
 *  Description :
 *
 *  Web server initialization and shutdown.
 *
 *****************************************************************************/

package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hubchat/chat/server/index"
	"github.com/hubchat/chat/server/logs"
	"golang.org/x/crypto/acme/autocert"
)

type tlsAutocertConfig struct {
	// Domains to support by autocert
	Domains []string `json:"domains"`
	// Name of directory where auto-certificates are cached, e.g. /etc/letsencrypt/live/your-domain-here
	CertCache string `json:"cache"`
	// Contact email for letsencrypt
	Email string `json:"email"`
}

type tlsConfigType struct {
	// Flag enabling TLS
	Enabled bool `json:"enabled"`
	// Listen for connections on this address:port and redirect them to HTTPS port.
	RedirectHTTP string `json:"http_redirect"`
	// Enable Strict-Transport-Security by setting max_age > 0
	StrictMaxAge int `json:"strict_max_age"`
	// ACME autocert config, e.g. letsencrypt.org
	Autocert *tlsAutocertConfig `json:"autocert"`
	// If Autocert is not defined, provide file names of static certificate and key
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
}

// parseTLSConfig reads the tls section of the config. The server runs plain HTTP when it returns nil.
func parseTLSConfig(tlsEnabled bool, jsconfig json.RawMessage) (*tls.Config, *tlsConfigType, error) {
	var config tlsConfigType
	if len(jsconfig) > 0 {
		if err := json.Unmarshal(jsconfig, &config); err != nil {
			return nil, nil, errors.New("http: failed to parse tls_config: " + err.Error())
		}
	}

	if !tlsEnabled && !config.Enabled {
		return nil, &config, nil
	}

	if config.StrictMaxAge > 0 {
		globals.tlsStrictMaxAge = strconv.Itoa(config.StrictMaxAge)
	}

	if config.Autocert != nil {
		certManager := autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(config.Autocert.Domains...),
			Cache:      autocert.DirCache(config.Autocert.CertCache),
			Email:      config.Autocert.Email,
		}
		if config.CertFile != "" || config.KeyFile != "" {
			logs.Warn.Printf("HTTP server: using autocert, static cert and key files are ignored")
			config.CertFile = ""
			config.KeyFile = ""
		}
		return certManager.TLSConfig(), &config, nil
	}

	if config.CertFile == "" || config.KeyFile == "" {
		return nil, nil, errors.New("HTTP server: missing certificate or key file names")
	}
	cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, &config, nil
}

// listenAndServe runs the HTTP server until stop fires, then shuts down the server,
// the hubs and the indexers in that order.
func listenAndServe(addr string, mux http.Handler, tlsConf *tls.Config, redirectHTTP string,
	reg *Registry, shutdownTimeout time.Duration, stop <-chan bool) error {

	shuttingDown := false

	httpdone := make(chan bool)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	server.TLSConfig = tlsConf
	if tlsConf != nil {
		// If port is not specified, use default https port (443),
		// otherwise it will default to 80
		if server.Addr == "" {
			server.Addr = ":https"
		}
	}

	go func() {
		var err error
		if server.TLSConfig != nil {
			if redirectHTTP != "" {
				logs.Info.Printf("Redirecting connections from HTTP at [%s] to HTTPS at [%s]",
					redirectHTTP, server.Addr)

				// This is a second HTTP server listening on a different port.
				go func() {
					if err := http.ListenAndServe(redirectHTTP, tlsRedirect(addr)); err != nil && err != http.ErrServerClosed {
						logs.Info.Println("HTTP redirect failed:", err)
					}
				}()
			}

			logs.Info.Printf("Listening for client HTTPS connections on [%s]", server.Addr)
			err = server.ListenAndServeTLS("", "")
		} else {
			logs.Info.Printf("Listening for client HTTP connections on [%s]", server.Addr)
			err = server.ListenAndServe()
		}
		if err != nil {
			if shuttingDown {
				logs.Info.Println("HTTP server: stopped")
			} else {
				logs.Err.Println("HTTP server: failed", err)
			}
		}
		httpdone <- true
	}()

	// Wait for either a termination signal or an error
	select {
	case <-stop:
		// Flip the flag that we are terminating and close the Accept-ing socket, so no new connections are possible.
		shuttingDown = true
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			// failure/timeout shutting down the server gracefully
			logs.Err.Println("HTTP server failed to terminate gracefully", err)
		}

		// Wait for http server to stop Accept()-ing connections.
		<-httpdone

		// Stop hubs. Commands already accepted are completed.
		reg.Shutdown(shutdownTimeout)

		// Stop indexers after the hubs so the last messages are passed on.
		index.Stop()

	case <-httpdone:
	}
	return nil
}

func signalHandler() <-chan bool {
	stop := make(chan bool)

	signchan := make(chan os.Signal, 1)
	signal.Notify(signchan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		// Wait for a signal. Don't care which signal it is
		sig := <-signchan
		logs.Info.Printf("Signal received: '%s', shutting down", sig)
		stop <- true
	}()

	return stop
}

// Wrapper for http.Handler which optionally adds a Strict-Transport-Security to the response.
func hstsHandler(handler http.Handler) http.Handler {
	if globals.tlsStrictMaxAge != "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Strict-Transport-Security", "max-age="+globals.tlsStrictMaxAge)
			handler.ServeHTTP(w, r)
		})
	}
	return handler
}

// Redirect HTTP requests to HTTPS.
func tlsRedirect(toPort string) http.HandlerFunc {
	if _, port, err := net.SplitHostPort(toPort); err == nil {
		toPort = port
	}
	if toPort == "443" || toPort == "https" {
		toPort = ""
	}

	return func(wrt http.ResponseWriter, req *http.Request) {
		host := strings.Split(req.Host, ":")[0]
		if toPort != "" {
			host = host + ":" + toPort
		}
		target := "https://" + host + req.URL.Path
		if req.URL.RawQuery != "" {
			target += "?" + req.URL.RawQuery
		}
		http.Redirect(wrt, req, target, http.StatusTemporaryRedirect)
	}
}
