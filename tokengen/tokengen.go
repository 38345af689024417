// Command tokengen issues and checks API tokens using the server's token authenticator.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hubchat/chat/server/auth"
	_ "github.com/hubchat/chat/server/auth/token"
	"github.com/hubchat/chat/server/store/types"
	jcr "github.com/tinode/jsonco"
)

const scheme = "token"

func main() {
	var conffile = flag.String("config", "./hubchat.conf", "Server config with the 'auth_config' section")
	var user = flag.String("user", "", "ID of the user to issue a token for")
	var lifetime = flag.Duration("lifetime", 0, "Token lifetime; default is 'expire_in' from the config")
	var token = flag.String("validate", "", "Token to validate")
	flag.Parse()

	if *user == "" && *token == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := initAuth(*conffile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *user != "" {
		os.Exit(generate(os.Stdout, *user, *lifetime))
	}
	os.Exit(validate(os.Stdout, *token))
}

// initAuth reads the server config and initializes the authenticators from it.
func initAuth(path string) error {
	var config struct {
		AuthConfig json.RawMessage `json:"auth_config"`
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	jr := jcr.New(file)
	if err = json.NewDecoder(jr).Decode(&config); err != nil {
		if jerr, ok := err.(*json.SyntaxError); ok {
			lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
			return fmt.Errorf("syntax error in config file at %d:%d: %w", lnum, cnum, err)
		}
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.AuthConfig == nil {
		return fmt.Errorf("config file has no 'auth_config' section")
	}
	return auth.Init(config.AuthConfig)
}

func generate(out io.Writer, user string, lifetime time.Duration) int {
	uid := types.ParseUid(user)
	if uid.IsZero() {
		fmt.Fprintln(out, "invalid user id", user)
		return 1
	}

	hnd := auth.GetAuthHandler(scheme)
	if hnd == nil {
		fmt.Fprintln(out, "token authenticator is not available")
		return 1
	}
	secret, expires, err := hnd.GenSecret(&auth.Rec{Uid: uid, Lifetime: lifetime})
	if err != nil {
		fmt.Fprintln(out, "failed to issue token:", err)
		return 1
	}

	fmt.Fprintf(out, "Token for %s, valid until %s:\n%s\n", uid, expires.Format(time.RFC3339), secret)
	return 0
}

func validate(out io.Writer, token string) int {
	uid, err := auth.Resolve(token)
	if err != nil {
		fmt.Fprintln(out, "INVALID:", err)
		return 1
	}
	fmt.Fprintf(out, "Valid token of %s\n", uid)
	return 0
}
