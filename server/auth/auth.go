// Package auth resolves client credentials to user ids through pluggable authenticators.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hubchat/chat/server/store/types"
)

// AuthErr is a structure for reporting an error condition.
type AuthErr string

func (e AuthErr) Error() string {
	return string(e)
}

const (
	// ErrMalformed means the secret cannot be parsed or otherwise wrong
	ErrMalformed = AuthErr("malformed")
	// ErrFailed means authentication failed (bad signature, revoked serial, etc)
	ErrFailed = AuthErr("failed")
	// ErrExpired means the secret has expired
	ErrExpired = AuthErr("expired")
	// ErrUnsupported means an operation is not supported
	ErrUnsupported = AuthErr("unsupported")
)

// Rec is an authenticated identity.
type Rec struct {
	// User ID
	Uid types.Uid `json:"uid,omitempty"`
	// Remaining lifetime of the credential. Zero for GenSecret means the authenticator's default.
	Lifetime time.Duration `json:"lifetime,omitempty"`
}

// AuthHandler is the interface which auth providers must implement.
type AuthHandler interface {
	// Init initializes the handler taking config string and logical name as parameters.
	Init(jsonconf json.RawMessage, name string) error

	// Authenticate: given a user-provided authentication secret return the identity or an AuthErr.
	Authenticate(secret []byte) (*Rec, error)

	// GenSecret generates a new secret for the identity, if appropriate.
	// Returns the secret and the time when it expires.
	GenSecret(rec *Rec) ([]byte, time.Time, error)
}

var authHandlers map[string]AuthHandler

// Scheme used by Resolve.
var defaultScheme string

// Register makes an authenticator available under the given scheme name.
// If Register is called twice or if the handler is nil, it panics.
func Register(name string, hnd AuthHandler) {
	if authHandlers == nil {
		authHandlers = make(map[string]AuthHandler)
	}
	if hnd == nil {
		panic("auth: Register handler is nil")
	}
	if _, dup := authHandlers[name]; dup {
		panic("auth: Register called twice for scheme " + name)
	}
	authHandlers[name] = hnd
}

// GetAuthHandler returns the handler registered for the scheme or nil.
func GetAuthHandler(name string) AuthHandler {
	return authHandlers[name]
}

// Init initializes every authenticator which has a config section. The first configured
// scheme in `order` (or the only one) becomes the scheme used by Resolve.
func Init(jsconfig json.RawMessage) error {
	var config struct {
		// Schemes in order of preference.
		Order []string `json:"order"`
		// Per-scheme configs.
		Schemes map[string]json.RawMessage `json:"schemes"`
	}
	if err := json.Unmarshal(jsconfig, &config); err != nil {
		return errors.New("auth: failed to parse config: " + err.Error())
	}

	for name, conf := range config.Schemes {
		hnd := authHandlers[name]
		if hnd == nil {
			return errors.New("auth: unknown scheme '" + name + "'")
		}
		if err := hnd.Init(conf, name); err != nil {
			return err
		}
	}

	defaultScheme = ""
	for _, name := range config.Order {
		if _, ok := config.Schemes[name]; ok {
			defaultScheme = name
			break
		}
	}
	if defaultScheme == "" && len(config.Schemes) == 1 {
		for name := range config.Schemes {
			defaultScheme = name
		}
	}
	if defaultScheme == "" {
		return errors.New("auth: no authentication scheme configured")
	}
	return nil
}

// Resolve maps a credential to a user id using the default scheme.
// Any failure is reported as types.ErrUnauthenticated.
func Resolve(credential string) (types.Uid, error) {
	hnd := authHandlers[defaultScheme]
	if hnd == nil {
		return types.ZeroUid, fmt.Errorf("%w: no authenticator", types.ErrUnauthenticated)
	}
	if credential == "" {
		return types.ZeroUid, fmt.Errorf("%w: missing credential", types.ErrUnauthenticated)
	}
	rec, err := hnd.Authenticate([]byte(credential))
	if err != nil {
		return types.ZeroUid, fmt.Errorf("%w: %v", types.ErrUnauthenticated, err)
	}
	if rec.Uid.IsZero() {
		return types.ZeroUid, fmt.Errorf("%w: empty identity", types.ErrUnauthenticated)
	}
	return rec.Uid, nil
}
