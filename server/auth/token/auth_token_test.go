package token

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hubchat/chat/server/auth"
	"github.com/hubchat/chat/server/store/types"
)

const testKey = "wfaY2RgF2S1OQI/ZlK+LSrp1KB2jwAdGAIHQ7JZn+Kc="

func newAuth(t *testing.T, conf string) *authenticator {
	t.Helper()
	ta := &authenticator{}
	if err := ta.Init(json.RawMessage(conf), "token"); err != nil {
		t.Fatal(err)
	}
	return ta
}

func TestRoundTrip(t *testing.T) {
	ta := newAuth(t, `{"key": "`+testKey+`", "expire_in": 3600, "serial_num": 2, "issuer": "hubchat"}`)

	tok, expires, err := ta.GenSecret(&auth.Rec{Uid: types.Uid(12345)})
	if err != nil {
		t.Fatal(err)
	}
	if d := time.Until(expires); d <= 59*time.Minute || d > time.Hour+time.Second {
		t.Errorf("unexpected expiration %v", expires)
	}

	rec, err := ta.Authenticate(tok)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Uid != types.Uid(12345) {
		t.Errorf("uid = %v, want 12345", rec.Uid)
	}
	if rec.Lifetime <= 0 {
		t.Errorf("lifetime = %v", rec.Lifetime)
	}
}

func TestRejects(t *testing.T) {
	ta := newAuth(t, `{"key": "`+testKey+`", "expire_in": 3600, "serial_num": 1}`)
	good, _, err := ta.GenSecret(&auth.Rec{Uid: types.Uid(7)})
	if err != nil {
		t.Fatal(err)
	}

	// Other key.
	other := newAuth(t, `{"key": "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=", "expire_in": 3600, "serial_num": 1}`)
	if _, err := other.Authenticate(good); !errors.Is(err, auth.ErrFailed) {
		t.Errorf("foreign key: %v", err)
	}

	// Serial number bumped.
	bumped := newAuth(t, `{"key": "`+testKey+`", "expire_in": 3600, "serial_num": 2}`)
	if _, err := bumped.Authenticate(good); !errors.Is(err, auth.ErrFailed) {
		t.Errorf("old serial: %v", err)
	}

	// Garbage.
	if _, err := ta.Authenticate([]byte("not.a.token")); !errors.Is(err, auth.ErrMalformed) {
		t.Errorf("garbage: %v", err)
	}

	// Expired.
	past := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   types.Uid(7).String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		SerialNumber: 1,
	})
	signed, _ := past.SignedString(ta.hmacKey)
	if _, err := ta.Authenticate([]byte(signed)); !errors.Is(err, auth.ErrExpired) {
		t.Errorf("expired: %v", err)
	}

	// Unsigned.
	none := jwt.NewWithClaims(jwt.SigningMethodNone, &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   types.Uid(7).String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		SerialNumber: 1,
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := ta.Authenticate([]byte(unsigned)); err == nil {
		t.Error("alg none accepted")
	}
}

func TestInitErrors(t *testing.T) {
	for _, conf := range []string{
		`{"key": "c2hvcnQ=", "expire_in": 10}`,
		`{"key": "` + testKey + `", "expire_in": 0}`,
		`not json`,
	} {
		ta := &authenticator{}
		if err := ta.Init(json.RawMessage(conf), "token"); err == nil {
			t.Errorf("Init(%s) succeeded", conf)
		}
	}

	ta := newAuth(t, `{"key": "`+testKey+`", "expire_in": 10}`)
	if err := ta.Init(json.RawMessage(`{"key": "`+testKey+`", "expire_in": 10}`), "again"); err == nil ||
		!strings.Contains(err.Error(), "already initialized") {
		t.Errorf("second Init: %v", err)
	}
}

func TestResolve(t *testing.T) {
	err := auth.Init(json.RawMessage(`{"order": ["token"], "schemes": {"token": {"key": "` + testKey + `", "expire_in": 600}}}`))
	if err != nil {
		t.Fatal(err)
	}
	hnd := auth.GetAuthHandler("token")
	tok, _, err := hnd.GenSecret(&auth.Rec{Uid: types.Uid(99)})
	if err != nil {
		t.Fatal(err)
	}

	uid, err := auth.Resolve(string(tok))
	if err != nil || uid != types.Uid(99) {
		t.Errorf("Resolve = %v, %v", uid, err)
	}
	if _, err := auth.Resolve("bogus"); !errors.Is(err, types.ErrUnauthenticated) {
		t.Errorf("Resolve(bogus) = %v", err)
	}
	if _, err := auth.Resolve(""); !errors.Is(err, types.ErrUnauthenticated) {
		t.Errorf("Resolve('') = %v", err)
	}
}
