// Package token implements authentication by HMAC-signed JSON Web Tokens.
package token

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hubchat/chat/server/auth"
	"github.com/hubchat/chat/server/store/types"
)

// Minimum length of the signing key.
const minKeyLength = 32

// authenticator is a singleton instance of the authenticator.
type authenticator struct {
	name         string
	hmacKey      []byte
	lifetime     time.Duration
	serialNumber int
	issuer       string
}

// claims is the payload of the token. The subject is the user id.
type claims struct {
	jwt.RegisteredClaims
	// Serial number - to invalidate all tokens if needed.
	SerialNumber int `json:"sn"`
}

// Init initializes the authenticator: parses the config and sets key, serial number and lifetime.
func (ta *authenticator) Init(jsonconf json.RawMessage, name string) error {
	if ta.name != "" {
		return errors.New("auth_token: already initialized as " + ta.name + "; " + name)
	}

	type configType struct {
		// Key for signing tokens
		Key []byte `json:"key"`
		// Datatabase or other serial number, to invalidate all issued tokens at once.
		SerialNum int `json:"serial_num"`
		// Token expiration time in seconds.
		ExpireIn int `json:"expire_in"`
		// Value of the `iss` claim.
		Issuer string `json:"issuer"`
	}
	var config configType
	if err := json.Unmarshal(jsonconf, &config); err != nil {
		return errors.New("auth_token: failed to parse config: " + err.Error() + "(" + string(jsonconf) + ")")
	}

	if len(config.Key) < minKeyLength {
		return errors.New("auth_token: the key is missing or too short")
	}
	if config.ExpireIn <= 0 {
		return errors.New("auth_token: invalid expiration value")
	}

	ta.name = name
	ta.hmacKey = config.Key
	ta.lifetime = time.Duration(config.ExpireIn) * time.Second
	ta.serialNumber = config.SerialNum
	ta.issuer = config.Issuer

	return nil
}

// Authenticate checks validity of provided token.
func (ta *authenticator) Authenticate(token []byte) (*auth.Rec, error) {
	if ta.hmacKey == nil {
		return nil, auth.ErrUnsupported
	}

	var parsed claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if ta.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ta.issuer))
	}
	_, err := jwt.ParseWithClaims(string(token), &parsed, func(*jwt.Token) (any, error) {
		return ta.hmacKey, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, auth.ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, auth.ErrMalformed
		default:
			return nil, auth.ErrFailed
		}
	}

	// Check serial number.
	if parsed.SerialNumber != ta.serialNumber {
		return nil, auth.ErrFailed
	}

	uid := types.ParseUid(parsed.Subject)
	if uid.IsZero() {
		return nil, auth.ErrMalformed
	}

	return &auth.Rec{
		Uid:      uid,
		Lifetime: time.Until(parsed.ExpiresAt.Time),
	}, nil
}

// GenSecret generates a new token.
func (ta *authenticator) GenSecret(rec *auth.Rec) ([]byte, time.Time, error) {
	if ta.hmacKey == nil {
		return nil, time.Time{}, auth.ErrUnsupported
	}
	if rec.Uid.IsZero() {
		return nil, time.Time{}, auth.ErrMalformed
	}

	lifetime := rec.Lifetime
	if lifetime == 0 {
		lifetime = ta.lifetime
	} else if lifetime < 0 {
		return nil, time.Time{}, auth.ErrExpired
	}
	now := time.Now().UTC().Round(time.Second)
	expires := now.Add(lifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   rec.Uid.String(),
			Issuer:    ta.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		SerialNumber: ta.serialNumber,
	})
	signed, err := token.SignedString(ta.hmacKey)
	if err != nil {
		return nil, time.Time{}, err
	}

	return []byte(signed), expires, nil
}

func init() {
	auth.Register("token", &authenticator{})
}
