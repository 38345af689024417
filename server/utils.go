// Generic data manipulation utilities.

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hubchat/chat/server/store/types"
	"github.com/rivo/uniseg"
)

const (
	// Maximum length of hub, channel and rank names in grapheme clusters.
	maxNameLength = 32
	// Maximum size of a message body in bytes.
	maxMessageSize = 4096
	// Maximum size of a channel description in bytes.
	maxDescriptionSize = 1024
	// Default number of messages returned by get_messages.
	defaultMessageLimit = 50
)

// validateName checks that the name is 1 to 32 grapheme clusters long and has no control characters.
func validateName(name string) error {
	if name == "" || !utf8.ValidString(name) {
		return types.ErrInvalidName
	}
	if strings.TrimSpace(name) == "" {
		return types.ErrInvalidName
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return types.ErrInvalidName
		}
	}
	if uniseg.GraphemeClusterCount(name) > maxNameLength {
		return types.ErrInvalidName
	}
	return nil
}

// validateBody checks that the message body is non-empty valid UTF-8 of at most 4096 bytes.
func validateBody(body string) error {
	if body == "" || len(body) > maxMessageSize || !utf8.ValidString(body) {
		return types.ErrInvalidBody
	}
	return nil
}

// validateDescription checks channel description: may be empty, valid UTF-8, at most 1024 bytes.
func validateDescription(desc string) error {
	if len(desc) > maxDescriptionSize || !utf8.ValidString(desc) {
		return fmt.Errorf("%w: description", types.ErrMalformed)
	}
	return nil
}

// parseUidParam converts a URL path parameter to Uid.
func parseUidParam(s string) (types.Uid, error) {
	uid := types.ParseUid(s)
	if uid.IsZero() {
		return types.ZeroUid, fmt.Errorf("%w: invalid id '%s'", types.ErrMalformed, s)
	}
	return uid, nil
}

// parseIntParam converts an optional numeric query parameter. Empty string yields def.
func parseIntParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	val, err := strconv.Atoi(s)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("%w: invalid number '%s'", types.ErrMalformed, s)
	}
	return val, nil
}

// Parse string as duration, like "90s" or "15m".
func parseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(s)
	if err != nil || ttl < 0 {
		return 0, fmt.Errorf("%w: invalid ttl '%s'", types.ErrMalformed, s)
	}
	return ttl, nil
}

// asStorageErr marks any error which is not a typed store error as a storage failure.
func asStorageErr(err error) error {
	if err == nil {
		return nil
	}
	var se types.StoreError
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrStorage, err)
}
