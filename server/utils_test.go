package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hubchat/chat/server/store/types"
)

func TestValidateName(t *testing.T) {
	good := []string{
		"general",
		"a",
		"Ünïcödé",
		strings.Repeat("x", 32),
		// 32 grapheme clusters of 2 code points each.
		strings.Repeat("é", 32),
		"🇺🇦 flags",
	}
	for _, name := range good {
		if err := validateName(name); err != nil {
			t.Errorf("validateName(%q) = %v", name, err)
		}
	}

	bad := []string{
		"",
		"   ",
		strings.Repeat("x", 33),
		"tab\there",
		"new\nline",
		"\x00",
		string([]byte{0xff, 0xfe}),
	}
	for _, name := range bad {
		if err := validateName(name); !errors.Is(err, types.ErrInvalidName) {
			t.Errorf("validateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestValidateBody(t *testing.T) {
	if err := validateBody("hi"); err != nil {
		t.Error(err)
	}
	if err := validateBody(strings.Repeat("a", maxMessageSize)); err != nil {
		t.Error(err)
	}
	for _, body := range []string{"", strings.Repeat("a", maxMessageSize+1), string([]byte{'a', 0xc3})} {
		if err := validateBody(body); !errors.Is(err, types.ErrInvalidBody) {
			t.Errorf("validateBody(len=%d) = %v, want ErrInvalidBody", len(body), err)
		}
	}
}

func TestParseParams(t *testing.T) {
	uid := types.Uid(123456789)
	if got, err := parseUidParam(uid.String()); err != nil || got != uid {
		t.Errorf("parseUidParam = %v, %v", got, err)
	}
	if _, err := parseUidParam("nope"); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("parseUidParam(nope) = %v", err)
	}
	if v, err := parseIntParam("", 7); err != nil || v != 7 {
		t.Errorf("parseIntParam default = %v, %v", v, err)
	}
	if _, err := parseIntParam("-1", 0); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("parseIntParam(-1) = %v", err)
	}
	if d, err := parseTTL("90s"); err != nil || d != 90*time.Second {
		t.Errorf("parseTTL = %v, %v", d, err)
	}
	if _, err := parseTTL("-5m"); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("parseTTL(-5m) = %v", err)
	}
}

func TestAsStorageErr(t *testing.T) {
	if asStorageErr(nil) != nil {
		t.Error("nil became an error")
	}
	if err := asStorageErr(types.ErrNotFound); err != types.ErrNotFound {
		t.Errorf("typed error changed: %v", err)
	}
	if err := asStorageErr(errors.New("disk full")); !errors.Is(err, types.ErrStorage) {
		t.Errorf("untyped error not wrapped: %v", err)
	}
}
