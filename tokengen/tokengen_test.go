package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hubchat/chat/server/store/types"
)

const testConfig = `// comments are allowed
{
	"auth_config": {
		"schemes": {
			"token": {
				"key": "wfaY2RgF2S1OQI/ZlK+LSrp1KB2jwAdGAIHQ7JZn+Kc=",
				"serial_num": 1,
				"expire_in": 3600
			}
		}
	}
}`

func TestGenerateThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubchat.conf")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := initAuth(path); err != nil {
		t.Fatal(err)
	}

	uid := types.Uid(12345)
	var out bytes.Buffer
	if code := generate(&out, uid.String(), 0); code != 0 {
		t.Fatalf("generate exit code %d: %s", code, out.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	token := lines[len(lines)-1]

	out.Reset()
	if code := validate(&out, token); code != 0 {
		t.Fatalf("validate exit code %d: %s", code, out.String())
	}
	if !strings.Contains(out.String(), uid.String()) {
		t.Errorf("validate output %q does not name %s", out.String(), uid)
	}

	out.Reset()
	if code := validate(&out, token+"x"); code != 1 {
		t.Errorf("tampered token accepted: %s", out.String())
	}

	out.Reset()
	if code := generate(&out, "not-a-uid!", 0); code != 1 {
		t.Errorf("invalid user accepted: %s", out.String())
	}
}

func TestInitAuthErrors(t *testing.T) {
	dir := t.TempDir()
	if err := initAuth(filepath.Join(dir, "missing.conf")); err == nil {
		t.Error("missing file accepted")
	}

	path := filepath.Join(dir, "empty.conf")
	if err := os.WriteFile(path, []byte(`{"listen": ":6080"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := initAuth(path); err == nil {
		t.Error("config without auth_config accepted")
	}
}
