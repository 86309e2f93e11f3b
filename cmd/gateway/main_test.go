package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const mainTestPrefix = "cmd/gateway:main_test"

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "migrate", "clear", "seed", "ensure-db", "channels", "DATABASE_URL"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestArgAt(t *testing.T) {
	args := []string{"seed", "channels.yml"}
	if got := argAt(args, 1); got != "channels.yml" {
		t.Errorf("%s - argAt(1) = %q", mainTestPrefix, got)
	}
	if got := argAt(args, 2); got != "" {
		t.Errorf("%s - argAt(2) = %q, want empty", mainTestPrefix, got)
	}
}

func TestRunChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yml")
	data := `schemaVersion: "1.0.0"
name: demo
channels:
  - channel: "psu:current"
    getterConfig: {type: SCALAR}
    setterConfig: {type: VOID}
  - channel: "bpm:*"
    getterConfig: {type: TABLE, fields: [{name: x}]}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("%s - write: %v", mainTestPrefix, err)
	}

	var out bytes.Buffer
	if err := runChannels(&out, path); err != nil {
		t.Fatalf("%s - runChannels: %v", mainTestPrefix, err)
	}
	got := out.String()
	for _, want := range []string{"demo", "2 channels", "psu:current", "SCALAR", "VOID", "bpm:*", "TABLE", "NONE"} {
		if !strings.Contains(got, want) {
			t.Errorf("%s - output missing %q:\n%s", mainTestPrefix, want, got)
		}
	}
}

func TestRunChannels_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yml")
	data := `schemaVersion: "1.0.0"
name: dup
channels:
  - channel: a
  - channel: a
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("%s - write: %v", mainTestPrefix, err)
	}
	if err := runChannels(&bytes.Buffer{}, path); err == nil {
		t.Errorf("%s - expected duplicate channel error", mainTestPrefix)
	}
}
