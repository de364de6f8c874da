package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mailnow/mailnow-admin/internal/crypto"
)

func TestKeygen(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	if err := app.Run([]string{"mailnow-admin", "keygen"}); err != nil {
		t.Fatalf("keygen: %v", err)
	}

	values := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			t.Fatalf("unexpected line %q", line)
		}
		values[k] = v
	}

	if got := len(values["ENCRYPTION_KEY"]); got != 64 {
		t.Errorf("ENCRYPTION_KEY length = %d, want 64 hex chars", got)
	}
	if got := len(values["JWT_SECRET"]); got != 96 {
		t.Errorf("JWT_SECRET length = %d, want 96 hex chars", got)
	}
	if _, err := crypto.FromEncryptionKey(values["ENCRYPTION_KEY"]); err != nil {
		t.Errorf("generated ENCRYPTION_KEY rejected: %v", err)
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	want := map[string][]string{
		"serve":   nil,
		"migrate": {"up", "down", "version"},
		"keygen":  nil,
	}
	for name, subs := range want {
		cmd := app.Command(name)
		if cmd == nil {
			t.Errorf("command %q missing", name)
			continue
		}
		have := map[string]bool{}
		for _, sub := range cmd.Subcommands {
			have[sub.Name] = true
		}
		for _, sub := range subs {
			if !have[sub] {
				t.Errorf("command %q has no %q subcommand", name, sub)
			}
		}
	}
}
