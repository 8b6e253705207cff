package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	t.Parallel()

	// Either the ldflags value, build info, or "(devel)"
	if v := getVersion(); v == "" {
		t.Error("getVersion() returned empty string")
	}
}

func TestGetCommit(t *testing.T) {
	t.Parallel()

	c := getCommit()
	if c == "" {
		t.Error("getCommit() returned empty string")
	}
	if len(c) > 7 && c != "unknown" {
		t.Errorf("expected short commit hash, got %q", c)
	}
}

func TestGetDate(t *testing.T) {
	t.Parallel()

	if d := getDate(); d == "" {
		t.Error("getDate() returned empty string")
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("command has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd := NewVersionCmd(); cmd.Use != "version" {
			t.Errorf("expected Use to be 'version', got %q", cmd.Use)
		}
	})

	t.Run("command outputs version info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"spider version", "commit:", "built:", "go:"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got %q", want, output)
			}
		}
	})

	t.Run("short output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--short"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.TrimSpace(buf.String()); got != getVersion() {
			t.Errorf("expected %q, got %q", getVersion(), got)
		}
	})
}
