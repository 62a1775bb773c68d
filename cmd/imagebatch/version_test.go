package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionLine(t *testing.T) {
	oldVersion := version
	oldCommit := commit
	oldDate := date
	defer func() {
		version = oldVersion
		commit = oldCommit
		date = oldDate
	}()

	t.Run("release version", func(t *testing.T) {
		version = "v1.2.3"
		commit = "none"
		date = "unknown"
		if got := versionLine(); got != "imagebatch version v1.2.3" {
			t.Fatalf("versionLine() = %q", got)
		}
	})

	t.Run("dev commit only", func(t *testing.T) {
		version = "dev"
		commit = "abcdef012345"
		date = "unknown"
		got := versionLine()
		if !strings.HasPrefix(got, "imagebatch version dev (commit abcdef0") {
			t.Fatalf("versionLine() = %q", got)
		}
	})

	t.Run("dev commit and date", func(t *testing.T) {
		version = "dev"
		commit = "abcdef012345"
		date = "2026-01-18T16:00:00Z"
		got := versionLine()
		if got != "imagebatch version dev (commit abcdef0, built 2026-01-18T16:00:00Z)" {
			t.Fatalf("versionLine() = %q", got)
		}
	})
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "imagebatch version ") {
		t.Errorf("unexpected output %q", out.String())
	}
}
