// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdkversion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dartino/buildbot/internal/command"
	"github.com/google/go-cmp/cmp"
)

const versionFile = `# This file is used by tools/utils.py to generate version strings.
CHANNEL %s
MAJOR 0
MINOR 4
PATCH 1
PRERELEASE 2
PRERELEASE_PATCH 3
`

func TestParse(t *testing.T) {
	v, err := Parse([]byte("CHANNEL dev\r\nMAJOR 0\r\nMINOR 4\r\nPATCH 1\r\nPRERELEASE 2\r\nPRERELEASE_PATCH 3\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := &Version{Channel: "dev", Major: 0, Minor: 4, Patch: 1, Prerelease: 2, PrereleasePatch: 3}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMissingField(t *testing.T) {
	if _, err := Parse([]byte("CHANNEL be\nMAJOR 0\nMINOR 4\n")); err == nil {
		t.Error("Parse succeeded without PATCH; want error")
	}
}

func TestSemantic(t *testing.T) {
	tests := []struct {
		channel, rev, want string
	}{
		{"be", "0123456789abcdef0123456789abcdef01234567", "0.4.1-edge.0123456789abcdef0123456789abcdef01234567"},
		{"be", "", "0.4.1-edge"},
		{"dev", "ignored", "0.4.1-dev.2.3"},
		{"stable", "ignored", "0.4.1"},
	}
	for _, tt := range tests {
		v := &Version{Channel: tt.channel, Major: 0, Minor: 4, Patch: 1, Prerelease: 2, PrereleasePatch: 3}
		got, err := v.Semantic(tt.rev)
		if err != nil {
			t.Fatalf("%s: %v", tt.channel, err)
		}
		if got != tt.want {
			t.Errorf("Semantic(%s, %q) = %q; want %q", tt.channel, tt.rev, got, tt.want)
		}
	}
	if _, err := (&Version{Channel: "nightly"}).Semantic(""); err == nil {
		t.Error("Semantic for unknown channel succeeded")
	}
}

func TestIsRelease(t *testing.T) {
	for s, want := range map[string]bool{
		"0.4.1":         true,
		"0.4.1-dev.2.3": false,
		"0.4.1-edge":    false,
		"latest":        false,
	} {
		if got := IsRelease(s); got != want {
			t.Errorf("IsRelease(%q) = %v; want %v", s, got, want)
		}
	}
}

func writeCheckout(t *testing.T, channel string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tools"), 0755); err != nil {
		t.Fatal(err)
	}
	content := []byte(fmt.Sprintf(versionFile, channel))
	if err := os.WriteFile(File(dir), content, 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSemanticFromCheckout(t *testing.T) {
	ctx := context.Background()
	rev := "fedcba9876543210fedcba9876543210fedcba98"
	r := &command.Fake{Handler: func(c *command.Cmd) ([]byte, error) {
		return []byte(rev), nil
	}}

	dir := writeCheckout(t, "be")
	got, err := Semantic(ctx, r, dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := "0.4.1-edge." + rev; got != want {
		t.Errorf("Semantic = %q; want %q", got, want)
	}
	if diff := cmp.Diff([]string{"git log -n 1 --pretty=format:%H"}, r.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	// Source tarballs carry the revision in a file.
	if err := os.WriteFile(filepath.Join(dir, "tools", "GIT_REVISION"), []byte("abc\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = Semantic(ctx, r, dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != "0.4.1-edge.abc" {
		t.Errorf("Semantic with GIT_REVISION = %q; want 0.4.1-edge.abc", got)
	}

	stable := writeCheckout(t, "stable")
	if got, err := Semantic(ctx, &command.Fake{}, stable); err != nil || got != "0.4.1" {
		t.Errorf("stable Semantic = %q, %v; want 0.4.1", got, err)
	}
}
