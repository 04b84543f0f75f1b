// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coredump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dartino/buildbot/internal/annotate"
	"github.com/dartino/buildbot/internal/publish"
	"github.com/google/go-cmp/cmp"
)

type fakeUploader struct {
	uploaded []string
}

func (u *fakeUploader) Upload(ctx context.Context, local, remote string, opts publish.Options) error {
	u.uploaded = append(u.uploaded, remote)
	return nil
}

func newArchiver(t *testing.T) (*Archiver, *fakeUploader, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "out", "DebugIA32")
	if err := os.MkdirAll(bin, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"dartino", "dartino-vm"} {
		if err := os.WriteFile(filepath.Join(bin, name), []byte("elf"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	up := new(fakeUploader)
	var out bytes.Buffer
	return &Archiver{
		Dir:        dir,
		Bucket:     "dartino-buildbot-coredumps",
		BucketURL:  "gs://dartino-buildbot-coredumps",
		BrowseHost: "https://storage.cloud.google.com/",
		Binaries:   []string{filepath.Join(bin, "dartino"), filepath.Join(bin, "dartino-vm")},
		Uploader:   up,
		Annotator:  annotate.New(&out),
		NewID:      func() string { return "id" },
	}, up, &out
}

func writeDumps(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("core.%d", 1000+i)), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEnterRejectsStaleDumps(t *testing.T) {
	a, _, _ := newArchiver(t)
	writeDumps(t, a.Dir, 1)
	if err := a.Enter(context.Background()); !errors.Is(err, ErrStaleCoreDumps) {
		t.Errorf("Enter = %v; want ErrStaleCoreDumps", err)
	}
}

func TestEnterRequireDir(t *testing.T) {
	a, _, _ := newArchiver(t)
	a.Dir = filepath.Join(a.Dir, "cores")
	a.RequireDir = true
	if err := a.Enter(context.Background()); err == nil {
		t.Error("Enter with missing /cores succeeded")
	}
}

func TestKernelConfig(t *testing.T) {
	tests := []struct {
		pattern, usesPID string
		ok               bool
	}{
		{"core\n", "1\n", true},
		{"core", "1", true},
		{"|/usr/share/apport/apport %p %s %c", "0\n", false},
		{"core\n", "0\n", false},
		{"core.%p\n", "1\n", false},
	}
	for _, tt := range tests {
		a, _, _ := newArchiver(t)
		kdir := t.TempDir()
		os.WriteFile(filepath.Join(kdir, "core_pattern"), []byte(tt.pattern), 0644)
		os.WriteFile(filepath.Join(kdir, "core_uses_pid"), []byte(tt.usesPID), 0644)
		a.KernelDir = kdir
		err := a.Enter(context.Background())
		var kerr *KernelConfigError
		if tt.ok && err != nil {
			t.Errorf("Enter with %q, %q = %v; want nil", tt.pattern, tt.usesPID, err)
		}
		if !tt.ok && !errors.As(err, &kerr) {
			t.Errorf("Enter with %q, %q = %v; want *KernelConfigError", tt.pattern, tt.usesPID, err)
		}
	}
}

func TestExitNoDumps(t *testing.T) {
	a, up, out := newArchiver(t)
	if err := a.Exit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(up.uploaded) != 0 {
		t.Errorf("uploaded %v; want nothing", up.uploaded)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected annotations: %q", out.String())
	}
}

func TestExitArchivesAtMostTen(t *testing.T) {
	a, up, out := newArchiver(t)
	ctx := context.Background()
	err := a.Run(ctx, func(context.Context) error {
		writeDumps(t, a.Dir, 15)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(up.uploaded), MaxArchived+len(a.Binaries); got != want {
		t.Errorf("uploaded %d files; want %d", got, want)
	}
	wantFirst := "gs://dartino-buildbot-coredumps/id/" + strings.TrimLeft(filepath.ToSlash(a.Binaries[0]), "/")
	if up.uploaded[0] != wantFirst {
		t.Errorf("first upload = %q; want %q", up.uploaded[0], wantFirst)
	}
	left, err := a.Find()
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("dumps left after Exit: %v", left)
	}
	s := out.String()
	for _, want := range []string{"@@@STEP_LOG_END@coredumps@@@", "@@@STEP_WARNINGS@@@", "Removing core: "} {
		if !strings.Contains(s, want) {
			t.Errorf("annotations missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "@@@STEP_FAILURE@@@") {
		t.Errorf("archived dumps failed the step:\n%s", s)
	}
	if a.Annotator.HasFailures() {
		t.Error("HasFailures after archiving dumps")
	}
}

func TestExitMissingBinary(t *testing.T) {
	a, up, out := newArchiver(t)
	a.Binaries = append(a.Binaries, filepath.Join(a.Dir, "missing"))
	writeDumps(t, a.Dir, 1)
	if err := a.Exit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(up.uploaded) != 3 {
		t.Errorf("uploaded %v; want the two binaries and the dump", up.uploaded)
	}
	if !strings.Contains(out.String(), "@@@STEP_LOG_LINE@coredumps@Failed to upload coredump "+filepath.Join(a.Dir, "missing")) {
		t.Errorf("no failure line for the missing binary:\n%s", out.String())
	}
}

func TestRunPropagatesError(t *testing.T) {
	a, _, _ := newArchiver(t)
	want := errors.New("tests failed")
	if err := a.Run(context.Background(), func(context.Context) error { return want }); err != want {
		t.Errorf("Run = %v; want %v", err, want)
	}
	var nilArchiver *Archiver
	if err := nilArchiver.Run(context.Background(), func(context.Context) error { return want }); err != want {
		t.Errorf("nil Run = %v; want %v", err, want)
	}
}

func TestForHost(t *testing.T) {
	tests := []struct {
		goos string
		want *Archiver
	}{
		{"linux", &Archiver{Dir: "/src", KernelDir: "/proc/sys/kernel"}},
		{"darwin", &Archiver{Dir: "/cores", RequireDir: true, FileLimit: MacFileLimit}},
		{"windows", nil},
	}
	for _, tt := range tests {
		got := ForHost(tt.goos, "/src")
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ForHost(%q) mismatch (-want +got):\n%s", tt.goos, diff)
		}
	}
}
