// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coredump archives the core dumps left behind by crashing tests.
//
// Around each test run the search directory must be free of core files.
// Dumps that appear during the run are uploaded, together with the
// binaries that produced them, under a fresh random prefix of the core
// dump bucket. The step is then marked with warnings and the dumps are
// deleted.
package coredump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dartino/buildbot/internal/annotate"
	"github.com/dartino/buildbot/internal/publish"
	"github.com/google/uuid"
	"go.chromium.org/luci/common/logging"
)

// MaxArchived bounds the number of dumps uploaded after one run.
const MaxArchived = 10

// MacFileLimit is the RLIMIT_NOFILE used for test runs on macOS.
const MacFileLimit = 10000

// ErrStaleCoreDumps reports core files in the search directory where
// none are allowed.
var ErrStaleCoreDumps = errors.New("unexpected core dumps")

// KernelConfigError reports a Linux kernel that names core files in a
// way the archiver cannot find them. It is a bot setup error.
type KernelConfigError struct {
	Dir     string // usually /proc/sys/kernel
	Pattern string // contents of core_pattern
	UsesPID string // contents of core_uses_pid
}

func (e *KernelConfigError) Error() string {
	return fmt.Sprintf("invalid core dump configuration: %s/core_pattern is %q, want %q; %s/core_uses_pid is %q, want %q",
		e.Dir, e.Pattern, "core", e.Dir, e.UsesPID, "1")
}

// An Uploader copies a local file to a remote location.
// *publish.Publisher implements it.
type Uploader interface {
	Upload(ctx context.Context, local, remote string, opts publish.Options) error
}

// An Archiver watches one directory for core dumps.
type Archiver struct {
	Dir string // where the kernel writes core.* files

	// KernelDir, if set, is checked on Enter for core_pattern "core"
	// and core_uses_pid "1".
	KernelDir string

	// RequireDir makes Enter fail if Dir does not exist.
	RequireDir bool

	// FileLimit, if non-zero, is the RLIMIT_NOFILE applied by Run.
	FileLimit uint64

	Bucket     string // bare name of the core dump bucket
	BucketURL  string // gs:// or file:// URL of the same bucket
	BrowseHost string // prefix of links to archived objects

	// Binaries are uploaded alongside the dumps: the driver and the VM.
	Binaries []string

	Uploader  Uploader
	Annotator *annotate.Annotator

	// NewID returns the prefix for one batch of dumps.
	// If nil, a random UUID is used.
	NewID func() string
}

// ForHost returns an Archiver configured for goos with the checkout as
// the working directory of tests, or nil if dumps are not archived on
// goos. The caller fills in the bucket, binaries, uploader and annotator.
func ForHost(goos, checkout string) *Archiver {
	switch goos {
	case "linux":
		return &Archiver{Dir: checkout, KernelDir: "/proc/sys/kernel"}
	case "darwin":
		return &Archiver{Dir: "/cores", RequireDir: true, FileLimit: MacFileLimit}
	}
	return nil
}

// Find returns the core dumps in the search directory, sorted.
func (a *Archiver) Find() ([]string, error) {
	dumps, err := filepath.Glob(filepath.Join(a.Dir, "core.*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(dumps)
	return dumps, nil
}

func (a *Archiver) assertEmpty() error {
	dumps, err := a.Find()
	if err != nil {
		return err
	}
	if len(dumps) > 0 {
		return fmt.Errorf("%w in %s: %s", ErrStaleCoreDumps, a.Dir, strings.Join(dumps, ", "))
	}
	return nil
}

// Enter checks that the search directory holds no dumps and that the
// host is configured to write them where Find looks.
func (a *Archiver) Enter(ctx context.Context) error {
	if a.RequireDir {
		if _, err := os.Stat(a.Dir); err != nil {
			return fmt.Errorf("core dump directory: %w", err)
		}
	}
	if err := a.assertEmpty(); err != nil {
		return err
	}
	if a.KernelDir != "" {
		return checkKernel(a.KernelDir)
	}
	return nil
}

func checkKernel(dir string) error {
	pattern, err := os.ReadFile(filepath.Join(dir, "core_pattern"))
	if err != nil {
		return err
	}
	usesPID, err := os.ReadFile(filepath.Join(dir, "core_uses_pid"))
	if err != nil {
		return err
	}
	e := &KernelConfigError{
		Dir:     dir,
		Pattern: strings.TrimSpace(string(pattern)),
		UsesPID: strings.TrimSpace(string(usesPID)),
	}
	if e.Pattern != "core" || e.UsesPID != "1" {
		return e
	}
	return nil
}

// Exit archives and deletes any dumps written since Enter.
func (a *Archiver) Exit(ctx context.Context) error {
	dumps, err := a.Find()
	if err != nil {
		return err
	}
	if len(dumps) > 0 {
		archived := dumps
		if len(archived) > MaxArchived {
			archived = archived[:MaxArchived]
		}
		a.Annotator.Printf("Archiving coredumps: %s", strings.Join(archived, ", "))
		a.archive(ctx, archived)
		for _, d := range dumps {
			a.Annotator.Printf("Removing core: %s", d)
			if err := os.Remove(d); err != nil {
				return err
			}
		}
	}
	return a.assertEmpty()
}

func (a *Archiver) archive(ctx context.Context, dumps []string) {
	id := uuid.NewString()
	if a.NewID != nil {
		id = a.NewID()
	}
	files := append(append([]string(nil), a.Binaries...), dumps...)
	for _, f := range files {
		// Absolute paths keep their directories, minus the leading slash.
		obj := path.Join(id, strings.TrimLeft(filepath.ToSlash(f), "/"))
		remote := a.BucketURL + "/" + obj
		err := a.upload(ctx, f, remote)
		if err != nil {
			logging.Warningf(ctx, "uploading %s: %v", f, err)
			a.Annotator.LogLine("coredumps", fmt.Sprintf("Failed to upload coredump %s, error: %v", f, err))
			continue
		}
		a.Annotator.LogLine("coredumps", fmt.Sprintf("%s (%s%s/%s)", remote, a.BrowseHost, a.Bucket, obj))
	}
	a.Annotator.LogEnd("coredumps")
	a.Annotator.MarkWarning()
}

func (a *Archiver) upload(ctx context.Context, local, remote string) error {
	if _, err := os.Stat(local); err != nil {
		return err
	}
	return a.Uploader.Upload(ctx, local, remote, publish.Options{})
}

// Run runs f with core dumps enabled and archived. On macOS the open
// file limit is raised for the duration too. A nil Archiver just runs f.
func (a *Archiver) Run(ctx context.Context, f func(context.Context) error) error {
	if a == nil {
		return f(ctx)
	}
	if a.FileLimit > 0 {
		restore, err := IncreaseFileLimit(ctx, a.FileLimit)
		if err != nil {
			return err
		}
		defer restore()
	}
	restore, err := EnableCoreDumps(ctx)
	if err != nil {
		return err
	}
	defer restore()

	if err := a.Enter(ctx); err != nil {
		return err
	}
	err = f(ctx)
	if xerr := a.Exit(ctx); xerr != nil {
		if err != nil {
			logging.Errorf(ctx, "archiving core dumps: %v", xerr)
			return err
		}
		return xerr
	}
	return err
}
