// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bot

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/dartino/buildbot/internal/command"
	"github.com/dartino/buildbot/internal/coredump"
	"github.com/dartino/buildbot/internal/daemon"
)

func TestTestRunArchivesCoreDumps(t *testing.T) {
	cores := t.TempDir()
	core := filepath.Join(cores, "core.4242")
	tb := newTestBot(t, "dartino-linux-debug-ia32", func(c *command.Cmd) ([]byte, error) {
		if isTestPy(c) && slices.Contains(c.Args, "--step_name=test_DebugIA32") {
			if err := os.WriteFile(core, []byte("core"), 0644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	var goos []string
	tb.newArchiver = func(g, checkout string) *coredump.Archiver {
		goos = append(goos, g)
		return &coredump.Archiver{Dir: cores, NewID: func() string { return "batch" }}
	}
	writeTree(t, tb.Checkout, map[string]string{
		"out/DebugIA32/dartino":    "driver",
		"out/DebugIA32/dartino-vm": "vm",
	})

	if err := tb.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v\n%s", err, tb.out.String())
	}
	if len(goos) != 3 || goos[0] != "linux" {
		t.Errorf("archivers created for %v; want one per test run on linux", goos)
	}
	if _, err := os.Stat(core); !os.IsNotExist(err) {
		t.Errorf("core dump left behind: %v", err)
	}

	bucket := filepath.Join(tb.buckets, "dartino-buildbot-coredumps", "batch")
	archived := func(local string) string {
		return filepath.Join(bucket, filepath.FromSlash(strings.TrimLeft(filepath.ToSlash(local), "/")))
	}
	for local, want := range map[string]string{
		filepath.Join(tb.Checkout, "out", "DebugIA32", "dartino"):    "driver",
		filepath.Join(tb.Checkout, "out", "DebugIA32", "dartino-vm"): "vm",
		core: "core",
	} {
		if got := readFile(t, archived(local)); got != want {
			t.Errorf("archived %s = %q; want %q", local, got, want)
		}
	}

	out := tb.out.String()
	if got := strings.Count(out, "@@@STEP_LOG_LINE@coredumps@file://"); got != 3 {
		t.Errorf("%d coredumps log lines; want 3\n%s", got, out)
	}
	if !strings.Contains(out, "(https://browse.test/dartino-buildbot-coredumps/batch/") {
		t.Errorf("coredumps log has no browse links\n%s", out)
	}
	if got := strings.Count(out, "@@@STEP_WARNINGS@@@"); got != 1 {
		t.Errorf("%d steps with warnings; want 1", got)
	}
}

type countingCloser struct{ n int }

func (c *countingCloser) Close() error {
	c.n++
	return nil
}

func TestTestRunStopsEachDaemon(t *testing.T) {
	tb := newTestBot(t, "dartino-linux-debug-ia32", func(c *command.Cmd) ([]byte, error) {
		if isTestPy(c) {
			return nil, errors.New("exit status 1")
		}
		return nil, nil
	})
	var closers []*countingCloser
	start := tb.startDaemon
	tb.startDaemon = func(ctx context.Context, cfg daemon.Config) (io.Closer, error) {
		if _, err := start(ctx, cfg); err != nil {
			return nil, err
		}
		c := new(countingCloser)
		closers = append(closers, c)
		return c, nil
	}

	if err := tb.Run(context.Background()); !errors.Is(err, ErrStepsFailed) {
		t.Fatalf("Run = %v; want ErrStepsFailed", err)
	}
	if len(closers) != 3 {
		t.Fatalf("started %d daemons; want 3", len(closers))
	}
	for i, c := range closers {
		if c.n != 1 {
			t.Errorf("daemon %d closed %d times; want 1", i, c.n)
		}
	}
}
