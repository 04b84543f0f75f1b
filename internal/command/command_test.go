// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/dartino/buildbot/internal/envutil"
	"github.com/google/go-cmp/cmp"
)

func needShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

func TestExecEchoesCommand(t *testing.T) {
	needShell(t)
	var out bytes.Buffer
	r := &Exec{Out: &out}
	err := r.Run(context.Background(), New("sh", "-c", "echo hello world"))
	if err != nil {
		t.Fatal(err)
	}
	want := "Running: sh -c 'echo hello world'\nhello world\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestExecEnv(t *testing.T) {
	needShell(t)
	r := &Exec{Out: new(bytes.Buffer)}
	env := envutil.Env{"PATH=/usr/bin:/bin", "HOME=/nonexistent/home"}
	got, err := TrimOutput(context.Background(), r, New("sh", "-c", "echo $HOME").WithEnv(env))
	if err != nil {
		t.Fatal(err)
	}
	if got != "/nonexistent/home" {
		t.Errorf("HOME in child = %q; want /nonexistent/home", got)
	}
}

func TestExecDir(t *testing.T) {
	needShell(t)
	dir := t.TempDir()
	r := &Exec{Out: new(bytes.Buffer)}
	got, err := TrimOutput(context.Background(), r, New("sh", "-c", "echo $PWD").InDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Errorf("PWD = %q; want %q", got, dir)
	}
}

func TestExecFailure(t *testing.T) {
	needShell(t)
	r := &Exec{Out: new(bytes.Buffer)}
	err := r.Run(context.Background(), New("sh", "-c", "exit 3"))
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("Run error = %v; want *Error", err)
	}
	if ce.ExitCode != 3 {
		t.Errorf("ExitCode = %d; want 3", ce.ExitCode)
	}
	if !strings.Contains(ce.Error(), "sh -c 'exit 3'") {
		t.Errorf("Error() = %q; want quoted command line", ce.Error())
	}
}

func TestFake(t *testing.T) {
	f := &Fake{Handler: Fail("ninja")}
	ctx := context.Background()
	if err := f.Run(ctx, New("gyp")); err != nil {
		t.Errorf("gyp: %v", err)
	}
	err := f.Run(ctx, New("ninja", "-C", "out/DebugIA32"))
	if !IsCommandError(err) {
		t.Errorf("ninja error = %v; want command error", err)
	}
	want := []string{"gyp", "ninja -C out/DebugIA32"}
	if diff := cmp.Diff(want, f.Commands()); diff != "" {
		t.Errorf("Commands mismatch (-want +got):\n%s", diff)
	}
}
