// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daemon runs the persistent compiler daemon that the test
// runner talks to.
//
// A daemon is started in its own process group with its combined output
// going to a log file. It is considered ready once it has written its
// first byte of output. The wait for readiness is bounded, and a daemon
// that exits before becoming ready is reported as an error instead of
// being waited on forever.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dartino/buildbot/internal/envutil"
	"github.com/kballard/go-shellquote"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/system/exec2"
)

const (
	// DefaultStartupTimeout bounds the wait for a daemon's first output.
	DefaultStartupTimeout = 2 * time.Minute

	// DefaultKillGrace is how long Close waits after SIGTERM before it
	// kills the process group.
	DefaultKillGrace = 10 * time.Second
)

// Config describes a daemon to start.
type Config struct {
	Args []string // program and arguments
	Dir  string
	Env  envutil.Env // if nil, the orchestrator's environment

	// LogFile receives the daemon's stdout and stderr.
	// It is truncated on start.
	LogFile string

	StartupTimeout time.Duration // zero means DefaultStartupTimeout
	KillGrace      time.Duration // zero means DefaultKillGrace
}

// StartupTimeoutError is returned by Start when the daemon produced no
// output within the startup timeout.
type StartupTimeoutError struct {
	Args    []string
	Timeout time.Duration
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("daemon %s not ready after %v", shellquote.Join(e.Args...), e.Timeout)
}

// ExitedError is returned by Start when the daemon exited before it
// became ready. Err is the result of waiting for it, nil for a clean exit.
type ExitedError struct {
	Args []string
	Err  error
}

func (e *ExitedError) Error() string {
	status := "status 0"
	if e.Err != nil {
		status = e.Err.Error()
	}
	return fmt.Sprintf("daemon %s exited before becoming ready: %s", shellquote.Join(e.Args...), status)
}

func (e *ExitedError) Unwrap() error { return e.Err }

// A Session is a running daemon. It must be closed.
type Session struct {
	ctx   context.Context
	cmd   *exec2.Cmd
	log   *os.File
	args  []string
	grace time.Duration

	// waitc receives the result of the only call to cmd.Wait.
	waitc   chan error
	waited  bool
	waitErr error
	closed  bool
}

// Start launches the daemon and waits until it is ready.
func Start(ctx context.Context, cfg Config) (*Session, error) {
	if len(cfg.Args) == 0 {
		return nil, errors.New("daemon: no command")
	}
	timeout := cfg.StartupTimeout
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	grace := cfg.KillGrace
	if grace <= 0 {
		grace = DefaultKillGrace
	}

	f, err := os.Create(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	rw := &readyWriter{w: f, ready: make(chan struct{})}
	cmd := exec2.CommandContext(ctx, cfg.Args[0], cfg.Args[1:]...)
	cmd.Dir = cfg.Dir
	if cfg.Env != nil {
		cmd.Env = cfg.Env
	}
	cmd.Stdout = rw
	cmd.Stderr = rw
	cmd.WaitDelay = grace
	logging.Infof(ctx, "starting daemon: %s", shellquote.Join(cfg.Args...))
	if err := cmd.Start(); err != nil {
		f.Close()
		return nil, fmt.Errorf("starting daemon: %w", err)
	}
	s := &Session{ctx: ctx, cmd: cmd, log: f, args: cfg.Args, grace: grace, waitc: make(chan error, 1)}
	go func() { s.waitc <- cmd.Wait() }()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-rw.ready:
	case err := <-s.waitc:
		s.waited, s.waitErr = true, err
		// Wait returns after the output is copied, so a daemon that
		// wrote before exiting is already marked ready.
		select {
		case <-rw.ready:
		default:
			s.Close()
			return nil, &ExitedError{Args: cfg.Args, Err: err}
		}
	case <-deadline.C:
		s.Close()
		return nil, &StartupTimeoutError{Args: cfg.Args, Timeout: timeout}
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
	logging.Infof(ctx, "daemon ready (pid %d)", cmd.Process.Pid)
	return s, nil
}

// poll waits up to d for the daemon to exit and reports whether it did.
func (s *Session) poll(d time.Duration) bool {
	if s.waited {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case err := <-s.waitc:
		s.waited, s.waitErr = true, err
		return true
	case <-t.C:
		return false
	}
}

// Pid returns the daemon's process id.
func (s *Session) Pid() int { return s.cmd.Process.Pid }

// Exited reports whether the daemon process has been reaped.
func (s *Session) Exited() bool { return s.waited && s.cmd.ProcessState != nil }

// Close terminates the daemon's process group and reaps the daemon.
// If the daemon ignores SIGTERM, the group is killed after the grace
// period. The exit status is logged, not returned: a daemon killed by
// Close is expected to report failure.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.log.Close()

	if !s.waited {
		if err := s.cmd.Terminate(); err != nil {
			logging.Warningf(s.ctx, "terminating daemon: %v", err)
		}
		if !s.poll(s.grace) {
			logging.Warningf(s.ctx, "daemon still running %v after SIGTERM; killing", s.grace)
			if err := s.cmd.Kill(); err != nil {
				logging.Warningf(s.ctx, "killing daemon: %v", err)
			}
			if !s.poll(s.grace) {
				return fmt.Errorf("daemon %d could not be reaped", s.cmd.Process.Pid)
			}
		}
	}
	logging.Infof(s.ctx, "daemon exited with code %d (%v)", s.exitCode(), s.waitErr)
	return nil
}

func (s *Session) exitCode() int {
	if s.cmd.ProcessState == nil {
		return -1
	}
	return s.cmd.ProcessState.ExitCode()
}

// readyWriter closes ready after the first byte is written through it.
type readyWriter struct {
	w     io.Writer
	once  sync.Once
	ready chan struct{}
}

func (r *readyWriter) Write(p []byte) (int, error) {
	n, err := r.w.Write(p)
	if n > 0 {
		r.once.Do(func() { close(r.ready) })
	}
	return n, err
}
