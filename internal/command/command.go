// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package command runs the external tools a bot drives: ninja, test.py,
// zip, tar and friends.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dartino/buildbot/internal/envutil"
	"github.com/kballard/go-shellquote"
)

// A Cmd describes one subprocess invocation.
type Cmd struct {
	Args []string
	Dir  string // working directory; "" means the bot's

	// Env is the complete environment of the child. If nil, the
	// child inherits the bot's environment.
	Env envutil.Env

	// Stdout and Stderr default to the runner's output.
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Cmd for the given arguments.
func New(args ...string) *Cmd { return &Cmd{Args: args} }

// InDir sets the working directory and returns c.
func (c *Cmd) InDir(dir string) *Cmd {
	c.Dir = dir
	return c
}

// WithEnv sets the environment and returns c.
func (c *Cmd) WithEnv(env envutil.Env) *Cmd {
	c.Env = env
	return c
}

func (c *Cmd) String() string { return shellquote.Join(c.Args...) }

// A Runner runs commands. Exec runs real processes; tests use Fake.
type Runner interface {
	// Run runs c to completion. A non-zero exit is reported as an *Error.
	Run(ctx context.Context, c *Cmd) error
	// Output runs c and returns its standard output.
	Output(ctx context.Context, c *Cmd) ([]byte, error)
}

// Error is a command that could not be started or exited unsuccessfully.
// Steps that tolerate failures tolerate exactly this error type.
type Error struct {
	Args     []string
	ExitCode int // -1 if the process did not exit normally
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("command %s failed: %v", shellquote.Join(e.Args...), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsCommandError reports whether err is, or wraps, an *Error.
func IsCommandError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Exec runs commands as child processes. Every command line is echoed to
// Out before it runs, and its output goes to Out unless the Cmd says
// otherwise.
type Exec struct {
	Out io.Writer // nil means os.Stdout
}

func (r *Exec) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Exec) cmd(ctx context.Context, c *Cmd) (*exec.Cmd, error) {
	if len(c.Args) == 0 {
		return nil, errors.New("command: no arguments")
	}
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = []string(c.Env)
	}
	if c.Dir != "" {
		env := c.Env
		if env == nil {
			env = envutil.FromOS()
		}
		cmd.Env = env.With("PWD=" + c.Dir)
	}
	cmd.Stdout, cmd.Stderr = c.Stdout, c.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = r.out()
	}
	if cmd.Stderr == nil {
		cmd.Stderr = r.out()
	}
	return cmd, nil
}

// Run implements Runner.
func (r *Exec) Run(ctx context.Context, c *Cmd) error {
	cmd, err := r.cmd(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out(), "Running: %s\n", c)
	return wrap(c, cmd.Run())
}

// Output implements Runner.
func (r *Exec) Output(ctx context.Context, c *Cmd) ([]byte, error) {
	cmd, err := r.cmd(ctx, c)
	if err != nil {
		return nil, err
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = io.MultiWriter(&stdout, c.Stdout)
	}
	err = wrap(c, cmd.Run())
	return stdout.Bytes(), err
}

func wrap(c *Cmd, err error) error {
	if err == nil {
		return nil
	}
	code := -1
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code = ee.ExitCode()
	}
	return &Error{Args: c.Args, ExitCode: code, Err: err}
}

// TrimOutput runs c and returns its standard output with surrounding
// white space removed.
func TrimOutput(ctx context.Context, r Runner, c *Cmd) (string, error) {
	out, err := r.Output(ctx, c)
	return strings.TrimSpace(string(out)), err
}
