// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a Runner that records commands instead of running them.
// It is used by the tests of the step programs.
type Fake struct {
	// Handler, if non-nil, is called for every command and decides its
	// output and result. A nil Handler makes every command succeed
	// with no output.
	Handler func(c *Cmd) (stdout []byte, err error)

	mu   sync.Mutex
	cmds []*Cmd
}

// Commands returns the command lines run so far, in order.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.cmds {
		out = append(out, c.String())
	}
	return out
}

// Cmds returns the commands run so far, in order.
func (f *Fake) Cmds() []*Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Cmd(nil), f.cmds...)
}

func (f *Fake) do(c *Cmd) ([]byte, error) {
	f.mu.Lock()
	f.cmds = append(f.cmds, c)
	f.mu.Unlock()
	if f.Handler == nil {
		return nil, nil
	}
	out, err := f.Handler(c)
	if err != nil {
		if _, ok := err.(*Error); !ok {
			err = &Error{Args: c.Args, ExitCode: 1, Err: err}
		}
	}
	return out, err
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, c *Cmd) error {
	out, err := f.do(c)
	if c.Stdout != nil && len(out) > 0 {
		c.Stdout.Write(out)
	}
	return err
}

// Output implements Runner.
func (f *Fake) Output(ctx context.Context, c *Cmd) ([]byte, error) {
	return f.do(c)
}

// Fail returns a Handler that fails every command whose first
// argument is name.
func Fail(name string) func(c *Cmd) ([]byte, error) {
	return func(c *Cmd) ([]byte, error) {
		if len(c.Args) > 0 && c.Args[0] == name {
			return nil, fmt.Errorf("%s: exit status 1", name)
		}
		return nil, nil
	}
}
