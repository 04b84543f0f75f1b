// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package annotate writes the buildbot annotation protocol: the
// @@@BUILD_STEP ...@@@ lines on standard output that the buildbot
// master turns into steps, links, logs and step colors.
package annotate

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dartino/buildbot/internal/command"
	"go.chromium.org/luci/common/logging"
)

// Result is the outcome of a step.
type Result int

const (
	Success Result = iota
	Warning
	Failure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Failure:
		return "failure"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// An Observer is told about every finished step.
type Observer interface {
	StepDone(ctx context.Context, s *Step, r Result)
}

// Annotator writes annotations to the bot's standard output and remembers
// whether any step failed. It is safe for concurrent use, but steps do
// not nest: starting a step ends the current one's scope for
// annotations such as links and log lines.
type Annotator struct {
	mu        sync.Mutex
	w         io.Writer
	failed    bool
	cur       *Step
	observers []Observer
}

// New returns an Annotator writing to w.
func New(w io.Writer) *Annotator {
	return &Annotator{w: w}
}

// Observe registers o to be told about finished steps.
func (a *Annotator) Observe(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// Writer returns the annotation stream. Subprocess output is written to
// it so that it shows up in the current step's stdio log.
func (a *Annotator) Writer() io.Writer { return lockedWriter{a} }

type lockedWriter struct{ a *Annotator }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.a.mu.Lock()
	defer w.a.mu.Unlock()
	return w.a.w.Write(p)
}

func (a *Annotator) emitLocked(format string, args ...any) {
	fmt.Fprintf(a.w, format+"\n", args...)
}

func (a *Annotator) emit(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.emitLocked(format, args...)
}

// Printf writes a plain line to the current step's log.
func (a *Annotator) Printf(format string, args ...any) {
	a.emit(strings.TrimSuffix(format, "\n"), args...)
}

// HasFailures reports whether any step has failed.
func (a *Annotator) HasFailures() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed
}

// Link adds a link to the current step.
func (a *Annotator) Link(label, url string) {
	a.emit("@@@STEP_LINK@%s@%s@@@", label, url)
}

// LogLine appends a line to the named log of the current step.
func (a *Annotator) LogLine(log, text string) {
	a.emit("@@@STEP_LOG_LINE@%s@%s@@@", log, text)
}

// LogEnd closes the named log of the current step.
func (a *Annotator) LogEnd(log string) {
	a.emit("@@@STEP_LOG_END@%s@@@", log)
}

// MarkFailure turns the current step red and makes the build fail.
func (a *Annotator) MarkFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed = true
	a.emitLocked("@@@STEP_FAILURE@@@")
	if a.cur != nil {
		a.cur.raise(Failure)
	}
}

// MarkWarning turns the current step orange. It does not fail the build.
func (a *Annotator) MarkWarning() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.emitLocked("@@@STEP_WARNINGS@@@")
	if a.cur != nil {
		a.cur.raise(Warning)
	}
}

// Step is a step shown on the buildbot waterfall.
// A Step ultimately ends in an error or success.
type Step struct {
	a       *Annotator
	ctx     context.Context
	name    string
	swallow bool
	start   time.Time
	end     time.Time
	result  Result
}

// Name is the step's name.
func (s *Step) Name() string { return s.name }

// Start is the time the step started.
func (s *Step) Start() time.Time { return s.start }

// End is the time the step finished, or the zero time.
func (s *Step) End() time.Time { return s.end }

func (s *Step) raise(r Result) {
	if r > s.result {
		s.result = r
	}
}

// StartStep starts a step.
func (a *Annotator) StartStep(ctx context.Context, name string) *Step {
	return a.start(ctx, name, false)
}

// StartSwallowStep starts a step whose command failures are reported but
// do not stop the step program. See Step.Done.
func (a *Annotator) StartSwallowStep(ctx context.Context, name string) *Step {
	return a.start(ctx, name, true)
}

func (a *Annotator) start(ctx context.Context, name string, swallow bool) *Step {
	s := &Step{a: a, ctx: ctx, name: name, swallow: swallow, start: time.Now()}
	a.mu.Lock()
	a.cur = s
	a.emitLocked("@@@BUILD_STEP %s@@@", name)
	a.mu.Unlock()
	logging.Infof(ctx, "step %q started", name)
	return s
}

// Done ends a step. A non-nil err marks the step, and the build, failed.
//
// For steps started with StartSwallowStep, a failed command
// (a *command.Error) is reported and then dropped, so Done returns nil.
// Any other error is returned as is.
//
// It is legal to call Done multiple times. Only the first call
// annotates.
func (s *Step) Done(err error) error {
	a := s.a
	a.mu.Lock()
	if !s.end.IsZero() {
		a.mu.Unlock()
		return err
	}
	s.end = time.Now()
	if err != nil {
		a.failed = true
		a.emitLocked("@@@STEP_FAILURE@@@")
		s.raise(Failure)
	}
	if a.cur == s {
		a.cur = nil
	}
	result := s.result
	observers := append([]Observer(nil), a.observers...)
	a.mu.Unlock()

	d := s.end.Sub(s.start)
	if err != nil {
		logging.Errorf(s.ctx, "step %q failed after %s: %v", s.name, friendlyDuration(d), err)
	} else {
		logging.Infof(s.ctx, "step %q finished after %s; %s", s.name, friendlyDuration(d), result)
	}
	for _, o := range observers {
		o.StepDone(s.ctx, s, result)
	}
	if err != nil && s.swallow && command.IsCommandError(err) {
		return nil
	}
	return err
}

// Run runs f as a step named name.
func (a *Annotator) Run(ctx context.Context, name string, f func(context.Context) error) error {
	s := a.StartStep(ctx, name)
	return s.Done(f(ctx))
}

// RunSwallow is like Run, but a failed command inside f does not stop
// the step program.
func (a *Annotator) RunSwallow(ctx context.Context, name string, f func(context.Context) error) error {
	s := a.StartSwallowStep(ctx, name)
	return s.Done(f(ctx))
}

func friendlyDuration(d time.Duration) string {
	if d > 10*time.Second {
		d2 := ((d + 50*time.Millisecond) / (100 * time.Millisecond)) * (100 * time.Millisecond)
		return d2.String()
	}
	if d > time.Second {
		d2 := ((d + 5*time.Millisecond) / (10 * time.Millisecond)) * (10 * time.Millisecond)
		return d2.String()
	}
	d2 := ((d + 50*time.Microsecond) / (100 * time.Microsecond)) * (100 * time.Microsecond)
	return d2.String()
}
