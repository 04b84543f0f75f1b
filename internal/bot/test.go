// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dartino/buildbot/buildenv"
	"github.com/dartino/buildbot/dashboard"
	"github.com/dartino/buildbot/internal/coredump"
	"github.com/dartino/buildbot/internal/daemon"
	"go.chromium.org/luci/common/logging"
)

// crashRx matches the lines the compiler daemon logs for exceptions it
// could not report to a client.
var crashRx = regexp.MustCompile(`^[0-9]+: Crash \(`)

// A testRun is one invocation of the test runner.
type testRun struct {
	conf *dashboard.BuildConfig

	// snapshot compiles the tests to snapshots and runs them with the
	// normal VM and with the program unfolded.
	snapshot bool
	heapBlob bool

	// archiveCores runs the tests under the host's core dump archiver.
	archiveCores bool
}

// name returns the name of the run, as used in step names.
func (r testRun) name() string {
	switch {
	case r.heapBlob:
		return r.conf.Name + "-heapblob"
	case r.snapshot:
		return r.conf.Name + "-snapshot"
	}
	return r.conf.Name
}

// testArgs returns the test.py command line of r.
func testArgs(p *dashboard.Project, r testRun) []string {
	c := r.conf
	args := []string{
		"python", "tools/test.py",
		"-m" + c.Mode,
		"-a" + c.Arch,
		"--time",
		"--report",
		"-pbuildbot",
		"--step_name=test_" + r.name(),
		"--kill-persistent-process=0",
		"--run-gclient-hooks=0",
		"--build-before-testing=0",
		"--host-checked",
	}
	if c.System != "" {
		system := c.System
		if system == "mac" {
			system = "macos"
		}
		args = append(args, "-s"+system)
	}
	if r.snapshot {
		args = append(args, "-c"+p.CompilerSelector, "-r"+p.RuntimeSelector)
	}
	if r.heapBlob {
		args = append(args, "--use-heap-blob")
	}
	if c.UseSDK {
		args = append(args, "--use-sdk")
	}
	if c.Asan {
		args = append(args, "--asan")
	}
	if c.Clang() {
		args = append(args, "--clang")
	}
	if c.EmbeddedLibs {
		args = append(args, fmt.Sprintf("--%s-settings-file=%s", p.Name, p.EmbeddedSettings()))
	}
	return args
}

// stepTest runs the tests of r in a step of their own. Test failures
// fail the step but not the step program.
func (b *Builder) stepTest(ctx context.Context, r testRun) error {
	return b.Annotator.RunSwallow(ctx, "Test "+r.name(), func(ctx context.Context) error {
		var a *coredump.Archiver
		if r.archiveCores {
			a = b.archiver(r.conf)
		}
		return a.Run(ctx, func(ctx context.Context) error {
			return b.runTests(ctx, r)
		})
	})
}

// archiver returns the core dump archiver for tests of c, or nil if the
// host does not archive core dumps.
func (b *Builder) archiver(c *dashboard.BuildConfig) *coredump.Archiver {
	a := b.newArchiver(b.GOOS, b.Checkout)
	if a == nil {
		return nil
	}
	project := b.Bot.Project
	a.Bucket = b.Env.Bucket(buildenv.CoredumpBucket, project.Name)
	a.BucketURL = b.Env.BucketURL(buildenv.CoredumpBucket, project.Name)
	a.BrowseHost = b.Env.BrowseHost
	a.Binaries = []string{
		filepath.Join(b.abs(c.BuildDir), project.Driver()),
		filepath.Join(b.abs(c.BuildDir), project.VM()),
	}
	a.Uploader = b.Store
	a.Annotator = b.Annotator
	return a
}

// runTests runs test.py with a fresh home directory and compiler daemon.
// The daemon's log is checked for crashes and appended to the debug log
// even if the tests could not run.
func (b *Builder) runTests(ctx context.Context, r testRun) (err error) {
	home, err := os.MkdirTemp("", "buildbot-home-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(home)
	env := b.childEnv.With("HOME=" + home)
	logFile := filepath.Join(home, b.Bot.Project.DaemonLog())
	defer func() {
		if perr := b.processDaemonLog(logFile); perr != nil && err == nil {
			err = perr
		}
	}()

	args, err := b.daemonArgs(ctx, r.conf, home)
	if err != nil {
		return err
	}
	b.Annotator.Printf("Starting new persistent %s daemon", b.Bot.Project.Name)
	d, err := b.startDaemon(ctx, daemon.Config{
		Args:           args,
		Dir:            b.Checkout,
		Env:            env,
		LogFile:        logFile,
		StartupTimeout: b.Config.DaemonStartupTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			logging.Warningf(ctx, "stopping the daemon: %v", cerr)
		}
	}()
	return b.Runner.Run(ctx, b.cmd(testArgs(b.Bot.Project, r)...).WithEnv(env))
}

// daemonArgs returns the command line of the persistent compiler daemon
// of configuration c.
func (b *Builder) daemonArgs(ctx context.Context, c *dashboard.BuildConfig, home string) ([]string, error) {
	version, err := b.sdkVersion(ctx)
	if err != nil {
		return nil, err
	}
	p := b.Bot.Project
	return []string{
		filepath.Join(b.abs(c.BuildDir), "dart"),
		"-c",
		"--packages=" + filepath.Join(b.Checkout, "pkg", p.CompilerPackage, ".packages"),
		fmt.Sprintf("-D%s.version=%s", p.Name, version),
		fmt.Sprintf("package:%s/src/hub/hub_main.dart", p.CompilerPackage),
		filepath.Join(home, p.RCFile()),
	}, nil
}

// processDaemonLog reports the crashes in the daemon's log on the
// current step and appends the log to the debug log.
func (b *Builder) processDaemonLog(logFile string) error {
	f, err := os.Open(logFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	crashes, err := CrashLines(f)
	if err != nil {
		return err
	}
	for _, line := range crashes {
		b.Annotator.LogLine("undiagnosed_crashes", line)
	}
	if len(crashes) > 0 {
		b.Annotator.LogEnd("undiagnosed_crashes")
		b.Annotator.MarkFailure()
	}

	if b.debugLog == nil {
		return nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err = io.Copy(b.debugLog, f)
	return err
}

// CrashLines returns the lines of a daemon log that report undiagnosed
// crashes, without their line endings. The compiler daemon logs them
// for exceptions it has no client to report to.
func CrashLines(r io.Reader) ([]string, error) {
	var crashes []string
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16<<20)
	for s.Scan() {
		if crashRx.MatchString(s.Text()) {
			crashes = append(crashes, s.Text())
		}
	}
	return crashes, s.Err()
}
