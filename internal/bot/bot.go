// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bot contains the step programs run by the buildbot slaves.
//
// A Builder is created for one bot and one checkout. Its Run method picks
// the step program from the bot's name, runs it and reports the steps on
// the annotation stream:
//
//   - host bots build every configuration of their platform and test it,
//     optionally bundling, archiving and testing the SDK;
//   - lk and free-rtos bots build the embedded targets;
//   - cross bots build the ARM configurations and upload them for
//     target bots, which download and test them on ARM hardware.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dartino/buildbot/buildenv"
	"github.com/dartino/buildbot/dashboard"
	"github.com/dartino/buildbot/internal/annotate"
	"github.com/dartino/buildbot/internal/artifacts"
	"github.com/dartino/buildbot/internal/botconfig"
	"github.com/dartino/buildbot/internal/command"
	"github.com/dartino/buildbot/internal/coredump"
	"github.com/dartino/buildbot/internal/daemon"
	"github.com/dartino/buildbot/internal/envutil"
	"github.com/dartino/buildbot/internal/publish"
	"github.com/dartino/buildbot/internal/sdkbundle"
	"github.com/dartino/buildbot/internal/sdkversion"
	"go.chromium.org/luci/common/logging"
)

// ErrStepsFailed is returned by Run when the step program finished but
// at least one step failed. The bot must exit with status 1.
var ErrStepsFailed = errors.New("one or more steps failed")

// Logs written to the checkout during a build. They are removed before
// the step program runs and shown as steps after it.
const (
	DebugLog = ".debug.log"
	FlakyLog = ".flaky.log"
	QEMULog  = ".qemu_log"
)

var allLogs = []string{DebugLog, FlakyLog, QEMULog}

// A Store moves artifacts to and from cloud storage.
// *publish.Publisher implements it.
type Store interface {
	Upload(ctx context.Context, local, remote string, opts publish.Options) error
	Download(ctx context.Context, remote, local string, recursive bool) error
}

// A Builder runs the step program of one bot in one checkout.
type Builder struct {
	Bot      *dashboard.Bot
	Checkout string // absolute path of the source checkout
	GOOS     string // host operating system, as runtime.GOOS

	Env    *buildenv.Environment
	Config *botconfig.Config

	Runner    command.Runner
	Annotator *annotate.Annotator
	Store     Store

	// Revision is the revision being built (BUILDBOT_GOT_REVISION).
	// Target bots require it.
	Revision string

	// Clobber removes the build output before the step program runs
	// (BUILDBOT_CLOBBER).
	Clobber bool

	// BaseEnv is the environment children inherit. If nil, the bot's
	// own environment is used.
	BaseEnv envutil.Env

	// Test hooks.
	startDaemon func(context.Context, daemon.Config) (io.Closer, error)
	newArchiver func(goos, checkout string) *coredump.Archiver
	bundle      func(context.Context, *sdkbundle.Options) (string, error)

	childEnv envutil.Env
	debugLog *os.File
	version  string
}

func startDaemon(ctx context.Context, cfg daemon.Config) (io.Closer, error) {
	s, err := daemon.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *Builder) init() {
	if b.startDaemon == nil {
		b.startDaemon = startDaemon
	}
	if b.newArchiver == nil {
		b.newArchiver = coredump.ForHost
	}
	if b.bundle == nil {
		b.bundle = sdkbundle.Bundle
	}
	if b.Config == nil {
		b.Config = botconfig.Default()
	}
	b.childEnv = b.toolchainEnv()
}

// Run runs the bot's step program. The logs are shown even if the step
// program stops early.
func (b *Builder) Run(ctx context.Context) error {
	b.init()
	if b.Clobber {
		if err := b.clobber(ctx); err != nil {
			return err
		}
	}
	if err := b.cleanLogs(ctx); err != nil {
		return err
	}
	f, err := os.Create(b.abs(DebugLog))
	if err != nil {
		return err
	}
	b.debugLog = f
	err = b.dispatch(ctx)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	b.showLogs(ctx)
	if err != nil {
		return err
	}
	if b.Annotator.HasFailures() {
		return ErrStepsFailed
	}
	return nil
}

func (b *Builder) dispatch(ctx context.Context) error {
	logging.Infof(ctx, "bot %s: %s role on %s, channel %s", b.Bot.Name, b.Bot.Role, b.Bot.System, b.Bot.Channel)
	switch b.Bot.Role {
	case dashboard.RoleCross:
		return b.stepsCrossBuilder(ctx)
	case dashboard.RoleTarget:
		return b.stepsTargetRunner(ctx)
	}
	switch {
	case b.Bot.System == "lk":
		return b.stepsLK(ctx)
	case b.Bot.System == "free-rtos":
		return b.stepsFreeRTOS(ctx)
	case b.Bot.SDK:
		return b.stepsSDK(ctx)
	}
	return b.stepsNormal(ctx)
}

// abs returns the absolute path of a checkout-relative path.
func (b *Builder) abs(rel string) string {
	return filepath.Join(b.Checkout, filepath.FromSlash(rel))
}

// cmd returns a command run in the checkout with the toolchain
// environment.
func (b *Builder) cmd(args ...string) *command.Cmd {
	return command.New(args...).InDir(b.Checkout).WithEnv(b.childEnv)
}

func (b *Builder) run(ctx context.Context, args ...string) error {
	return b.Runner.Run(ctx, b.cmd(args...))
}

// hostSystem returns the bot system name of the machine the bot runs on.
func (b *Builder) hostSystem() string { return HostSystem(b.GOOS) }

// toolchainDir returns the name of the host's directory under
// third_party/clang.
func (b *Builder) toolchainDir() string {
	switch b.GOOS {
	case "darwin":
		return "macos"
	case "windows":
		return "win32"
	}
	return b.GOOS
}

// toolchainEnv returns the environment of the tools the bot runs: the
// checked in clang comes first on PATH, and JAVA_HOME points at the JDK
// installed on the bots.
func (b *Builder) toolchainEnv() envutil.Env {
	env := b.BaseEnv
	if env == nil {
		env = envutil.FromOS()
	}
	if b.GOOS != "windows" {
		env = env.Prepend("PATH", filepath.Join(b.Checkout, "third_party", "clang", b.toolchainDir(), "bin"))
	}
	switch b.GOOS {
	case "darwin":
		env = env.With(
			"DYLD_LIBRARY_PATH="+filepath.Join(b.Checkout, "third_party", "clang", "mac", "lib", "clang", "3.6.0", "lib", "darwin"),
			"JAVA_HOME=/Library/Java/JavaVirtualMachines/jdk1.7.0_71.jdk/Contents/Home",
		)
	case "linux":
		env = env.With("JAVA_HOME=/usr/lib/jvm/java-7-openjdk-amd64")
	}
	if b.Config.ASANOptions != "" {
		env = env.With("ASAN_OPTIONS=" + b.Config.ASANOptions)
	}
	return env
}

// sdkVersion returns the semantic version of the checkout.
func (b *Builder) sdkVersion(ctx context.Context) (string, error) {
	if b.version != "" {
		return b.version, nil
	}
	v, err := sdkversion.Semantic(ctx, b.Runner, b.Checkout)
	if err != nil {
		return "", fmt.Errorf("reading the sdk version: %w", err)
	}
	b.version = v
	return v, nil
}

// namer returns the artifact namer of the bot's channel. Temporary namers
// are used for bleeding edge artifacts that are not kept.
func (b *Builder) namer(temporary bool) *artifacts.Namer {
	return artifacts.NewNamer(b.Env, b.Bot.Project.Name, b.Bot.Channel, artifacts.Raw, temporary)
}

func (b *Builder) bleedingEdge() bool {
	return artifacts.IsBleedingEdge(b.Bot.Channel)
}

// clobber removes the build output directory.
func (b *Builder) clobber(ctx context.Context) error {
	return b.Annotator.Run(ctx, "Clobber", func(ctx context.Context) error {
		out := b.abs("out")
		b.Annotator.Printf("Removing %s", out)
		return os.RemoveAll(out)
	})
}

func (b *Builder) cleanLogs(ctx context.Context) error {
	return b.Annotator.Run(ctx, "Clean logs", func(ctx context.Context) error {
		for _, log := range allLogs {
			if _, err := os.Stat(b.abs(log)); err != nil {
				continue
			}
			b.Annotator.Printf("Removing logfile: %s", log)
			if err := os.Remove(b.abs(log)); err != nil {
				return err
			}
		}
		return nil
	})
}

// showLogs shows every log left in the checkout as a step of its own.
func (b *Builder) showLogs(ctx context.Context) {
	for _, log := range allLogs {
		f, err := os.Open(b.abs(log))
		if err != nil {
			continue
		}
		err = b.Annotator.Run(ctx, "Log "+log, func(ctx context.Context) error {
			_, err := io.Copy(b.Annotator.Writer(), f)
			return err
		})
		if err != nil {
			logging.Warningf(ctx, "showing %s: %v", log, err)
		}
		f.Close()
	}
}
