// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bot

import (
	"context"

	"github.com/dartino/buildbot/dashboard"
)

// hostBuilds builds the release host VMs. The compiler daemon they
// contain compiles snapshots for the cross and embedded targets.
func (b *Builder) hostBuilds(ctx context.Context) (last *dashboard.BuildConfig, err error) {
	for _, arch := range []string{"ia32", "x64"} {
		c, err := dashboard.One(b.hostSystem(), "release", arch)
		if err != nil {
			return nil, err
		}
		if err := b.buildConfig(ctx, c); err != nil {
			return nil, err
		}
		last = c
	}
	return last, nil
}

// stepsNormal builds and tests every configuration of a host bot.
func (b *Builder) stepsNormal(ctx context.Context) error {
	confs, err := Configs(b.Bot, b.hostSystem())
	if err != nil {
		return err
	}
	win := b.Bot.System == "win"
	var targets []string
	if win {
		// Only the VM builds on windows.
		targets = []string{b.Bot.Project.VM()}
	}

	if err := b.stepGyp(ctx); err != nil {
		return err
	}
	for _, c := range confs {
		if err := b.buildConfig(ctx, c, targets...); err != nil {
			return err
		}
	}
	if err := b.stepDisableAnalytics(ctx, confs[len(confs)-1].BuildDir); err != nil {
		return err
	}
	if win {
		return nil
	}

	policy := b.Config.SkipPolicy()
	for _, snapshot := range []bool{true, false} {
		for _, c := range confs {
			if policy.ShouldSkip(snapshot, c) {
				continue
			}
			err := b.stepTest(ctx, testRun{conf: c, snapshot: snapshot, archiveCores: true})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// stepsFreeRTOS builds the STM32 target and the host VMs it needs.
func (b *Builder) stepsFreeRTOS(ctx context.Context) error {
	if err := b.stepGyp(ctx); err != nil {
		return err
	}
	host, err := b.hostBuilds(ctx)
	if err != nil {
		return err
	}
	stm, err := dashboard.One(b.hostSystem(), "debug", "stm")
	if err != nil {
		return err
	}
	if err := b.buildConfig(ctx, stm); err != nil {
		return err
	}
	return b.stepDisableAnalytics(ctx, host.BuildDir)
}

// stepsLK builds the LK kernel and runs the snapshot and heap blob tests
// against it.
func (b *Builder) stepsLK(ctx context.Context) error {
	host, err := dashboard.One(b.hostSystem(), "debug", "ia32")
	if err != nil {
		return err
	}
	if err := b.stepGyp(ctx); err != nil {
		return err
	}
	if err := b.buildConfig(ctx, host); err != nil {
		return err
	}

	device := *host
	device.Name = "DebugLK"
	device.System = "lk"
	err = b.Annotator.Run(ctx, "Build "+device.Name, func(ctx context.Context) error {
		if err := b.run(ctx, "make", "-C", "third_party/lk", "clean"); err != nil {
			return err
		}
		return b.run(ctx, "make", "-C", "third_party/lk", "-j8")
	})
	if err != nil {
		return err
	}
	if err := b.stepDisableAnalytics(ctx, host.BuildDir); err != nil {
		return err
	}

	// The test runner starts the daemon from the host build.
	if err := b.stepTest(ctx, testRun{conf: &device, snapshot: true}); err != nil {
		return err
	}
	return b.stepTest(ctx, testRun{conf: &device, snapshot: true, heapBlob: true})
}
