// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bot

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/dartino/buildbot/buildenv"
	"github.com/dartino/buildbot/internal/artifacts"
	"github.com/dartino/buildbot/internal/fileutil"
	"github.com/dartino/buildbot/internal/publish"
	"go.chromium.org/luci/common/logging"
)

// defaultCrossRevision names the tarball of cross builds started by hand.
const defaultCrossRevision = "42"

// dartARM is the checked in ARM build of the dart VM that runs the
// compiler daemon on target bots.
const dartARM = "third_party/bin/linux/dart-arm"

// tarball returns the checkout path and the cross bucket URL of the build
// tarball of revision.
func (b *Builder) tarball(arch, revision string) (local, remote string) {
	name := b.Bot.Project.Name
	local = artifacts.TarballName(name, arch, revision)
	return local, b.Env.BucketURL(buildenv.CrossBucket, name) + "/" + local
}

// stepsCrossBuilder builds the ARM configurations and uploads them for
// the target bots, which the build master triggers afterwards.
func (b *Builder) stepsCrossBuilder(ctx context.Context) error {
	archs, err := b.Bot.Archs()
	if err != nil {
		return err
	}
	arch := archs[0]
	revision := b.Revision
	if revision == "" {
		revision = defaultCrossRevision
	}
	if err := b.crossCompile(ctx, "linux", []string{"debug", "release"}, arch); err != nil {
		return err
	}

	tarball, remote := b.tarball(arch, revision)
	defer func() {
		if err := fileutil.RemoveFile(b.abs(tarball)); err != nil {
			logging.Warningf(ctx, "removing %s: %v", tarball, err)
		}
	}()
	err = b.Annotator.Run(ctx, "Create build tarball", func(ctx context.Context) error {
		return b.run(ctx, "tar", "-cjf", tarball,
			"--exclude=**/obj",
			"--exclude=**/obj.host",
			"--exclude=**/obj.target",
			"out")
	})
	if err != nil {
		return err
	}
	return b.Annotator.Run(ctx, "Upload build tarball", func(ctx context.Context) error {
		return b.Store.Upload(ctx, b.abs(tarball), remote, publish.Options{Public: true})
	})
}

// stepsTargetRunner downloads the build of its cross bot and tests it.
// The build output is always removed afterwards; the ARM boards are
// short on disk.
func (b *Builder) stepsTargetRunner(ctx context.Context) (err error) {
	if b.Revision == "" {
		return errors.New("target bots need the revision built by the cross bot")
	}
	archs, err := b.Bot.Archs()
	if err != nil {
		return err
	}
	arch := archs[0]
	tarball, remote := b.tarball(arch, b.Revision)
	defer func() {
		if rerr := fileutil.RemoveFile(b.abs(tarball)); rerr != nil {
			logging.Warningf(ctx, "removing %s: %v", tarball, rerr)
		}
		if cerr := b.clobber(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	err = b.Annotator.Run(ctx, "Fetch build tarball", func(ctx context.Context) error {
		return b.Store.Download(ctx, remote, b.abs(tarball), false)
	})
	if err != nil {
		return err
	}
	err = b.Annotator.Run(ctx, "Unpack build tarball", func(ctx context.Context) error {
		return b.run(ctx, "tar", "-xjf", tarball)
	})
	if err != nil {
		return err
	}

	confs, err := Configs(b.Bot, b.hostSystem())
	if err != nil {
		return err
	}
	policy := b.Config.SkipPolicy()
	for _, snapshot := range []bool{true, false} {
		for _, c := range confs {
			if policy.ShouldSkip(snapshot, c) {
				continue
			}
			vm := path.Join(c.BuildDir, b.Bot.Project.VM())
			if !fileutil.Exists(b.abs(vm)) {
				return fmt.Errorf("%s is not in the build tarball", vm)
			}
			if err := fileutil.CopyFile(b.abs(dartARM), b.abs(path.Join(c.BuildDir, "dart"))); err != nil {
				return err
			}
			if err := b.stepTest(ctx, testRun{conf: c, snapshot: snapshot}); err != nil {
				return err
			}
		}
	}
	return nil
}
