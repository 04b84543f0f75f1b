// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bot

import (
	"context"
	"path"
	"path/filepath"

	"github.com/dartino/buildbot/dashboard"
	"github.com/dartino/buildbot/internal/fileutil"
)

// stepGyp generates the ninja files.
func (b *Builder) stepGyp(ctx context.Context) error {
	return b.Annotator.Run(ctx, "GYP", func(ctx context.Context) error {
		return b.run(ctx, "python", "tools/run-ninja.py", "-v")
	})
}

// stepBuild builds the named configuration into buildDir.
// targets, if any, restrict the build to those ninja targets.
func (b *Builder) stepBuild(ctx context.Context, name, buildDir string, targets ...string) error {
	return b.Annotator.Run(ctx, "Build "+name, func(ctx context.Context) error {
		args := append([]string{"ninja", "-v", "-C", buildDir}, targets...)
		return b.run(ctx, args...)
	})
}

func (b *Builder) buildConfig(ctx context.Context, c *dashboard.BuildConfig, targets ...string) error {
	return b.stepBuild(ctx, c.Name, c.BuildDir, targets...)
}

// stepDisableAnalytics turns off the driver's usage reporting and stops
// the background process the driver starts. Failures are printed and
// ignored.
func (b *Builder) stepDisableAnalytics(ctx context.Context, binDir string) error {
	return b.Annotator.Run(ctx, "Disable analytics", func(ctx context.Context) error {
		driver := path.Join(binDir, b.Bot.Project.Driver())
		for _, args := range [][]string{
			{driver, "disable", "analytics"},
			{driver, "quit"},
		} {
			if args[1] == "quit" {
				b.Annotator.Printf("Ensure background process is not running")
			}
			b.Annotator.Printf("%s", b.cmd(args...))
			out, err := b.Runner.Output(ctx, b.cmd(args...))
			if err != nil {
				b.Annotator.Printf("Ignoring error: %v", err)
				return nil
			}
			b.Annotator.Printf("%s", out)
		}
		return nil
	})
}

// createZip zips the directory dir into target, which is relative to
// dir's parent. Symbolic links are stored as links.
func (b *Builder) createZip(ctx context.Context, dir, target string) error {
	parent := b.abs(path.Dir(dir))
	if err := fileutil.RemoveFile(filepath.Join(parent, target)); err != nil {
		return err
	}
	return b.Runner.Run(ctx, b.cmd("zip", "-yrq9", target, path.Base(dir)).InDir(parent))
}

// unzip extracts zip next to itself.
func (b *Builder) unzip(ctx context.Context, zip string) error {
	return b.Runner.Run(ctx, b.cmd("unzip", path.Base(zip)).InDir(b.abs(path.Dir(zip))))
}
