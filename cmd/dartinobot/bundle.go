// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dartino/buildbot/buildenv"
	"github.com/dartino/buildbot/dashboard"
	"github.com/dartino/buildbot/internal/command"
	"github.com/dartino/buildbot/internal/sdkbundle"
	"github.com/urfave/cli/v2"
)

var bundleCommand = &cli.Command{
	Name:   "bundle-sdk",
	Usage:  "bundle the SDK of a build directory",
	Action: bundleSDK,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "build-dir",
			Usage:    "build `dir` relative to the checkout, such as out/ReleaseX64",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "checkout",
			Value: ".",
			Usage: "source checkout `dir`",
		},
		&cli.StringFlag{
			Name:  "project",
			Usage: "project generation; defaults to the bot settings' project",
		},
		&cli.StringFlag{
			Name:  "deb-package",
			Usage: "ARM agent package to ship, relative to the checkout",
		},
		&cli.BoolFlag{
			Name:  "create-docs",
			Usage: "generate the API documentation first",
		},
		&cli.BoolFlag{
			Name:  "include-tools",
			Usage: "add the embedded toolchain and OpenOCD",
		},
	},
}

func bundleSDK(c *cli.Context) error {
	name, err := projectName(c)
	if err != nil {
		return err
	}
	project, ok := dashboard.Projects[name]
	if !ok {
		return fmt.Errorf("unknown project %q", name)
	}
	env, err := environment(c)
	if err != nil {
		return err
	}
	checkout, err := filepath.Abs(c.String("checkout"))
	if err != nil {
		return err
	}
	system := runtime.GOOS
	if system == "darwin" {
		system = "mac"
	}
	dir, err := sdkbundle.Bundle(c.Context, &sdkbundle.Options{
		Project:            project,
		Checkout:           checkout,
		BuildDir:           filepath.ToSlash(c.String("build-dir")),
		System:             system,
		DebPackage:         c.String("deb-package"),
		Docs:               c.Bool("create-docs"),
		DependenciesBucket: env.Bucket(buildenv.DependenciesBucket, project.Name),
		IncludeTools:       c.Bool("include-tools"),
		Runner:             &command.Exec{Out: os.Stderr},
	})
	if err != nil {
		return err
	}
	fmt.Println(dir)
	return nil
}
