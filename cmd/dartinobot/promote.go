// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"os"

	"github.com/dartino/buildbot/internal/command"
	"github.com/dartino/buildbot/internal/release"
	"github.com/urfave/cli/v2"
)

var promoteCommand = &cli.Command{
	Name:   "promote",
	Usage:  "promote the SDKs of a dev channel version to a release",
	Action: promote,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "version",
			Usage: "semantic `version` to promote, such as 0.4.0-dev.2.0",
		},
		&cli.StringFlag{
			Name:  "project",
			Usage: "project generation; defaults to the bot settings' project",
		},
		&cli.BoolFlag{
			Name:  "dryrun",
			Usage: "print what would be done without doing it",
		},
		&cli.StringFlag{
			Name:  "docs-repo",
			Value: release.DefaultDocsRepo,
			Usage: "git `repo` serving the API documentation; empty skips the documentation",
		},
	},
}

func promote(c *cli.Context) error {
	ctx := c.Context
	if c.String("version") == "" {
		return errors.New("promote: --version is required")
	}
	project, err := projectName(c)
	if err != nil {
		return err
	}
	env, err := environment(c)
	if err != nil {
		return err
	}
	store, closeStore, err := newPublisher(ctx, env)
	if err != nil {
		return err
	}
	defer closeStore()
	p := &release.Promotion{
		Version:  c.String("version"),
		Project:  project,
		Env:      env,
		Store:    store,
		Runner:   &command.Exec{Out: os.Stdout},
		DocsRepo: c.String("docs-repo"),
		DryRun:   c.Bool("dryrun"),
		Out:      os.Stdout,
	}
	return p.Run(ctx)
}
