// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dartino/buildbot/dashboard"
	"github.com/dartino/buildbot/internal/annotate"
	"github.com/dartino/buildbot/internal/bot"
	"github.com/dartino/buildbot/internal/command"
	"github.com/dartino/buildbot/internal/secret"
	"github.com/dartino/buildbot/internal/stepstats"
	"github.com/urfave/cli/v2"
	"go.chromium.org/luci/common/logging"
)

var runCommand = &cli.Command{
	Name:   "run",
	Usage:  "run the step program of a bot",
	Action: runBot,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "builder",
			Usage:   "bot `name`",
			EnvVars: []string{"BUILDBOT_BUILDERNAME"},
		},
		&cli.StringFlag{
			Name:    "revision",
			Usage:   "revision being built; required by target bots",
			EnvVars: []string{"BUILDBOT_GOT_REVISION"},
		},
		&cli.BoolFlag{
			Name:    "clobber",
			Usage:   "remove the build output first",
			EnvVars: []string{"BUILDBOT_CLOBBER"},
		},
		&cli.StringFlag{
			Name:  "checkout",
			Value: ".",
			Usage: "source checkout `dir`",
		},
	},
}

func runBot(c *cli.Context) error {
	ctx := c.Context
	name := c.String("builder")
	if name == "" {
		return errors.New("no bot name; set BUILDBOT_BUILDERNAME or --builder")
	}
	b, err := dashboard.ParseBotName(name)
	if err != nil {
		return err
	}
	env, err := environment(c)
	if err != nil {
		return err
	}
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	if conf.HasSecrets() {
		r, err := secret.NewResolver(ctx, env.ProjectName)
		if err != nil {
			return fmt.Errorf("secret manager: %w", err)
		}
		defer r.Close()
		if err := conf.ResolveSecrets(ctx, r); err != nil {
			return err
		}
	}
	checkout, err := filepath.Abs(c.String("checkout"))
	if err != nil {
		return err
	}
	store, closeStore, err := newPublisher(ctx, env)
	if err != nil {
		return err
	}
	defer closeStore()

	a := annotate.New(os.Stdout)
	if conf.Influx.URL != "" {
		rec := stepstats.New(conf.Influx.URL, conf.Influx.Token, name)
		defer rec.Close()
		a.Observe(rec)
	}
	logging.Infof(ctx, "running %s (%s, channel %s) in %s", name, b.Role, b.Channel, checkout)
	builder := &bot.Builder{
		Bot:       b,
		Checkout:  checkout,
		GOOS:      runtime.GOOS,
		Env:       env,
		Config:    conf,
		Runner:    &command.Exec{Out: a.Writer()},
		Annotator: a,
		Store:     store,
		Revision:  c.String("revision"),
		Clobber:   c.Bool("clobber"),
	}
	return builder.Run(ctx)
}
