// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The dartinobot command runs on the Dartino buildbot slaves.
//
// Usage:
//
//	dartinobot run                   # step program of $BUILDBOT_BUILDERNAME
//	dartinobot configs <bot name>    # configurations a bot builds
//	dartinobot promote --version=V   # promote a dev channel SDK to a release
//	dartinobot bundle-sdk --build-dir=out/ReleaseX64
//
// Annotations go to standard output. Logs go to standard error.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dartino/buildbot/buildenv"
	"github.com/dartino/buildbot/internal/bot"
	"github.com/dartino/buildbot/internal/botconfig"
	"github.com/dartino/buildbot/internal/publish"
	"github.com/urfave/cli/v2"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/logging/gologger"
	"google.golang.org/api/option"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		if !errors.Is(err, bot.ErrStepsFailed) {
			fmt.Fprintf(os.Stderr, "dartinobot: %v\n", err)
		}
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dartinobot",
		Usage: "build and test Dartino on the buildbot",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "buildenv",
				Value: "prod",
				Usage: "environment: " + strings.Join(buildenv.Names(), ", "),
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "bot settings `file` (YAML)",
			},
		},
		Before: func(c *cli.Context) error {
			level := logging.Info
			if c.Bool("verbose") {
				level = logging.Debug
			}
			c.Context = logging.SetLevel(gologger.StdConfig.Use(c.Context), level)
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			configsCommand,
			promoteCommand,
			bundleCommand,
		},
	}
}

func environment(c *cli.Context) (*buildenv.Environment, error) {
	return buildenv.ByName(c.String("buildenv"))
}

// loadConfig returns the bot settings named by --config, or the defaults.
func loadConfig(c *cli.Context) (*botconfig.Config, error) {
	path := c.String("config")
	if path == "" {
		return botconfig.Default(), nil
	}
	return botconfig.Load(path)
}

// projectName returns the --project flag, falling back to the project of
// the bot settings.
func projectName(c *cli.Context) (string, error) {
	if p := c.String("project"); p != "" {
		return p, nil
	}
	conf, err := loadConfig(c)
	if err != nil {
		return "", err
	}
	return conf.Project, nil
}

// newPublisher returns a publisher for the buckets of env and a function
// releasing it. Local environments need no credentials.
func newPublisher(ctx context.Context, env *buildenv.Environment) (*publish.Publisher, func(), error) {
	if env.LocalRoot != "" {
		logging.Debugf(ctx, "using local buckets under %s", env.LocalRoot)
		return publish.New(nil), func() {}, nil
	}
	creds, err := env.Credentials(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, err := storage.NewClient(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return publish.New(client), func() { client.Close() }, nil
}
