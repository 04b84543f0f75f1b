// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/dartino/buildbot/dashboard"
	"github.com/dartino/buildbot/internal/bot"
	"github.com/urfave/cli/v2"
)

var configsCommand = &cli.Command{
	Name:      "configs",
	Usage:     "print the configurations a bot builds and the test runs of each",
	ArgsUsage: "<bot name>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("configs: want one bot name, got %d arguments", c.NArg())
		}
		conf, err := loadConfig(c)
		if err != nil {
			return err
		}
		return printConfigs(os.Stdout, c.Args().First(), bot.HostSystem(runtime.GOOS), conf.SkipPolicy())
	},
}

func printConfigs(w io.Writer, name, hostSystem string, policy *dashboard.SkipPolicy) error {
	b, err := dashboard.ParseBotName(name)
	if err != nil {
		return err
	}
	confs, err := bot.Configs(b, hostSystem)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s role, %s, channel %s\n", b.Name, b.Role, b.System, b.Channel)
	for _, c := range confs {
		var runs []string
		for _, snapshot := range []bool{true, false} {
			if policy.ShouldSkip(snapshot, c) {
				continue
			}
			if snapshot {
				runs = append(runs, "snapshot")
			} else {
				runs = append(runs, "normal")
			}
		}
		if len(runs) == 0 {
			runs = []string{"none"}
		}
		fmt.Fprintf(tw, "  %s\t%s\ttests: %s\n", c, c.BuildDir, strings.Join(runs, ", "))
	}
	return tw.Flush()
}
