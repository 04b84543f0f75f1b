// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bot

import (
	"github.com/dartino/buildbot/dashboard"
)

// Configs returns the configurations the step program of bot is about.
// Host bots build and test them, cross bots build them and target bots
// test them. Helper builds, such as the release host VMs that compile
// snapshots for embedded targets, are not included. Embedded bots build
// on the machine they run on, whose bot system name is hostSystem.
func Configs(bot *dashboard.Bot, hostSystem string) ([]*dashboard.BuildConfig, error) {
	switch bot.Role {
	case dashboard.RoleCross:
		return dashboard.Expand(dashboard.Axes{
			System: "linux",
			Modes:  []string{"debug", "release"},
			Archs:  []string{"xarm"},
		})
	case dashboard.RoleTarget:
		return dashboard.Expand(dashboard.Axes{
			System: "linux",
			Modes:  []string{bot.Mode},
			Archs:  []string{"xarm"},
		})
	}

	switch bot.System {
	case "lk":
		c, err := dashboard.One(hostSystem, "debug", "ia32")
		if err != nil {
			return nil, err
		}
		c.Name = "DebugLK"
		c.System = "lk"
		return []*dashboard.BuildConfig{c}, nil
	case "free-rtos":
		c, err := dashboard.One(hostSystem, "debug", "stm")
		if err != nil {
			return nil, err
		}
		return []*dashboard.BuildConfig{c}, nil
	}

	axes, err := bot.Axes()
	if err != nil {
		return nil, err
	}
	if bot.SDK {
		axes.Asans = []bool{false}
		axes.NoClang = bot.System == "linux"
		axes.UseSDKs = []bool{true}
		return dashboard.Expand(axes)
	}
	if bot.System == "win" {
		axes.Archs = []string{"ia32"}
	}
	axes.UseSDKs = []bool{false}
	return dashboard.Expand(axes)
}

// HostSystem returns the bot system name of a machine running goos.
func HostSystem(goos string) string {
	switch goos {
	case "darwin":
		return "mac"
	case "windows":
		return "win"
	}
	return goos
}
