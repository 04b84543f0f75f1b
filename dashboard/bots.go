// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dashboard

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// A Project describes one generation of the toolchain whose bots we run.
// The project was renamed from Fletch to Dartino. Both generations share
// the build layout; their host bot names follow different grammars (see
// hostBotGrammars).
type Project struct {
	// Name is the bot name prefix and the base name of the driver
	// binary, e.g. "dartino".
	Name string

	// CompilerPackage is the package holding the persistent
	// compiler daemon's hub entry point, e.g. "dartino_compiler".
	CompilerPackage string

	// CompilerSelector and RuntimeSelector are the test.py -c and -r
	// values for snapshot runs.
	CompilerSelector string
	RuntimeSelector  string

	// DefaultAsans is the sanitizer axis of host bots that build every
	// configuration.
	DefaultAsans []bool
}

// Projects maps a project name to its Project.
var Projects = map[string]*Project{
	"dartino": {
		Name:             "dartino",
		CompilerPackage:  "dartino_compiler",
		CompilerSelector: "dartino_compiler",
		RuntimeSelector:  "dartinovm",
		DefaultAsans:     []bool{false},
	},
	"fletch": {
		Name:             "fletch",
		CompilerPackage:  "fletchc",
		CompilerSelector: "fletchc",
		RuntimeSelector:  "fletchvm",
		DefaultAsans:     []bool{false, true},
	},
}

// Driver returns the file name of the command-line driver.
func (p *Project) Driver() string { return p.Name }

// VM returns the file name of the VM binary.
func (p *Project) VM() string { return p.Name + "-vm" }

// SDKDir returns the name of the bundled SDK directory inside a build dir.
func (p *Project) SDKDir() string { return p.Name + "-sdk" }

// DaemonLog is the name of the persistent daemon's log file in $HOME.
func (p *Project) DaemonLog() string { return "." + p.Name + ".log" }

// RCFile is the name of the driver's rc file in $HOME.
func (p *Project) RCFile() string { return "." + p.Name }

// EmbeddedSettings is the settings file selected by embedded-libs bots.
func (p *Project) EmbeddedSettings() string {
	return "embedded." + p.Name + "-settings"
}

// A Role is the kind of work a bot does.
type Role int

const (
	// RoleHost bots build and test on the machine they run on.
	RoleHost Role = iota
	// RoleCross bots cross-compile for ARM and upload the binaries.
	RoleCross
	// RoleTarget bots run on ARM hardware and test what a cross bot built.
	RoleTarget
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleCross:
		return "cross"
	case RoleTarget:
		return "target"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Channels are the release channels a bot name may be suffixed with.
// Bleeding edge bots have no suffix.
var Channels = []string{"be", "dev", "stable", "integration"}

// ErrInvalidBotName is returned by ParseBotName for names that match none
// of the bot grammars.
var ErrInvalidBotName = errors.New("invalid buildername")

// A Bot is the parsed form of a bot name.
type Bot struct {
	Name    string // full name, as given
	Project *Project
	Role    Role
	Channel string // "be" unless the name carries a channel suffix

	System string // "linux", "mac", "win", "lk" or "free-rtos"

	// Partial reports whether the name selects a single mode and
	// architecture token, as in "dartino-linux-debug-x86". Bots
	// without a partial configuration build every mode and host
	// architecture.
	Partial      bool
	Mode         string // "debug" or "release"; empty for fletch asan bots, which build both
	ArchToken    string // "x86", "x64", "ia32" or "arm"
	Asan         bool
	EmbeddedLibs bool
	SDK          bool
}

var (
	channelSuffix = `(?:-(?P<channel>` + strings.Join(Channels, "|") + `))?$`

	// hostBotGrammars holds the host bot grammar of each project.
	// Fletch bots put "asan" in the mode slot, meaning both modes with
	// the sanitizer.
	hostBotGrammars = map[string]*regexp.Regexp{
		"dartino": regexp.MustCompile(`^(?P<project>dartino)-` +
			`(?P<system>linux|mac|win|windows|lk|free-rtos)` +
			`(?P<partial>` +
			`-(?P<mode>debug|release)` +
			`(?P<asan>-asan)?` +
			`(?P<embedded_libs>-embedded-libs)?` +
			`-(?P<arch>x86|arm|x64|ia32)` +
			`)?` +
			`(?P<sdk>-sdk)?` +
			channelSuffix),
		"fletch": regexp.MustCompile(`^(?P<project>fletch)-` +
			`(?P<system>linux|mac|windows|lk)` +
			`(?P<partial>-(?P<mode>debug|release|asan)-(?P<arch>x86|arm))?` +
			`(?P<sdk>-sdk)?` +
			channelSuffix),
	}
	crossBotRx  = regexp.MustCompile(`^cross-(?P<project>[a-z]+)-(?P<system>linux)-(?P<arch>arm)` + channelSuffix)
	targetBotRx = regexp.MustCompile(`^target-(?P<project>[a-z]+)-(?P<system>linux)-(?P<mode>debug|release)-(?P<arch>arm)` + channelSuffix)
)

// ParseBotName parses name against the host, cross and target bot grammars.
func ParseBotName(name string) (*Bot, error) {
	type grammar struct {
		rx   *regexp.Regexp
		role Role
	}
	var grammars []grammar
	for _, p := range ProjectNames() {
		grammars = append(grammars, grammar{hostBotGrammars[p], RoleHost})
	}
	grammars = append(grammars, grammar{crossBotRx, RoleCross}, grammar{targetBotRx, RoleTarget})
	for _, g := range grammars {
		m := submatches(g.rx, name)
		if m == nil {
			continue
		}
		p, ok := Projects[m["project"]]
		if !ok {
			continue
		}
		b := &Bot{
			Name:      name,
			Project:   p,
			Role:      g.role,
			Channel:   m["channel"],
			System:    m["system"],
			Partial:   m["partial"] != "",
			Mode:      m["mode"],
			ArchToken: m["arch"],
			Asan:      m["asan"] != "",
			SDK:       m["sdk"] != "",

			EmbeddedLibs: m["embedded_libs"] != "",
		}
		if b.Channel == "" {
			b.Channel = "be"
		}
		if b.System == "windows" {
			b.System = "win"
		}
		if b.Mode == "asan" {
			b.Mode, b.Asan = "", true
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidBotName, name)
}

func submatches(rx *regexp.Regexp, s string) map[string]string {
	m := rx.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	out := make(map[string]string)
	for i, name := range rx.SubexpNames() {
		if name != "" {
			out[name] = m[i]
		}
	}
	return out
}

// archTokens maps the architecture token of a bot name to the
// architectures it builds.
var archTokens = map[string][]string{
	"x86":  {"ia32", "x64"},
	"x64":  {"x64"},
	"ia32": {"ia32"},
}

// Archs returns the host architectures selected by b.
func (b *Bot) Archs() ([]string, error) {
	if b.Role != RoleHost {
		return []string{"xarm"}, nil
	}
	if !b.Partial {
		return []string{"ia32", "x64"}, nil
	}
	archs, ok := archTokens[b.ArchToken]
	if !ok {
		return nil, fmt.Errorf("bot %s: architecture %q is only built by cross bots", b.Name, b.ArchToken)
	}
	return archs, nil
}

// Axes returns the configuration axes of a host bot. The caller fills
// in the sdk axis and the clang override, which depend on the step program.
func (b *Bot) Axes() (Axes, error) {
	a := Axes{
		System:       b.System,
		Modes:        []string{"debug", "release"},
		Asans:        b.Project.DefaultAsans,
		EmbeddedLibs: []bool{false},
	}
	archs, err := b.Archs()
	if err != nil {
		return Axes{}, err
	}
	a.Archs = archs
	if b.Partial {
		if b.Mode != "" {
			a.Modes = []string{b.Mode}
		}
		a.Asans = []bool{b.Asan}
		a.EmbeddedLibs = []bool{b.EmbeddedLibs}
	}
	return a, nil
}

// ProjectNames returns the known project names, sorted.
func ProjectNames() []string {
	var names []string
	for name := range Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
