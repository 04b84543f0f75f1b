// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dashboard contains the bot name grammar and the build
// configuration matrix that the buildbot steps iterate over.
package dashboard

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Compiler variants. The default variant is the platform compiler (gcc
// or MSVC) and contributes nothing to a configuration name.
const (
	CompilerDefault = ""
	CompilerClang   = "Clang"
)

// BuildConfig is one concrete build configuration, such as DebugIA32Clang.
// A BuildConfig is created by Expand and is not modified afterwards.
type BuildConfig struct {
	// Name is the canonical configuration name, e.g. "DebugIA32ClangAsan".
	// It is also the name of the build output directory under out/.
	Name string

	Mode     string // "debug" or "release"
	Arch     string // lower case: "ia32", "x64", "xarm", "stm", ...
	System   string // "linux", "mac", "win", "lk" or "free-rtos"
	Compiler string // CompilerDefault or CompilerClang
	Asan     bool

	// EmbeddedLibs selects the embedded settings file for test runs.
	EmbeddedLibs bool

	// UseSDK runs the tests against the bundled SDK rather than the
	// raw build tree.
	UseSDK bool

	// BuildDir is the ninja output directory, relative to the checkout.
	BuildDir string
}

// Clang reports whether c is built with clang.
func (c *BuildConfig) Clang() bool { return c.Compiler == CompilerClang }

func (c *BuildConfig) String() string {
	s := c.Name
	if c.EmbeddedLibs {
		s += "/embedded-libs"
	}
	if c.UseSDK {
		s += "/sdk"
	}
	return s
}

// Axes are the value lists that Expand takes the product of.
// A nil boolean axis means {false}.
type Axes struct {
	System       string
	Modes        []string
	Archs        []string
	Asans        []bool
	EmbeddedLibs []bool
	UseSDKs      []bool

	// NoClang restricts every configuration to the default compiler.
	NoClang bool
}

func orFalse(v []bool) []bool {
	if len(v) == 0 {
		return []bool{false}
	}
	return v
}

// Expand returns the product of the axes, with the compiler variants for
// each architecture chosen by CompilerVariants. The enumeration order is
// sanitizer, mode, arch, compiler, embedded-libs, sdk, outermost first.
func Expand(a Axes) ([]*BuildConfig, error) {
	var confs []*BuildConfig
	for _, asan := range orFalse(a.Asans) {
		for _, mode := range a.Modes {
			for _, arch := range a.Archs {
				arch = strings.ToLower(arch)
				for _, compiler := range CompilerVariants(a.System, arch, a.NoClang) {
					name, err := ConfigName(mode, arch, compiler, asan)
					if err != nil {
						return nil, err
					}
					for _, embedded := range orFalse(a.EmbeddedLibs) {
						for _, sdk := range orFalse(a.UseSDKs) {
							confs = append(confs, &BuildConfig{
								Name:         name,
								Mode:         strings.ToLower(mode),
								Arch:         arch,
								System:       a.System,
								Compiler:     compiler,
								Asan:         asan,
								EmbeddedLibs: embedded,
								UseSDK:       sdk,
								BuildDir:     BuildDir(name),
							})
						}
					}
				}
			}
		}
	}
	return confs, nil
}

// One returns the first configuration for the given values, built with
// the platform's preferred compiler. Step programs use it for fixed
// helper builds, such as the release host VM that compiles snapshots for
// a cross target.
func One(system, mode, arch string) (*BuildConfig, error) {
	confs, err := Expand(Axes{
		System: system,
		Modes:  []string{mode},
		Archs:  []string{arch},
	})
	if err != nil {
		return nil, err
	}
	return confs[0], nil
}

// BuildDir returns the output directory of the named configuration.
func BuildDir(name string) string { return path.Join("out", name) }

// ConfigName returns the canonical name for a configuration tuple.
// The mode must be "debug" or "release".
func ConfigName(mode, arch, compiler string, asan bool) (string, error) {
	var b strings.Builder
	switch mode {
	case "debug":
		b.WriteString("Debug")
	case "release":
		b.WriteString("Release")
	default:
		return "", fmt.Errorf("unknown build mode %q", mode)
	}
	b.WriteString(strings.ToUpper(arch))
	b.WriteString(compiler)
	if asan {
		b.WriteString("Asan")
	}
	return b.String(), nil
}

var configNameRx = regexp.MustCompile(`^(Debug|Release)([A-Z0-9]+?)(Clang)?(Asan)?$`)

// ParseConfigName is the inverse of ConfigName. The architecture is
// returned in lower case.
func ParseConfigName(name string) (mode, arch, compiler string, asan bool, err error) {
	m := configNameRx.FindStringSubmatch(name)
	if m == nil {
		return "", "", "", false, fmt.Errorf("malformed configuration name %q", name)
	}
	return strings.ToLower(m[1]), strings.ToLower(m[2]), m[3], m[4] != "", nil
}
