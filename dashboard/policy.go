// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dashboard

import "slices"

// CompilerVariants returns the compiler variants built for arch on system.
// The first matching rule wins.
func CompilerVariants(system, arch string, noClang bool) []string {
	switch {
	case noClang:
		return []string{CompilerDefault}
	case system == "mac":
		// gcc on mac is an alias for clang.
		return []string{CompilerClang}
	case arch == "arm" || arch == "xarm":
		// No clang cross compiler for arm.
		return []string{CompilerDefault}
	case arch == "stm":
		return []string{CompilerDefault}
	case system == "win":
		// Always MSVC.
		return []string{CompilerDefault}
	}
	return []string{CompilerDefault, CompilerClang}
}

// DefaultSnapshotConfigs are the configurations that run the snapshot test
// mode (compile to a snapshot, then run it under the normal and the
// unfolded-program VM). Snapshot runs are expensive, so the list is kept to
// the cheapest debug ia32 builds.
var DefaultSnapshotConfigs = []string{"DebugIA32", "DebugIA32ClangAsan"}

// SkipPolicy decides which configurations are not tested.
// The zero value and a nil *SkipPolicy use DefaultSnapshotConfigs.
type SkipPolicy struct {
	SnapshotConfigs []string
}

func (p *SkipPolicy) snapshotConfigs() []string {
	if p == nil || len(p.SnapshotConfigs) == 0 {
		return DefaultSnapshotConfigs
	}
	return p.SnapshotConfigs
}

// ShouldSkip reports whether the test run for c is skipped.
func (p *SkipPolicy) ShouldSkip(snapshotRun bool, c *BuildConfig) bool {
	if c.System == "mac" && c.Arch == "x64" && c.Asan {
		// Asan on x64 takes too long on mac.
		return true
	}
	if snapshotRun && !slices.Contains(p.snapshotConfigs(), c.Name) {
		return true
	}
	return false
}
