// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dashboard

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	testSystems = []string{"linux", "mac", "win", "lk", "free-rtos"}
	testArchs   = []string{"ia32", "x64", "arm", "xarm", "stm", "cm4"}
)

func TestCompilerVariants(t *testing.T) {
	tests := []struct {
		system, arch string
		noClang      bool
		want         []string
	}{
		{"linux", "ia32", false, []string{CompilerDefault, CompilerClang}},
		{"linux", "x64", true, []string{CompilerDefault}},
		{"mac", "x64", true, []string{CompilerDefault}},
		{"mac", "xarm", false, []string{CompilerClang}},
		{"linux", "arm", false, []string{CompilerDefault}},
		{"linux", "stm", false, []string{CompilerDefault}},
		{"win", "ia32", false, []string{CompilerDefault}},
		{"lk", "cm4", false, []string{CompilerDefault, CompilerClang}},
	}
	for _, tt := range tests {
		got := CompilerVariants(tt.system, tt.arch, tt.noClang)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("CompilerVariants(%q, %q, %v) mismatch (-want +got):\n%s", tt.system, tt.arch, tt.noClang, diff)
		}
	}
}

func TestCompilerVariantsMacIsClang(t *testing.T) {
	for _, arch := range testArchs {
		if got := CompilerVariants("mac", arch, false); !slices.Equal(got, []string{CompilerClang}) {
			t.Errorf("CompilerVariants(mac, %q) = %q; want [Clang]", arch, got)
		}
	}
}

func TestCompilerVariantsXARMIsDefault(t *testing.T) {
	for _, system := range testSystems {
		if system == "mac" {
			// The mac rule comes first.
			continue
		}
		if got := CompilerVariants(system, "xarm", false); !slices.Equal(got, []string{CompilerDefault}) {
			t.Errorf("CompilerVariants(%q, xarm) = %q; want default only", system, got)
		}
	}
}

func allConfigs(t *testing.T) []*BuildConfig {
	t.Helper()
	var confs []*BuildConfig
	for _, system := range testSystems {
		c, err := Expand(Axes{
			System: system,
			Modes:  []string{"debug", "release"},
			Archs:  testArchs,
			Asans:  []bool{false, true},
		})
		if err != nil {
			t.Fatal(err)
		}
		confs = append(confs, c...)
	}
	return confs
}

func TestShouldSkipSnapshotRun(t *testing.T) {
	var p *SkipPolicy
	ran := map[string]bool{}
	for _, c := range allConfigs(t) {
		macX64Asan := c.System == "mac" && c.Arch == "x64" && c.Asan
		want := macX64Asan || !slices.Contains(DefaultSnapshotConfigs, c.Name)
		if got := p.ShouldSkip(true, c); got != want {
			t.Errorf("ShouldSkip(true, %s on %s) = %v; want %v", c.Name, c.System, got, want)
		}
		if !want {
			ran[c.Name] = true
		}
	}
	for _, name := range DefaultSnapshotConfigs {
		if !ran[name] {
			t.Errorf("canary %s never ran a snapshot test", name)
		}
	}
}

func TestShouldSkipMacX64Asan(t *testing.T) {
	p := &SkipPolicy{SnapshotConfigs: []string{"DebugX64ClangAsan"}}
	for _, c := range allConfigs(t) {
		if c.System != "mac" || c.Arch != "x64" || !c.Asan {
			continue
		}
		for _, snapshot := range []bool{false, true} {
			if !p.ShouldSkip(snapshot, c) {
				t.Errorf("ShouldSkip(%v, %s on mac) = false; want true", snapshot, c.Name)
			}
		}
	}
}

func TestShouldSkipNormalRun(t *testing.T) {
	c := &BuildConfig{Name: "ReleaseX64", Mode: "release", Arch: "x64", System: "linux"}
	if (&SkipPolicy{}).ShouldSkip(false, c) {
		t.Error("ShouldSkip(false, ReleaseX64) = true; want false")
	}
}

func TestSkipPolicyConfigured(t *testing.T) {
	p := &SkipPolicy{SnapshotConfigs: []string{"ReleaseX64"}}
	if p.ShouldSkip(true, &BuildConfig{Name: "ReleaseX64", System: "linux", Arch: "x64"}) {
		t.Error("configured canary ReleaseX64 skipped")
	}
	if !p.ShouldSkip(true, &BuildConfig{Name: "DebugIA32", System: "linux", Arch: "ia32"}) {
		t.Error("DebugIA32 not skipped with a configured canary list")
	}
}
