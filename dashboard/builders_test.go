// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dashboard

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseBotName(t *testing.T) {
	tests := []struct {
		name string
		want Bot
	}{
		{
			name: "dartino-linux",
			want: Bot{Role: RoleHost, Channel: "be", System: "linux"},
		},
		{
			name: "dartino-linux-debug-ia32",
			want: Bot{Role: RoleHost, Channel: "be", System: "linux", Partial: true, Mode: "debug", ArchToken: "ia32"},
		},
		{
			name: "dartino-mac-release-asan-x86",
			want: Bot{Role: RoleHost, Channel: "be", System: "mac", Partial: true, Mode: "release", ArchToken: "x86", Asan: true},
		},
		{
			name: "dartino-linux-debug-embedded-libs-x64",
			want: Bot{Role: RoleHost, Channel: "be", System: "linux", Partial: true, Mode: "debug", ArchToken: "x64", EmbeddedLibs: true},
		},
		{
			name: "dartino-linux-release-x86-sdk-dev",
			want: Bot{Role: RoleHost, Channel: "dev", System: "linux", Partial: true, Mode: "release", ArchToken: "x86", SDK: true},
		},
		{
			name: "dartino-windows",
			want: Bot{Role: RoleHost, Channel: "be", System: "win"},
		},
		{
			name: "dartino-free-rtos",
			want: Bot{Role: RoleHost, Channel: "be", System: "free-rtos"},
		},
		{
			name: "cross-dartino-linux-arm",
			want: Bot{Role: RoleCross, Channel: "be", System: "linux", ArchToken: "arm"},
		},
		{
			name: "target-dartino-linux-release-arm-stable",
			want: Bot{Role: RoleTarget, Channel: "stable", System: "linux", Mode: "release", ArchToken: "arm"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBotName(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if got.Project != Projects["dartino"] {
				t.Errorf("Project = %v; want dartino", got.Project)
			}
			tt.want.Name = tt.name
			tt.want.Project = got.Project
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("ParseBotName mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseBotNameFletch(t *testing.T) {
	tests := []struct {
		name string
		want Bot
		axes Axes
	}{
		{
			name: "fletch-linux",
			want: Bot{Role: RoleHost, Channel: "be", System: "linux"},
			axes: Axes{
				System:       "linux",
				Modes:        []string{"debug", "release"},
				Archs:        []string{"ia32", "x64"},
				Asans:        []bool{false, true},
				EmbeddedLibs: []bool{false},
			},
		},
		{
			name: "fletch-linux-asan-x86",
			want: Bot{Role: RoleHost, Channel: "be", System: "linux", Partial: true, ArchToken: "x86", Asan: true},
			axes: Axes{
				System:       "linux",
				Modes:        []string{"debug", "release"},
				Archs:        []string{"ia32", "x64"},
				Asans:        []bool{true},
				EmbeddedLibs: []bool{false},
			},
		},
		{
			name: "fletch-windows-release-x86-dev",
			want: Bot{Role: RoleHost, Channel: "dev", System: "win", Partial: true, Mode: "release", ArchToken: "x86"},
			axes: Axes{
				System:       "win",
				Modes:        []string{"release"},
				Archs:        []string{"ia32", "x64"},
				Asans:        []bool{false},
				EmbeddedLibs: []bool{false},
			},
		},
		{
			name: "fletch-mac-sdk",
			want: Bot{Role: RoleHost, Channel: "be", System: "mac", SDK: true},
			axes: Axes{
				System:       "mac",
				Modes:        []string{"debug", "release"},
				Archs:        []string{"ia32", "x64"},
				Asans:        []bool{false, true},
				EmbeddedLibs: []bool{false},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBotName(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if got.Project != Projects["fletch"] {
				t.Fatalf("Project = %+v; want fletch", got.Project)
			}
			tt.want.Name = tt.name
			tt.want.Project = got.Project
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("ParseBotName mismatch (-want +got):\n%s", diff)
			}
			axes, err := got.Axes()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.axes, axes); diff != "" {
				t.Errorf("Axes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseBotNameInvalid(t *testing.T) {
	for _, name := range []string{
		"",
		"dartino",
		"dartino-plan9",
		"dartino-linux-debug",
		"dartino-linux-debug-ia32-extra",
		"golang-linux-debug-ia32",
		"cross-dartino-mac-arm",
		"target-dartino-linux-arm",
		// Fletch bots name architectures by family only.
		"fletch-linux-debug-x64",
		"fletch-linux-debug-asan-x86",
		"fletch-free-rtos",
		"dartino-linux-asan-x86",
	} {
		if b, err := ParseBotName(name); !errors.Is(err, ErrInvalidBotName) {
			t.Errorf("ParseBotName(%q) = %+v, %v; want ErrInvalidBotName", name, b, err)
		}
	}
}

func configNames(confs []*BuildConfig) []string {
	var names []string
	for _, c := range confs {
		names = append(names, c.String())
	}
	return names
}

func TestExpandOrder(t *testing.T) {
	confs, err := Expand(Axes{
		System:  "linux",
		Modes:   []string{"debug", "release"},
		Archs:   []string{"ia32", "x64"},
		Asans:   []bool{false, true},
		UseSDKs: []bool{false, true},
	})
	if err != nil {
		t.Fatal(err)
	}
	var want []string
	for _, asan := range []string{"", "Asan"} {
		for _, mode := range []string{"Debug", "Release"} {
			for _, arch := range []string{"IA32", "X64"} {
				for _, cc := range []string{"", "Clang"} {
					n := mode + arch + cc + asan
					want = append(want, n, n+"/sdk")
				}
			}
		}
	}
	if diff := cmp.Diff(want, configNames(confs)); diff != "" {
		t.Errorf("Expand order mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandUnknownMode(t *testing.T) {
	_, err := Expand(Axes{System: "linux", Modes: []string{"profile"}, Archs: []string{"x64"}})
	if err == nil {
		t.Fatal("Expand with mode profile succeeded; want error")
	}
}

func TestConfigNameRoundTrip(t *testing.T) {
	for _, mode := range []string{"debug", "release"} {
		for _, arch := range []string{"ia32", "x64", "arm", "xarm", "stm", "cm4"} {
			for _, compiler := range []string{CompilerDefault, CompilerClang} {
				for _, asan := range []bool{false, true} {
					name, err := ConfigName(mode, arch, compiler, asan)
					if err != nil {
						t.Fatal(err)
					}
					gm, ga, gc, gasan, err := ParseConfigName(name)
					if err != nil {
						t.Fatal(err)
					}
					if gm != mode || ga != arch || gc != compiler || gasan != asan {
						t.Errorf("ParseConfigName(%q) = %q, %q, %q, %v; want %q, %q, %q, %v",
							name, gm, ga, gc, gasan, mode, arch, compiler, asan)
					}
				}
			}
		}
	}
}

func TestBuildDir(t *testing.T) {
	confs, err := Expand(Axes{System: "win", Modes: []string{"release"}, Archs: []string{"ia32"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(confs) != 1 || confs[0].BuildDir != "out/ReleaseIA32" {
		t.Errorf("Expand = %v; want single out/ReleaseIA32", confs)
	}
}

// dartino-linux-debug-ia32 builds DebugIA32 with the default compiler,
// and DebugIA32Clang because clang is also built for linux ia32.
func TestBotLinuxDebugIA32(t *testing.T) {
	b, err := ParseBotName("dartino-linux-debug-ia32")
	if err != nil {
		t.Fatal(err)
	}
	axes, err := b.Axes()
	if err != nil {
		t.Fatal(err)
	}
	axes.UseSDKs = []bool{false}
	confs, err := Expand(axes)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"DebugIA32", "DebugIA32Clang"}, configNames(confs)); diff != "" {
		t.Fatalf("configurations mismatch (-want +got):\n%s", diff)
	}
	var defaults []*BuildConfig
	for _, c := range confs {
		if c.UseSDK || c.Asan || c.EmbeddedLibs {
			t.Errorf("%s: UseSDK=%v Asan=%v EmbeddedLibs=%v; want all false", c.Name, c.UseSDK, c.Asan, c.EmbeddedLibs)
		}
		if !c.Clang() {
			defaults = append(defaults, c)
		}
	}
	if len(defaults) != 1 || defaults[0].Name != "DebugIA32" {
		t.Errorf("default compiler configurations = %v; want [DebugIA32]", defaults)
	}
}

func TestBotLinuxReleaseX86SDK(t *testing.T) {
	b, err := ParseBotName("dartino-linux-release-x86-sdk")
	if err != nil {
		t.Fatal(err)
	}
	if !b.SDK {
		t.Fatal("SDK = false; want true")
	}
	axes, err := b.Axes()
	if err != nil {
		t.Fatal(err)
	}
	axes.UseSDKs = []bool{true}
	axes.NoClang = true
	confs, err := Expand(axes)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ReleaseIA32/sdk", "ReleaseX64/sdk"}, configNames(confs)); diff != "" {
		t.Errorf("configurations mismatch (-want +got):\n%s", diff)
	}
}

func TestBotArchs(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"dartino-mac", []string{"ia32", "x64"}},
		{"dartino-linux-debug-x86", []string{"ia32", "x64"}},
		{"dartino-linux-debug-x64", []string{"x64"}},
		{"cross-dartino-linux-arm", []string{"xarm"}},
		{"target-dartino-linux-debug-arm", []string{"xarm"}},
	}
	for _, tt := range tests {
		b, err := ParseBotName(tt.name)
		if err != nil {
			t.Fatal(err)
		}
		got, err := b.Archs()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s: Archs mismatch (-want +got):\n%s", tt.name, diff)
		}
	}

	b, err := ParseBotName("dartino-linux-debug-arm")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Archs(); err == nil {
		t.Error("Archs for a host arm bot succeeded; want error")
	}
}

func TestOne(t *testing.T) {
	for _, tt := range []struct {
		system, mode, arch, want string
	}{
		{"linux", "release", "ia32", "ReleaseIA32"},
		{"mac", "release", "x64", "ReleaseX64Clang"},
		{"linux", "debug", "STM", "DebugSTM"},
	} {
		c, err := One(tt.system, tt.mode, tt.arch)
		if err != nil {
			t.Fatal(err)
		}
		if c.Name != tt.want {
			t.Errorf("One(%q, %q, %q) = %s; want %s", tt.system, tt.mode, tt.arch, c.Name, tt.want)
		}
	}
}
