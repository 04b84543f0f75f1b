// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sdkbundle assembles the SDK directory that SDK bots zip and
// archive. The bundle is built from a finished checkout: the host build
// directory, its 32-bit sibling, out/ReleaseXARM and out/ReleaseSTM.
//
// Layout of <build_dir>/<project>-sdk:
//
//	bin/                  VM, flashify, driver and shared libraries
//	internal/             dart VM, natives.json, dart-sdk, libraries,
//	                      the compiler's packages and the settings template
//	pkg/                  packages available to SDK users
//	platforms/            raspberry-pi2 and stm32f746g-discovery support
//	samples/
//	tools/                optional embedded toolchain and OpenOCD
package sdkbundle

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dartino/buildbot/dashboard"
	"github.com/dartino/buildbot/internal/command"
	"github.com/dartino/buildbot/internal/envutil"
	"github.com/dartino/buildbot/internal/fileutil"
	"go.chromium.org/luci/common/logging"
)

// Packages, relative to pkg/ in the checkout, that SDK users may import.
// The project's own package is added by sdkPackages.
var basePackages = []string{"ffi", "file", "gpio", "http", "i2c", "os",
	"raspberry_pi", "stm32", "socket", "mqtt", "mbedtls"}

// ThirdPartyPackages are copied from third_party/ into pkg/.
var ThirdPartyPackages = []string{"charcode"}

// Samples are the sample directories copied from samples/.
var Samples = []string{"general", "raspberry-pi2", "stm32f746g-discovery"}

// Tools are the third party tools bundled with IncludeTools.
var Tools = []string{"gcc-arm-embedded", "openocd"}

// Options describe one bundle.
type Options struct {
	Project  *dashboard.Project
	Checkout string // absolute
	BuildDir string // relative to Checkout, such as out/ReleaseX64

	// System is the host system the bundle is for, "linux" or "mac".
	System string

	// DebPackage, if set, is the ARM agent package shipped with the
	// raspberry-pi2 platform. Relative to Checkout.
	DebPackage string

	// Docs runs the API documentation generator into out/docs first.
	Docs bool

	// DependenciesBucket holds the documentation generator's inputs.
	// Empty means "<project>-dependencies".
	DependenciesBucket string

	// IncludeTools adds the embedded toolchain and OpenOCD.
	IncludeTools bool

	Runner command.Runner
	Env    envutil.Env // environment of the tools run; nil inherits
}

// sdkPackages returns the packages listed in the SDK's package file,
// in order.
func sdkPackages(p *dashboard.Project) []string {
	pkgs := append([]string(nil), basePackages[:2]...)
	pkgs = append(pkgs, p.Name)
	return append(pkgs, basePackages[2:]...)
}

// SDKDir returns the directory Bundle creates.
func SDKDir(o *Options) string {
	return filepath.Join(o.Checkout, o.BuildDir, o.Project.SDKDir())
}

// BuildDir32 returns the 32-bit sibling of a 64-bit build directory.
// dartino-flashify is only built for 32 bits.
func BuildDir32(buildDir string) string {
	return strings.ReplaceAll(buildDir, "X64", "IA32")
}

type bundler struct {
	*Options
	dir string // temporary bundle root
}

func (b *bundler) src(elem ...string) string {
	return filepath.Join(append([]string{b.Checkout}, elem...)...)
}

func (b *bundler) dst(elem ...string) string {
	return filepath.Join(append([]string{b.dir}, elem...)...)
}

func (b *bundler) copyTree(ctx context.Context, src, dst string, ignore ...string) error {
	logging.Debugf(ctx, "copying %s to %s", src, dst)
	return fileutil.CopyTree(src, dst, ignore...)
}

// Bundle builds the SDK in a temporary directory and then replaces
// SDKDir(o) with it. It returns the SDK directory.
func Bundle(ctx context.Context, o *Options) (string, error) {
	if o.Project == nil || o.Checkout == "" || o.BuildDir == "" {
		return "", errors.New("sdkbundle: project, checkout and build directory are required")
	}
	sdkDir := SDKDir(o)
	logging.Infof(ctx, "creating sdk bundle for %s in %s", o.BuildDir, sdkDir)
	tmp, err := os.MkdirTemp("", "sdk-bundle-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	if o.Docs {
		if err := CreateDocumentation(ctx, o); err != nil {
			return "", fmt.Errorf("creating documentation: %w", err)
		}
	}
	b := &bundler{Options: o, dir: filepath.Join(tmp, o.Project.SDKDir())}
	steps := []struct {
		name string
		f    func(context.Context) error
	}{
		{"binaries", b.copyBinaries},
		{"dart sdk", b.copyDartSDK},
		{"internal packages", b.copyInternalPackages},
		{"libraries", b.copyLibs},
		{"packages", b.copyPackages},
		{"platforms", b.copyPlatforms},
		{"arm binaries", b.copyARM},
		{"agent snapshot", b.createAgentSnapshot},
		{"stm libraries", b.copySTM},
		{"samples", b.copySamples},
		{"additional files", b.copyAdditionalFiles},
		{"debian package", b.copyDebPackage},
		{"tools", b.copyTools},
	}
	for _, s := range steps {
		if err := s.f(ctx); err != nil {
			return "", fmt.Errorf("sdk bundle %s: %w", s.name, err)
		}
	}

	if err := os.RemoveAll(sdkDir); err != nil {
		return "", fmt.Errorf("could not delete %s: %w", sdkDir, err)
	}
	if err := b.copyTree(ctx, b.dir, sdkDir); err != nil {
		return "", err
	}
	logging.Infof(ctx, "created sdk bundle for %s in %s", o.BuildDir, sdkDir)
	return sdkDir, nil
}

func (b *bundler) copyBinaries(ctx context.Context) error {
	p := b.Project
	build := b.src(b.BuildDir)
	copies := [][2]string{
		{filepath.Join(build, p.VM()), b.dst("bin", p.VM())},
		{filepath.Join(b.src(BuildDir32(b.BuildDir)), p.Name+"-flashify"), b.dst("bin", p.Name+"-flashify")},
		// The driver built for the SDK finds its files relative to bin/.
		{filepath.Join(build, p.Name+"_for_sdk"), b.dst("bin", p.Driver())},
		// The dart VM stays off the user's PATH.
		{filepath.Join(build, "dart"), b.dst("internal", "dart")},
		{filepath.Join(build, "natives.json"), b.dst("internal", "natives.json")},
		sharedLibrary(b.System, build, b.dst("bin"), "mbedtls"),
	}
	for _, c := range copies {
		if err := fileutil.CopyFile(c[0], c[1]); err != nil {
			return err
		}
	}
	return nil
}

// sharedLibrary returns the source and destination of a shared library.
// Linux builds have lib/libNAME.so, mac builds libNAME.dylib.
func sharedLibrary(system, build, bin, name string) [2]string {
	if system == "linux" {
		file := "lib" + name + ".so"
		return [2]string{filepath.Join(build, "lib", file), filepath.Join(bin, "lib", file)}
	}
	file := "lib" + name + ".dylib"
	return [2]string{filepath.Join(build, file), filepath.Join(bin, file)}
}

func (b *bundler) copyDartSDK(ctx context.Context) error {
	system := b.System
	if system == "macos" {
		system = "mac"
	}
	return b.copyTree(ctx, b.src("third_party", "dart-sdk", system, "dart-sdk"), b.dst("internal", "dart-sdk"))
}

// copyInternalPackages copies the compiler and flash tool packages and
// every package their .packages files refer to. The .packages files are
// rewritten to point at the copies.
func (b *bundler) copyInternalPackages(ctx context.Context) error {
	internalPkg := b.dst("internal", "pkg")
	copied := map[string]bool{}
	for _, tool := range []string{b.Project.CompilerPackage, "flash_sd_card"} {
		toolDir := b.src("pkg", tool)
		if err := b.copyTree(ctx, toolDir, filepath.Join(internalPkg, tool)); err != nil {
			return err
		}
		lines, err := readLines(filepath.Join(toolDir, ".packages"))
		if err != nil {
			return err
		}
		var out []string
		for _, l := range lines {
			if strings.HasPrefix(l, "#") || strings.HasPrefix(l, tool+":lib") {
				out = append(out, l)
				continue
			}
			name, rel, ok := strings.Cut(l, ":")
			if !ok {
				return fmt.Errorf("%s/.packages: malformed line %q", toolDir, l)
			}
			if !copied[name] {
				src := filepath.Join(toolDir, filepath.FromSlash(rel))
				if filepath.Base(src) != "lib" {
					return fmt.Errorf("%s/.packages: %s does not point to a lib directory", toolDir, name)
				}
				if err := b.copyTree(ctx, src, filepath.Join(internalPkg, name, "lib")); err != nil {
					return err
				}
				copied[name] = true
			}
			out = append(out, fmt.Sprintf("%s:../%s/lib", name, name))
		}
		if err := writeLines(filepath.Join(internalPkg, tool, ".packages"), out); err != nil {
			return err
		}
	}
	return nil
}

// copyLibs copies the project's patched libraries and the dart SDK
// libraries, and rewrites the platform descriptors to the SDK layout.
func (b *bundler) copyLibs(ctx context.Context) error {
	libDir := b.Project.Name + "_lib"
	if err := b.copyTree(ctx, b.src("lib"), b.dst("internal", libDir)); err != nil {
		return err
	}
	if err := b.copyTree(ctx, b.src("third_party", "dart", "sdk", "lib"), b.dst("internal", "dart_lib")); err != nil {
		return err
	}
	for _, kind := range []string{"mobile", "embedded"} {
		name := fmt.Sprintf("%s_%s.platform", b.Project.Name, kind)
		lines, err := readLines(b.src("lib", name))
		if err != nil {
			return err
		}
		out := RewritePlatform(lines, "../third_party/dart/sdk/lib", "../dart_lib")
		if err := writeLines(b.dst("internal", libDir, name), out); err != nil {
			return err
		}
	}
	return nil
}

// RewritePlatform rewrites the library paths of a platform descriptor
// that start with repoDir to start with sdkDir. Comment and section lines
// are kept as they are. Library lines are "name: uri"; the uri may
// contain colons.
func RewritePlatform(lines []string, repoDir, sdkDir string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.HasPrefix(l, "#") || strings.HasPrefix(l, "[") {
			out = append(out, l)
			continue
		}
		name, path, ok := strings.Cut(l, ":")
		if !ok {
			out = append(out, l)
			continue
		}
		path = strings.TrimSpace(path)
		if strings.HasPrefix(path, repoDir) {
			path = strings.Replace(path, repoDir, sdkDir, 1)
		}
		out = append(out, name+": "+path)
	}
	return out
}

// copyPackages copies the user-visible packages and the settings
// template, and writes the SDK's package file.
func (b *bundler) copyPackages(ctx context.Context) error {
	p := b.Project
	settings := fmt.Sprintf("%s_sdk_%s_settings", p.Name, p.Name)
	if err := fileutil.CopyFile(b.src("pkg", settings), b.dst("internal", "."+p.Name+"-settings")); err != nil {
		return err
	}
	var lines []string
	for _, pkg := range sdkPackages(p) {
		if err := b.copyTree(ctx, b.src("pkg", pkg), b.dst("pkg", pkg)); err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s:../pkg/%s/lib", pkg, pkg))
	}
	for _, pkg := range ThirdPartyPackages {
		if err := b.copyTree(ctx, b.src("third_party", pkg), b.dst("pkg", pkg), ".git"); err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s:../pkg/%s/lib", pkg, pkg))
	}
	if err := writeLines(b.dst("internal", p.SDKDir()+".packages"), lines); err != nil {
		return err
	}

	embedder := b.dst("pkg", p.Name, "lib", "_embedder.yaml")
	data, err := os.ReadFile(embedder)
	if err != nil {
		return err
	}
	s := strings.ReplaceAll(string(data), "../../../lib/", "../../../internal/"+p.Name+"_lib/")
	s = strings.ReplaceAll(s, "../../../third_party/dart/sdk/lib/", "../../../internal/dart_lib/")
	return os.WriteFile(embedder, []byte(s), 0644)
}

func (b *bundler) copyPlatforms(ctx context.Context) error {
	for _, platform := range []string{"raspberry-pi2", "stm32f746g-discovery"} {
		if err := b.copyTree(ctx, b.src("platforms", platform), b.dst("platforms", platform)); err != nil {
			return err
		}
	}
	return nil
}

func (b *bundler) copyARM(ctx context.Context) error {
	for _, f := range []string{b.Project.VM(), "natives.json"} {
		if err := fileutil.CopyFile(b.src("out", "ReleaseXARM", f), b.dst("platforms", "raspberry-pi2", "bin", f)); err != nil {
			return err
		}
	}
	return nil
}

// createAgentSnapshot compiles the raspberry-pi2 agent with the dart VM
// of the build.
func (b *bundler) createAgentSnapshot(ctx context.Context) error {
	p := b.Project
	dataDir := b.dst("platforms", "raspberry-pi2", "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	snapshot := filepath.Join(dataDir, p.Name+"-agent.snapshot")
	c := command.New(
		filepath.Join(b.BuildDir, "dart"),
		"-c",
		"--packages=.packages",
		"-Dsnapshot="+snapshot,
		"-Dpackages=.packages",
		fmt.Sprintf("-Dtest.%s_settings_file_name=.%s-settings", p.Name, p.Name),
		fmt.Sprintf("tests/%s/run.dart", p.CompilerPackage),
		fmt.Sprintf("pkg/%s_agent/bin/agent.dart", p.Name),
	).InDir(b.Checkout).WithEnv(b.Env)
	return b.Runner.Run(ctx, c)
}

func (b *bundler) copySTM(ctx context.Context) error {
	p := b.Project
	disco := b.dst("platforms", "stm32f746g-discovery")
	for _, lib := range []string{"lib" + p.Name + ".a", "libfreertos_" + p.Name + ".a", "libstm32f746g-discovery.a"} {
		if err := fileutil.CopyFile(b.src("out", "ReleaseSTM", lib), filepath.Join(disco, "lib", lib)); err != nil {
			return err
		}
	}
	ld := b.src("platforms", "stm", "disco_"+p.Name, "src", "stm32f746g-discovery", "STM32F746NGHx_FLASH.ld")
	return fileutil.CopyFile(ld, filepath.Join(disco, "config", "stm32f746g-discovery.ld"))
}

func (b *bundler) copySamples(ctx context.Context) error {
	for _, s := range Samples {
		if err := b.copyTree(ctx, b.src("samples", s), b.dst("samples", s)); err != nil {
			return err
		}
	}
	yaml := b.Project.Name + ".yaml"
	return fileutil.CopyFile(b.src("samples", yaml), b.dst("samples", yaml))
}

func (b *bundler) copyAdditionalFiles(ctx context.Context) error {
	for _, f := range []string{"README.md", "LICENSE.md"} {
		if err := fileutil.CopyFile(b.src(f), b.dst(f)); err != nil {
			return err
		}
	}
	return nil
}

func (b *bundler) copyDebPackage(ctx context.Context) error {
	if b.DebPackage == "" {
		return nil
	}
	deb := b.DebPackage
	if !filepath.IsAbs(deb) {
		deb = b.src(deb)
	}
	return fileutil.CopyFile(deb, b.dst("platforms", "raspberry-pi2", filepath.Base(deb)))
}

// copyTools bundles the linux builds of the embedded tools.
func (b *bundler) copyTools(ctx context.Context) error {
	if !b.IncludeTools {
		return nil
	}
	for _, tool := range Tools {
		if err := b.copyTree(ctx, b.src("third_party", tool, "linux", tool), b.dst("tools", tool)); err != nil {
			return err
		}
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	return lines, s.Err()
}

func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}
