// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bot

import (
	"context"
	"fmt"
	"os"
	"path"
	"slices"

	"github.com/dartino/buildbot/buildenv"
	"github.com/dartino/buildbot/dashboard"
	"github.com/dartino/buildbot/internal/command"
	"github.com/dartino/buildbot/internal/fileutil"
	"github.com/dartino/buildbot/internal/publish"
	"github.com/dartino/buildbot/internal/sdkbundle"
)

// VersionMismatchError is returned when a bundled binary does not report
// the version of the checkout.
type VersionMismatchError struct {
	Binary string
	Want   string // from tools/VERSION
	Got    string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("Version mismatch, VERSION file has %s, %s has %s", e.Want, e.Binary, e.Got)
}

// Cross targets bundled with every SDK. Linux bots build them, mac bots
// download them.
const crossMode = "release"

var crossArchs = []string{"xarm", "stm"}

// stepsSDK builds, bundles, archives and tests the SDK.
func (b *Builder) stepsSDK(ctx context.Context) error {
	system := b.Bot.System
	confs, err := Configs(b.Bot, b.hostSystem())
	if err != nil {
		return err
	}

	if err := b.clobber(ctx); err != nil {
		return err
	}
	if err := b.stepGyp(ctx); err != nil {
		return err
	}

	switch system {
	case "linux":
		if err := b.createDeb(ctx); err != nil {
			return err
		}
		if err := b.archiveDeb(ctx); err != nil {
			return err
		}
		if _, err := b.hostBuilds(ctx); err != nil {
			return err
		}
		for _, arch := range crossArchs {
			if err := b.crossCompile(ctx, "linux", []string{crossMode}, arch); err != nil {
				return err
			}
			if err := b.archiveCrossBundle(ctx, crossMode, arch); err != nil {
				return err
			}
		}
		if err := b.raspbian(ctx); err != nil {
			return err
		}
	case "mac":
		// flashify is only built for 32 bits.
		hasIA32 := slices.ContainsFunc(confs, func(c *dashboard.BuildConfig) bool { return c.Arch == "ia32" })
		if !hasIA32 {
			ia32, err := dashboard.One(system, "release", "ia32")
			if err != nil {
				return err
			}
			if err := b.buildConfig(ctx, ia32); err != nil {
				return err
			}
		}
		for _, arch := range crossArchs {
			if err := b.getCrossBinaries(ctx, crossMode, arch); err != nil {
				return err
			}
		}
		if err := b.getArmDeb(ctx); err != nil {
			return err
		}
		// Documentation is only generated on linux.
		if err := b.getDocs(ctx); err != nil {
			return err
		}
	}

	for _, c := range confs {
		if err := b.buildConfig(ctx, c); err != nil {
			return err
		}
		if err := b.bundleSDK(ctx, c); err != nil {
			return err
		}
		if err := b.archiveSDK(ctx, c); err != nil {
			return err
		}
	}
	for _, c := range confs {
		if err := b.testSDK(ctx, c); err != nil {
			return err
		}
		if err := b.sanityCheck(ctx, c); err != nil {
			return err
		}
	}

	n := b.namer(b.bleedingEdge())
	version, err := b.sdkVersion(ctx)
	if err != nil {
		return err
	}
	err = b.archiveThirdPartyTool(ctx, "Archive cross compiler", "gcc-arm-embedded",
		n.GCCEmbeddedZipName(system), n.GCCEmbeddedZip(version, system))
	if err != nil {
		return err
	}
	return b.archiveThirdPartyTool(ctx, "Archive OpenOCD", "openocd",
		n.OpenOCDZipName(system), n.OpenOCDZip(version, system))
}

// upload uploads a checkout file publicly and links to it.
func (b *Builder) upload(ctx context.Context, local, remote string) error {
	if err := b.Store.Upload(ctx, b.abs(local), remote, publish.Options{Public: true}); err != nil {
		return err
	}
	b.Annotator.Link("download", b.Env.DownloadLink(remote))
	return nil
}

func (b *Builder) depsBucket() string {
	return b.Env.Bucket(buildenv.DependenciesBucket, b.Bot.Project.Name)
}

// agentDeb returns the checkout path of the ARM agent package.
func (b *Builder) agentDeb(ctx context.Context) (string, error) {
	version, err := b.sdkVersion(ctx)
	if err != nil {
		return "", err
	}
	return path.Join("out", b.namer(false).ArmAgentName(version)), nil
}

func (b *Builder) createDeb(ctx context.Context) error {
	return b.Annotator.Run(ctx, "Create arm agent deb", func(ctx context.Context) error {
		if err := b.run(ctx, "python", "tools/create_tarball.py"); err != nil {
			return err
		}
		return b.run(ctx, "python", "tools/create_debian_packages.py")
	})
}

func (b *Builder) archiveDeb(ctx context.Context) error {
	return b.Annotator.Run(ctx, "Archive arm agent deb", func(ctx context.Context) error {
		version, err := b.sdkVersion(ctx)
		if err != nil {
			return err
		}
		deb, err := b.agentDeb(ctx)
		if err != nil {
			return err
		}
		return b.upload(ctx, deb, b.namer(false).ArmAgent(version))
	})
}

// crossCompile builds every compiler variant of arch in modes.
func (b *Builder) crossCompile(ctx context.Context, system string, modes []string, arch string) error {
	for _, compiler := range dashboard.CompilerVariants(system, arch, false) {
		for _, mode := range modes {
			name, err := dashboard.ConfigName(mode, arch, compiler, false)
			if err != nil {
				return err
			}
			if err := b.stepBuild(ctx, name, dashboard.BuildDir(name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) archiveCrossBundle(ctx context.Context, mode, arch string) error {
	return b.Annotator.Run(ctx, fmt.Sprintf("Archive %s binaries %s", arch, mode), func(ctx context.Context) error {
		name, err := dashboard.ConfigName(mode, arch, dashboard.CompilerDefault, false)
		if err != nil {
			return err
		}
		version, err := b.sdkVersion(ctx)
		if err != nil {
			return err
		}
		n := b.namer(false)
		zip := n.CrossBinariesZipName(mode, arch)
		if err := b.createZip(ctx, dashboard.BuildDir(name), zip); err != nil {
			return err
		}
		return b.upload(ctx, path.Join("out", zip), n.CrossBinariesZip(version, mode, arch))
	})
}

// raspbian prepares the raspbian disk image with the agent and the
// sources installed and archives it. Bleeding edge images are temporary.
func (b *Builder) raspbian(ctx context.Context) error {
	err := b.Annotator.Run(ctx, "Ensure raspbian base image and kernel", func(ctx context.Context) error {
		return b.run(ctx, "download_from_google_storage", "-b", b.depsBucket(), "-u", "-d", "third_party/raspbian/")
	})
	if err != nil {
		return err
	}
	return b.Annotator.Run(ctx, "Modifying raspbian image", func(ctx context.Context) error {
		n := b.namer(b.bleedingEdge())
		version, err := b.sdkVersion(ctx)
		if err != nil {
			return err
		}
		src := "third_party/raspbian/image/jessie.img"
		dst := path.Join("out", n.RaspbianName())
		b.Annotator.Printf("Copying %s to %s", src, dst)
		if err := fileutil.CopyFile(b.abs(src), b.abs(dst)); err != nil {
			return err
		}
		err = b.run(ctx, "tools/raspberry-pi2/raspbian_prepare.py",
			"--image="+dst,
			"--agent="+path.Join("out", n.ArmAgentName(version)),
			"--src="+path.Join("out", n.SourceTarName(version)))
		if err != nil {
			return err
		}
		if err := b.createZip(ctx, dst, n.RaspbianZipName()); err != nil {
			return err
		}
		return b.upload(ctx, path.Join("out", n.RaspbianZipName()), n.RaspbianZip(version))
	})
}

func (b *Builder) getCrossBinaries(ctx context.Context, mode, arch string) error {
	return b.Annotator.Run(ctx, fmt.Sprintf("Get %s binaries %s", arch, mode), func(ctx context.Context) error {
		name, err := dashboard.ConfigName(mode, arch, dashboard.CompilerDefault, false)
		if err != nil {
			return err
		}
		version, err := b.sdkVersion(ctx)
		if err != nil {
			return err
		}
		n := b.namer(false)
		zip := path.Join("out", n.CrossBinariesZipName(mode, arch))
		if err := fileutil.RemoveFile(b.abs(zip)); err != nil {
			return err
		}
		if err := os.RemoveAll(b.abs(dashboard.BuildDir(name))); err != nil {
			return err
		}
		if err := b.Store.Download(ctx, n.CrossBinariesZip(version, mode, arch), b.abs(zip), false); err != nil {
			return err
		}
		return b.unzip(ctx, zip)
	})
}

func (b *Builder) getArmDeb(ctx context.Context) error {
	return b.Annotator.Run(ctx, "Get agent deb", func(ctx context.Context) error {
		version, err := b.sdkVersion(ctx)
		if err != nil {
			return err
		}
		deb, err := b.agentDeb(ctx)
		if err != nil {
			return err
		}
		if err := fileutil.RemoveFile(b.abs(deb)); err != nil {
			return err
		}
		return b.Store.Download(ctx, b.namer(false).ArmAgent(version), b.abs(deb), false)
	})
}

func (b *Builder) getDocs(ctx context.Context) error {
	return b.Annotator.Run(ctx, "Get docs", func(ctx context.Context) error {
		version, err := b.sdkVersion(ctx)
		if err != nil {
			return err
		}
		docs := b.abs(sdkbundle.DocsDir)
		if err := os.RemoveAll(docs); err != nil {
			return err
		}
		return b.Store.Download(ctx, b.namer(false).Docs(version), docs, true)
	})
}

func (b *Builder) sdkDir(c *dashboard.BuildConfig) string {
	return path.Join(c.BuildDir, b.Bot.Project.SDKDir())
}

func (b *Builder) sdkZip(c *dashboard.BuildConfig) string {
	return b.sdkDir(c) + ".zip"
}

// bundleSDK bundles the SDK of c and adds the API documentation, built
// by the bundler on linux and downloaded on mac.
func (b *Builder) bundleSDK(ctx context.Context, c *dashboard.BuildConfig) error {
	return b.Annotator.Run(ctx, "Bundle sdk "+c.BuildDir, func(ctx context.Context) error {
		deb, err := b.agentDeb(ctx)
		if err != nil {
			return err
		}
		dir, err := b.bundle(ctx, &sdkbundle.Options{
			Project:            b.Bot.Project,
			Checkout:           b.Checkout,
			BuildDir:           c.BuildDir,
			System:             b.Bot.System,
			DebPackage:         deb,
			Docs:               b.Bot.System == "linux",
			DependenciesBucket: b.depsBucket(),
			Runner:             b.Runner,
			Env:                b.childEnv,
		})
		if err != nil {
			return err
		}
		b.Annotator.Printf("Created %s", dir)
		return fileutil.CopyTree(b.abs(sdkbundle.DocsDir), b.abs(path.Join(b.sdkDir(c), "docs")))
	})
}

func (b *Builder) archiveSDK(ctx context.Context, c *dashboard.BuildConfig) error {
	return b.Annotator.Run(ctx, "Archive bundle "+c.BuildDir, func(ctx context.Context) error {
		if err := b.createZip(ctx, b.sdkDir(c), path.Base(b.sdkZip(c))); err != nil {
			return err
		}
		version, err := b.sdkVersion(ctx)
		if err != nil {
			return err
		}
		n := b.namer(false)
		if err := b.upload(ctx, b.sdkZip(c), n.SDKZip(version, b.Bot.System, c.Arch, c.Mode)); err != nil {
			return err
		}
		docs := n.Docs(version)
		err = b.Store.Upload(ctx, b.abs(sdkbundle.DocsDir), docs, publish.Options{Public: true, Recursive: true})
		if err != nil {
			return err
		}
		b.Annotator.Link("docs", b.Env.DownloadLink(docs)+"/index.html")
		return nil
	})
}

// testSDK unpacks the archived SDK of c and runs the tests against it.
func (b *Builder) testSDK(ctx context.Context, c *dashboard.BuildConfig) error {
	if err := os.RemoveAll(b.abs(b.sdkDir(c))); err != nil {
		return err
	}
	if err := b.unzip(ctx, b.sdkZip(c)); err != nil {
		return err
	}
	if err := b.stepDisableAnalytics(ctx, path.Join(b.sdkDir(c), "bin")); err != nil {
		return err
	}
	return b.stepTest(ctx, testRun{conf: c, archiveCores: true})
}

// sanityCheck checks that the bundled driver and VM report the version
// of the checkout.
func (b *Builder) sanityCheck(ctx context.Context, c *dashboard.BuildConfig) error {
	bin := path.Join(b.sdkDir(c), "bin")
	if err := b.stepDisableAnalytics(ctx, bin); err != nil {
		return err
	}
	return b.Annotator.Run(ctx, "Sanity check "+c.BuildDir, func(ctx context.Context) error {
		want, err := b.sdkVersion(ctx)
		if err != nil {
			return err
		}
		p := b.Bot.Project
		driver := path.Join(bin, p.Driver())
		got, err := b.binaryVersion(ctx, driver)
		if err != nil {
			return err
		}
		if err := b.run(ctx, driver, "quit"); err != nil {
			return err
		}
		if got != want {
			return &VersionMismatchError{Binary: p.Driver(), Want: want, Got: got}
		}
		got, err = b.binaryVersion(ctx, path.Join(bin, p.VM()))
		if err != nil {
			return err
		}
		if got != want {
			return &VersionMismatchError{Binary: p.Driver() + " vm", Want: want, Got: got}
		}
		b.Annotator.Printf("%s and %s report version %s", p.Driver(), p.VM(), want)
		return nil
	})
}

func (b *Builder) binaryVersion(ctx context.Context, bin string) (string, error) {
	return command.TrimOutput(ctx, b.Runner, b.cmd(bin, "--version"))
}

// archiveThirdPartyTool zips the host's copy of a checked in tool and
// uploads it to remote.
func (b *Builder) archiveThirdPartyTool(ctx context.Context, step, tool, zipName, remote string) error {
	return b.Annotator.Run(ctx, step, func(ctx context.Context) error {
		zip := path.Join("out", zipName)
		if err := fileutil.RemoveFile(b.abs(zip)); err != nil {
			return err
		}
		dir := path.Join("out", tool)
		if err := os.RemoveAll(b.abs(dir)); err != nil {
			return err
		}
		src := path.Join("third_party", tool, b.Bot.System, tool)
		if err := fileutil.CopyTree(b.abs(src), b.abs(dir)); err != nil {
			return err
		}
		if err := b.createZip(ctx, dir, zipName); err != nil {
			return err
		}
		return b.upload(ctx, zip, remote)
	})
}
