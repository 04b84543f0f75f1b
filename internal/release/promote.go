// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package release promotes SDKs built on the dev channel to releases.
//
// A promotion copies the release x64 SDK zips of a version from the raw
// area of the dev channel to the release area, both under the version and
// under "latest", records the version in latest/VERSION, removes objects
// under latest that the promotion did not write, and publishes the API
// documentation of the version to the gh-pages branch of the API repo.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dartino/buildbot/buildenv"
	"github.com/dartino/buildbot/internal/artifacts"
	"github.com/dartino/buildbot/internal/command"
	"github.com/dartino/buildbot/internal/fileutil"
	"github.com/dartino/buildbot/internal/publish"
	"go.chromium.org/luci/common/logging"
	"golang.org/x/mod/semver"
)

// Releases are only cut from the dev channel.
const channel = "dev"

// DefaultDocsRepo is the repository serving the API documentation.
const DefaultDocsRepo = "git@github.com:dartino/api.git"

// Promoted systems and architectures.
var (
	systems = []string{"linux", "mac"}
	archs   = []string{"x64"}
)

// A Store reads and writes cloud storage. *publish.Publisher implements it.
type Store interface {
	Copy(ctx context.Context, src, dst string, public bool) error
	Upload(ctx context.Context, local, remote string, opts publish.Options) error
	Download(ctx context.Context, remote, local string, recursive bool) error
	List(ctx context.Context, remote string) ([]string, error)
	Remove(ctx context.Context, remote string, recursive bool) error
}

// Promotion is one promotion of a version.
type Promotion struct {
	Version string // semantic version, such as 0.4.0-dev.2.0
	Project string
	Env     *buildenv.Environment
	Store   Store
	Runner  command.Runner

	// DocsRepo is the git repository the documentation is pushed to.
	// Empty skips publishing the documentation.
	DocsRepo string

	// DryRun prints what would be done instead of doing it.
	// Objects are still listed.
	DryRun bool

	// Out receives the progress report. If nil, os.Stdout is used.
	Out io.Writer
}

func (p *Promotion) printf(format string, args ...any) {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format+"\n", args...)
}

// dry reports whether the action is skipped, printing it if so.
func (p *Promotion) dry(format string, args ...any) bool {
	if p.DryRun {
		p.printf("DRY: "+format, args...)
	}
	return p.DryRun
}

func (p *Promotion) copy(ctx context.Context, src, dst string) error {
	if p.dry("copy %s to %s (public)", src, dst) {
		return nil
	}
	return p.Store.Copy(ctx, src, dst, true)
}

func (p *Promotion) remove(ctx context.Context, remote string) error {
	if p.dry("remove %s", remote) {
		return nil
	}
	return p.Store.Remove(ctx, remote, strings.HasSuffix(remote, "/"))
}

func (p *Promotion) run(ctx context.Context, dir string, args ...string) error {
	c := command.New(args...).InDir(dir)
	p.printf("Running: %s", c)
	if p.dry("%s", c) {
		return nil
	}
	return p.Runner.Run(ctx, c)
}

// Run performs the promotion.
func (p *Promotion) Run(ctx context.Context) error {
	if !semver.IsValid("v" + p.Version) {
		return fmt.Errorf("promote: %q is not a semantic version", p.Version)
	}
	if p.Env == nil || p.Store == nil {
		return errors.New("promote: environment and store are required")
	}
	raw := artifacts.NewNamer(p.Env, p.Project, channel, artifacts.Raw, false)
	rel := artifacts.NewNamer(p.Env, p.Project, channel, artifacts.Release, false)
	logging.Infof(ctx, "promoting %s %s from %s to %s", p.Project, p.Version, raw.ChannelDir(), rel.ChannelDir())

	stale, err := p.Store.List(ctx, rel.SDKDir("latest"))
	if err != nil {
		return fmt.Errorf("listing latest: %w", err)
	}
	keep := func(name string) {
		stale = slices.DeleteFunc(stale, func(s string) bool { return s == name })
	}

	for _, target := range []string{p.Version, "latest"} {
		for _, system := range systems {
			for _, arch := range archs {
				dst := rel.SDKZip(target, system, arch, "release")
				if err := p.copy(ctx, raw.SDKZip(p.Version, system, arch, "release"), dst); err != nil {
					return err
				}
				if target == "latest" {
					keep(dst)
				}
			}
		}
	}

	if err := p.writeLatestVersion(ctx, rel); err != nil {
		return err
	}
	keep(rel.VersionFile("latest"))

	for _, name := range stale {
		if name == "" {
			continue
		}
		p.printf("\n-----WARNING - Deleting %s which is no longer used -----", name)
		p.printf("-----If this file is used please fix the promotion -----\n")
		if err := p.remove(ctx, name); err != nil {
			return err
		}
	}

	if p.DocsRepo == "" {
		return nil
	}
	return p.publishDocs(ctx, raw)
}

func (p *Promotion) writeLatestVersion(ctx context.Context, rel *artifacts.Namer) error {
	dst := rel.VersionFile("latest")
	if p.dry("write %s to %s (public)", p.Version, dst) {
		return nil
	}
	dir, err := os.MkdirTemp("", "version-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	file := filepath.Join(dir, "version")
	if err := os.WriteFile(file, []byte(p.Version), 0644); err != nil {
		return err
	}
	return p.Store.Upload(ctx, file, dst, publish.Options{Public: true})
}

// publishDocs replaces the content of the gh-pages branch of the docs
// repository with the documentation archived for the version.
func (p *Promotion) publishDocs(ctx context.Context, raw *artifacts.Namer) error {
	tmp, err := os.MkdirTemp("", "docs-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	docs := raw.Docs(p.Version)
	local := filepath.Join(tmp, "docs")
	p.printf("Downloading docs from %s", docs)
	if !p.dry("download %s to %s", docs, local) {
		if err := p.Store.Download(ctx, docs, local, true); err != nil {
			return err
		}
	}

	p.printf("Cloning the API repo")
	if err := p.run(ctx, tmp, "git", "clone", p.DocsRepo, "api"); err != nil {
		return err
	}
	api := filepath.Join(tmp, "api")
	p.printf("Checking out gh-pages which serves our documentation")
	if err := p.run(ctx, api, "git", "checkout", "gh-pages"); err != nil {
		return err
	}
	p.printf("Cleaning out old version of docs locally")
	if err := p.run(ctx, api, "git", "rm", "-r", "-q", "*"); err != nil {
		return err
	}
	p.printf("Copying in new docs")
	if !p.dry("copy %s/* to %s", local, api) {
		if err := copyContents(local, api); err != nil {
			return err
		}
	}
	p.printf("Git adding all new docs")
	if err := p.run(ctx, api, "git", "add", "--all"); err != nil {
		return err
	}
	p.printf("Committing docs locally")
	if err := p.run(ctx, api, "git", "commit", "-m", "Publish API docs for version "+p.Version); err != nil {
		return err
	}
	p.printf("Pushing docs to github")
	return p.run(ctx, api, "git", "push")
}

// copyContents copies the entries of src into the existing directory dst.
func copyContents(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from, to := filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())
		if e.IsDir() {
			err = fileutil.CopyTree(from, to)
		} else {
			err = fileutil.CopyFile(from, to)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
