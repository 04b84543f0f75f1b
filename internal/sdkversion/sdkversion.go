// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sdkversion reads the checkout's tools/VERSION file and computes
// the semantic SDK version that the VM, the driver and the archived
// artifacts are stamped with.
package sdkversion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dartino/buildbot/internal/command"
	"golang.org/x/mod/semver"
)

// Version is the content of tools/VERSION.
type Version struct {
	Channel         string // "be", "dev" or "stable"
	Major           int
	Minor           int
	Patch           int
	Prerelease      int
	PrereleasePatch int
}

var (
	channelRx = regexp.MustCompile(`(?m)^CHANNEL ([A-Za-z0-9]+)$`)
	fieldRx   = func(name string) *regexp.Regexp {
		return regexp.MustCompile(`(?m)^` + name + ` (\d+)$`)
	}
	numberRxs = []*regexp.Regexp{
		fieldRx("MAJOR"),
		fieldRx("MINOR"),
		fieldRx("PATCH"),
		fieldRx("PRERELEASE"),
		fieldRx("PRERELEASE_PATCH"),
	}
)

// Parse parses the content of a VERSION file.
func Parse(data []byte) (*Version, error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	m := channelRx.FindStringSubmatch(content)
	if m == nil {
		return nil, errors.New("VERSION file has no CHANNEL line")
	}
	v := &Version{Channel: m[1]}
	fields := []*int{&v.Major, &v.Minor, &v.Patch, &v.Prerelease, &v.PrereleasePatch}
	for i, rx := range numberRxs {
		m := rx.FindStringSubmatch(content)
		if m == nil {
			return nil, fmt.Errorf("VERSION file has wrong format: no match for %s", rx)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("VERSION file: %v", err)
		}
		*fields[i] = n
	}
	return v, nil
}

// File returns the path of the VERSION file in a checkout.
func File(checkout string) string {
	return filepath.Join(checkout, "tools", "VERSION")
}

// ReadFile reads the VERSION file of a checkout.
func ReadFile(checkout string) (*Version, error) {
	data, err := os.ReadFile(File(checkout))
	if err != nil {
		return nil, err
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", File(checkout), err)
	}
	return v, nil
}

// Semantic returns the semantic version string. Bleeding edge versions
// carry the git revision, dev versions the prerelease numbers, and stable
// versions nothing. The result is checked to be a valid semantic version.
func (v *Version) Semantic(gitRevision string) (string, error) {
	var suffix string
	switch v.Channel {
	case "be":
		suffix = "-edge"
		if gitRevision != "" {
			suffix += "." + gitRevision
		}
	case "dev":
		suffix = fmt.Sprintf("-dev.%d.%d", v.Prerelease, v.PrereleasePatch)
	case "stable":
	default:
		return "", fmt.Errorf("VERSION file has unknown channel %q", v.Channel)
	}
	s := fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, suffix)
	if !semver.IsValid("v" + s) {
		return "", fmt.Errorf("%q is not a semantic version", s)
	}
	return s, nil
}

// IsRelease reports whether s is a version without a prerelease part,
// as produced for the stable channel.
func IsRelease(s string) bool {
	return semver.IsValid("v"+s) && semver.Prerelease("v"+s) == ""
}

// GitRevision returns the revision of the checkout: the content of
// tools/GIT_REVISION for source tarballs, or the hash of HEAD.
func GitRevision(ctx context.Context, r command.Runner, checkout string) (string, error) {
	if data, err := os.ReadFile(filepath.Join(checkout, "tools", "GIT_REVISION")); err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	out, err := command.TrimOutput(ctx, r, command.New("git", "log", "-n", "1", "--pretty=format:%H").InDir(checkout))
	if err != nil {
		return "", err
	}
	if len(out) != 40 {
		return "", fmt.Errorf("could not parse git commit, output was %q", out)
	}
	return out, nil
}

// Semantic is a shortcut that reads the checkout's VERSION file and
// revision and returns the semantic version.
func Semantic(ctx context.Context, r command.Runner, checkout string) (string, error) {
	v, err := ReadFile(checkout)
	if err != nil {
		return "", err
	}
	var rev string
	if v.Channel == "be" {
		if rev, err = GitRevision(ctx, r, checkout); err != nil {
			return "", err
		}
	}
	return v.Semantic(rev)
}
