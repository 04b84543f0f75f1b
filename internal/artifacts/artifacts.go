// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package artifacts names the objects bots archive in cloud storage.
// All functions are pure; see package publish for moving the bytes.
package artifacts

import (
	"fmt"
	"path"
	"strings"

	"github.com/dartino/buildbot/buildenv"
)

// ReleaseType is the second level of the channel layout.
type ReleaseType string

const (
	Raw     ReleaseType = "raw"     // written by bots
	Signed  ReleaseType = "signed"  // signed copies of raw artifacts
	Release ReleaseType = "release" // promoted artifacts
)

// systemRenames maps bot systems to the names used in file names.
var systemRenames = map[string]string{
	"linux":   "linux",
	"mac":     "macos",
	"macos":   "macos",
	"win":     "windows",
	"win32":   "windows",
	"windows": "windows",
}

// A Namer computes object URLs for one channel and release type of a
// project. The zero Namer is not usable; use NewNamer.
type Namer struct {
	Project     string // "dartino" or "fletch"
	Channel     string
	ReleaseType ReleaseType

	bucket string // gs://... or file://..., no trailing slash
}

// NewNamer returns a Namer writing to the project's archive bucket in env.
// Temporary namers write to the temporary bucket, which holds artifacts
// that are only interesting for a while, such as bleeding edge images.
func NewNamer(env *buildenv.Environment, project, channel string, rt ReleaseType, temporary bool) *Namer {
	kind := buildenv.ArchiveBucket
	if temporary {
		kind = buildenv.TemporaryBucket
	}
	return &Namer{
		Project:     project,
		Channel:     channel,
		ReleaseType: rt,
		bucket:      env.BucketURL(kind, project),
	}
}

// Bucket returns the bucket URL.
func (n *Namer) Bucket() string { return n.bucket }

// ChannelDir returns <bucket>/channels/<channel>/<release type>.
func (n *Namer) ChannelDir() string {
	return n.bucket + "/" + path.Join("channels", n.Channel, string(n.ReleaseType))
}

// SDKDir returns the directory holding everything archived for revision.
func (n *Namer) SDKDir(revision string) string {
	return n.ChannelDir() + "/" + path.Join(revision, "sdk")
}

func (n *Namer) file(revision, name string) string {
	return n.SDKDir(revision) + "/" + name
}

// SDKZipName returns the file name of a bundled SDK.
func (n *Namer) SDKZipName(system, arch, mode string) string {
	return fmt.Sprintf("%s-sdk-%s-%s-%s.zip", n.Project, SystemName(system), arch, mode)
}

// SDKZip returns the URL of a bundled SDK.
func (n *Namer) SDKZip(revision, system, arch, mode string) string {
	return n.file(revision, n.SDKZipName(system, arch, mode))
}

// CrossBinariesZipName returns the file name of a cross compiled build.
func (n *Namer) CrossBinariesZipName(mode, arch string) string {
	return fmt.Sprintf("%s-binaries-%s.zip", arch, mode)
}

// CrossBinariesZip returns the URL of a cross compiled build.
func (n *Namer) CrossBinariesZip(revision, mode, arch string) string {
	return n.file(revision, n.CrossBinariesZipName(mode, arch))
}

// ArmAgentName returns the file name of the ARM agent Debian package.
func (n *Namer) ArmAgentName(version string) string {
	return fmt.Sprintf("%s-agent_%s-1_armhf.deb", n.Project, version)
}

// ArmAgent returns the URL of the ARM agent Debian package.
func (n *Namer) ArmAgent(version string) string {
	return n.file(version, n.ArmAgentName(version))
}

// SourceTarName returns the file name of the source tarball.
func (n *Namer) SourceTarName(version string) string {
	return fmt.Sprintf("%s-%s.tar.gz", n.Project, version)
}

// RaspbianName returns the file name of the raspbian disk image.
func (n *Namer) RaspbianName() string { return n.Project + "_raspbian.img" }

// RaspbianZipName returns the file name of the zipped raspbian image.
func (n *Namer) RaspbianZipName() string { return n.RaspbianName() + ".zip" }

// RaspbianZip returns the URL of the zipped raspbian image.
func (n *Namer) RaspbianZip(version string) string {
	return n.file(version, n.RaspbianZipName())
}

// VersionFile returns the URL of the VERSION object of revision.
func (n *Namer) VersionFile(revision string) string {
	return n.file(revision, "VERSION")
}

// GCCEmbeddedZipName returns the file name of the bundled ARM embedded toolchain.
func (n *Namer) GCCEmbeddedZipName(system string) string {
	return fmt.Sprintf("gcc-arm-embedded-%s.zip", system)
}

// GCCEmbeddedZip returns the URL of the bundled ARM embedded toolchain.
func (n *Namer) GCCEmbeddedZip(version, system string) string {
	return n.file(version, n.GCCEmbeddedZipName(system))
}

// OpenOCDZipName returns the file name of the bundled OpenOCD.
func (n *Namer) OpenOCDZipName(system string) string {
	return fmt.Sprintf("openocd-%s.zip", system)
}

// OpenOCDZip returns the URL of the bundled OpenOCD.
func (n *Namer) OpenOCDZip(version, system string) string {
	return n.file(version, n.OpenOCDZipName(system))
}

// Docs returns the URL of the API documentation tree.
func (n *Namer) Docs(version string) string {
	return n.file(version, "docs")
}

// SystemName returns the name of system used in artifact file names.
func SystemName(system string) string {
	if s, ok := systemRenames[system]; ok {
		return s
	}
	return system
}

// TarballName returns the name of the tarball a cross bot hands to
// target bots.
func TarballName(project, arch, revision string) string {
	return fmt.Sprintf("%s_cross_build_%s_%s.tar.bz2", project, arch, revision)
}

// IsBleedingEdge reports whether channel is the bleeding edge channel.
func IsBleedingEdge(channel string) bool {
	return channel == "" || strings.EqualFold(channel, "be")
}
