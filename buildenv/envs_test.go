// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buildenv

import (
	"strings"
	"testing"
)

func TestBucket(t *testing.T) {
	tests := []struct {
		env  *Environment
		kind BucketKind
		want string
	}{
		{Production, ArchiveBucket, "dartino-archive"},
		{Production, CoredumpBucket, "dartino-buildbot-coredumps"},
		{Production, CrossBucket, "dartino-cross-compiled-binaries"},
		{Staging, TemporaryBucket, "staging-dartino-temporary"},
	}
	for _, tt := range tests {
		if got := tt.env.Bucket(tt.kind, "dartino"); got != tt.want {
			t.Errorf("%s.Bucket(%s) = %q; want %q", tt.env.Name, tt.kind, got, tt.want)
		}
	}
}

func TestBucketURL(t *testing.T) {
	if got, want := Production.BucketURL(ArchiveBucket, "fletch"), "gs://fletch-archive"; got != want {
		t.Errorf("BucketURL = %q; want %q", got, want)
	}
	env := Environment{LocalRoot: "/tmp/buckets"}
	if got, want := env.BucketURL(DependenciesBucket, "dartino"), "file:///tmp/buckets/dartino-dependencies"; got != want {
		t.Errorf("local BucketURL = %q; want %q", got, want)
	}
}

func TestDownloadLink(t *testing.T) {
	got := Production.DownloadLink("gs://dartino-archive/channels/be/raw/0.1.0/sdk/VERSION")
	want := "https://storage.googleapis.com/dartino-archive/channels/be/raw/0.1.0/sdk/VERSION"
	if got != want {
		t.Errorf("DownloadLink = %q; want %q", got, want)
	}
	if got := Production.DownloadLink("file:///x"); got != "file:///x" {
		t.Errorf("DownloadLink(file) = %q; want unchanged", got)
	}
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		env, err := ByName(name)
		if err != nil {
			t.Fatal(err)
		}
		if env.Name != name {
			t.Errorf("ByName(%q).Name = %q", name, env.Name)
		}
	}
	if _, err := ByName("moon"); err == nil || !strings.Contains(err.Error(), "prod") {
		t.Errorf("ByName(moon) error = %v; want list of envs", err)
	}
}
