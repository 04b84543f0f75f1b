// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buildenv contains definitions for the
// environments the buildbot steps can run in.
package buildenv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"go.chromium.org/luci/common/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// A BucketKind names one of the buckets a project stores artifacts in.
// The bucket name is derived from the environment, the project and the kind.
type BucketKind string

const (
	// ArchiveBucket holds SDKs, binaries and docs, laid out by channel.
	ArchiveBucket BucketKind = "archive"
	// TemporaryBucket holds bleeding edge artifacts that are not kept.
	TemporaryBucket BucketKind = "temporary"
	// CrossBucket holds the build tarballs cross bots hand to target bots.
	CrossBucket BucketKind = "cross-compiled-binaries"
	// CoredumpBucket holds archived core dumps and the binaries that made them.
	CoredumpBucket BucketKind = "buildbot-coredumps"
	// DependenciesBucket holds third party inputs such as the raspbian image.
	DependenciesBucket BucketKind = "dependencies"
)

// Environment describes where a bot stores its artifacts and which GCP
// project it reads its secrets from. Production and Staging are the two
// common environments.
type Environment struct {
	// Name is the name selected on the command line.
	Name string

	// ProjectName is the GCP project holding secrets, such as the
	// InfluxDB token. It may be overridden without affecting other fields.
	ProjectName string

	// BucketPrefix is prepended to every bucket name.
	BucketPrefix string

	// LocalRoot, if set, replaces GCS with directories under LocalRoot:
	// bucket b is the directory LocalRoot/b.
	LocalRoot string

	// DownloadHost is the public HTTPS host objects are downloaded from.
	DownloadHost string

	// BrowseHost is the authenticated HTTPS host used to link to
	// objects that are not public, such as core dumps.
	BrowseHost string
}

// Bucket returns the bare bucket name of kind for project.
func (e Environment) Bucket(kind BucketKind, project string) string {
	return e.BucketPrefix + project + "-" + string(kind)
}

// BucketURL returns the gs:// or file:// URL of the bucket.
func (e Environment) BucketURL(kind BucketKind, project string) string {
	b := e.Bucket(kind, project)
	if e.LocalRoot != "" {
		return "file://" + filepath.ToSlash(filepath.Join(e.LocalRoot, b))
	}
	return "gs://" + b
}

// DownloadLink rewrites a gs:// URL to its public download URL.
// Other URLs are returned unchanged.
func (e Environment) DownloadLink(gsURL string) string {
	if rest, ok := strings.CutPrefix(gsURL, "gs://"); ok {
		return e.DownloadHost + rest
	}
	return gsURL
}

// BrowseLink returns the authenticated browser URL of object in bucket.
func (e Environment) BrowseLink(bucket, object string) string {
	return e.BrowseHost + bucket + "/" + object
}

// Credentials returns the credentials used to access the GCP environment
// with the scopes the buildbot needs.
func (e Environment) Credentials(ctx context.Context) (*google.Credentials, error) {
	creds, err := google.FindDefaultCredentials(ctx, storage.ScopeFullControl, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		CheckUserCredentials(ctx)
		return nil, err
	}
	creds.TokenSource = diagnoseFailureTokenSource{ctx, creds.TokenSource}
	return creds, nil
}

// Production is the environment the buildbot master's bots run in.
var Production = &Environment{
	Name:         "prod",
	ProjectName:  "dartino-buildbot",
	DownloadHost: "https://storage.googleapis.com/",
	BrowseHost:   "https://storage.cloud.google.com/",
}

// Staging writes every artifact to separate staging buckets, so step
// programs can be tried without touching released channels.
var Staging = &Environment{
	Name:         "staging",
	ProjectName:  "dartino-buildbot-staging",
	BucketPrefix: "staging-",
	DownloadHost: "https://storage.googleapis.com/",
	BrowseHost:   "https://storage.cloud.google.com/",
}

// Development stores artifacts in local directories under $TMPDIR.
var Development = &Environment{
	Name:         "dev",
	LocalRoot:    filepath.Join(os.TempDir(), "dartino-buckets"),
	DownloadHost: "file:///",
	BrowseHost:   "file:///",
}

// possibleEnvs enumerate the known buildenv.Environment definitions.
var possibleEnvs = map[string]*Environment{
	"prod":    Production,
	"staging": Staging,
	"dev":     Development,
}

// ByName returns the Environment with the given name.
func ByName(name string) (*Environment, error) {
	env, ok := possibleEnvs[name]
	if !ok {
		return nil, fmt.Errorf("unknown buildenv %q; possible envs are %s", name, strings.Join(Names(), ", "))
	}
	return env, nil
}

// Names returns the names of the known environments, sorted.
func Names() []string {
	var names []string
	for k := range possibleEnvs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// warnCredsOnce guards CheckUserCredentials spamming stderr. Once is enough.
var warnCredsOnce sync.Once

// CheckUserCredentials warns if the gcloud Application Default Credentials file doesn't exist
// and says how to log in properly.
func CheckUserCredentials(ctx context.Context) {
	adcJSON := filepath.Join(os.Getenv("HOME"), ".config/gcloud/application_default_credentials.json")
	if _, err := os.Stat(adcJSON); os.IsNotExist(err) {
		warnCredsOnce.Do(func() {
			logging.Warningf(ctx, "file %s does not exist; did you run 'gcloud auth application-default login' ? (The 'application-default' part matters, confusingly.)", adcJSON)
		})
	}
}

// diagnoseFailureTokenSource is an oauth2.TokenSource wrapper that,
// upon failure, diagnoses why the token acquisition might've failed.
type diagnoseFailureTokenSource struct {
	ctx context.Context
	ts  oauth2.TokenSource
}

func (ts diagnoseFailureTokenSource) Token() (*oauth2.Token, error) {
	t, err := ts.ts.Token()
	if err != nil {
		CheckUserCredentials(ts.ctx)
		return nil, err
	}
	return t, nil
}
