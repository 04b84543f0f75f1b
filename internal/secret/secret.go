// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package secret resolves buildbot settings stored in the GCP Secret
// Manager. A setting whose value is "secret:[project/]name" is replaced
// by the latest version of that secret.
package secret

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/compute/metadata"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"
)

const (
	// NameInfluxToken is the secret name for the step timing InfluxDB token.
	NameInfluxToken = "buildbot-influx-token"

	// NameAPIDocsDeployKey is the secret name for the SSH key that pushes
	// the published API docs.
	NameAPIDocsDeployKey = "api-docs-deploy-key"
)

// Prefix marks a setting value as a reference to a secret.
const Prefix = "secret:"

// Usage is appended to the help text of settings that accept secrets.
const Usage = "[ specify `secret:[project name/]<secret name>` to read from Secret Manager ]"

type secretClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	io.Closer
}

// A Resolver replaces secret references with the secrets' values.
type Resolver struct {
	client           secretClient
	defaultProjectID string
}

// NewResolver returns a Resolver reading from Secret Manager.
// Secrets named without a project are read from defaultProject or, if
// that is empty and the bot runs on GCE, from the bot's own project.
func NewResolver(ctx context.Context, defaultProject string) (*Resolver, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	r := &Resolver{client: client, defaultProjectID: defaultProject}
	if r.defaultProjectID == "" && metadata.OnGCE() {
		projectID, err := metadata.ProjectIDWithContext(ctx)
		if err != nil {
			client.Close()
			return nil, err
		}
		r.defaultProjectID = projectID
	}
	return r, nil
}

// IsSecret reports whether value refers to a secret.
func IsSecret(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Resolve returns value, or the secret it refers to.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsSecret(value) {
		return value, nil
	}
	if r == nil || r.client == nil {
		return "", fmt.Errorf("cannot resolve %q: secret resolver was not initialized", value)
	}
	secretName := strings.TrimPrefix(value, Prefix)
	projectID := r.defaultProjectID
	if parts := strings.SplitN(secretName, "/", 2); len(parts) == 2 {
		projectID, secretName = parts[0], parts[1]
	}
	if projectID == "" {
		return "", fmt.Errorf("missing project ID: none specified in %q, and no default set (not on GCP?)", secretName)
	}
	result, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: buildNamePath(projectID, secretName, "latest"),
	})
	if err != nil {
		return "", fmt.Errorf("reading secret %q from project %v failed: %w", secretName, projectID, err)
	}
	return string(result.Payload.GetData()), nil
}

// Close closes the connection to the Secret Management service.
func (r *Resolver) Close() error {
	return r.client.Close()
}

// buildNamePath creates the name path required by the Secret Management service to
// query for a secret.
func buildNamePath(projectID, name, version string) string {
	return path.Join("projects", projectID, "secrets", name, "versions", version)
}
