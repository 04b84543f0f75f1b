// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package botconfig reads the optional per-bot settings file.
//
// A bot runs with built-in defaults when it has no settings file. The
// file is YAML:
//
//	project: dartino
//	snapshot_configs: [DebugIA32, DebugIA32ClangAsan]
//	daemon_startup_timeout: 2m
//	asan_options: detect_leaks=0
//	influx:
//	  url: https://influx.example.com
//	  token: secret:buildbot-influx-token
package botconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dartino/buildbot/dashboard"
	"github.com/dartino/buildbot/internal/daemon"
	"github.com/dartino/buildbot/internal/secret"
	yaml "gopkg.in/yaml.v3"
)

// Config holds the settings of one bot.
type Config struct {
	// Project selects the project generation, "dartino" or "fletch".
	Project string `yaml:"project"`

	// SnapshotConfigs lists the configurations allowed to run the
	// snapshot tests. Empty means dashboard.DefaultSnapshotConfigs.
	SnapshotConfigs []string `yaml:"snapshot_configs"`

	// DaemonStartupTimeout bounds the wait for the compiler daemon.
	DaemonStartupTimeout time.Duration `yaml:"daemon_startup_timeout"`

	// ASANOptions, if set, is passed to tests as ASAN_OPTIONS.
	ASANOptions string `yaml:"asan_options"`

	// Influx configures the step timing sink. Steps are not recorded
	// when URL is empty.
	Influx Influx `yaml:"influx"`
}

// Influx locates an InfluxDB instance.
type Influx struct {
	URL string `yaml:"url"`
	// Token may be a secret reference. See package secret.
	Token string `yaml:"token"`
}

// Default returns the settings used when a bot has no settings file.
func Default() *Config {
	return &Config{
		Project:              "dartino",
		DaemonStartupTimeout: daemon.DefaultStartupTimeout,
	}
}

// Load reads the settings file at path on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse parses settings on top of the defaults.
func Parse(b []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot read bot config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if _, ok := dashboard.Projects[c.Project]; !ok {
		return fmt.Errorf("unknown project %q", c.Project)
	}
	for _, name := range c.SnapshotConfigs {
		if _, _, _, _, err := dashboard.ParseConfigName(name); err != nil {
			return fmt.Errorf("snapshot_configs: %v", err)
		}
	}
	if c.DaemonStartupTimeout < 0 {
		return fmt.Errorf("negative daemon_startup_timeout %v", c.DaemonStartupTimeout)
	}
	return nil
}

// SkipPolicy returns the test skip policy of the bot.
func (c *Config) SkipPolicy() *dashboard.SkipPolicy {
	return &dashboard.SkipPolicy{SnapshotConfigs: c.SnapshotConfigs}
}

// ResolveSecrets replaces secret references in c with their values.
func (c *Config) ResolveSecrets(ctx context.Context, r *secret.Resolver) error {
	token, err := r.Resolve(ctx, c.Influx.Token)
	if err != nil {
		return fmt.Errorf("influx token: %w", err)
	}
	c.Influx.Token = token
	return nil
}

// HasSecrets reports whether ResolveSecrets needs a secret resolver.
func (c *Config) HasSecrets() bool {
	return secret.IsSecret(c.Influx.Token)
}
