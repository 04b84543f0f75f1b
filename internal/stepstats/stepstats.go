// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stepstats records the duration and result of every buildbot
// step in InfluxDB.
package stepstats

import (
	"context"

	"github.com/dartino/buildbot/internal/annotate"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.chromium.org/luci/common/logging"
)

const (
	// Org is the Influx organization name.
	Org = "dartino"

	// Bucket is the Influx bucket name.
	Bucket = "buildbot"

	// Measurement is the name of the points written for steps.
	Measurement = "bot_step"
)

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// A Recorder is an annotate.Observer that writes one point per step.
type Recorder struct {
	bot    string
	w      pointWriter
	client influxdb2.Client
}

// New returns a Recorder writing to the InfluxDB instance at url,
// tagging points with the bot's name.
func New(url, token, bot string) *Recorder {
	client := influxdb2.NewClient(url, token)
	return &Recorder{
		bot:    bot,
		w:      client.WriteAPIBlocking(Org, Bucket),
		client: client,
	}
}

// StepDone implements annotate.Observer. Write failures are logged:
// missing statistics never fail a build.
func (r *Recorder) StepDone(ctx context.Context, s *annotate.Step, res annotate.Result) {
	tags := map[string]string{
		"bot":    r.bot,
		"step":   s.Name(),
		"result": res.String(),
	}
	fields := map[string]interface{}{
		"duration_seconds": s.End().Sub(s.Start()).Seconds(),
	}
	p := influxdb2.NewPoint(Measurement, tags, fields, s.End())
	if err := r.w.WritePoint(ctx, p); err != nil {
		logging.Warningf(ctx, "recording step %q: %v", s.Name(), err)
	}
}

// Close releases the client's resources.
func (r *Recorder) Close() {
	if r.client != nil {
		r.client.Close()
	}
}
