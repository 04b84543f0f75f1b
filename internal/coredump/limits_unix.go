// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux || darwin

package coredump

import (
	"context"
	"fmt"

	"go.chromium.org/luci/common/logging"
	"golang.org/x/sys/unix"
)

// EnableCoreDumps lifts RLIMIT_CORE for this process and the tests it
// starts. The returned func restores the previous limit.
func EnableCoreDumps(ctx context.Context) (restore func(), err error) {
	restore, err = setLimit(ctx, unix.RLIMIT_CORE, "core", func(old unix.Rlimit) unix.Rlimit {
		return unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY}
	})
	if err == nil {
		return restore, nil
	}
	// Without privileges the hard limit cannot be raised.
	logging.Warningf(ctx, "%v; raising the soft limit only", err)
	return setLimit(ctx, unix.RLIMIT_CORE, "core", func(old unix.Rlimit) unix.Rlimit {
		return unix.Rlimit{Cur: old.Max, Max: old.Max}
	})
}

// IncreaseFileLimit sets RLIMIT_NOFILE to n. The returned func restores
// the previous limit; failing to do so is logged only.
func IncreaseFileLimit(ctx context.Context, n uint64) (restore func(), err error) {
	return setLimit(ctx, unix.RLIMIT_NOFILE, "open files", func(unix.Rlimit) unix.Rlimit {
		return unix.Rlimit{Cur: n, Max: n}
	})
}

func setLimit(ctx context.Context, resource int, name string, next func(old unix.Rlimit) unix.Rlimit) (func(), error) {
	var old unix.Rlimit
	if err := unix.Getrlimit(resource, &old); err != nil {
		return nil, fmt.Errorf("reading %s limit: %w", name, err)
	}
	lim := next(old)
	logging.Infof(ctx, "%s limit: setting %d/%d, was %d/%d", name, lim.Cur, lim.Max, old.Cur, old.Max)
	if err := unix.Setrlimit(resource, &lim); err != nil {
		return nil, fmt.Errorf("setting %s limit to %d/%d: %w", name, lim.Cur, lim.Max, err)
	}
	return func() {
		if err := unix.Setrlimit(resource, &old); err != nil {
			logging.Warningf(ctx, "could not restore %s limit to %d/%d: %v", name, old.Cur, old.Max, err)
		}
	}, nil
}
