// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !(linux || darwin)

package coredump

import "context"

// EnableCoreDumps does nothing on this platform.
func EnableCoreDumps(ctx context.Context) (restore func(), err error) {
	return func() {}, nil
}

// IncreaseFileLimit does nothing on this platform.
func IncreaseFileLimit(ctx context.Context, n uint64) (restore func(), err error) {
	return func() {}, nil
}
