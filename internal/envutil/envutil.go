// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package envutil builds the environments of the subprocesses a bot
// runs. Steps never modify the bot's own environment; they derive an Env
// from it and pass that to the child.
package envutil

import (
	"os"
	"runtime"
	"strings"
)

// Env is a process environment in the usual "key=value" form.
// Keys compare case-insensitively when the bot runs on Windows.
type Env []string

// FromOS returns the environment of the current process.
func FromOS() Env { return Env(os.Environ()) }

// Get returns the value of the last entry for key, or "" if there is none.
func (e Env) Get(key string) string {
	return Get(runtime.GOOS, e, key)
}

// With returns a copy of e with the given key=value pairs set.
// Existing entries for those keys are dropped. e is not modified.
func (e Env) With(kv ...string) Env {
	if len(kv) == 0 {
		return e
	}
	out := make([]string, 0, len(e)+len(kv))
	out = append(out, e...)
	return Env(Dedup(runtime.GOOS, append(out, kv...)))
}

// Prepend returns a copy of e with dir in front of the list-valued
// variable key, such as PATH.
func (e Env) Prepend(key, dir string) Env {
	v := e.Get(key)
	if v != "" {
		v = dir + string(os.PathListSeparator) + v
	} else {
		v = dir
	}
	return e.With(key + "=" + v)
}

// Dedup returns a copy of env with any duplicates removed, in favor of
// later values. Keys are interpreted as if on the given GOOS.
func Dedup(goos string, env []string) []string {
	seen := make(map[string]bool, len(env))
	keep := make([]bool, len(env))
	n := 0
	for i := len(env) - 1; i >= 0; i-- {
		k := normKey(goos, key(env[i]))
		if seen[k] {
			continue
		}
		seen[k] = true
		keep[i] = true
		n++
	}
	out := make([]string, 0, n)
	for i, kv := range env {
		if keep[i] {
			out = append(out, kv)
		}
	}
	return out
}

// Get returns the value of key in env, interpreted according to goos.
func Get(goos string, env []string, key string) string {
	want := normKey(goos, key)
	for i := len(env) - 1; i >= 0; i-- {
		k, v, _ := strings.Cut(env[i], "=")
		if normKey(goos, k) == want {
			return v
		}
	}
	return ""
}

func key(kv string) string {
	k, _, _ := strings.Cut(kv, "=")
	return k
}

func normKey(goos, k string) string {
	if goos == "windows" {
		return strings.ToLower(k)
	}
	return k
}
