// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}

func files(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(out)
	return out
}

func TestCopyTree(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "a.txt"), "a", 0644)
	writeFile(t, filepath.Join(src, "bin", "tool"), "#!/bin/sh\n", 0755)
	writeFile(t, filepath.Join(src, ".git", "HEAD"), "ref", 0644)
	writeFile(t, filepath.Join(src, "lib", "x.dart"), "x", 0644)

	dst := filepath.Join(dir, "dst")
	if err := CopyTree(src, dst, ".git"); err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "bin/tool", "lib/x.dart"}
	if diff := cmp.Diff(want, files(t, dst)); diff != "" {
		t.Errorf("copied files mismatch (-want +got):\n%s", diff)
	}
	if runtime.GOOS != "windows" {
		fi, err := os.Stat(filepath.Join(dst, "bin", "tool"))
		if err != nil {
			t.Fatal(err)
		}
		if fi.Mode().Perm() != 0755 {
			t.Errorf("tool mode = %v; want 0755", fi.Mode().Perm())
		}
	}
	if err := CopyTree(src, dst); err == nil {
		t.Error("CopyTree onto an existing directory succeeded")
	}
}

func TestCopyFileSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lib.so.1"), "elf", 0644)
	if err := os.Symlink("lib.so.1", filepath.Join(dir, "lib.so")); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out", "lib.so")
	if err := CopyFile(filepath.Join(dir, "lib.so"), dst); err != nil {
		t.Fatal(err)
	}
	target, err := os.Readlink(dst)
	if err != nil {
		t.Fatal(err)
	}
	if target != "lib.so.1" {
		t.Errorf("link target = %q; want lib.so.1", target)
	}
}

func TestRemoveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	writeFile(t, path, "", 0644)
	if !Exists(path) {
		t.Fatal("Exists = false after writing")
	}
	for i := 0; i < 2; i++ {
		if err := RemoveFile(path); err != nil {
			t.Fatalf("RemoveFile #%d: %v", i, err)
		}
	}
	if Exists(path) {
		t.Error("Exists = true after RemoveFile")
	}
}
