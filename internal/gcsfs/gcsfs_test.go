// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gcsfs

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var slowTest = flag.Bool("slow", false, "run slow tests that access GCS")

func TestGCSFS(t *testing.T) {
	if !*slowTest {
		t.Skip("reads a GCS bucket")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadOnly))
	if err != nil {
		t.Fatal(err)
	}
	fsys, err := FromURL(ctx, client, "gs://dartino-archive/channels/stable/release/latest/sdk")
	if err != nil {
		t.Fatal(err)
	}
	if err := fstest.TestFS(fsys, "VERSION"); err != nil {
		t.Error(err)
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDirFS(t *testing.T) {
	dir := writeTree(t, map[string]string{"a": "a", "b": "b", "dir/x": "x"})
	if err := fstest.TestFS(DirFS(dir), "a", "b", "dir/x"); err != nil {
		t.Fatal(err)
	}
}

func TestFromURLFile(t *testing.T) {
	dir := writeTree(t, map[string]string{"sdk/VERSION": "0.4.1"})
	fsys, err := FromURL(context.Background(), nil, "file://"+filepath.ToSlash(dir))
	if err != nil {
		t.Fatal(err)
	}
	b, err := fs.ReadFile(fsys, "sdk/VERSION")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "0.4.1" {
		t.Errorf("VERSION = %q; want 0.4.1", b)
	}
	if _, err := FromURL(context.Background(), nil, "gs://bucket/x"); err == nil {
		t.Error("FromURL(gs://) without a client succeeded")
	}
	if _, err := FromURL(context.Background(), nil, "s3://bucket/x"); err == nil {
		t.Error("FromURL(s3://) succeeded")
	}
}

func TestDirFSWrite(t *testing.T) {
	temp := t.TempDir()
	fsys := DirFS(temp)
	f, err := Create(fsys, "channels/be/raw/VERSION", CreateOptions{Public: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("hey\n")); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(temp, "channels", "be", "raw", "VERSION"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hey\n" {
		t.Fatalf("unexpected file contents %q, want %q", string(b), "hey\n")
	}
}

func TestDirFSRemove(t *testing.T) {
	dir := writeTree(t, map[string]string{"a/b/c": "c", "a/d": "d"})
	fsys := DirFS(dir)
	if err := Remove(fsys, "a/b/c"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a", "b")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("empty directory a/b left behind: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a", "d")); err != nil {
		t.Errorf("a/d: %v", err)
	}
	if err := Remove(fsys, "a/b/c"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second Remove = %v; want ErrNotExist", err)
	}
}

func TestCreateUnsupported(t *testing.T) {
	if _, err := Create(fstest.MapFS{}, "x", CreateOptions{}); err == nil {
		t.Error("Create on a MapFS succeeded")
	}
	if err := Remove(fstest.MapFS{}, "x"); err == nil {
		t.Error("Remove on a MapFS succeeded")
	}
}

func TestObjectInfo(t *testing.T) {
	tests := []struct {
		attrs *storage.ObjectAttrs
		name  string
		dir   bool
	}{
		{&storage.ObjectAttrs{Name: "channels/be/raw/0.4.1/sdk/VERSION", Size: 5}, "VERSION", false},
		{&storage.ObjectAttrs{Prefix: "channels/be/raw/0.4.1/sdk/docs/"}, "docs", true},
		{&storage.ObjectAttrs{}, ".", true},
	}
	for _, tt := range tests {
		fi := &objectInfo{tt.attrs}
		if fi.Name() != tt.name || fi.IsDir() != tt.dir {
			t.Errorf("%+v: Name, IsDir = %q, %v; want %q, %v", tt.attrs, fi.Name(), fi.IsDir(), tt.name, tt.dir)
		}
		if got := fi.Mode().IsDir(); got != tt.dir {
			t.Errorf("%+v: Mode().IsDir() = %v", tt.attrs, got)
		}
	}
}
