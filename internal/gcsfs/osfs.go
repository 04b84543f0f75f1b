// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gcsfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var _ = fs.FS((*dirFS)(nil))
var _ = CreateFS((*dirFS)(nil))
var _ = RemoveFS((*dirFS)(nil))

// DirFS is a variant of os.DirFS that supports file creation and removal.
// It stands in for a bucket in the dev environment and in tests.
// Public has no effect on local files.
func DirFS(dir string) fs.FS {
	return dirFS(dir)
}

type dirFS string

func (dir dirFS) join(op, name string) (string, error) {
	if !fs.ValidPath(name) || runtime.GOOS == "windows" && strings.ContainsAny(name, `\:`) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return filepath.Join(string(dir), filepath.FromSlash(name)), nil
}

func (dir dirFS) Open(name string) (fs.File, error) {
	full, err := dir.join("open", name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err // nil fs.File
	}
	return f, nil
}

func (dir dirFS) Stat(name string) (fs.FileInfo, error) {
	full, err := dir.join("stat", name)
	if err != nil {
		return nil, err
	}
	return os.Stat(full)
}

func (dir dirFS) Create(name string, _ CreateOptions) (WriterFile, error) {
	full, err := dir.join("create", name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove removes a file. Directories left empty are removed too, so
// that the tree looks like a bucket, where directories are implied.
func (dir dirFS) Remove(name string) error {
	full, err := dir.join("remove", name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return err
	}
	for d := filepath.Dir(full); d != string(dir) && strings.HasPrefix(d, string(dir)); d = filepath.Dir(d) {
		if os.Remove(d) != nil {
			break
		}
	}
	return nil
}

func (dir dirFS) Sub(subDir string) (fs.FS, error) {
	full, err := dir.join("sub", subDir)
	if err != nil {
		return nil, err
	}
	return dirFS(full), nil
}
