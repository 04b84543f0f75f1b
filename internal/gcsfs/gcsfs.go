// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gcsfs implements io/fs for GCS buckets and local directories,
// adding the writes, public uploads and removals that archiving needs.
//
// A bucket has no directories. A name is a directory when objects exist
// under name + "/", so listing and stat of directories query by prefix.
package gcsfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// FromURL returns the FS rooted at a gs://bucket/prefix or file:///dir URL.
// client is only used for gs:// URLs and can be nil otherwise.
func FromURL(ctx context.Context, client *storage.Client, base string) (fs.FS, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "gs":
		if u.Host == "" {
			return nil, fmt.Errorf("missing bucket in %q", base)
		}
		if client == nil {
			return nil, fmt.Errorf("no storage client for %q", base)
		}
		fsys := NewFS(ctx, client, u.Host)
		if prefix := strings.Trim(u.Path, "/"); prefix != "" {
			return fsys.Sub(prefix)
		}
		return fsys, nil
	case "file":
		return DirFS(u.Path), nil
	}
	return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
}

// CreateOptions control how a file is created.
type CreateOptions struct {
	// Public makes the object readable by anyone.
	Public bool
}

// CreateFS is an fs.FS that supports creating writable files.
type CreateFS interface {
	fs.FS
	Create(name string, opts CreateOptions) (WriterFile, error)
}

// RemoveFS is an fs.FS that supports removing files.
type RemoveFS interface {
	fs.FS
	Remove(name string) error
}

// WriterFile is a file that can be written. Content is only guaranteed
// to be stored once Close returns nil.
type WriterFile interface {
	fs.File
	io.Writer
}

// Create creates the named file on fsys, which must be a CreateFS.
func Create(fsys fs.FS, name string, opts CreateOptions) (WriterFile, error) {
	cfs, ok := fsys.(CreateFS)
	if !ok {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fmt.Errorf("not implemented on type %T", fsys)}
	}
	return cfs.Create(name, opts)
}

// Remove removes the named file from fsys, which must be a RemoveFS.
func Remove(fsys fs.FS, name string) error {
	rfs, ok := fsys.(RemoveFS)
	if !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fmt.Errorf("not implemented on type %T", fsys)}
	}
	return rfs.Remove(name)
}

// Bucket is the FS of a GCS bucket, or of the objects under a prefix of
// one. Every operation uses the context it was created with: once that
// context is done, open readers and writers fail.
type Bucket struct {
	ctx    context.Context
	bucket *storage.BucketHandle
	prefix string // without slashes at either end
}

var (
	_ CreateFS  = (*Bucket)(nil)
	_ RemoveFS  = (*Bucket)(nil)
	_ fs.SubFS  = (*Bucket)(nil)
	_ fs.StatFS = (*Bucket)(nil)
)

// NewFS returns the FS of the named bucket. It does not access the
// network.
func NewFS(ctx context.Context, client *storage.Client, bucket string) *Bucket {
	return &Bucket{ctx: ctx, bucket: client.Bucket(bucket)}
}

// key returns the object name of the valid path name.
func (b *Bucket) key(name string) string {
	if name == "." {
		return b.prefix
	}
	return path.Join(b.prefix, name)
}

// dirPrefix returns the query prefix listing the directory name.
func (b *Bucket) dirPrefix(name string) string {
	if k := b.key(name); k != "" {
		return k + "/"
	}
	return ""
}

func (b *Bucket) list(name string) *storage.ObjectIterator {
	return b.bucket.Objects(b.ctx, &storage.Query{Delimiter: "/", Prefix: b.dirPrefix(name)})
}

// checkPath rejects invalid paths. fstest sends backslashes, which
// are valid in object names but never in ours.
func checkPath(op, name string) error {
	if !fs.ValidPath(name) || strings.ContainsRune(name, '\\') {
		return &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return nil
}

func pathError(op, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrObjectNotExist), errors.Is(err, storage.ErrBucketNotExist):
		err = fs.ErrNotExist
	}
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// Open opens the named object or directory for reading. The object is
// fetched on the first Read.
func (b *Bucket) Open(name string) (fs.File, error) {
	if err := checkPath("open", name); err != nil {
		return nil, err
	}
	return &object{b: b, name: name}, nil
}

// Stat returns the attributes of the named object, or a directory entry
// if objects exist under name.
func (b *Bucket) Stat(name string) (fs.FileInfo, error) {
	if err := checkPath("stat", name); err != nil {
		return nil, err
	}
	if name != "." {
		attrs, err := b.bucket.Object(b.key(name)).Attrs(b.ctx)
		if err == nil {
			return &objectInfo{attrs}, nil
		}
		if !errors.Is(err, storage.ErrObjectNotExist) {
			return nil, pathError("stat", name, err)
		}
	}
	_, err := b.list(name).Next()
	if err == iterator.Done {
		if name == "." {
			// An empty bucket or prefix is still a directory.
			return &objectInfo{&storage.ObjectAttrs{Prefix: b.dirPrefix(name)}}, nil
		}
		return nil, pathError("stat", name, fs.ErrNotExist)
	}
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return &objectInfo{&storage.ObjectAttrs{Prefix: b.dirPrefix(name)}}, nil
}

// Create starts writing the named object. The object replaces any
// previous one with the same name when the file is closed.
func (b *Bucket) Create(name string, opts CreateOptions) (WriterFile, error) {
	if err := checkPath("create", name); err != nil || name == "." {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
	}
	w := b.bucket.Object(b.key(name)).NewWriter(b.ctx)
	if opts.Public {
		w.PredefinedACL = "publicRead"
	}
	return &objectWriter{b: b, name: name, w: w}, nil
}

// Remove deletes the named object.
func (b *Bucket) Remove(name string) error {
	if err := checkPath("remove", name); err != nil || name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
	}
	return pathError("remove", name, b.bucket.Object(b.key(name)).Delete(b.ctx))
}

// Sub returns the FS of the objects under dir.
func (b *Bucket) Sub(dir string) (fs.FS, error) {
	if err := checkPath("sub", dir); err != nil {
		return nil, err
	}
	sub := *b
	sub.prefix = b.key(dir)
	return &sub, nil
}

// object is an open object or directory.
type object struct {
	b    *Bucket
	name string

	r    *storage.Reader
	iter *storage.ObjectIterator
}

func (o *object) Stat() (fs.FileInfo, error) { return o.b.Stat(o.name) }

func (o *object) Read(p []byte) (int, error) {
	if o.r == nil {
		r, err := o.b.bucket.Object(o.b.key(o.name)).NewReader(o.b.ctx)
		if err != nil {
			return 0, pathError("read", o.name, err)
		}
		o.r = r
	}
	n, err := o.r.Read(p)
	if err == io.EOF {
		return n, err
	}
	return n, pathError("read", o.name, err)
}

// ReadDir lists the objects and prefixes directly under the directory.
func (o *object) ReadDir(n int) ([]fs.DirEntry, error) {
	if o.iter == nil {
		o.iter = o.b.list(o.name)
	}
	var entries []fs.DirEntry
	for n <= 0 || len(entries) < n {
		attrs, err := o.iter.Next()
		if err == iterator.Done {
			if n > 0 && len(entries) == 0 {
				return nil, io.EOF
			}
			break
		}
		if err != nil {
			return entries, pathError("readdir", o.name, err)
		}
		entries = append(entries, &objectInfo{attrs})
	}
	return entries, nil
}

func (o *object) Close() error {
	if o.r == nil {
		return nil
	}
	err := o.r.Close()
	o.r = nil
	return pathError("close", o.name, err)
}

// objectWriter is an object being written.
type objectWriter struct {
	b    *Bucket
	name string
	w    *storage.Writer
}

func (f *objectWriter) Stat() (fs.FileInfo, error) { return f.b.Stat(f.name) }

func (f *objectWriter) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: f.name, Err: errors.New("file is open for writing")}
}

func (f *objectWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	return n, pathError("write", f.name, err)
}

// Close stores the object. It is safe to call more than once.
func (f *objectWriter) Close() error {
	if f.w == nil {
		return nil
	}
	err := f.w.Close()
	f.w = nil
	return pathError("close", f.name, err)
}

// objectInfo describes an object, or a directory when Prefix is set.
// Sys returns the *storage.ObjectAttrs.
type objectInfo struct {
	attrs *storage.ObjectAttrs
}

func (fi *objectInfo) Name() string {
	if fi.IsDir() {
		return path.Base(fi.attrs.Prefix)
	}
	return path.Base(fi.attrs.Name)
}

func (fi *objectInfo) IsDir() bool                { return fi.attrs.Prefix != "" || fi.attrs.Name == "" }
func (fi *objectInfo) Size() int64                { return fi.attrs.Size }
func (fi *objectInfo) ModTime() time.Time         { return fi.attrs.Updated }
func (fi *objectInfo) Sys() any                   { return fi.attrs }
func (fi *objectInfo) Info() (fs.FileInfo, error) { return fi, nil }
func (fi *objectInfo) Type() fs.FileMode          { return fi.Mode().Type() }

func (fi *objectInfo) Mode() fs.FileMode {
	if fi.IsDir() {
		return fs.ModeDir | 0555
	}
	return 0444
}
