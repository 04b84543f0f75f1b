// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package publish moves artifacts between the bot's disk and cloud
// storage. Remote locations are gs:// URLs, or file:// URLs in the dev
// environment and in tests.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dartino/buildbot/internal/gcsfs"
	"go.chromium.org/luci/common/logging"
	"golang.org/x/sync/errgroup"
)

// parallelism bounds the concurrent transfers of a recursive copy.
const parallelism = 8

// Options control an upload.
type Options struct {
	// Public makes the uploaded objects readable by anyone.
	Public bool
	// Recursive uploads a directory tree. Each file local/p becomes
	// remote/p.
	Recursive bool
}

// A Publisher copies files to and from remote storage.
type Publisher struct {
	client *storage.Client
}

// New returns a Publisher using client for gs:// URLs.
// client may be nil if only file:// URLs are used.
func New(client *storage.Client) *Publisher {
	return &Publisher{client: client}
}

// root splits a remote URL into the FS of its bucket and the object name
// within it.
func (p *Publisher) root(ctx context.Context, remote string) (fs.FS, string, error) {
	u, err := url.Parse(remote)
	if err != nil {
		return nil, "", err
	}
	name := strings.Trim(u.Path, "/")
	var base string
	switch u.Scheme {
	case "gs":
		base = "gs://" + u.Host
	case "file":
		base = "file:///"
	default:
		return nil, "", fmt.Errorf("unsupported remote location %q", remote)
	}
	fsys, err := gcsfs.FromURL(ctx, p.client, base)
	if err != nil {
		return nil, "", err
	}
	if name == "" {
		name = "."
	}
	return fsys, name, nil
}

// IsRemote reports whether s names a remote location.
func IsRemote(s string) bool {
	return strings.HasPrefix(s, "gs://") || strings.HasPrefix(s, "file://")
}

// Upload copies the local file or tree to remote.
func (p *Publisher) Upload(ctx context.Context, local, remote string, opts Options) error {
	fsys, name, err := p.root(ctx, remote)
	if err != nil {
		return err
	}
	if !opts.Recursive {
		return uploadFile(fsys, name, local, opts.Public)
	}
	var g errgroup.Group
	g.SetLimit(parallelism)
	err = filepath.WalkDir(local, func(file string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(local, file)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return uploadFile(fsys, path.Join(name, filepath.ToSlash(rel)), file, opts.Public)
		})
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return fmt.Errorf("uploading %s to %s: %w", local, remote, err)
	}
	logging.Infof(ctx, "uploaded tree %s to %s", local, remote)
	return nil
}

func uploadFile(fsys fs.FS, name, local string, public bool) error {
	in, err := os.Open(local)
	if err != nil {
		return err
	}
	defer in.Close()
	return copyTo(fsys, name, in, public)
}

func copyTo(fsys fs.FS, name string, in io.Reader, public bool) error {
	out, err := gcsfs.Create(fsys, name, gcsfs.CreateOptions{Public: public})
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// Download copies remote to the local path. With recursive, every
// object remote/p becomes local/p.
func (p *Publisher) Download(ctx context.Context, remote, local string, recursive bool) error {
	fsys, name, err := p.root(ctx, remote)
	if err != nil {
		return err
	}
	if !recursive {
		return downloadFile(fsys, name, local)
	}
	sub, err := fs.Sub(fsys, name)
	if err != nil {
		return err
	}
	var g errgroup.Group
	g.SetLimit(parallelism)
	err = fs.WalkDir(sub, ".", func(file string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		g.Go(func() error {
			return downloadFile(sub, file, filepath.Join(local, filepath.FromSlash(file)))
		})
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return fmt.Errorf("downloading %s: %w", remote, err)
	}
	return nil
}

func downloadFile(fsys fs.FS, name, local string) error {
	in, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return err
	}
	out, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Copy copies one remote object to another remote location.
func (p *Publisher) Copy(ctx context.Context, src, dst string, public bool) error {
	sfs, sname, err := p.root(ctx, src)
	if err != nil {
		return err
	}
	dfs, dname, err := p.root(ctx, dst)
	if err != nil {
		return err
	}
	in, err := sfs.Open(sname)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := copyTo(dfs, dname, in, public); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}

// Remove removes a remote object. With recursive, every object under
// remote is removed.
func (p *Publisher) Remove(ctx context.Context, remote string, recursive bool) error {
	fsys, name, err := p.root(ctx, remote)
	if err != nil {
		return err
	}
	if !recursive {
		return gcsfs.Remove(fsys, name)
	}
	var names []string
	err = fs.WalkDir(fsys, name, func(file string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		names = append(names, file)
		return nil
	})
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := gcsfs.Remove(fsys, n); err != nil {
			return err
		}
	}
	return nil
}

// List returns the URLs of the objects and directories directly under
// the remote directory, in the style of gsutil ls: directories end
// in a slash. A missing directory lists as empty.
func (p *Publisher) List(ctx context.Context, remote string) ([]string, error) {
	fsys, name, err := p.root(ctx, remote)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(remote, "/")
	var urls []string
	for _, e := range entries {
		u := base + "/" + e.Name()
		if e.IsDir() {
			u += "/"
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// Exists reports whether the remote object exists.
func (p *Publisher) Exists(ctx context.Context, remote string) (bool, error) {
	fsys, name, err := p.root(ctx, remote)
	if err != nil {
		return false, err
	}
	_, err = fs.Stat(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
