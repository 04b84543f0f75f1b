// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdkbundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dartino/buildbot/internal/command"
	"github.com/dartino/buildbot/internal/fileutil"
	"go.chromium.org/luci/common/logging"
)

// DocsDir is the directory, relative to the checkout, that
// CreateDocumentation writes the API documentation to.
const DocsDir = "out/docs"

// libraryRx matches everything of a library file up to its library
// directive. The first group is the library's doc comment.
var libraryRx = regexp.MustCompile(`(?ms)\A(.*?)^library ([^;]+);`)

// CreateDocumentation generates the API documentation of the SDK
// packages with dartdoc. The documented packages are copied to a
// temporary tree next to a generated umbrella package, so the checkout
// is not modified outside out/.
func CreateDocumentation(ctx context.Context, o *Options) error {
	p := o.Project
	run := func(dir string, args ...string) error {
		return o.Runner.Run(ctx, command.New(args...).InDir(dir).WithEnv(o.Env))
	}
	src := func(elem ...string) string {
		return filepath.Join(append([]string{o.Checkout}, elem...)...)
	}

	bucket := o.DependenciesBucket
	if bucket == "" {
		bucket = p.Name + "-dependencies"
	}
	if err := run(o.Checkout, "download_from_google_storage", "-b", bucket, "-u", "-d", "third_party/dartdoc_deps/"); err != nil {
		return err
	}
	sdk := src("out", "dartdoc-dart-sdk")
	if err := os.RemoveAll(sdk); err != nil {
		return err
	}
	if err := fileutil.CopyTree(src("third_party", "dartdoc_deps", "dart-sdk"), sdk); err != nil {
		return err
	}
	if err := fileutil.CopyTree(src("lib"), filepath.Join(sdk, "lib", "mobile")); err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "sdk-docs-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	pkgs := sdkPackages(p)
	for _, pkg := range pkgs {
		if err := fileutil.CopyTree(src("pkg", pkg), filepath.Join(tmp, "pkg", pkg)); err != nil {
			return err
		}
	}
	for _, pkg := range ThirdPartyPackages {
		if err := fileutil.CopyTree(src("third_party", pkg), filepath.Join(tmp, "third_party", pkg)); err != nil {
			return err
		}
	}

	umbrella := filepath.Join(tmp, "pkg", p.Name+"_sdk")
	if err := fileutil.CopyFile(src("pkg", p.Name+"_sdk_readme.md"), filepath.Join(umbrella, "README.md")); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(umbrella, "pubspec.yaml"), []byte(docsPubspec(p.Name, pkgs)), 0644); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(umbrella, "lib"), 0755); err != nil {
		return err
	}
	for _, pkg := range pkgs {
		data, err := os.ReadFile(filepath.Join(tmp, "pkg", pkg, "lib", pkg+".dart"))
		if err != nil {
			return err
		}
		lib, err := docsLibrary(pkg, string(data))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(umbrella, "lib", pkg+".dart"), []byte(lib), 0644); err != nil {
			return err
		}
	}

	logging.Infof(ctx, "calling pub get in %s", umbrella)
	if err := run(umbrella, filepath.Join(sdk, "bin", "pub"), "get"); err != nil {
		return err
	}
	out := src(filepath.FromSlash(DocsDir))
	if err := os.RemoveAll(out); err != nil {
		return err
	}
	if err := run(o.Checkout, filepath.Join(sdk, "bin", "dartdoc"), "--input", umbrella, "--output", out); err != nil {
		return err
	}
	return patchDocsIndex(filepath.Join(out, "index.html"), p.Name)
}

// docsPubspec returns the pubspec of the umbrella package, which depends
// on every documented package by path.
func docsPubspec(project string, pkgs []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "name: %s_SDK\n", capitalize(project))
	sb.WriteString("dependencies:\n")
	for _, pkg := range pkgs {
		fmt.Fprintf(&sb, "  %s:\n    path: ../%s\n", pkg, pkg)
	}
	return sb.String()
}

// docsLibrary returns an umbrella library for pkg that carries the doc
// comment of the package's main library and re-exports it.
func docsLibrary(pkg, source string) (string, error) {
	m := libraryRx.FindStringSubmatch(source)
	if m == nil {
		return "", fmt.Errorf("lib/%s.dart has no library directive", pkg)
	}
	return fmt.Sprintf("%s\nlibrary %s;\nexport 'package:%s/%s.dart';", m[1], pkg, pkg, pkg), nil
}

func patchDocsIndex(path, project string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	title := capitalize(project)
	s := strings.ReplaceAll(string(data), title+"_SDK", title+" SDK")
	s = strings.ReplaceAll(s, ">package<", "><")
	return os.WriteFile(path, []byte(s), 0644)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
