// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"go.uber.org/multierr"
)

type linkKind int

const (
	symlink linkKind = iota
	hardlink
)

func (k linkKind) String() string {
	if k == symlink {
		return "symlink"
	}
	return "hardlink"
}

// linkAction is a link recorded during the scan and made afterwards.
type linkAction struct {
	kind linkKind
	name string // archive name of the link entry
	path string // where the link goes

	// For a symlink, the link text as stored.
	// For a hardlink, the rerooted target.
	target string

	outside  bool   // hardlink target lies outside the extracted subtree
	linkname string // hardlink target as stored
}

// runLinks makes every queued link in order. Failures are logged and dropped.
func (x *extraction) runLinks() {
	var errs error
	for _, a := range x.links {
		if err := x.link(a); err != nil {
			errs = multierr.Append(errs, &fs.PathError{Op: a.kind.String(), Path: a.name, Err: err})
		}
	}
	for _, err := range multierr.Errors(errs) {
		x.tr.log().Warn("linkFailed", "err", err)
	}
	x.links = nil
}

func (x *extraction) link(a linkAction) error {
	if err := x.fsys.MkdirAll(filepath.Dir(a.path)); err != nil {
		return err
	}

	switch a.kind {
	case symlink:
		if !x.tr.LinksAreCopies {
			return x.fsys.Symlink(a.target, a.path)
		}
		src, err := x.symlinkSource(a)
		if err != nil {
			return err
		}
		return x.fsys.Copy(src, a.path)

	default:
		if a.outside {
			return fmt.Errorf("target %q is outside %q: %w", a.linkname, x.source, fs.ErrNotExist)
		}
		if x.tr.LinksAreCopies {
			return x.fsys.Copy(a.target, a.path)
		}
		return x.fsys.Link(a.target, a.path)
	}
}

// symlinkSource resolves a symlink's text relative to the link's directory,
// never leaving the output tree.
func (x *extraction) symlinkSource(a linkAction) (string, error) {
	root := x.root(a.path)
	unsafe := filepath.FromSlash(a.target)
	if !filepath.IsAbs(unsafe) {
		rel, err := filepath.Rel(root, filepath.Join(filepath.Dir(a.path), unsafe))
		if err != nil {
			return "", err
		}
		unsafe = rel
	}
	return securejoin.SecureJoin(root, unsafe)
}

// root is the directory the extraction writes into.
func (x *extraction) root(p string) string {
	root := filepath.Clean(x.dest)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Dir(root) // dest names the file itself
	}
	return root
}
