// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package osfs writes extracted archive members to the operating system.
package osfs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FS is ready to use as its zero value.
type FS struct{}

func (FS) MkdirAll(name string) error {
	return errors.Wrapf(os.MkdirAll(name, dirPerm), "mkdir %s", name)
}

// Create truncates or creates a regular file.
// It will not write through a symlink in the final path component.
func (FS) Create(name string) (io.WriteCloser, error) {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|oNofollow, filePerm)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", name)
	}
	return f, nil
}

func (FS) Symlink(oldname, newname string) error {
	return errors.Wrapf(os.Symlink(oldname, newname), "symlink %s -> %s", newname, oldname)
}

func (FS) Link(oldname, newname string) error {
	return errors.Wrapf(os.Link(oldname, newname), "link %s -> %s", newname, oldname)
}

// Copy copies src to dst, following src if it is a symlink.
// Directories are copied recursively and symlinks inside them are copied as symlinks.
// Existing files at the destination are overwritten.
func (fsys FS) Copy(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return errors.Wrap(err, "copy")
	}
	if !fi.IsDir() {
		return fsys.copyFile(src, dst, fi.Mode())
	}

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch d.Type() {
		case fs.ModeDir:
			return fsys.MkdirAll(target)
		case fs.ModeSymlink:
			link, err := os.Readlink(p)
			if err != nil {
				return errors.Wrap(err, "copy")
			}
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(err, "copy")
			}
			return fsys.Symlink(link, target)
		case 0:
			info, err := d.Info()
			if err != nil {
				return errors.Wrap(err, "copy")
			}
			return fsys.copyFile(p, target, info.Mode())
		default:
			return nil // devices and pipes are never extracted
		}
	})
}

func (fsys FS) copyFile(src, dst string, mode fs.FileMode) (err error) {
	r, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "copy")
	}
	defer multierr.AppendInvoke(&err, multierr.Close(r))

	w, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|oNofollow, mode.Perm())
	if err != nil {
		return errors.Wrapf(err, "copy %s", src)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(w))

	_, err = io.Copy(w, r)
	return errors.Wrapf(err, "copy %s to %s", src, dst)
}
