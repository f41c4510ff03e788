// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"

	"go.uber.org/multierr"
)

// ExtractAll extracts the whole archive into dest.
func (tr *Reader) ExtractAll(dest string) error {
	return tr.ExtractPath("", dest)
}

// ExtractPath extracts the archive subtree (or single file) named by source
// into dest. See Reroot for how names map into dest.
//
// Links are made after every other entry, so a hardlink may precede its
// target in the archive. Links that cannot be made are logged and skipped.
// On return the archive is rewound to its start, when it can seek.
func (tr *Reader) ExtractPath(source, dest string) (err error) {
	if err := tr.c.rewind(); err != nil {
		return &fs.PathError{Op: "extract", Path: source, Err: err}
	}
	x := &extraction{
		tr:     tr,
		fsys:   tr.filesystem(),
		source: source,
		dest:   dest,
		seen:   make(map[string]struct{}),
	}
	defer func() {
		err = multierr.Append(err, tr.c.rewind())
		x.runLinks()
	}()

	for {
		hdr, err := tr.next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := x.entry(hdr); err != nil {
			return err
		}
	}
}

// extraction is the state of one ExtractPath call.
type extraction struct {
	tr           *Reader
	fsys         Filesystem
	source, dest string
	seen         map[string]struct{}
	links        []linkAction
}

func (x *extraction) entry(hdr *Header) error {
	log := x.tr.log()
	if _, ok := x.seen[hdr.Name]; ok {
		return &fs.PathError{Op: "extract", Path: hdr.Name, Err: ErrDuplicate}
	}
	x.seen[hdr.Name] = struct{}{}

	pad := padding(hdr.Size)
	target, ok := Reroot(hdr.Name, x.source, x.dest)
	if ok && x.tr.Include != nil {
		ok = x.tr.Include(CleanName(hdr.Name))
	}
	if !ok {
		return x.skip(hdr, hdr.Size+pad)
	}
	log.Debug("extractEntry", "name", hdr.Name, "type", string(rune(hdr.Typeflag)), "size", hdr.Size, "path", target)

	switch hdr.Typeflag {
	case TypeDir:
		if err := x.fsys.MkdirAll(target); err != nil {
			return &fs.PathError{Op: "extract", Path: hdr.Name, Err: err}
		}
		return x.skip(hdr, hdr.Size+pad)

	case TypeReg, TypeRegA:
		if CleanName(hdr.Name) == "" {
			base := path.Base("/" + CleanName(x.source))
			if base == "/" {
				return &fs.PathError{Op: "extract", Path: hdr.Name, Err: fmt.Errorf("%w: file has no name", ErrFormat)}
			}
			target = filepath.Join(target, base)
		}
		if err := x.writeFile(hdr, target); err != nil {
			return err
		}
		return x.skip(hdr, pad)

	case TypeSymlink:
		x.links = append(x.links, linkAction{
			kind:   symlink,
			name:   hdr.Name,
			target: hdr.Linkname,
			path:   target,
		})
		return x.skip(hdr, hdr.Size+pad)

	case TypeLink:
		linkTarget, ok := Reroot(hdr.Linkname, x.source, x.dest)
		x.links = append(x.links, linkAction{
			kind:     hardlink,
			name:     hdr.Name,
			target:   linkTarget,
			outside:  !ok,
			linkname: hdr.Linkname,
			path:     target,
		})
		return x.skip(hdr, hdr.Size+pad)

	default:
		if x.tr.Strict {
			return &fs.PathError{Op: "extract", Path: hdr.Name, Err: fmt.Errorf("%w %q", ErrUnsupported, hdr.Typeflag)}
		}
		log.Warn("unsupportedEntry", "name", hdr.Name, "type", string(rune(hdr.Typeflag)))
		return x.skip(hdr, hdr.Size+pad)
	}
}

// writeFile copies the entry's data to target. The output is closed on every path.
func (x *extraction) writeFile(hdr *Header, target string) (err error) {
	defer func() {
		if err != nil {
			err = &fs.PathError{Op: "extract", Path: hdr.Name, Err: err}
		}
	}()

	if err := x.fsys.MkdirAll(filepath.Dir(target)); err != nil {
		return err
	}
	w, err := x.fsys.Create(target)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(w))

	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(w, io.LimitReader(&x.tr.c, hdr.Size), buf)
	if err != nil {
		return err
	}
	if n < hdr.Size {
		return fmt.Errorf("%w: data ends after %d of %d bytes", ErrCorrupt, n, hdr.Size)
	}
	return nil
}

// skip consumes data that will not be written.
// Extraction always reads sequentially.
func (x *extraction) skip(hdr *Header, n int64) error {
	if err := x.tr.c.discard(n, false); err != nil {
		return &fs.PathError{Op: "extract", Path: hdr.Name, Err: corrupt(err)}
	}
	return nil
}
