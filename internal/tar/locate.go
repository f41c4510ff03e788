// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/elliotnunn/untar/internal/sectionreader"
)

// FileStream finds the regular file called name and returns its data.
//
// The File reads straight from the archive, so it is only valid until the
// Reader is next used. A seekable archive is rewound first, so that earlier
// calls do not hide entries.
func (tr *Reader) FileStream(name string) (*File, error) {
	if err := tr.c.rewind(); err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	want := CleanName(name)
	for {
		hdr, err := tr.next()
		if err == io.EOF {
			return nil, &fs.PathError{Op: "open", Path: name, Err: ErrNotFound}
		} else if err != nil {
			return nil, err
		}

		if CleanName(hdr.Name) == want {
			switch {
			case hdr.Typeflag == TypeDir:
				return nil, &fs.PathError{Op: "open", Path: name, Err: ErrIsDir}
			case hdr.IsRegular():
				return tr.newFile(hdr), nil
			case tr.Strict:
				return nil, &fs.PathError{Op: "open", Path: name, Err: fmt.Errorf("%w %q", ErrUnsupported, hdr.Typeflag)}
			}
		}

		if err := tr.c.discard(hdr.Size+padding(hdr.Size), tr.AllowSeek); err != nil {
			return nil, &fs.PathError{Op: "open", Path: hdr.Name, Err: corrupt(err)}
		}
	}
}

func corrupt(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: data ends early", ErrCorrupt)
	}
	return err
}

// A File is the data of one archive member.
type File struct {
	hdr *Header
	off int64
	r   io.LimitedReader
	ra  *sectionreader.ReaderAt // nil unless the archive is an io.ReaderAt
}

func (tr *Reader) newFile(hdr *Header) *File {
	f := &File{
		hdr: hdr,
		off: tr.c.pos,
		r:   io.LimitedReader{R: &tr.c, N: hdr.Size},
	}
	if ra, ok := tr.c.r.(io.ReaderAt); ok {
		f.ra = sectionreader.Section(ra, f.off, hdr.Size)
	}
	return f
}

// Read reads the data sequentially from the archive.
// A short archive is reported as ErrCorrupt.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err == io.EOF && f.r.N > 0 {
		err = fmt.Errorf("%w: data ends early", ErrCorrupt)
	}
	return n, err
}

// ReadAt reads the data at random, without disturbing the archive position.
// It fails with errors.ErrUnsupported unless the archive is an io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.ra == nil {
		return 0, errors.ErrUnsupported
	}
	return f.ra.ReadAt(p, off)
}

func (f *File) Size() int64 { return f.hdr.Size }

// Offset is the position of the data within the archive.
func (f *File) Offset() int64 { return f.off }

func (f *File) Header() *Header { return f.hdr }
