// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tar

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/elliotnunn/untar/internal/osfs"
)

// A Filesystem receives the output of an extraction.
type Filesystem interface {
	MkdirAll(name string) error
	Create(name string) (io.WriteCloser, error)
	Symlink(oldname, newname string) error
	Link(oldname, newname string) error
	Copy(src, dst string) error // recursive, overwriting
}

// Reader provides sequential access to the contents of a tar archive.
// A Reader is not safe for concurrent use.
type Reader struct {
	// Strict rejects entry types other than files, directories and links.
	// When false such entries are skipped.
	Strict bool

	// LinksAreCopies materializes symlinks and hardlinks as copies of their targets.
	LinksAreCopies bool

	// AllowSeek lets FileStream and Walk skip entry data with Seek
	// instead of reading it.
	AllowSeek bool

	// Include, if set, limits extraction to entries whose names it accepts.
	Include func(name string) bool

	FS  Filesystem   // defaults to the operating system
	Log *slog.Logger // defaults to slog.Default()

	c      cursor
	closer io.Closer
}

// NewReader creates a new Reader reading from r,
// which must be positioned at the start of the archive.
func NewReader(r io.Reader) *Reader {
	return &Reader{Strict: true, c: cursor{r: r}}
}

// Open opens the named archive file. Close releases it.
func Open(name string) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	tr := NewReader(f)
	tr.closer = f
	return tr, nil
}

// Close releases a file opened by Open.
func (tr *Reader) Close() error {
	if tr.closer == nil {
		return nil
	}
	err := tr.closer.Close()
	tr.closer = nil
	return err
}

func (tr *Reader) filesystem() Filesystem {
	if tr.FS == nil {
		return osfs.FS{}
	}
	return tr.FS
}

func (tr *Reader) log() *slog.Logger {
	if tr.Log == nil {
		return slog.Default()
	}
	return tr.Log
}

// next reads the next logical header, folding any long-name records into it.
// The cursor is left at the start of the entry's data.
// At the end-of-archive marker, or a clean end of stream, it returns io.EOF.
func (tr *Reader) next() (*Header, error) {
	var longName, longLink *string
	for {
		start := tr.c.pos
		var blk block
		if _, err := io.ReadFull(&tr.c, blk[:]); err != nil {
			if err == io.EOF && longName == nil && longLink == nil {
				return nil, io.EOF
			}
			return nil, headerError(start, &blk, truncated(err))
		}

		if blk.isZero() {
			if longName != nil || longLink != nil {
				return nil, headerError(start, &blk, ErrTruncated)
			}
			return nil, tr.endOfArchive()
		}

		hdr, err := decodeHeader(&blk)
		if err != nil {
			return nil, headerError(start, &blk, err)
		}

		if hdr.Name != longLinkName {
			if longName != nil {
				hdr.Name = *longName
			}
			if longLink != nil {
				hdr.Linkname = *longLink
			}
			return hdr, nil
		}

		s, err := tr.readSpecialFile(hdr.Size)
		if err != nil {
			return nil, &fs.PathError{Op: "read long name", Path: longLinkName, Err: err}
		}
		if hdr.Typeflag == TypeGNULongLink {
			longLink = &s
		} else {
			longName = &s
		}
	}
}

// endOfArchive checks the block following a zero block.
func (tr *Reader) endOfArchive() error {
	start := tr.c.pos
	var blk block
	_, err := io.ReadFull(&tr.c, blk[:])
	switch {
	case err == io.EOF:
		return io.EOF // one zero block is enough for some writers
	case err != nil:
		return headerError(start, &blk, fmt.Errorf("%w: end-of-archive marker: %w", ErrCorrupt, err))
	case !blk.isZero():
		return headerError(start, &blk, fmt.Errorf("%w: lone zero block", ErrCorrupt))
	}
	return io.EOF
}

// readSpecialFile reads the payload of a long-name record and its padding.
// The name ends at the first NUL.
func (tr *Reader) readSpecialFile(n int64) (string, error) {
	if n > maxSpecialFileSize {
		return "", ErrFieldTooLong
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(&tr.c, buf); err != nil {
		return "", truncated(err)
	}
	if err := tr.c.discard(padding(n), false); err != nil {
		return "", truncated(err)
	}
	var p parser
	return p.parseString(buf), nil
}

func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return err
}

// headerError names the entry a bad block belongs to as best it can.
func headerError(off int64, blk *block, err error) error {
	var p parser
	name := p.parseString(blk.name())
	if name == "" {
		name = fmt.Sprintf("block@%d", off)
	}
	return &fs.PathError{Op: "read header", Path: name, Err: err}
}

// cursor tracks the absolute position in the archive.
type cursor struct {
	r   io.Reader
	pos int64
}

func (c *cursor) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.pos += int64(n)
	return n, err
}

// discard skips n bytes, reporting io.ErrUnexpectedEOF if the stream ends first.
// If seek is set and the source can seek, most of the skip is done by seeking.
func (c *cursor) discard(n int64, seek bool) error {
	// Seek to the last byte before the end of the data section.
	// Seek is often lazy about reporting errors; this will mask
	// the fact that the stream may be truncated. We can rely on the
	// io.CopyN done shortly afterwards to trigger any IO errors.
	var seekSkipped int64 // Number of bytes skipped via Seek
	if sr, ok := c.r.(io.Seeker); seek && ok && n > 1 {
		// Not all io.Seeker can actually Seek. For example, os.Stdin implements
		// io.Seeker, but calling Seek always returns an error and performs
		// no action. Thus, we try an innocent seek to the current position
		// to see if Seek is really supported.
		pos1, err := sr.Seek(0, io.SeekCurrent)
		if pos1 >= 0 && err == nil {
			pos2, err := sr.Seek(n-1, io.SeekCurrent)
			if pos2 < 0 || err != nil {
				return err
			}
			seekSkipped = pos2 - pos1
			c.pos += seekSkipped
		}
	}

	copySkipped, err := io.CopyN(io.Discard, c, n-seekSkipped)
	if err == io.EOF && seekSkipped+copySkipped < n {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// rewind returns to the start of the archive if the source can seek.
func (c *cursor) rewind() error {
	if c.pos == 0 {
		return nil
	}
	sr, ok := c.r.(io.Seeker)
	if !ok {
		return nil
	}
	if _, err := sr.Seek(0, io.SeekCurrent); err != nil {
		return nil // a pipe, most likely
	}
	if _, err := sr.Seek(0, io.SeekStart); err != nil {
		return err
	}
	c.pos = 0
	return nil
}
