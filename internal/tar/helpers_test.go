// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	"bytes"
	"io"
	"testing"
	"time"
)

// archive builds test archives one record at a time.
type archive struct {
	t   *testing.T
	buf bytes.Buffer
}

func newArchive(t *testing.T) *archive {
	t.Helper()
	return &archive{t: t}
}

func (a *archive) header(hdr *Header) *archive {
	a.t.Helper()
	blk, err := encodeHeader(hdr)
	if err != nil {
		a.t.Fatalf("encodeHeader(%q): %v", hdr.Name, err)
	}
	a.buf.Write(blk[:])
	return a
}

// data writes s and pads it to a block boundary.
func (a *archive) data(s string) *archive {
	a.buf.WriteString(s)
	a.buf.Write(make([]byte, padding(int64(len(s)))))
	return a
}

func (a *archive) raw(b []byte) *archive {
	a.buf.Write(b)
	return a
}

func (a *archive) dir(name string) *archive {
	return a.header(&Header{Name: name, Typeflag: TypeDir, Mode: 0o755, ModTime: time.Unix(0, 0)})
}

func (a *archive) file(name, body string) *archive {
	return a.header(&Header{Name: name, Typeflag: TypeReg, Mode: 0o644, Size: int64(len(body)), ModTime: time.Unix(0, 0)}).data(body)
}

func (a *archive) symlink(name, target string) *archive {
	return a.header(&Header{Name: name, Typeflag: TypeSymlink, Linkname: target, Mode: 0o777, ModTime: time.Unix(0, 0)})
}

func (a *archive) hardlink(name, target string) *archive {
	return a.header(&Header{Name: name, Typeflag: TypeLink, Linkname: target, Mode: 0o644, ModTime: time.Unix(0, 0)})
}

func (a *archive) special(name string, typeflag byte) *archive {
	return a.header(&Header{Name: name, Typeflag: typeflag, Mode: 0o644, ModTime: time.Unix(0, 0)})
}

// longName writes a GNU long-name record, NUL-terminated the way GNU tar does.
func (a *archive) longName(typeflag byte, name string) *archive {
	payload := name + "\x00"
	return a.header(&Header{
		Name:     longLinkName,
		Typeflag: typeflag,
		Size:     int64(len(payload)),
		ModTime:  time.Unix(0, 0),
		Magic:    magicGNU,
		Version:  versionGNU,
	}).data(payload)
}

// end writes the two zero blocks and returns the archive.
func (a *archive) end() []byte {
	a.buf.Write(make([]byte, 2*blockSize))
	return a.bytes()
}

// bytes returns the archive so far, with no end marker.
func (a *archive) bytes() []byte {
	return bytes.Clone(a.buf.Bytes())
}

// sequential hides every method but Read, the way a pipe would.
type sequential struct{ r *bytes.Reader }

func (s sequential) Read(p []byte) (int, error) { return s.r.Read(p) }

// countingSeeker records how many bytes were skipped with Seek.
type countingSeeker struct {
	*bytes.Reader
	seeked int64
}

func (s *countingSeeker) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekCurrent {
		s.seeked += offset
	}
	return s.Reader.Seek(offset, whence)
}
