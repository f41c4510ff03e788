// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field sizes of the ustar header.
const (
	nameSize   = 100
	prefixSize = 155
)

// block is one 512-byte record of the archive.
// Every field is addressed by its byte offset; nothing relies on struct layout.
type block [blockSize]byte

var zeroBlock block

func (b *block) isZero() bool { return bytes.Equal(b[:], zeroBlock[:]) }

func (b *block) name() []byte      { return b[0:][:100] }
func (b *block) mode() []byte      { return b[100:][:8] }
func (b *block) uid() []byte       { return b[108:][:8] }
func (b *block) gid() []byte       { return b[116:][:8] }
func (b *block) size() []byte      { return b[124:][:12] }
func (b *block) modTime() []byte   { return b[136:][:12] }
func (b *block) chksum() []byte    { return b[148:][:8] }
func (b *block) typeFlag() []byte  { return b[156:][:1] }
func (b *block) linkName() []byte  { return b[157:][:100] }
func (b *block) magic() []byte     { return b[257:][:6] }
func (b *block) version() []byte   { return b[263:][:2] }
func (b *block) userName() []byte  { return b[265:][:32] }
func (b *block) groupName() []byte { return b[297:][:32] }
func (b *block) devMajor() []byte  { return b[329:][:8] }
func (b *block) devMinor() []byte  { return b[337:][:8] }
func (b *block) prefix() []byte    { return b[345:][:155] }

// computeChecksum sums every byte of the block as unsigned,
// counting the checksum field itself as eight spaces.
func (b *block) computeChecksum() int64 {
	var sum int64
	for i, c := range b {
		if 148 <= i && i < 156 {
			c = ' '
		}
		sum += int64(c)
	}
	return sum
}

// formatChecksum renders a checksum the way it is stored:
// six octal digits, a NUL and a space.
func formatChecksum(sum int64) string {
	return fmt.Sprintf("%06o\x00 ", sum)
}

// decodeHeader validates a raw block and returns its logical header.
func decodeHeader(b *block) (*Header, error) {
	want := formatChecksum(b.computeChecksum())
	if string(b.chksum()) != want {
		return nil, fmt.Errorf("%w: checksum %q, computed %q", ErrFormat, b.chksum(), want)
	}

	magic, version := string(b.magic()), string(b.version())
	if magic != magicUSTAR && magic != magicGNU {
		return nil, fmt.Errorf("%w: magic %q", ErrFormat, magic)
	}

	var p parser
	hdr := &Header{
		Typeflag: b.typeFlag()[0],
		Name:     p.parseString(b.name()),
		Linkname: p.parseString(b.linkName()),
		Size:     p.parseOctal(b.size()),
		Mode:     p.parseOctal(b.mode()),
		Uid:      int(p.parseOctal(b.uid())),
		Gid:      int(p.parseOctal(b.gid())),
		ModTime:  time.Unix(p.parseOctal(b.modTime()), 0),
		Uname:    p.parseString(b.userName()),
		Gname:    p.parseString(b.groupName()),
		Checksum: p.parseOctal(b.chksum()),
		Magic:    magic,
		Version:  version,
	}
	if p.err != nil {
		return nil, p.err
	}

	// GNU reuses the prefix bytes for other purposes.
	if magic == magicUSTAR {
		if prefix := p.parseString(b.prefix()); prefix != "" {
			hdr.Name = prefix + "/" + hdr.Name
		}
	}
	return hdr, nil
}

// encodeHeader is the inverse of decodeHeader.
// The Checksum field of hdr is ignored and computed afresh.
func encodeHeader(hdr *Header) (*block, error) {
	var b block
	var f formatter

	magic, version := hdr.Magic, hdr.Version
	if magic == "" {
		magic, version = magicUSTAR, versionUSTAR
	}
	if len(magic) != 6 || len(version) != 2 {
		return nil, fmt.Errorf("%w: magic %q version %q", ErrFormat, magic, version)
	}

	name := hdr.Name
	if len(name) > nameSize && magic == magicUSTAR {
		if prefix, suffix, ok := splitUSTARPath(name); ok {
			f.formatString(b.prefix(), prefix)
			name = suffix
		}
	}
	f.formatString(b.name(), name)
	f.formatString(b.linkName(), hdr.Linkname)
	f.formatString(b.userName(), hdr.Uname)
	f.formatString(b.groupName(), hdr.Gname)
	f.formatOctal(b.mode(), hdr.Mode)
	f.formatOctal(b.uid(), int64(hdr.Uid))
	f.formatOctal(b.gid(), int64(hdr.Gid))
	f.formatOctal(b.size(), hdr.Size)
	modTime := hdr.ModTime
	if modTime.IsZero() {
		modTime = time.Unix(0, 0)
	}
	f.formatOctal(b.modTime(), modTime.Unix())
	f.formatOctal(b.devMajor(), 0)
	f.formatOctal(b.devMinor(), 0)
	if f.err != nil {
		return nil, f.err
	}
	b.typeFlag()[0] = hdr.Typeflag
	copy(b.magic(), magic)
	copy(b.version(), version)
	copy(b.chksum(), formatChecksum(b.computeChecksum()))
	return &b, nil
}

type parser struct {
	err error // Last error seen
}

// parseString parses bytes as a NUL-terminated C-style string.
// If a NUL byte is not found then the whole slice is returned as a string.
func (*parser) parseString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// parseOctal parses an octal field.
// Leading spaces and trailing NULs or spaces are tolerated;
// an all-blank field is zero.
func (p *parser) parseOctal(b []byte) int64 {
	s := strings.TrimRight(string(b), " \x00")
	s = strings.TrimLeft(s, " ")
	if s == "" {
		return 0
	}
	x, err := strconv.ParseUint(s, 8, 63)
	if err != nil {
		p.err = fmt.Errorf("%w: numeric field %q", ErrFormat, b)
	}
	return int64(x)
}

type formatter struct {
	err error // Last error seen
}

// formatString copies s into b, NUL-padding the remainder.
func (f *formatter) formatString(b []byte, s string) {
	if len(s) > len(b) {
		f.err = fmt.Errorf("%w: %q", ErrFieldTooLong, s)
		return
	}
	copy(b, s)
	clear(b[len(s):])
}

// formatOctal writes x as zero-padded octal followed by a NUL.
func (f *formatter) formatOctal(b []byte, x int64) {
	s := strconv.FormatInt(x, 8)
	if x < 0 || len(s) > len(b)-1 {
		f.err = fmt.Errorf("%w: %d does not fit %d octal digits", ErrFieldTooLong, x, len(b)-1)
		return
	}
	s = strings.Repeat("0", len(b)-1-len(s)) + s
	copy(b, s)
	b[len(b)-1] = 0
}

// splitUSTARPath splits a path according to USTAR prefix and suffix rules.
// If the path is not splittable, then it will return ("", "", false).
func splitUSTARPath(name string) (prefix, suffix string, ok bool) {
	length := len(name)
	if length <= nameSize {
		return "", "", false
	} else if length > prefixSize+1 {
		length = prefixSize + 1
	} else if name[length-1] == '/' {
		length--
	}

	i := strings.LastIndex(name[:length], "/")
	nlen := len(name) - i - 1 // nlen is length of suffix
	plen := i                 // plen is length of prefix
	if i <= 0 || nlen > nameSize || nlen == 0 || plen > prefixSize {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}
