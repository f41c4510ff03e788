// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tar reads ustar archives, either extracting them to a directory
// tree or exposing the data of a single member without extracting.
//
// Only regular files, directories, symlinks and hardlinks are understood.
// GNU long names (the "././@LongLink" convention) are followed; PAX records
// and sparse files are not.
package tar

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

var (
	ErrFormat       = errors.New("tar: invalid header")
	ErrTruncated    = errors.New("tar: archive truncated")
	ErrCorrupt      = errors.New("tar: archive corrupt")
	ErrDuplicate    = errors.New("tar: duplicate entry")
	ErrUnsupported  = errors.New("tar: unsupported entry type")
	ErrNotFound     = fmt.Errorf("tar: %w", fs.ErrNotExist)
	ErrIsDir        = errors.New("tar: is a directory")
	ErrFieldTooLong = errors.New("tar: header field too long")
)

// Type flags for Header.Typeflag.
const (
	// Type '0' indicates a regular file.
	TypeReg = '0'

	// Type NUL is the pre-POSIX spelling of a regular file.
	TypeRegA = '\x00'

	TypeLink    = '1' // Hard link
	TypeSymlink = '2' // Symbolic link
	TypeChar    = '3' // Character device node
	TypeBlock   = '4' // Block device node
	TypeDir     = '5' // Directory
	TypeFifo    = '6' // FIFO node

	// Types 'L' and 'K' are used by the GNU format for a meta file
	// used to store the path or link name for the next file.
	TypeGNULongName = 'L'
	TypeGNULongLink = 'K'
)

// longLinkName is the name every GNU long-name record carries.
const longLinkName = "././@LongLink"

const (
	blockSize = 512

	// Names longer than this are not accepted from a long-name record.
	maxSpecialFileSize = 1 << 20

	// Entry data is copied and discarded in chunks of this size.
	chunkSize = 4096
)

const (
	magicUSTAR   = "ustar\x00"
	versionUSTAR = "00"
	magicGNU     = "ustar "
	versionGNU   = " \x00"
)

// A Header represents a single header in a tar archive.
// Some fields may not be populated.
type Header struct {
	Typeflag byte

	Name     string // Name of file entry
	Linkname string // Target name of link (valid for TypeLink or TypeSymlink)

	Size  int64  // Logical file size in bytes
	Mode  int64  // Permission and mode bits
	Uid   int    // User ID of owner
	Gid   int    // Group ID of owner
	Uname string // User name of owner
	Gname string // Group name of owner

	ModTime time.Time // Modification time, second precision

	Checksum int64  // Header checksum as stored
	Magic    string // Six bytes of the magic field
	Version  string // Two bytes of the version field
}

// FileInfo returns an fs.FileInfo for the Header.
func (h *Header) FileInfo() fs.FileInfo {
	return headerFileInfo{h}
}

// IsRegular reports whether the entry carries file data.
func (h *Header) IsRegular() bool {
	return h.Typeflag == TypeReg || h.Typeflag == TypeRegA
}

// headerFileInfo implements fs.FileInfo.
type headerFileInfo struct {
	h *Header
}

func (fi headerFileInfo) Size() int64        { return fi.h.Size }
func (fi headerFileInfo) IsDir() bool        { return fi.Mode().IsDir() }
func (fi headerFileInfo) ModTime() time.Time { return fi.h.ModTime }
func (fi headerFileInfo) Sys() any           { return fi.h }

// Name returns the base name of the file.
func (fi headerFileInfo) Name() string {
	if name := CleanName(fi.h.Name); name != "" {
		_, base := splitPath(name)
		return base
	}
	return "."
}

// Mode returns the permission and mode bits for the headerFileInfo.
func (fi headerFileInfo) Mode() (mode fs.FileMode) {
	mode = fs.FileMode(fi.h.Mode).Perm()
	switch fi.h.Typeflag {
	case TypeSymlink:
		mode |= fs.ModeSymlink
	case TypeChar:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case TypeBlock:
		mode |= fs.ModeDevice
	case TypeDir:
		mode |= fs.ModeDir
	case TypeFifo:
		mode |= fs.ModeNamedPipe
	}
	return mode
}

// padding returns the number of zero bytes that follow n bytes of entry data.
func padding(n int64) int64 {
	return (blockSize - n%blockSize) % blockSize
}
