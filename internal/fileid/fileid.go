// Package fileid names an archive file on disk in a way that survives renames
// of its parent directories but changes when the file is replaced.
package fileid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// ID = (64 bits of inode number) + (32 bits of hash of (creation time + filename))
type ID [12]byte

var ErrNotOS = errors.New("file identity is not available on this operating system")

func (id ID) String() string { return hex.EncodeToString(id[:]) }

func newID(ino uint64, btimeSec int64, btimeNsec uint32, name string) ID {
	var id ID
	binary.BigEndian.PutUint64(id[:], ino)
	var h xxhash.Digest
	binary.Write(&h, binary.BigEndian, btimeSec)
	binary.Write(&h, binary.BigEndian, btimeNsec)
	h.WriteString(filepath.Base(name))
	binary.BigEndian.PutUint32(id[8:], uint32(h.Sum64()))
	return id
}
