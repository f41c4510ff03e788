//go:build unix && !linux && !darwin

package fileid

import (
	"os"
	"syscall"
)

// No portable birth time, so the ID rests on the inode and the name alone.
func Get(name string) (ID, error) {
	inf, err := os.Lstat(name)
	if err != nil {
		return ID{}, err
	}
	stat, ok := inf.Sys().(*syscall.Stat_t)
	if !ok {
		return ID{}, ErrNotOS
	}
	return newID(uint64(stat.Ino), 0, 0, name), nil
}
