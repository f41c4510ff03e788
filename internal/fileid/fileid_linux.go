package fileid

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func Get(name string) (ID, error) {
	// statx is the only way to get the birth time on Linux
	var stat unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, name,
		unix.AT_SYMLINK_NOFOLLOW,
		unix.STATX_INO|unix.STATX_BTIME,
		&stat)
	if err != nil {
		return ID{}, &os.PathError{Op: "statx", Path: name, Err: err}
	}
	if stat.Mode&unix.S_IFMT == unix.S_IFLNK {
		return ID{}, &os.PathError{Op: "statx", Path: name, Err: errors.New("is a symlink")}
	}
	if stat.Mask&unix.STATX_BTIME == 0 { // filesystem without birth times
		stat.Btime = unix.StatxTimestamp{}
	}
	return newID(stat.Ino, stat.Btime.Sec, stat.Btime.Nsec, name), nil
}
