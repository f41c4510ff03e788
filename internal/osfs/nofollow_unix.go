// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build unix

package osfs

import "golang.org/x/sys/unix"

const oNofollow = unix.O_NOFOLLOW
