// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build !unix

package osfs

const oNofollow = 0
