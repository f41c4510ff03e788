// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	"io"
	"io/fs"
)

// Walk calls fn for every entry in the archive, in order,
// with the position of the entry's data. fn must not read from the Reader.
// An error from fn stops the walk and is returned.
func (tr *Reader) Walk(fn func(hdr *Header, dataOffset int64) error) error {
	if err := tr.c.rewind(); err != nil {
		return err
	}
	for {
		hdr, err := tr.next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := fn(hdr, tr.c.pos); err != nil {
			return err
		}
		if err := tr.c.discard(hdr.Size+padding(hdr.Size), tr.AllowSeek); err != nil {
			return &fs.PathError{Op: "walk", Path: hdr.Name, Err: corrupt(err)}
		}
	}
}
