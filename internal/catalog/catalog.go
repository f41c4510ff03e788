// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package catalog remembers where each member of an archive lives,
// so that later lookups can read its data without scanning the archive.
package catalog

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
	"github.com/pkg/errors"

	"github.com/elliotnunn/untar/internal/fileid"
	"github.com/elliotnunn/untar/internal/sectionreader"
	"github.com/elliotnunn/untar/internal/tar"
)

const hotSize = 4096

// Key prefixes
const (
	pfxEntry  = 'e' // + archive ID + clean name -> Location
	pfxMarker = 'm' // + archive ID -> Stamp, present once an archive is indexed
)

// A Location is where an archive member's data lies.
type Location struct {
	Offset   int64
	Size     int64
	Typeflag byte
}

const locationSize = 17

// Section bounds the archive to the member's data.
func (l Location) Section(archive io.ReaderAt) *sectionreader.ReaderAt {
	return sectionreader.Section(archive, l.Offset, l.Size)
}

func (l Location) marshal() []byte {
	b := make([]byte, locationSize)
	binary.LittleEndian.PutUint64(b[0:], uint64(l.Offset))
	binary.LittleEndian.PutUint64(b[8:], uint64(l.Size))
	b[16] = l.Typeflag
	return b
}

func unmarshalLocation(b []byte) (Location, error) {
	if len(b) != locationSize {
		return Location{}, errors.Errorf("catalog: corrupt record of %d bytes", len(b))
	}
	return Location{
		Offset:   int64(binary.LittleEndian.Uint64(b[0:])),
		Size:     int64(binary.LittleEndian.Uint64(b[8:])),
		Typeflag: b[16],
	}, nil
}

// A Stamp is the size and modification time an archive had when it was indexed.
// An archive rewritten in place keeps its ID but not its Stamp.
type Stamp struct {
	Size    int64
	ModTime time.Time
}

const stampSize = 16

// StampOf describes the archive file as it is now.
func StampOf(fi fs.FileInfo) Stamp {
	return Stamp{Size: fi.Size(), ModTime: fi.ModTime()}
}

func (s Stamp) marshal() []byte {
	b := make([]byte, stampSize)
	binary.LittleEndian.PutUint64(b[0:], uint64(s.Size))
	binary.LittleEndian.PutUint64(b[8:], uint64(s.ModTime.UnixNano()))
	return b
}

func (s Stamp) matches(b []byte) bool {
	return len(b) == stampSize &&
		int64(binary.LittleEndian.Uint64(b[0:])) == s.Size &&
		int64(binary.LittleEndian.Uint64(b[8:])) == s.ModTime.UnixNano()
}

// A Catalog is safe for concurrent use by multiple goroutines.
type Catalog struct {
	db  *pebble.DB
	log *slog.Logger

	mu  sync.Mutex
	hot *tinylfu.T[string, Location]
}

// Open opens or creates a catalog database in dir.
// Messages from the catalog and its database go to log, or slog.Default() if nil.
func Open(dir string, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := pebble.Open(dir, &pebble.Options{Logger: pebbleLogger{log}})
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", dir)
	}
	return &Catalog{db: db, log: log, hot: newHot()}, nil
}

// pebbleLogger demotes the database's chatter to debug level.
type pebbleLogger struct {
	log *slog.Logger
}

func (l pebbleLogger) Infof(format string, args ...any) {
	l.log.Debug("pebble", "msg", fmt.Sprintf(format, args...))
}

func (l pebbleLogger) Errorf(format string, args ...any) {
	l.log.Error("pebble", "msg", fmt.Sprintf(format, args...))
}

func (l pebbleLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.log.Error("pebbleFatal", "msg", msg)
	panic(msg)
}

func newHot() *tinylfu.T[string, Location] {
	return tinylfu.New[string, Location](hotSize, hotSize*10, xxhash.Sum64String)
}

func (c *Catalog) Close() error {
	return errors.Wrap(c.db.Close(), "close catalog")
}

func entryKey(id fileid.ID, name string) []byte {
	k := make([]byte, 0, 1+len(id)+len(name))
	k = append(k, pfxEntry)
	k = append(k, id[:]...)
	return append(k, tar.CleanName(name)...)
}

func markerKey(id fileid.ID) []byte {
	return append([]byte{pfxMarker}, id[:]...)
}

// Index records every member of the archive read by tr, along with the
// archive's stamp. Nothing is recorded unless the whole archive can be read.
func (c *Catalog) Index(id fileid.ID, stamp Stamp, tr *tar.Reader) error {
	b := c.db.NewBatch()
	defer b.Close()

	// The first of several entries with one name wins, as in FileStream
	seen := make(map[string]struct{})
	err := tr.Walk(func(hdr *tar.Header, off int64) error {
		name := tar.CleanName(hdr.Name)
		if _, ok := seen[name]; ok {
			return nil
		}
		seen[name] = struct{}{}
		loc := Location{Offset: off, Size: hdr.Size, Typeflag: hdr.Typeflag}
		return b.Set(entryKey(id, hdr.Name), loc.marshal(), nil)
	})
	if err != nil {
		return errors.Wrapf(err, "index %s", id)
	}
	if err := b.Set(markerKey(id), stamp.marshal(), nil); err != nil {
		return errors.Wrapf(err, "index %s", id)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return errors.Wrapf(err, "index %s", id)
	}
	c.log.Debug("catalogIndex", "archive", id.String(), "entries", len(seen))
	return nil
}

// Indexed reports whether Index has completed for the archive
// and the archive still has the stamp it was indexed with.
func (c *Catalog) Indexed(id fileid.ID, stamp Stamp) (bool, error) {
	v, closer, err := c.db.Get(markerKey(id))
	if err == pebble.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "catalog %s", id)
	}
	ok := stamp.matches(v)
	if !ok {
		c.log.Debug("catalogStale", "archive", id.String())
	}
	return ok, closer.Close()
}

// Lookup finds the named member. A member missing from an indexed
// archive is reported as tar.ErrNotFound.
func (c *Catalog) Lookup(id fileid.ID, name string) (Location, error) {
	k := entryKey(id, name)

	c.mu.Lock()
	loc, ok := c.hot.Get(string(k))
	c.mu.Unlock()
	if ok {
		return loc, nil
	}

	v, closer, err := c.db.Get(k)
	if err == pebble.ErrNotFound {
		return Location{}, &fs.PathError{Op: "lookup", Path: name, Err: tar.ErrNotFound}
	} else if err != nil {
		return Location{}, errors.Wrapf(err, "lookup %s", name)
	}
	loc, err = unmarshalLocation(v)
	closer.Close()
	if err != nil {
		return Location{}, err
	}

	c.mu.Lock()
	c.hot.Add(string(k), loc)
	c.mu.Unlock()
	return loc, nil
}

// List calls fn for every recorded member of the archive, in name order.
func (c *Catalog) List(id fileid.ID, fn func(name string, loc Location) error) (err error) {
	prefix := entryKey(id, "")
	it, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return errors.Wrapf(err, "list %s", id)
	}
	defer func() {
		if cerr := it.Close(); err == nil {
			err = cerr
		}
	}()

	for it.First(); it.Valid(); it.Next() {
		loc, err := unmarshalLocation(it.Value())
		if err != nil {
			return err
		}
		if err := fn(string(it.Key()[len(prefix):]), loc); err != nil {
			return err
		}
	}
	return it.Error()
}

// Forget drops everything recorded about the archive.
func (c *Catalog) Forget(id fileid.ID) error {
	prefix := entryKey(id, "")
	b := c.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(prefix, upperBound(prefix), nil); err != nil {
		return errors.Wrapf(err, "forget %s", id)
	}
	if err := b.Delete(markerKey(id), nil); err != nil {
		return errors.Wrapf(err, "forget %s", id)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return errors.Wrapf(err, "forget %s", id)
	}

	// The cache cannot drop keys selectively
	c.mu.Lock()
	c.hot = newHot()
	c.mu.Unlock()
	return nil
}

// upperBound is the smallest key greater than every key with the prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // no upper bound
}
