package main

import (
	gotar "archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dustin/go-humanize"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"

	"github.com/elliotnunn/untar/internal/fileid"
	"github.com/elliotnunn/untar/internal/tar"
)

type testEntry struct {
	name, body, link string
	typ              byte
}

var testEntries = []testEntry{
	{name: "dir/", typ: gotar.TypeDir},
	{name: "dir/a.txt", typ: gotar.TypeReg, body: "hi"},
	{name: "dir/b.txt", typ: gotar.TypeReg, body: "hello there"},
	{name: "dir/sub/", typ: gotar.TypeDir},
	{name: "dir/sub/c.md", typ: gotar.TypeReg, body: "# c"},
	{name: "ln", typ: gotar.TypeSymlink, link: "dir/a.txt"},
}

func writeArchive(t *testing.T, entries []testEntry) string {
	t.Helper()
	var buf bytes.Buffer
	w := gotar.NewWriter(&buf)
	for _, e := range entries {
		err := w.WriteHeader(&gotar.Header{
			Name:     e.name,
			Linkname: e.link,
			Typeflag: e.typ,
			Size:     int64(len(e.body)),
			Mode:     0o644,
			ModTime:  time.Unix(1700000000, 0),
			Format:   gotar.FormatGNU,
		})
		assert.NilError(t, err)
		_, err = io.WriteString(w, e.body)
		assert.NilError(t, err)
	}
	assert.NilError(t, w.Close())

	name := filepath.Join(t.TempDir(), "test.tar")
	assert.NilError(t, os.WriteFile(name, buf.Bytes(), 0o644))
	return name
}

func untar(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	stdout, stderr, err := untarWithLog(t, stdin, args...)
	if stderr != "" {
		t.Log(stderr)
	}
	return stdout, err
}

func untarWithLog(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(stdin, &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func file(name, content string) fs.PathOp {
	return fs.WithFile(name, content, fs.MatchAnyFileMode)
}

func dir(name string, ops ...fs.PathOp) fs.PathOp {
	return fs.WithDir(name, append([]fs.PathOp{fs.MatchAnyFileMode}, ops...)...)
}

func expectTree(t *testing.T, path string, ops ...fs.PathOp) {
	t.Helper()
	assert.Assert(t, fs.Equal(path, fs.Expected(t, append([]fs.PathOp{fs.MatchAnyFileMode}, ops...)...)))
}

func TestExtractCommand(t *testing.T) {
	archive := writeArchive(t, testEntries)

	cases := []struct {
		desc   string
		flags  []string
		source string
		want   []fs.PathOp
	}{
		{"whole archive", nil, "", []fs.PathOp{
			dir("dir", file("a.txt", "hi"), file("b.txt", "hello there"), dir("sub", file("c.md", "# c"))),
			fs.WithSymlink("ln", "dir/a.txt"),
		}},
		{"subtree contents", nil, "dir/", []fs.PathOp{
			file("a.txt", "hi"), file("b.txt", "hello there"), dir("sub", file("c.md", "# c")),
		}},
		{"single file", nil, "dir/sub/c.md", []fs.PathOp{
			file("c.md", "# c"),
		}},
		{"include", []string{"--include", "**/*.txt"}, "", []fs.PathOp{
			dir("dir", file("a.txt", "hi"), file("b.txt", "hello there")),
		}},
		{"links as copies", []string{"--links-as-copies", "--include", "ln", "--include", "dir/a.txt"}, "", []fs.PathOp{
			dir("dir", file("a.txt", "hi")),
			file("ln", "hi"),
		}},
	}

	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			dest := fs.NewDir(t, "extract")
			args := append([]string{"extract"}, c.flags...)
			args = append(args, archive)
			if c.source != "" {
				args = append(args, c.source)
			}
			args = append(args, dest.Path()+"/")

			_, err := untar(t, nil, args...)
			assert.NilError(t, err)
			expectTree(t, dest.Path(), c.want...)
		})
	}
}

func TestExtractStrict(t *testing.T) {
	archive := writeArchive(t, []testEntry{
		{name: "pipe", typ: gotar.TypeFifo},
		{name: "a.txt", typ: gotar.TypeReg, body: "hi"},
	})

	dest := fs.NewDir(t, "extract")
	_, err := untar(t, nil, "extract", archive, dest.Path())
	assert.ErrorIs(t, err, tar.ErrUnsupported)

	dest = fs.NewDir(t, "extract")
	_, err = untar(t, nil, "--strict=false", "extract", archive, dest.Path())
	assert.NilError(t, err)
	expectTree(t, dest.Path(), file("a.txt", "hi"))
}

func TestExtractBadPattern(t *testing.T) {
	archive := writeArchive(t, testEntries)
	_, err := untar(t, nil, "extract", "--include", "[", archive, t.TempDir())
	assert.ErrorContains(t, err, "malformed pattern")
}

func TestCatCommand(t *testing.T) {
	archive := writeArchive(t, testEntries)

	out, err := untar(t, nil, "cat", archive, "dir/b.txt")
	assert.NilError(t, err)
	assert.Equal(t, out, "hello there")

	out, err = untar(t, nil, "--seek", "cat", archive, "./dir/sub/c.md")
	assert.NilError(t, err)
	assert.Equal(t, out, "# c")

	_, err = untar(t, nil, "cat", archive, "dir/missing")
	assert.ErrorIs(t, err, tar.ErrNotFound)

	_, err = untar(t, nil, "cat", archive, "dir")
	assert.ErrorIs(t, err, tar.ErrIsDir)
}

func TestCatStdin(t *testing.T) {
	data, err := os.ReadFile(writeArchive(t, testEntries))
	assert.NilError(t, err)

	out, err := untar(t, bytes.NewReader(data), "--seek", "cat", "-", "dir/a.txt")
	assert.NilError(t, err)
	assert.Equal(t, out, "hi")
}

func lsLine(typ rune, size uint64, name string) string {
	return fmt.Sprintf("%c %9s %s\n", typ, humanize.Bytes(size), name)
}

func TestLsCommand(t *testing.T) {
	archive := writeArchive(t, testEntries)

	out, err := untar(t, nil, "ls", archive)
	assert.NilError(t, err)
	assert.Equal(t, out, lsLine('d', 0, "dir")+
		lsLine('-', 2, "dir/a.txt")+
		lsLine('-', 11, "dir/b.txt")+
		lsLine('d', 0, "dir/sub")+
		lsLine('-', 3, "dir/sub/c.md")+
		lsLine('l', 0, "ln"))

	out, err = untar(t, nil, "ls", archive, "**/*.md", "ln")
	assert.NilError(t, err)
	assert.Equal(t, out, lsLine('-', 3, "dir/sub/c.md")+lsLine('l', 0, "ln"))
}

func TestLsTypes(t *testing.T) {
	archive := writeArchive(t, []testEntry{
		{name: "d/", typ: gotar.TypeDir},
		{name: "d/f", typ: gotar.TypeReg, body: strings.Repeat("x", 2000)},
		{name: "d/h", typ: gotar.TypeLink, link: "d/f"},
		{name: "d/s", typ: gotar.TypeSymlink, link: "f"},
		{name: "d/p", typ: gotar.TypeFifo},
		{name: "d/c", typ: gotar.TypeChar},
		{name: "d/b", typ: gotar.TypeBlock},
	})

	out, err := untar(t, nil, "ls", archive)
	assert.NilError(t, err)
	assert.Equal(t, out, lsLine('d', 0, "d")+
		lsLine('-', 2000, "d/f")+
		lsLine('h', 0, "d/h")+
		lsLine('l', 0, "d/s")+
		lsLine('p', 0, "d/p")+
		lsLine('c', 0, "d/c")+
		lsLine('b', 0, "d/b"))
}

func skipWithoutFileID(t *testing.T, name string) {
	if _, err := fileid.Get(name); errors.Is(err, fileid.ErrNotOS) {
		t.Skip(err)
	}
}

func TestIndexCommand(t *testing.T) {
	archive := writeArchive(t, []testEntry{
		{name: "z.txt", typ: gotar.TypeReg, body: "last"},
		{name: "a.txt", typ: gotar.TypeReg, body: "first"},
		{name: "a.txt", typ: gotar.TypeReg, body: "shadowed"},
		{name: "d/", typ: gotar.TypeDir},
	})
	skipWithoutFileID(t, archive)
	cache := filepath.Join(t.TempDir(), "cache")

	out, err := untar(t, nil, "--cache", cache, "index", archive)
	assert.NilError(t, err)
	id, err := fileid.Get(archive)
	assert.NilError(t, err)
	assert.Equal(t, out, id.String()+"\n")

	out, err = untar(t, nil, "--cache", cache, "cat", archive, "a.txt")
	assert.NilError(t, err)
	assert.Equal(t, out, "first")

	_, err = untar(t, nil, "--cache", cache, "cat", archive, "nope")
	assert.ErrorIs(t, err, tar.ErrNotFound)

	_, err = untar(t, nil, "--cache", cache, "cat", archive, "d")
	assert.ErrorIs(t, err, tar.ErrIsDir)

	// Name order, not archive order
	out, err = untar(t, nil, "--cache", cache, "ls", archive)
	assert.NilError(t, err)
	assert.Equal(t, out, lsLine('-', 5, "a.txt")+lsLine('d', 0, "d")+lsLine('-', 4, "z.txt"))

	// Indexing again replaces the old records
	_, err = untar(t, nil, "--cache", cache, "index", archive)
	assert.NilError(t, err)
	out, err = untar(t, nil, "--cache", cache, "cat", archive, "z.txt")
	assert.NilError(t, err)
	assert.Equal(t, out, "last")
}

func TestIndexRewrittenInPlace(t *testing.T) {
	archive := writeArchive(t, []testEntry{{name: "a.txt", typ: gotar.TypeReg, body: "first"}})
	skipWithoutFileID(t, archive)
	cache := filepath.Join(t.TempDir(), "cache")

	_, err := untar(t, nil, "--cache", cache, "index", archive)
	assert.NilError(t, err)
	before, err := fileid.Get(archive)
	assert.NilError(t, err)

	// Same file, new contents: the ID cannot tell
	rewritten, err := os.ReadFile(writeArchive(t, []testEntry{
		{name: "pad", typ: gotar.TypeReg, body: strings.Repeat("p", 3000)},
		{name: "a.txt", typ: gotar.TypeReg, body: "SECOND"},
	}))
	assert.NilError(t, err)
	assert.NilError(t, os.WriteFile(archive, rewritten, 0o644))
	after, err := fileid.Get(archive)
	assert.NilError(t, err)
	assert.Equal(t, after, before)

	scanned, err := untar(t, nil, "cat", archive, "a.txt")
	assert.NilError(t, err)
	cached, err := untar(t, nil, "--cache", cache, "cat", archive, "a.txt")
	assert.NilError(t, err)
	assert.Equal(t, scanned, "SECOND")
	assert.Equal(t, cached, scanned)

	out, err := untar(t, nil, "--cache", cache, "ls", archive)
	assert.NilError(t, err)
	assert.Equal(t, out, lsLine('-', 3000, "pad")+lsLine('-', 6, "a.txt"))
}

func TestCatalogLogging(t *testing.T) {
	archive := writeArchive(t, testEntries)
	skipWithoutFileID(t, archive)
	cache := filepath.Join(t.TempDir(), "cache")

	_, stderr, err := untarWithLog(t, nil, "--cache", cache, "index", archive)
	assert.NilError(t, err)
	assert.Equal(t, stderr, "")

	_, stderr, err = untarWithLog(t, nil, "--cache", cache, "--verbose", "index", archive)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(stderr, "msg=catalogIndex"), stderr)
	assert.Assert(t, strings.Contains(stderr, "entries=6"), stderr)
}

func TestIndexNeedsCache(t *testing.T) {
	archive := writeArchive(t, testEntries)
	_, err := untar(t, nil, "--cache", "", "index", archive)
	assert.ErrorContains(t, err, "catalog directory")
}

func TestUnindexedFallsBack(t *testing.T) {
	archive := writeArchive(t, testEntries)
	cache := filepath.Join(t.TempDir(), "cache")

	out, err := untar(t, nil, "--cache", cache, "cat", archive, "dir/a.txt")
	assert.NilError(t, err)
	assert.Equal(t, out, "hi")
}

func TestEnvStrict(t *testing.T) {
	cases := []struct {
		env  string
		want bool
	}{
		{"", true},
		{"1", true},
		{"0", false},
		{"false", false},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%q", c.env), func(t *testing.T) {
			t.Setenv("UNTAR_STRICT", c.env)
			if got := envStrict(); got != c.want {
				t.Errorf("Expected %v but got %v", c.want, got)
			}
		})
	}

	t.Setenv("UNTAR_STRICT", "maybe")
	defer func() {
		if recover() == nil {
			t.Error("Expected a panic for a malformed value")
		}
	}()
	envStrict()
}

func TestEnvCache(t *testing.T) {
	t.Setenv("UNTAR_CACHE", "/tmp/untar//cache/")
	assert.Equal(t, envCache(), "/tmp/untar/cache")
	t.Setenv("UNTAR_CACHE", "")
	assert.Equal(t, envCache(), "")
}
