// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	"path"
	"path/filepath"
	"strings"
)

// Reroot maps the archive path name into the output tree.
//
// source selects the part of the archive being extracted and dest is where it
// lands. A source or dest that is empty, or whose last element is empty, "."
// or "..", names a directory. Entries outside source are reported with ok false.
//
// Archive paths are cleaned against an implicit root, so ".." components
// never climb out of dest.
func Reroot(name, source, dest string) (resolved string, ok bool) {
	n := CleanName(name)
	src := CleanName(source)
	if src == "" {
		return filepath.Join(dest, filepath.FromSlash(n)), true
	}

	if !strings.HasPrefix(n+"/", src+"/") {
		return "", false
	}
	rest := strings.TrimPrefix(n[len(src):], "/")

	// A single named file dropped into a directory keeps its name.
	if isDirStyle(dest) && !isDirStyle(source) {
		dest = filepath.Join(dest, path.Base(src))
	}
	return filepath.Join(dest, filepath.FromSlash(rest)), true
}

// CleanName cleans an archive path and strips the leading slash,
// returning "" for the root. Names compare equal after cleaning.
func CleanName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func isDirStyle(name string) bool {
	_, base := splitPath(name)
	return base == "" || base == "." || base == ".."
}

// Split at the last separator, which may be the OS one.
func splitPath(name string) (dir, base string) {
	i := strings.LastIndexAny(name, "/"+string(filepath.Separator))
	if i == -1 {
		return ".", name
	}
	return name[:i], name[i+1:]
}
