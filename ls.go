package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/elliotnunn/untar/internal/catalog"
	"github.com/elliotnunn/untar/internal/fileid"
	"github.com/elliotnunn/untar/internal/tar"
)

type lsOptions struct {
	archive  string
	patterns []string
}

func newLsCommand(g *globalOptions) *cobra.Command {
	var opts lsOptions

	cmd := &cobra.Command{
		Use:   "ls ARCHIVE [PATTERN...]",
		Short: "List the entries of an archive",
		Long: `List the entries of an archive, optionally only those matching glob patterns.

Each line shows the entry type, its size and its name. An indexed archive
is listed from the catalog in name order, otherwise in archive order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.archive, opts.patterns = args[0], args[1:]
			return runLs(g, opts, cmd.OutOrStdout())
		},
	}
	return cmd
}

func runLs(g *globalOptions, opts lsOptions, w io.Writer) (err error) {
	if err := validatePatterns(opts.patterns); err != nil {
		return err
	}
	show := func(name string, fi fs.FileInfo) error {
		name = tar.CleanName(name)
		if name == "" {
			name = "."
		}
		if len(opts.patterns) > 0 && !matchAny(opts.patterns, name) {
			return nil
		}
		_, err := fmt.Fprintf(w, "%c %9s %s\n", typeChar(fi), humanize.Bytes(uint64(fi.Size())), name)
		return err
	}

	if g.cache != "" && opts.archive != "-" {
		done, err := lsCached(g, opts.archive, show)
		if done || err != nil {
			return err
		}
	}

	tr, err := g.open(opts.archive)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(tr))

	return tr.Walk(func(hdr *tar.Header, _ int64) error {
		return show(hdr.Name, hdr.FileInfo())
	})
}

func lsCached(g *globalOptions, archive string, show func(string, fs.FileInfo) error) (done bool, err error) {
	id, stamp, err := identify(archive)
	if errors.Is(err, fileid.ErrNotOS) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	c, err := catalog.Open(g.cache, g.log)
	if err != nil {
		return false, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(c))

	if ok, err := c.Indexed(id, stamp); err != nil || !ok {
		return false, err
	}
	return true, c.List(id, func(name string, loc catalog.Location) error {
		hdr := &tar.Header{Name: name, Typeflag: loc.Typeflag, Size: loc.Size}
		return show(name, hdr.FileInfo())
	})
}

// typeChar is the letter ls -l would use, or 'h' for a hard link.
func typeChar(fi fs.FileInfo) rune {
	switch fi.Mode().Type() {
	case fs.ModeDir:
		return 'd'
	case fs.ModeSymlink:
		return 'l'
	case fs.ModeDevice | fs.ModeCharDevice:
		return 'c'
	case fs.ModeDevice:
		return 'b'
	case fs.ModeNamedPipe:
		return 'p'
	}
	hdr, _ := fi.Sys().(*tar.Header)
	switch {
	case hdr == nil || hdr.IsRegular():
		return '-'
	case hdr.Typeflag == tar.TypeLink:
		return 'h'
	default:
		return '?'
	}
}
