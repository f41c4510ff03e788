package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/elliotnunn/untar/internal/catalog"
	"github.com/elliotnunn/untar/internal/fileid"
	"github.com/elliotnunn/untar/internal/tar"
)

type catOptions struct {
	archive string
	name    string
}

func newCatCommand(g *globalOptions) *cobra.Command {
	var opts catOptions

	cmd := &cobra.Command{
		Use:   "cat ARCHIVE PATH",
		Short: "Write one file from an archive to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.archive, opts.name = args[0], args[1]
			return runCat(g, opts, cmd.OutOrStdout())
		},
	}
	return cmd
}

func runCat(g *globalOptions, opts catOptions, w io.Writer) (err error) {
	if g.cache != "" && opts.archive != "-" {
		done, err := catCached(g, opts, w)
		if done || err != nil {
			return err
		}
	}

	tr, err := g.open(opts.archive)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(tr))

	f, err := tr.FileStream(opts.name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// catCached serves the file straight from its byte range if the archive has been indexed.
// It reports false when the caller should scan the archive instead.
func catCached(g *globalOptions, opts catOptions, w io.Writer) (done bool, err error) {
	id, stamp, err := identify(opts.archive)
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
	loc, err := c.Lookup(id, opts.name)
	if err != nil {
		return true, err
	}
	if loc.Typeflag != tar.TypeReg && loc.Typeflag != tar.TypeRegA {
		return false, nil // let the scan report it
	}

	f, err := os.Open(opts.archive)
	if err != nil {
		return true, err
	}
	defer f.Close()
	_, err = io.Copy(w, loc.Section(f).Reader())
	return true, err
}
