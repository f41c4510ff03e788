package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/elliotnunn/untar/internal/catalog"
	"github.com/elliotnunn/untar/internal/fileid"
)

func newIndexCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index ARCHIVE",
		Short: "Record where every entry of an archive lies, for fast cat and ls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(g, args[0], cmd.OutOrStdout())
		},
	}
	return cmd
}

func runIndex(g *globalOptions, archive string, w io.Writer) (err error) {
	if g.cache == "" {
		return errors.New("index needs a catalog directory: set --cache or UNTAR_CACHE")
	}
	id, stamp, err := identify(archive)
	if err != nil {
		return err
	}

	tr, err := g.open(archive)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(tr))

	c, err := catalog.Open(g.cache, g.log)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(c))

	// The archive may have changed in place since it was last indexed
	if err := c.Forget(id); err != nil {
		return err
	}
	if err := c.Index(id, stamp, tr); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, id)
	return err
}

// identify names the archive for the catalog. The stamp is taken before the
// archive is read, so an archive rewritten while it is indexed is not trusted later.
func identify(archive string) (fileid.ID, catalog.Stamp, error) {
	id, err := fileid.Get(archive)
	if err != nil {
		return id, catalog.Stamp{}, err
	}
	fi, err := os.Stat(archive)
	if err != nil {
		return id, catalog.Stamp{}, err
	}
	return id, catalog.StampOf(fi), nil
}
