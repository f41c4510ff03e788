package main

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type extractOptions struct {
	archive string
	source  string
	dest    string
	include []string
}

func newExtractCommand(g *globalOptions) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract [OPTIONS] ARCHIVE [SOURCE] DEST",
		Short: "Extract an archive, or one file or subtree of it",
		Long: `Extract an archive, or one file or subtree of it.

A SOURCE ending in a slash is copied into DEST by its contents.
Otherwise a DEST ending in a slash receives SOURCE by its own name.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.archive, opts.dest = args[0], args[len(args)-1]
			if len(args) == 3 {
				opts.source = args[1]
			}
			return runExtract(g, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVar(&opts.include, "include", nil, "Only extract entries matching this glob (repeatable)")

	return cmd
}

func runExtract(g *globalOptions, opts extractOptions) (err error) {
	if err := validatePatterns(opts.include); err != nil {
		return err
	}

	tr, err := g.open(opts.archive)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(tr))

	if len(opts.include) > 0 {
		tr.Include = func(name string) bool {
			return matchAny(opts.include, name)
		}
	}
	return tr.ExtractPath(opts.source, opts.dest)
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("malformed pattern %q", p)
		}
	}
	return nil
}

// matchAny reports whether the archive name matches any of the patterns.
// Patterns are validated beforehand.
func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
