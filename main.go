package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/elliotnunn/untar/internal/tar"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	strict        bool
	linksAsCopies bool
	seek          bool
	cache         string
	verbose       bool

	stdin io.Reader
	log   *slog.Logger
}

func main() {
	if err := newRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{stdin: stdin}

	cmd := &cobra.Command{
		Use:          "untar",
		Short:        "Extract and inspect ustar archives",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.log = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.BoolVar(&opts.strict, "strict", defaultStrict, "Fail on entries other than files, directories and links")
	flags.BoolVar(&opts.linksAsCopies, "links-as-copies", false, "Copy link targets instead of making links")
	flags.BoolVar(&opts.seek, "seek", false, "Seek over unwanted entry data instead of reading it")
	flags.StringVar(&opts.cache, "cache", defaultCache, "Catalog directory for indexed lookups")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every entry")

	cmd.AddCommand(
		newExtractCommand(opts),
		newCatCommand(opts),
		newLsCommand(opts),
		newIndexCommand(opts),
	)
	return cmd
}

// open returns a reader for the archive, or for stdin when name is "-".
func (o *globalOptions) open(name string) (*tar.Reader, error) {
	var tr *tar.Reader
	if name == "-" {
		tr = tar.NewReader(o.stdin)
	} else {
		var err error
		tr, err = tar.Open(name)
		if err != nil {
			return nil, err
		}
	}
	tr.Strict = o.strict
	tr.LinksAreCopies = o.linksAsCopies
	tr.AllowSeek = o.seek
	tr.Log = o.log
	return tr, nil
}
