package glob

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/remotefs"
	"github.com/sidkik/cpsync/pkg/sync"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	getClient           = util.GetClient
)

// New creates a new `glob` command.
func New() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "glob [pattern]",
		Short: "Print the paths on the device whose name matches a pattern.",
		Long: "Print the paths on the device whose name matches a pattern, " +
			"parents before children.\n\n" +
			"The pattern is matched against the last element of each path, " +
			"e.g. `*.py`. Without a pattern, every path is printed. " +
			"Directories that can't be listed are skipped.",
		Args: cobra.MaximumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			var pattern string
			if len(args) == 1 {
				pattern = args[0]
			}

			if err := run(ctx, root, pattern); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&root, "path", sync.RemoteRoot, "The remote directory to search")
	return cmd
}

func run(ctx context.Context, root, pattern string) error {
	client, _, err := getClient()
	if err != nil {
		return err
	}

	paths, err := remotefs.Glob(ctx, client, root, pattern)
	if err != nil {
		return errors.WithContext(err, "compile pattern")
	}

	for paths.Next() {
		fmt.Fprintln(stdout, paths.Path())
	}
	return paths.Err()
}
