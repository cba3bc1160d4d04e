package tree

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/remotefs"
	"github.com/sidkik/cpsync/pkg/sync"
)

// Mocked for unit testing.
var (
	stdout     io.Writer = os.Stdout
	stderr     io.Writer = os.Stderr
	getClient            = util.GetClient
	isTerminal           = func() bool { return terminal.IsTerminal(int(os.Stdout.Fd())) }
)

// New creates a new `tree` command.
func New() *cobra.Command {
	var root string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the files on the device as a tree.",
		Long: "Print the files on the device as a tree.\n\n" +
			"Directories that can't be listed are shown with the error " +
			"instead of their contents.",
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, root, asJSON); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&root, "path", sync.RemoteRoot, "The remote directory to start from")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tree as nested JSON objects")
	return cmd
}

func run(ctx context.Context, root string, asJSON bool) error {
	client, _, err := getClient()
	if err != nil {
		return err
	}

	pp := util.NewProgressPrinter(stderr, fmt.Sprintf("Listing %s", root))
	go pp.Run()
	node := remotefs.BuildTree(ctx, client, root)
	pp.StopWithPrint(util.ClearProgress)

	if !asJSON {
		remotefs.Render(stdout, node, isTerminal())
		return nil
	}

	out, err := json.MarshalIndent(node.Map(), "", "  ")
	if err != nil {
		return errors.WithContext(err, "marshal tree")
	}
	fmt.Fprintln(stdout, string(out))
	return nil
}
