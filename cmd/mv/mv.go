package mv

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	getClient           = util.GetClient
)

// New creates a new `mv` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "Move or rename a file or directory on the device.",
		Long: "Move or rename a file or directory on the device.\n\n" +
			"Paths are relative to the device root, e.g. `fs/code.py`. " +
			"The local cache isn't changed.",
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, args[0], args[1]); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(ctx context.Context, src, dst string) error {
	client, _, err := getClient()
	if err != nil {
		return err
	}

	if err := client.Move(ctx, src, dst); err != nil {
		if deviceErr, ok := errors.RootCause(err).(errors.DeviceError); ok {
			switch deviceErr.StatusCode {
			case 404:
				return errors.NewFriendlyError("%s doesn't exist on the device.", src)
			case 412:
				return errors.NewFriendlyError("%s already exists on the device.", dst)
			}
		}
		return errors.WithContext(err, fmt.Sprintf("move %s", src))
	}

	fmt.Fprintf(stdout, "Moved %s to %s\n", src, dst)
	return nil
}
