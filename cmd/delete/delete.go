package delete

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
	confirm             = util.PromptYesOrNo
)

// New creates a new `rm` command.
func New() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or directory on the device.",
		Long: "Delete a file or directory on the device. " +
			"Directories are deleted with everything in them.\n\n" +
			"Paths are relative to the device root, e.g. `fs/lib/old.mpy`. " +
			"The local cache isn't changed.",
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, args[0], force); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Don't ask for confirmation")
	return cmd
}

func run(ctx context.Context, path string, force bool) error {
	if !force {
		shouldDelete, err := confirm(fmt.Sprintf("Delete %s from the device?", path))
		if err != nil {
			return err
		}
		if !shouldDelete {
			fmt.Fprintln(stdout, "Nothing deleted.")
			return nil
		}
	}

	client, _, err := getClient()
	if err != nil {
		return err
	}

	if err := client.Delete(ctx, path); err != nil {
		if deviceErr, ok := errors.RootCause(err).(errors.DeviceError); ok && deviceErr.StatusCode == 404 {
			return errors.NewFriendlyError("%s doesn't exist on the device.", path)
		}
		return errors.WithContext(err, fmt.Sprintf("delete %s", path))
	}

	fmt.Fprintf(stdout, "Deleted %s\n", path)
	return nil
}
