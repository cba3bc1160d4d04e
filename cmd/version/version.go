package version

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/version"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	getClient           = util.GetClient
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the local version of cpsync and the device's firmware version.",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(ctx context.Context) error {
	fmt.Fprintf(stdout, "local version:  %s\n", version.Version)

	client, _, err := getClient()
	if err != nil {
		return err
	}

	info, err := client.Version(ctx)
	if err != nil {
		return errors.WithContext(err, "get firmware version")
	}

	fmt.Fprintf(stdout, "device version: %s (%s)\n", info.Version, info.BoardName)
	if supported, err := info.Supported(); err == nil && !supported {
		fmt.Fprintf(stdout, "The device's firmware predates the web workflow. "+
			"Upgrade to CircuitPython %s or newer.\n", device.MinimumWebWorkflowVersion)
	}
	return nil
}
