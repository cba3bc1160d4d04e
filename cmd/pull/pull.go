package pull

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/sync"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	getClient           = util.GetClient
	getStore            = util.GetStore
	newEngine           = util.NewEngine
)

// New creates a new `pull` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use: "pull",
		Short: "Copy every file on the device into the local cache. " +
			"The previous local copy is backed up first.",
		Args: cobra.NoArgs,
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
	client, userConfig, err := getClient()
	if err != nil {
		return err
	}

	store, err := getStore(ctx, client, userConfig)
	if err != nil {
		return err
	}

	pp := util.NewProgressPrinter(stdout, fmt.Sprintf("Pulling files from %s", client.URL()))
	go pp.Run()
	result, err := newEngine(client, store).Pull(ctx)
	pp.StopWithPrint(util.ClearProgress)

	printResult(stdout, store.FSDir(), result)
	if err != nil {
		return friendlyPullError(client, err)
	}
	return nil
}

func printResult(out io.Writer, mirror string, result sync.PullResult) {
	if result.Backup != nil {
		fmt.Fprintf(out, "Backed up the previous local files to %s\n", result.Backup.Path)
	}

	switch result.Rollback {
	case sync.RollbackRestored:
		fmt.Fprintf(out, "The pull failed, so the local files were restored from %s\n",
			result.Backup.Path)
	case sync.RollbackFailed:
		fmt.Fprintf(out, "The pull failed, and restoring %s failed too. "+
			"The local files in %s may be incomplete.\n", result.Backup.Path, mirror)
	default:
		fmt.Fprintf(out, "Pulled %d files and %d directories into %s\n",
			result.Files, result.Dirs, mirror)
	}
}

func friendlyPullError(client device.Client, err error) error {
	if deviceErr, ok := errors.RootCause(err).(errors.DeviceError); ok && deviceErr.StatusCode == 401 {
		return errors.NewFriendlyError("The device at %s rejected the password.\n"+
			"Set it with `cpsync config` or the --password flag.", client.URL())
	}
	return errors.WithContext(err, "pull")
}
