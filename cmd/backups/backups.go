package backups

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/backup"
	"github.com/sidkik/cpsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout           io.Writer = os.Stdout
	getClient                  = util.GetClient
	getStore                   = util.GetStore
	newBackupManager           = util.NewBackupManager
)

// New creates a new `backups` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List the backups of the device's local files, oldest first.",
		Long: "List the backups of the device's local files, oldest first.\n\n" +
			"A backup is taken before every pull that would overwrite " +
			"local files. To go back to one, copy it over the local files " +
			"and run `cpsync push`.",
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

	snapshots, err := newBackupManager().List(store.Root())
	if err != nil {
		return errors.WithContext(err, "list backups")
	}

	if len(snapshots) == 0 {
		fmt.Fprintf(stdout, "No backups in %s\n", store.BackupDir())
		return nil
	}
	printSnapshots(stdout, snapshots)
	return nil
}

func printSnapshots(out io.Writer, snapshots []backup.Snapshot) {
	for _, snapshot := range snapshots {
		fmt.Fprintf(out, "%-24s %s\n", snapshot.Name, snapshot.Path)
	}
}
