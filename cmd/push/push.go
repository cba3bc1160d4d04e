package push

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/cache"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/fswatch"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	getClient           = util.GetClient
	getStore            = util.GetStore
	newEngine           = util.NewEngine
	watchDir            = fswatch.Watch
)

// New creates a new `push` command.
func New() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use: "push",
		Short: "Copy every file in the local cache onto the device. " +
			"Files on the device are overwritten.",
		Long: "Copy every file in the local cache onto the device. " +
			"Files on the device are overwritten.\n\n" +
			"Files that were deleted locally aren't deleted from the device. " +
			"Use `cpsync rm` for that.",
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, watch); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false,
		"Keep running, and push again whenever a local file changes")
	return cmd
}

func run(ctx context.Context, watch bool) error {
	client, userConfig, err := getClient()
	if err != nil {
		return err
	}

	store, err := getStore(ctx, client, userConfig)
	if err != nil {
		return err
	}

	if err := util.CheckReachable(ctx, client); err != nil {
		return err
	}

	if err := push(ctx, client, store); err != nil {
		return err
	}

	if !watch {
		return nil
	}
	return watchAndPush(ctx, client, store)
}

func push(ctx context.Context, client device.Client, store *cache.Store) error {
	pp := util.NewProgressPrinter(stdout, fmt.Sprintf("Pushing files to %s", client.URL()))
	go pp.Run()
	result, err := newEngine(client, store).Push(ctx)
	pp.StopWithPrint(util.ClearProgress)

	if err != nil {
		if _, ok := errors.RootCause(err).(errors.FileNotFound); ok {
			return errors.NewFriendlyError("There are no local files for this device in %s.\n"+
				"Run `cpsync pull` first.", store.FSDir())
		}
		fmt.Fprintf(stdout, "Pushed %d files and %d directories before failing\n",
			result.Files, result.Dirs)
		return errors.WithContext(err, "push")
	}

	fmt.Fprintf(stdout, "Pushed %d files and %d directories to %s\n",
		result.Files, result.Dirs, client.URL())
	return nil
}

// watchAndPush pushes the local files every time they change, until ctx is
// cancelled. Failed pushes are logged, and retried on the next change.
func watchAndPush(ctx context.Context, client device.Client, store *cache.Store) error {
	watcher, err := watchDir(store.FSDir())
	if err != nil {
		return errors.WithContext(err, "watch local files")
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.WithError(err).Debug("Failed to close file watcher")
		}
	}()

	fmt.Fprintf(stdout, "Watching %s for changes. Press Ctrl-C to stop.\n", store.FSDir())
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Updates:
			if !ok {
				return nil
			}
			if err := push(ctx, client, store); err != nil {
				log.WithError(err).Warn("Push failed. It will be retried on the next change")
			}
		}
	}
}
