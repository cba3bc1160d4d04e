package discover

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/discovery"
	"github.com/sidkik/cpsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	scan             = discovery.Scan
)

// New creates a new `discover` command.
func New() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the web workflow devices on the local network.",
		Long: "List the web workflow devices on the local network.\n\n" +
			"Devices are found over mDNS, so this only works on the same " +
			"network segment as the device. Use one of the URLs with " +
			"`cpsync config --url` or the --url flag.",
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, timeout); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", discovery.DefaultTimeout,
		"How long to wait for devices to answer")
	return cmd
}

func run(ctx context.Context, timeout time.Duration) error {
	pp := util.NewProgressPrinter(stderr, "Looking for devices")
	go pp.Run()
	devices, err := scan(ctx, timeout, log.StandardLogger())
	pp.StopWithPrint(util.ClearProgress)
	if err != nil {
		return errors.WithContext(err, "scan for devices")
	}

	if len(devices) == 0 {
		fmt.Fprintln(stdout, "No devices found.")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tNAME\tIP")
	for _, device := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\n", device.URL, device.Instance, device.IP)
	}
	return w.Flush()
}
