package info

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	getClient           = util.GetClient
)

type deviceInfo struct {
	URL      string              `json:"url"`
	Firmware device.VersionInfo  `json:"firmware"`
	Disks    []device.DiskInfo   `json:"disks"`
	Peers    []device.PeerDevice `json:"peers,omitempty"`
}

// New creates a new `info` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the device's firmware, disk usage, and the other devices it has seen.",
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
	client, _, err := getClient()
	if err != nil {
		return err
	}

	info := deviceInfo{URL: client.URL()}
	info.Firmware, err = client.Version(ctx)
	if err != nil {
		return errors.WithContext(err, "get firmware version")
	}

	info.Disks, err = client.DiskInfo(ctx)
	if err != nil {
		return errors.WithContext(err, "get disk info")
	}

	// Discovery can be disabled on the device, in which case the request
	// fails but the rest of the info is still useful.
	peers, err := client.Devices(ctx)
	if err != nil {
		log.WithError(err).Debug("Failed to get peer devices")
	} else {
		info.Peers = peers.Devices
	}

	out, err := yaml.Marshal(info)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}
	fmt.Fprint(stdout, string(out))
	return nil
}
