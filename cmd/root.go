package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/backups"
	"github.com/sidkik/cpsync/cmd/bugtool"
	configCmd "github.com/sidkik/cpsync/cmd/config"
	deleteCmd "github.com/sidkik/cpsync/cmd/delete"
	"github.com/sidkik/cpsync/cmd/discover"
	"github.com/sidkik/cpsync/cmd/glob"
	"github.com/sidkik/cpsync/cmd/info"
	"github.com/sidkik/cpsync/cmd/mv"
	"github.com/sidkik/cpsync/cmd/pull"
	"github.com/sidkik/cpsync/cmd/push"
	"github.com/sidkik/cpsync/cmd/tree"
	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "CPSYNC_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "cpsync",
		Short: "Mirror the files on a CircuitPython device over the web workflow.",
		Long: "Mirror the files on a CircuitPython device over the web workflow.\n\n" +
			"Files are pulled into a local cache directory per device, " +
			"and the local copy is backed up before every pull.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose || os.Getenv(verboseLogKey) == "true" {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&util.Flags.URL, "url", "u", "",
		"The web workflow URL of the device. Overrides the user config.")
	flags.StringVarP(&util.Flags.Password, "password", "p", "",
		"The web workflow password. Overrides the user config.")
	flags.StringVar(&util.Flags.CachePath, "cache", "",
		"The directory that holds the local copy of each device. Overrides the user config.")
	flags.BoolVar(&verbose, "verbose", false,
		"Log debug messages. Can also be enabled with "+verboseLogKey+"=true.")

	rootCmd.AddCommand(
		backups.New(),
		bugtool.New(),
		configCmd.New(),
		deleteCmd.New(),
		discover.New(),
		glob.New(),
		info.New(),
		mv.New(),
		pull.New(),
		push.New(),
		tree.New(),
		version.New(),
	)
	return rootCmd
}
