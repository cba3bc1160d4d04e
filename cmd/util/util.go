package util

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/cpsync/pkg/backup"
	"github.com/sidkik/cpsync/pkg/cache"
	"github.com/sidkik/cpsync/pkg/config"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/sync"
)

// Flags are the connection settings given on the command line. They're bound
// to the root command's persistent flags, and take precedence over the user
// config.
var Flags config.Overrides

// Mocked for unit testing.
var (
	// Fs is the filesystem that holds the local cache.
	Fs afero.Fs = afero.NewOsFs()

	stderr          io.Writer = os.Stderr
	stdin           io.Reader = os.Stdin
	exit                      = os.Exit
	parseUserConfig           = config.ParseUser
)

// HandleFatalError prints err and exits. Friendly errors are printed as-is,
// other errors are prefixed with "Error:".
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(stderr, formatFatalError(err))
	exit(1)
}

func formatFatalError(err error) string {
	if friendlyErr, ok := errors.RootCause(err).(errors.FriendlyError); ok {
		return friendlyErr.FriendlyMessage()
	}
	return fmt.Sprintf("Error: %s", err)
}

// HandlePanic logs the stack trace of a panic before letting it crash the
// program. It must be deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Error("cpsync crashed unexpectedly")
		panic(r)
	}
}

// PromptYesOrNo asks the user a yes or no question. Anything other than an
// explicit yes is treated as no.
func PromptYesOrNo(prompt string) (bool, error) {
	fmt.Fprintf(stderr, "%s (y/N) ", prompt)
	resp, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.WithContext(err, "read response")
	}

	switch strings.ToLower(strings.TrimSpace(resp)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// GetUserConfig returns the user config, with the command line flags and
// defaults applied.
func GetUserConfig() (config.User, error) {
	userConfig, err := parseUserConfig()
	if err != nil {
		return config.User{}, errors.WithContext(err, "parse user config")
	}
	return userConfig.Resolve(Flags)
}

// GetClient returns a client for the device in the user config.
func GetClient() (device.Client, config.User, error) {
	userConfig, err := GetUserConfig()
	if err != nil {
		return nil, config.User{}, err
	}

	client, err := device.New(device.Config{
		URL:      userConfig.URL,
		Password: userConfig.Password,
	})
	if err != nil {
		return nil, config.User{}, errors.WithContext(err, "create device client")
	}
	log.WithField("url", client.URL()).Debug("Connecting to device")
	return client, userConfig, nil
}

// GetStore identifies the device behind client, and returns its local cache.
func GetStore(ctx context.Context, client device.Client, userConfig config.User) (*cache.Store, error) {
	store, err := cache.Bind(ctx, client, userConfig.CachePath, Fs)
	if err != nil {
		if _, ok := errors.RootCause(err).(errors.UnknownDevice); ok {
			return nil, errors.NewFriendlyError("The device at %s didn't report a UID, "+
				"so there's no way to tell which cache directory belongs to it.\n"+
				"Check that it's running CircuitPython %s or newer.",
				client.URL(), device.MinimumWebWorkflowVersion)
		}
		return nil, errors.WithContext(err, "identify device")
	}

	WarnIfUnsupported(store.Version())
	log.WithFields(log.Fields{
		"uid":   store.UID(),
		"cache": store.Root(),
	}).Debug("Bound local cache")
	return store, nil
}

// CheckReachable probes the device's filesystem API, so that commands that
// modify the device fail before their first write.
func CheckReachable(ctx context.Context, client device.Client) error {
	err := client.Options(ctx)
	if err == nil {
		return nil
	}

	if deviceErr, ok := errors.RootCause(err).(errors.DeviceError); ok && deviceErr.StatusCode == 0 {
		return errors.NewFriendlyError("Couldn't reach the device at %s:\n%s\n\n"+
			"Check that it's powered on, connected to the network, "+
			"and has CIRCUITPY_WEB_API_PASSWORD set in settings.toml.",
			client.URL(), deviceErr.Err)
	}
	return errors.WithContext(err, "probe filesystem API")
}

// WarnIfUnsupported logs a warning if the firmware predates the web
// workflow. It doesn't stop the command, since some builds report versions
// that can't be compared.
func WarnIfUnsupported(info device.VersionInfo) {
	supported, err := info.Supported()
	switch {
	case err != nil:
		log.WithError(err).Warn("Couldn't check the device's firmware version")
	case !supported:
		log.WithField("version", info.Version).Warnf(
			"The device's firmware predates the web workflow. "+
				"CircuitPython %s or newer is required", device.MinimumWebWorkflowVersion)
	}
}

// NewBackupManager returns a backup manager for the local cache.
func NewBackupManager() *backup.Manager {
	return backup.New(Fs, clockwork.NewRealClock(), log.StandardLogger())
}

// NewEngine returns a sync engine between the device and its local cache.
func NewEngine(client device.Client, store *cache.Store) *sync.Engine {
	return sync.NewEngine(client, store, NewBackupManager(), Fs, log.StandardLogger())
}

// SignalContext returns a context that's cancelled when the user interrupts
// the program.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
