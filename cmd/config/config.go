package config

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/config"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	stdin           io.Reader = os.Stdin
	parseUserConfig           = config.ParseUser
	writeUserConfig           = config.WriteUser
	prompter                  = promptUser
	readPassword              = readPasswordImpl
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.User
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Set up the cpsync user configuration",
		Long: "Write the device URL, password and cache location to " +
			config.UserConfigPath + ".\n" +
			"Settings that aren't given as flags are prompted for.",
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to set up configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.URL, "url", "",
		"Set the device URL in the config. "+
			"Optional: If not set, `cpsync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Password, "password", "",
		"Set the web workflow password in the config. "+
			"Optional: If not set, `cpsync config` will prompt without echoing.")
	cmd.Flags().StringVar(&cliOpts.CachePath, "cache", "",
		"Set the local cache directory in the config. "+
			"Optional: If not set, `cpsync config` will interactively prompt.")

	// Setup the commands for querying the contents of the user config.
	type getterSpec struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterSpec{
		{
			use:   "get-url",
			short: "Get the currently configured device URL",
			fn:    func(cfg config.User) string { return cfg.URL },
		},
		{
			use:   "get-cache",
			short: "Get the currently configured cache directory",
			fn:    func(cfg config.User) string { return cfg.CachePath },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					util.HandleFatalError(errors.WithContext(err, "read config"))
				}

				resolved, err := cfg.Resolve(config.Overrides{})
				if err != nil {
					util.HandleFatalError(errors.WithContext(err, "resolve config"))
				}
				fmt.Fprintln(stdout, getter.fn(resolved))
			},
		})
	}

	return cmd
}

// SetupConfig prompts for the settings missing from cliOpts, and writes the
// result to the user config.
func SetupConfig(cliOpts config.User) error {
	cfg, err := generateConfig(cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeUserConfig(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

// urlValidationFn checks that the device URL can be used by the HTTP client.
func urlValidationFn(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "This doesn't look like a URL. " +
			"Please enter something like http://circuitpython.local/.", false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "The device URL must start with http:// or https://.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is. Values from the existing config are offered alongside
// the defaults.
func generateConfig(cliOpts config.User) (config.User, error) {
	currConfig, err := parseUserConfig()
	if err != nil {
		currConfig = config.User{}
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg := cliOpts
	var prompts []prompt
	if cliOpts.URL == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the URL of the device.\n" +
				"Devices advertise themselves over mDNS, so the default works " +
				"if there's only one device on the network.",
			prompt:        "Device URL",
			defaultAnswer: device.DefaultURL,
			currAnswer:    currConfig.URL,
			field:         &cfg.URL,
			validationFn:  urlValidationFn,
		})
	}

	if cliOpts.CachePath == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the directory for the local copies of device files.\n" +
				"Each device gets its own subdirectory.",
			prompt:        "Cache directory",
			defaultAnswer: config.DefaultCachePath,
			currAnswer:    currConfig.CachePath,
			field:         &cfg.CachePath,
		})
	}

	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = prompter(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.User{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	if cliOpts.Password == "" {
		defaultPassword, shown := device.DefaultPassword, device.DefaultPassword
		if currConfig.Password != "" {
			defaultPassword = currConfig.Password
			shown = "the current password"
		}

		fmt.Fprintf(stdout, "Enter the web workflow password (CIRCUITPY_WEB_API_PASSWORD).\n"+
			"Leave it empty to use %s: ", shown)
		password, err := readPassword()
		if err != nil {
			return config.User{}, errors.WithContext(err, "read password")
		}
		fmt.Fprintln(stdout)

		if password == "" {
			password = defaultPassword
		}
		cfg.Password = password
	}

	return cfg, nil
}

// readPasswordImpl reads a line from stdin, without echoing it if stdin is a
// terminal.
func readPasswordImpl() (string, error) {
	if f, ok := stdin.(*os.File); ok && terminal.IsTerminal(int(f.Fd())) {
		password, err := terminal.ReadPassword(int(f.Fd()))
		return string(password), err
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			// Default to the first choice if user doesn't enter anything.
			choice := 1
			if choiceStr = strings.TrimRight(choiceStr, "\r\n"); choiceStr != "" {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					continue
				}
			}

			if choice == nOptions {
				break
			}
			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\r\n"), nil
}
