package config

import (
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
)

const (
	// UserConfigPath is the default path to the user config.
	UserConfigPath = "~/.cpsync.yaml"

	// DefaultCachePath is where device mirrors are stored when the config
	// doesn't say otherwise.
	DefaultCachePath = "~/.cpsync/cache"

	// InitialUserConfigVersion is assumed for config files that don't
	// specify a version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the config version understood by this
	// binary.
	SupportedUserConfigVersion = "v1alpha1"
)

// User contains the settings for connecting to a device, and where to cache
// its files.
type User struct {
	Version   string `json:"version,omitempty"`
	URL       string `json:"url,omitempty"`
	Password  string `json:"password,omitempty"`
	CachePath string `json:"cachePath,omitempty"`
}

func (u User) getVersion() string {
	return u.Version
}

// Overrides are settings given on the command line. Empty fields are unset.
type Overrides struct {
	URL       string
	Password  string
	CachePath string
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser parses the user config at the default path. The config file is
// optional: if it doesn't exist, an empty config is returned.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config := User{Version: InitialUserConfigVersion}
	if err := parseConfig(path, &config, SupportedUserConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return User{Version: SupportedUserConfigVersion}, nil
		}
		return User{}, errors.WithContext(err, "parse")
	}

	if config.CachePath != "" {
		config.CachePath, err = homedirExpand(config.CachePath)
		if err != nil {
			return User{}, errors.WithContext(err, "expand cache path")
		}

		// Evaluate relative paths relative to the config path.
		if !filepath.IsAbs(config.CachePath) {
			config.CachePath = filepath.Join(filepath.Dir(path), config.CachePath)
		}
	}
	return config, nil
}

// Resolve applies the command line overrides and the defaults. Flags take
// precedence over the config file, which takes precedence over the
// defaults.
func (u User) Resolve(overrides Overrides) (User, error) {
	resolved := u
	for _, setting := range []struct {
		dst            *string
		override, dflt string
	}{
		{&resolved.URL, overrides.URL, device.DefaultURL},
		{&resolved.Password, overrides.Password, device.DefaultPassword},
		{&resolved.CachePath, overrides.CachePath, DefaultCachePath},
	} {
		if setting.override != "" {
			*setting.dst = setting.override
		}
		if *setting.dst == "" {
			*setting.dst = setting.dflt
		}
	}

	cachePath, err := homedirExpand(resolved.CachePath)
	if err != nil {
		return User{}, errors.WithContext(err, "expand cache path")
	}
	resolved.CachePath = cachePath
	return resolved, nil
}

// WriteUser writes the given user config to disk. The file may contain the
// device password, so it's only readable by the user.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0600); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath returns the expanded path to the user config, so that it
// can be passed directly to file operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
