// Package config reads and writes the cpsync user config.
package config

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/cpsync/pkg/errors"
)

// Mocked for unit testing.
var fs = afero.NewOsFs()

// parseConfigErrTemplate is shown when a config file isn't valid YAML, or
// has fields of the wrong type or unknown fields. The YAML library's errors
// don't say where the problem is, so the best we can do is point at the file.
const parseConfigErrTemplate = "The config file %q could not be parsed.\n" +
	"Check that every field has the right type, and that there are no " +
	"misspelled or extra fields.\n\n" +
	"The parser reported:\n" +
	"%s"

type versioned interface {
	getVersion() string
}

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The config file %q was written for a different "+
		"version of cpsync.\n"+
		"Expected version %q, but got %q.", err.path, err.exp, err.actual)
}

// parseConfig reads the YAML file at path into config. The version is
// checked before unknown fields, so that a file from a newer release gets a
// version error rather than a confusing field error.
func parseConfig(path string, config versioned, expVersion string) error {
	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "read file")
	}

	if err := yaml.Unmarshal(configBytes, config); err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	if config.getVersion() != expVersion {
		return incompatibleVersionError{path, expVersion, config.getVersion()}
	}

	if err := yaml.UnmarshalStrict(configBytes, config, yaml.DisallowUnknownFields); err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}
