package config

import (
	"strings"

	errors2 "github.com/pkg/errors"
)

func ConnectionNotFoundError(configFilePath, environmentName, name string) error {
	configFilePath = strings.TrimSpace(configFilePath)
	if configFilePath == "" {
		configFilePath = DefaultFileName
	}

	environmentName = strings.TrimSpace(environmentName)
	if environmentName == "" {
		environmentName = "default"
	}

	return errors2.Errorf(
		"connection '%s' not found in config file '%s' under environment '%s'",
		name,
		configFilePath,
		environmentName,
	)
}
