// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"

	"github.com/gardener/sprinkler/pkg/apis/config"
	configvalidation "github.com/gardener/sprinkler/pkg/apis/config/validation"
	"github.com/gardener/sprinkler/pkg/logger"
)

// Options holds the command line options.
type Options struct {
	// ConfigFile is the path to the server configuration file.
	ConfigFile string

	config *config.ServerConfiguration
}

// AddFlags adds the command line flags to the given FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "config", o.ConfigFile, "Path to the server configuration file.")
}

// Complete loads and defaults the configuration from the config file.
func (o *Options) Complete() error {
	if len(o.ConfigFile) == 0 {
		return fmt.Errorf("missing config file")
	}

	data, err := os.ReadFile(o.ConfigFile)
	if err != nil {
		return fmt.Errorf("cannot read config file: %w", err)
	}

	o.config = &config.ServerConfiguration{}
	if err := yaml.UnmarshalStrict(data, o.config); err != nil {
		return fmt.Errorf("cannot decode config file: %w", err)
	}

	config.SetDefaults(o.config)
	return nil
}

// Validate validates the completed configuration.
func (o *Options) Validate() error {
	if errs := configvalidation.ValidateServerConfiguration(o.config); len(errs) > 0 {
		return errs.ToAggregate()
	}
	return nil
}

// LogConfig returns the logging level and format from the configuration.
func (o *Options) LogConfig() (logLevel, logFormat string) {
	level, format := o.config.Logging.Level, o.config.Logging.Format
	if level == "" {
		level = logger.InfoLevel
	}
	if format == "" {
		format = logger.FormatJSON
	}
	return level, format
}
