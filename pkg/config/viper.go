package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Options controls where Load looks for configuration.
type Options struct {
	// Path is the directory containing the config file.
	Path string
	// Name is the config file name without extension.
	Name string
	// EnvPrefix, when set, namespaces environment overrides
	// (PARTY_REDIS_ADDRESS for redis.address with prefix "PARTY").
	EnvPrefix string
}

// Load reads configuration from a YAML file and environment variables.
// A missing config file is not an error; defaults and env vars still apply.
func Load(opts Options) (*viper.Viper, error) {
	v := viper.New()

	name := opts.Name
	if name == "" {
		name = "config"
	}
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	if opts.Path != "" {
		v.AddConfigPath(opts.Path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}
