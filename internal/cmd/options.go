package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iancoleman/strcase"
	"github.com/mcuadros/go-defaults"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configKeyAnnotation names the option a flag sets when it is not the lower
// camel case form of the flag name, for example the nested "addr.http".
const configKeyAnnotation = "broker_config_key"

func nestedFlag(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

func configKey(flag *pflag.Flag) string {
	if keys := flag.Annotations[configKeyAnnotation]; len(keys) > 0 {
		return keys[0]
	}
	return strcase.ToLowerCamel(flag.Name)
}

// parseOptions loads options from, in increasing priority, the struct tag
// defaults, the config file, environment variables and command line flags.
//
// Environment variables are the flag name in upper snake case with envPrefix,
// for example BROKER_SERVER_DB_FILE sets --db-file.
func parseOptions(cmd *cobra.Command, options interface{}, envPrefix string) error {
	defaults.SetDefaults(options)

	v := viper.New()
	v.SetConfigType("yaml")

	var bindErr error
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if flag.Name == "config-file" || flag.Name == "help" {
			return
		}

		key := configKey(flag)
		env := envPrefix + "_" + strcase.ToScreamingSnake(flag.Name)
		if err := v.BindEnv(key, env); err != nil && bindErr == nil {
			bindErr = err
		}

		// unchanged flags are not bound so that their defaults do not replace
		// values from the config file
		if flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil && bindErr == nil {
				bindErr = err
			}
		}
	})
	if bindErr != nil {
		return bindErr
	}

	configFile, _ := cmd.Flags().GetString("config-file")
	if configFile == "" {
		configFile = os.Getenv(envPrefix + "_CONFIG_FILE")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	return v.Unmarshal(options, func(config *mapstructure.DecoderConfig) {
		config.Squash = true
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
}

// canonicalPath expands environment variables in path and makes it absolute.
func canonicalPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	path = os.ExpandEnv(path)

	path, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return path, nil
}
