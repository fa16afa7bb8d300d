package app

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFlagName = "config"

var cfgFile string

// addConfigFlag registers --config on fs.
func addConfigFlag(fs *pflag.FlagSet, name string) {
	fs.StringVarP(&cfgFile, configFlagName, "c", cfgFile,
		fmt.Sprintf("Read %s configuration from the specified YAML file. Flags override file values.", name))
}

// loadConfig prepares viper: environment overrides and, when --config is
// set, the config file. It reports whether a file was read.
func loadConfig(v *viper.Viper, envPrefix string) (bool, error) {
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()
	}

	if cfgFile == "" {
		return false, nil
	}

	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return false, fmt.Errorf("failed to read configuration file %q: %w", cfgFile, err)
	}
	return true, nil
}
