// Package config loads the demo host's viper-backed configuration file,
// grounded on the teacher's cmd/config/config.go defaulting pattern.
package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/spf13/viper"
)

// Config holds the settings the demo host needs to construct an Engine.
type Config struct {
	LogLevel string
	LogFile  string

	PoolCapacity      int
	PreemptionEnabled bool
	PreemptionMargin  int
	DefaultScheme     string

	SearchPaths             []string
	TreatAbsoluteAsRelative bool
}

func setDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("poolcapacity", 256)
	viper.SetDefault("preemptionenabled", false)
	viper.SetDefault("preemptionmargin", 4)
	viper.SetDefault("defaultscheme", "file")
	viper.SetDefault("searchpaths", []string{"."})
	viper.SetDefault("treatabsoluteasrelative", true)
}

// Load reads configFilePath (if present; a missing file is not an error,
// the defaults above apply) and returns the resolved Config.
func Load(configFilePath string) (Config, error) {
	setDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found, using defaults", "configFilePath", configFilePath)
		} else {
			return Config{}, err
		}
	}

	return Config{
		LogLevel:                viper.GetString("loglevel"),
		LogFile:                 viper.GetString("logfile"),
		PoolCapacity:            viper.GetInt("poolcapacity"),
		PreemptionEnabled:       viper.GetBool("preemptionenabled"),
		PreemptionMargin:        viper.GetInt("preemptionmargin"),
		DefaultScheme:           viper.GetString("defaultscheme"),
		SearchPaths:             viper.GetStringSlice("searchpaths"),
		TreatAbsoluteAsRelative: viper.GetBool("treatabsoluteasrelative"),
	}, nil
}
