package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the file system every command reads models, snapshots and plans from.
var AppFs = afero.NewOsFs()

const (
	// ConfigName is the name of the optional config file, looked up in the working directory
	// and the home directory.
	ConfigName = ".dbdeploy"
	// EnvPrefix prefixes environment variables that override config keys.
	EnvPrefix = "DBDEPLOY"
)

// InitConfig loads the config file and binds DBDEPLOY_* environment variables. An explicit
// configFile must exist; the default locations are optional.
func InitConfig(configFile string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(ConfigName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// LoadDotEnv loads .env and then .env.local from the working directory when they exist.
// Variables already set in the environment win over .env, .env.local wins over both.
func LoadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}
