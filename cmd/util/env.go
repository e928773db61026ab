package util

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// GetEnvWithDefault returns the value of an environment variable or a default value if not set
func GetEnvWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvIntWithDefault returns the value of an environment variable as int or a default value if not set
func GetEnvIntWithDefault(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// resolveString fills target for a flag the user did not set: from the config file or a
// DBDEPLOY_* variable first, then from the fallback environment variables in order.
func resolveString(cmd *cobra.Command, flag string, target *string, fallbackEnv ...string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if value := viper.GetString(flag); value != "" {
		*target = value
		return
	}
	for _, env := range fallbackEnv {
		if value := GetEnvWithDefault(env, ""); value != "" {
			*target = value
			return
		}
	}
}

func resolveInt(cmd *cobra.Command, flag string, target *int, fallbackEnv ...string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if value := viper.GetInt(flag); value != 0 {
		*target = value
		return
	}
	for _, env := range fallbackEnv {
		if value := GetEnvIntWithDefault(env, 0); value != 0 {
			*target = value
			return
		}
	}
}

// resolveBool turns a flag on from the config file or environment unless it was set explicitly.
func resolveBool(cmd *cobra.Command, flag string, target *bool) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if viper.IsSet(flag) {
		*target = viper.GetBool(flag)
	}
}
