package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envPaths are tried in order; the first readable file wins.
var envPaths = []string{".env", "../.env", "../../.env"}

// LoadEnv loads variables from the nearest .env file without overriding
// anything already set in the environment.
func LoadEnv() error {
	for _, p := range envPaths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		return godotenv.Load(p)
	}
	return nil
}

// GetEnv returns the variable, or defaultValue when it is unset or empty.
// The CLI uses it for flag defaults such as UPID_CONFIG.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt is GetEnv for integers; unparsable values fall back to the default
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvBool accepts true/false, 1/0, yes/no and on/off
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}
