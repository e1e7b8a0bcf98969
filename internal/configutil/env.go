package configutil

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnv loads the given .env files into the process environment, files that do
// not exist are skipped and variables that are already set are left alone.
func LoadEnv(files ...string) error {
	for _, f := range files {
		_, err := os.Stat(f)
		if os.IsNotExist(err) {
			continue
		}
		err = godotenv.Load(f)
		if err != nil {
			return fmt.Errorf("load env %s: %w", f, err)
		}
	}
	return nil
}

// EnvString overrides `out` with the value of the environment variable `name` if it is set.
func EnvString(name string, out *string) {
	value, ok := os.LookupEnv(name)
	if ok && value != "" {
		*out = value
	}
}

// EnvInt overrides `out` with the integer value of the environment variable `name` if it is set.
func EnvInt(name string, out *int) error {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("environment variable %s: %w", name, err)
	}
	*out = parsed
	return nil
}

// EnvBool overrides `out` with the boolean value of the environment variable `name` if it is set.
func EnvBool(name string, out *bool) error {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("environment variable %s: %w", name, err)
	}
	*out = parsed
	return nil
}
