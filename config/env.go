package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the given .env files (".env" when none are named) into the
// process environment. Missing files are not an error.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// FromEnv applies PSDEALS_* environment variables on top of cfg.
func FromEnv(cfg *Config) error {
	if value, ok := EnvString("PSDEALS_BASE_URL"); ok {
		cfg.BaseURL = value
	}
	if value, ok := EnvString("PSDEALS_LANDING_PATH"); ok {
		cfg.LandingPath = value
	}
	if value, ok := EnvString("PSDEALS_USER_AGENT"); ok {
		cfg.UserAgent = value
	}
	if value, ok := EnvString("PSDEALS_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := EnvString("PSDEALS_FORMAT"); ok {
		cfg.OutputFormat = strings.ToLower(value)
	}
	if value, ok := EnvString("PSDEALS_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PSDEALS_TIMEOUT", &cfg.Timeout},
		{"PSDEALS_RETRY_COOLDOWN", &cfg.RetryCooldown},
		{"PSDEALS_SEARCH_COOLDOWN", &cfg.SearchCooldown},
	}
	for _, d := range durations {
		value, ok, err := EnvDuration(d.key)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if ok {
			*d.dst = value
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PSDEALS_BATCH_SIZE", &cfg.BatchSize},
		{"PSDEALS_DEDUPE_MAX", &cfg.DedupeMaxSize},
	}
	for _, i := range ints {
		value, ok, err := EnvInt(i.key)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", i.key, err)
		}
		if ok {
			*i.dst = value
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"PSDEALS_CLEAR_ON_SEARCH", &cfg.ClearOnSearch},
		{"PSDEALS_RESPECT_ROBOTS", &cfg.RespectRobotsTxt},
		{"PSDEALS_VERBOSE", &cfg.Verbose},
	}
	for _, b := range bools {
		value, ok, err := EnvBool(b.key)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", b.key, err)
		}
		if ok {
			*b.dst = value
		}
	}
	return nil
}

// EnvString returns a trimmed, non-empty environment value.
func EnvString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses an integer environment value.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// EnvBool parses a boolean environment value.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, err
	}
	return value, true, nil
}

// EnvDuration parses a duration such as "750ms" from the environment.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}
