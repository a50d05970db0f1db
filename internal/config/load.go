package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// SHELF_SERVER_PORT overrides server.port.
const EnvPrefix = "SHELF"

// ConfigFileEnv names an explicit config file to read instead of ./config.yaml.
const ConfigFileEnv = "SHELF_CONFIG_FILE"

// defaults lists every key together with its default value. Registering all
// keys lets viper resolve environment-only values during Unmarshal.
func defaults() map[string]any {
	return map[string]any{
		"server.port":      8080,
		"server.log_level": "info",
		"server.app_mode":  "production",

		"database.url": "",

		"auth.jwt_secret":             "",
		"auth.token_lifetime_minutes": 60,

		"task.worker_count":           1,
		"task.retention":              20,
		"task.settle_after_minutes":   10,
		"task.sweep_interval_seconds": 30,
		"task.stuck_task_age_minutes": 120,

		"schedule.start_hour":             4,
		"schedule.duration_minutes":       10,
		"schedule.reconnect":              true,
		"schedule.metadata_backup":        false,
		"schedule.generate_book_covers":   false,
		"schedule.generate_series_covers": false,

		"library.book_path":       "/books",
		"library.temp_dir":        filepath.Join(os.TempDir(), "shelfd"),
		"library.thumbnail_dir":   "/var/cache/shelfd/thumbnails",
		"library.converter_path":  "",
		"library.thumbnail_width": 300,
		"library.export_language": "en",

		"mail.host":     "",
		"mail.port":     25,
		"mail.username": "",
		"mail.password": "",
		"mail.from":     "",
		"mail.use_tls":  false,

		"telemetry.enabled":          false,
		"telemetry.interval_seconds": 60,
	}
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if file := os.Getenv(ConfigFileEnv); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
