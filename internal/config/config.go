package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Task      TaskConfig      `mapstructure:"task" validate:"required"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Library   LibraryConfig   `mapstructure:"library" validate:"required"`
	Mail      MailConfig      `mapstructure:"mail"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// AppMode selects the startup task set; development and test run the full
	// maintenance batch on boot.
	AppMode string `mapstructure:"app_mode" validate:"required,oneof=production development test"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// TaskConfig controls the background worker pool.
type TaskConfig struct {
	WorkerCount          int `mapstructure:"worker_count" validate:"gte=1,lte=8"`
	Retention            int `mapstructure:"retention" validate:"gte=1"`
	SettleAfterMinutes   int `mapstructure:"settle_after_minutes" validate:"gte=1"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" validate:"gte=1"`
	StuckTaskAgeMinutes  int `mapstructure:"stuck_task_age_minutes" validate:"gte=1"`
}

// ScheduleConfig is the daily maintenance window and the tasks it runs.
type ScheduleConfig struct {
	StartHour            int  `mapstructure:"start_hour" validate:"gte=0,lte=23"`
	DurationMinutes      int  `mapstructure:"duration_minutes" validate:"gte=1,lte=60"`
	Reconnect            bool `mapstructure:"reconnect"`
	MetadataBackup       bool `mapstructure:"metadata_backup"`
	GenerateBookCovers   bool `mapstructure:"generate_book_covers"`
	GenerateSeriesCovers bool `mapstructure:"generate_series_covers"`
}

// LibraryConfig locates the book files and the helper directories tasks use.
type LibraryConfig struct {
	BookPath       string `mapstructure:"book_path" validate:"required"`
	TempDir        string `mapstructure:"temp_dir" validate:"required"`
	ThumbnailDir   string `mapstructure:"thumbnail_dir" validate:"required"`
	ConverterPath  string `mapstructure:"converter_path"`
	ThumbnailWidth int    `mapstructure:"thumbnail_width" validate:"gte=16,lte=1200"`
	ExportLanguage string `mapstructure:"export_language" validate:"required"`
}

// MailConfig holds the SMTP settings used by e-mail tasks.
type MailConfig struct {
	Host     string `mapstructure:"host" validate:"omitempty,hostname|ip"`
	Port     int    `mapstructure:"port" validate:"gt=0,lt=65536"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"omitempty,email"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// TelemetryConfig toggles the OpenTelemetry meter provider.
type TelemetryConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds" validate:"gte=1"`
}
