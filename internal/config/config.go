// Package config defines process configuration and its loading.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Layers are applied low to high: defaults, YAML file, environment.
// - Load errors wrap ErrLoadConfig, validation errors wrap ErrInvalidConfig.
package config

import (
	"time"
)

// Job names accepted by the runner.
const (
	JobMembers = "members"
	JobLevels  = "levels"
	JobGains   = "gains"
)

// Storage drivers.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// MaxHTTPTimeout caps http_timeout.
const MaxHTTPTimeout = 60 * time.Second

// Config contains process configuration. It is built once at start-up and
// passed by value into components.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Job selects the run: members, levels or gains.
	Job string `koanf:"job"`

	// APIBaseURL is the Wise Old Man API root.
	APIBaseURL string `koanf:"api_base_url"`

	// GroupID identifies the watched group.
	GroupID string `koanf:"group_id"`

	// WebhookURL receives notifications. Treated as a secret.
	WebhookURL string `koanf:"webhook_url"`

	// MetricsFilter restricts the levels job to a comma-separated list of
	// skills. Empty, "all" and "everything" mean every skill.
	MetricsFilter string `koanf:"metrics_filter"`

	// RequestDelay spaces per-player requests.
	RequestDelay time.Duration `koanf:"request_delay"`

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// TopN limits the gains leaderboard.
	TopN int `koanf:"top_n"`

	// GainsMetric and GainsPeriod parameterise the gains leaderboard query.
	GainsMetric string `koanf:"gains_metric"`
	GainsPeriod string `koanf:"gains_period"`

	// VerificationCode, when set, makes the levels job ask the API to
	// refresh every member before fetching. Treated as a secret.
	VerificationCode string `koanf:"verification_code"`

	// MaxLinesPerMessage and MaxMessageChars bound each posted message.
	MaxLinesPerMessage int `koanf:"max_lines_per_message"`
	MaxMessageChars    int `koanf:"max_message_chars"`

	// StorageDriver selects the snapshot backend: file or sqlite.
	StorageDriver string `koanf:"storage_driver"`

	// StateDir holds one JSON document per snapshot for the file driver.
	StateDir string `koanf:"state_dir"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// PushgatewayURL, when set, receives run metrics at process end.
	PushgatewayURL string `koanf:"pushgateway_url"`

	// UserAgent is sent on every outbound request.
	UserAgent string `koanf:"user_agent"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Job:                JobMembers,
		APIBaseURL:         "https://api.wiseoldman.net/v2",
		MetricsFilter:      "all",
		RequestDelay:       150 * time.Millisecond,
		HTTPTimeout:        30 * time.Second,
		TopN:               10,
		GainsMetric:        "overall",
		GainsPeriod:        "week",
		MaxLinesPerMessage: 10,
		MaxMessageChars:    2000,
		StorageDriver:      StorageFile,
		StateDir:           "state",
		SQLitePath:         "state/groupwatch.db",
		UserAgent:          "groupwatch",
	}
}
