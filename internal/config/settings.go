package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// settingsName is the settings file name without extension.
const settingsName = "validator"

// settingsType is the settings file format.
const settingsType = "yaml"

// envPrefix is the environment variable prefix for validator settings.
const envPrefix = "VALIDATOR"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

const (
	DefaultLogLevel                = "info"
	DefaultLogFormat               = "text"
	DefaultGradingParallelism      = 4
	DefaultHistoryDriver           = ""
	DefaultHistoryDSN              = ""
	DefaultServerMaxConcurrent     = 1
	DefaultServerRequestsPerSecond = 0.0
	DefaultServerBurst             = 16
)

var (
	ErrInvalidLogLevel    = errors.New("log.level must be one of debug, info, warn, error")
	ErrInvalidLogFormat   = errors.New("log.format must be text or json")
	ErrInvalidParallelism = errors.New("grading.parallelism must be positive")
	ErrInvalidDriver      = errors.New("history.driver must be empty, sqlite or postgres")
	ErrInvalidConcurrency = errors.New("server.max_concurrent must be positive")
	ErrInvalidRate        = errors.New("server.requests_per_second must be non-negative")
	ErrInvalidBurst       = errors.New("server.burst must be positive")
)

// Settings is the runtime configuration of the validator.
// Field tags use mapstructure for viper unmarshalling.
type Settings struct {
	Log     LogSettings     `mapstructure:"log"`
	Grading GradingSettings `mapstructure:"grading"`
	History HistorySettings `mapstructure:"history"`
	Server  ServerSettings  `mapstructure:"server"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GradingSettings controls how many test cases are graded at once.
type GradingSettings struct {
	Parallelism int `mapstructure:"parallelism"`
}

// HistorySettings selects the award history backend. An empty driver
// disables history.
type HistorySettings struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Enabled reports whether a history backend is configured.
func (h HistorySettings) Enabled() bool { return h.Driver != "" }

// ServerSettings holds JSON-RPC dispatch knobs.
// RequestsPerSecond of zero disables throttling.
type ServerSettings struct {
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoadSettings loads settings from file, env vars and defaults.
// If path is non-empty it names the settings file explicitly; otherwise
// validator.yaml is searched for in the working directory and $HOME.
// A missing settings file is not an error.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(settingsType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(settingsName)
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	s.Log.Level = strings.ToLower(s.Log.Level)
	s.Log.Format = strings.ToLower(s.Log.Format)
	s.History.Driver = strings.ToLower(s.History.Driver)

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}
	return &s, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("grading.parallelism", DefaultGradingParallelism)

	v.SetDefault("history.driver", DefaultHistoryDriver)
	v.SetDefault("history.dsn", DefaultHistoryDSN)

	v.SetDefault("server.max_concurrent", DefaultServerMaxConcurrent)
	v.SetDefault("server.requests_per_second", DefaultServerRequestsPerSecond)
	v.SetDefault("server.burst", DefaultServerBurst)
}

// Validate checks all settings are in range.
func (s *Settings) Validate() error {
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	if s.Grading.Parallelism < 1 {
		return ErrInvalidParallelism
	}

	switch s.History.Driver {
	case "", "sqlite", "postgres":
	default:
		return ErrInvalidDriver
	}

	if s.Server.MaxConcurrent < 1 {
		return ErrInvalidConcurrency
	}
	if s.Server.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if s.Server.Burst < 1 {
		return ErrInvalidBurst
	}
	return nil
}
