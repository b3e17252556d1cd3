// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads application configuration from YAML, defaults and
// environment variables, validates it, and supports hot reload.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "GONOGO"

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Analysis    StageConfig       `mapstructure:"analysis"`
	Enhancement EnhancementConfig `mapstructure:"enhancement"`
	Prompts     PromptsConfig     `mapstructure:"prompts"`
	Server      ServerConfig      `mapstructure:"server"`
	Session     SessionConfig     `mapstructure:"session"`
	Feedback    FeedbackConfig    `mapstructure:"feedback"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// OpenAIConfig contains model endpoint configuration
type OpenAIConfig struct {
	APIKey                     string `mapstructure:"apikey"`
	Endpoint                   string `mapstructure:"endpoint"`
	Model                      string `mapstructure:"model"`
	MaxRetries                 int    `mapstructure:"max_retries"`
	RequestTimeoutSeconds      int    `mapstructure:"request_timeout_seconds"`
	CircuitBreakerFailures     int    `mapstructure:"circuit_breaker_failures"`
	CircuitBreakerResetSeconds int    `mapstructure:"circuit_breaker_reset_seconds"`
	ResponseFormat             string `mapstructure:"response_format"`
}

// RequestTimeout returns the per-call timeout
func (o OpenAIConfig) RequestTimeout() time.Duration {
	return time.Duration(o.RequestTimeoutSeconds) * time.Second
}

// StageConfig overrides the sampling settings of a prompt template. Unset
// values keep the template's own.
type StageConfig struct {
	MaxTokens   int      `mapstructure:"max_tokens"`
	Temperature *float64 `mapstructure:"temperature"`
}

// EnhancementConfig adds tool loop settings to the enhancement stage
type EnhancementConfig struct {
	StageConfig   `mapstructure:",squash"`
	MaxToolRounds int `mapstructure:"max_tool_rounds"`
}

// PromptsConfig points at an optional directory of prompt files that
// replace the built-in ones by name
type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                   int    `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
	StreamMaxAgeMinutes    int    `mapstructure:"stream_max_age_minutes"`
}

// SessionConfig contains session storage settings
type SessionConfig struct {
	StorageType            string `mapstructure:"storage_type"`
	RedisURL               string `mapstructure:"redis_url"`
	DefaultTTLMinutes      int    `mapstructure:"default_ttl_minutes"`
	MaxSessions            int    `mapstructure:"max_sessions"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// FeedbackConfig contains feedback storage configuration
type FeedbackConfig struct {
	StorageType string `mapstructure:"storage_type"`
	FilePath    string `mapstructure:"file_path"`
	DBPath      string `mapstructure:"db_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// MetricsConfig contains Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath string
	// ValidateRequired also checks fields only the model-backed commands
	// need, such as the API key
	ValidateRequired bool
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over config file values
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config, opts.ValidateRequired); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// OpenAI defaults
	v.SetDefault("openai.apikey", "")
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_retries", 0)
	v.SetDefault("openai.request_timeout_seconds", 60)
	v.SetDefault("openai.circuit_breaker_failures", 5)
	v.SetDefault("openai.circuit_breaker_reset_seconds", 30)
	v.SetDefault("openai.response_format", "json_schema")

	// Stage defaults; temperatures come from the prompt files
	v.SetDefault("analysis.max_tokens", 0)
	v.SetDefault("enhancement.max_tokens", 0)
	v.SetDefault("enhancement.max_tool_rounds", 5)

	v.SetDefault("prompts.dir", "")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.stream_max_age_minutes", 30)

	// Session defaults
	v.SetDefault("session.storage_type", "memory")
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.default_ttl_minutes", 30)
	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.cleanup_interval_minutes", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Feedback defaults
	v.SetDefault("feedback.storage_type", "file")
	v.SetDefault("feedback.file_path", "./data/feedback.jsonl")
	v.SetDefault("feedback.db_path", "./data/feedback.db")
	v.SetDefault("feedback.postgres_dsn", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	// Default locations; a missing file leaves defaults and env in effect
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"OPENAI_API_KEY":  "openai.apikey",
		"OPENAI_ENDPOINT": "openai.endpoint",
		"OPENAI_MODEL":    "openai.model",
		"REDIS_URL":       "session.redis_url",
		"LOG_LEVEL":       "logging.level",
		"LOG_FORMAT":      "logging.format",
		"PORT":            "server.port",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig collects every validation error. requireAPIKey is off for
// commands that never call the model.
func validateConfig(config *Config, requireAPIKey bool) error {
	var errs []ValidationError
	add := func(field, message string) {
		errs = append(errs, ValidationError{Field: field, Message: message})
	}

	if requireAPIKey && config.OpenAI.APIKey == "" {
		add("openai.apikey", "OpenAI API key is required. Set via config file or OPENAI_API_KEY environment variable")
	}
	if config.OpenAI.Endpoint == "" {
		add("openai.endpoint", "endpoint is required")
	}
	if config.OpenAI.Model == "" {
		add("openai.model", "model is required")
	}
	if config.OpenAI.MaxRetries < 0 {
		add("openai.max_retries", "max_retries must be greater than or equal to 0")
	}
	if config.OpenAI.RequestTimeoutSeconds <= 0 {
		add("openai.request_timeout_seconds", "request_timeout_seconds must be greater than 0")
	}
	if config.OpenAI.CircuitBreakerFailures <= 0 {
		add("openai.circuit_breaker_failures", "circuit_breaker_failures must be greater than 0")
	}
	validFormats := []string{"json_schema", "json_object"}
	if !slices.Contains(validFormats, config.OpenAI.ResponseFormat) {
		add("openai.response_format", fmt.Sprintf("response format must be one of: %s", strings.Join(validFormats, ", ")))
	}

	for name, stage := range map[string]StageConfig{"analysis": config.Analysis, "enhancement": config.Enhancement.StageConfig} {
		if stage.MaxTokens < 0 {
			add(name+".max_tokens", "max_tokens must be greater than or equal to 0")
		}
		if stage.Temperature != nil && (*stage.Temperature < 0 || *stage.Temperature > 2) {
			add(name+".temperature", "temperature must be between 0 and 2")
		}
	}
	if config.Enhancement.MaxToolRounds <= 0 {
		add("enhancement.max_tool_rounds", "max_tool_rounds must be greater than 0")
	}

	if config.Prompts.Dir != "" {
		if err := validateDirectoryExists(config.Prompts.Dir); err != nil {
			add("prompts.dir", fmt.Sprintf("prompt directory does not exist: %s", config.Prompts.Dir))
		}
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		add("server.port", "port must be between 1 and 65535")
	}
	validModes := []string{"debug", "release", "test"}
	if !slices.Contains(validModes, config.Server.Mode) {
		add("server.mode", fmt.Sprintf("mode must be one of: %s", strings.Join(validModes, ", ")))
	}

	switch config.Session.StorageType {
	case "memory":
	case "redis":
		if config.Session.RedisURL == "" {
			add("session.redis_url", "redis_url is required for redis session storage. Set via config file or REDIS_URL environment variable")
		}
	default:
		add("session.storage_type", "storage type must be one of: memory, redis")
	}
	if config.Session.DefaultTTLMinutes <= 0 {
		add("session.default_ttl_minutes", "default_ttl_minutes must be greater than 0")
	}

	switch config.Feedback.StorageType {
	case "file":
		if config.Feedback.FilePath == "" {
			add("feedback.file_path", "file_path is required for file storage")
		}
	case "sqlite":
		if config.Feedback.DBPath == "" {
			add("feedback.db_path", "db_path is required for sqlite storage")
		}
	case "postgres":
		if config.Feedback.PostgresDSN == "" {
			add("feedback.postgres_dsn", "postgres_dsn is required for postgres storage")
		}
	default:
		add("feedback.storage_type", "storage type must be one of: file, sqlite, postgres")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, config.Logging.Level) {
		add("logging.level", fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, config.Logging.Format) {
		add("logging.format", fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		add("metrics.path", "metrics path must start with /")
	}

	if len(errs) > 0 {
		var errorMessages []string
		for _, err := range errs {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("%w:\n%s", ErrInvalidConfigValue, strings.Join(errorMessages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = maskValue(masked.OpenAI.APIKey)
	}
	if masked.Session.RedisURL != "" {
		masked.Session.RedisURL = maskValue(masked.Session.RedisURL)
	}
	if masked.Feedback.PostgresDSN != "" {
		masked.Feedback.PostgresDSN = maskValue(masked.Feedback.PostgresDSN)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}

// WatchConfig reloads the configuration when the file changes and passes
// every valid result to callback. Invalid edits are logged and ignored.
func WatchConfig(configPath string, logger *zap.Logger, callback func(*Config)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file for watching: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("Config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))

		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       v.ConfigFileUsed(),
			ValidateRequired: true,
		})
		if err != nil {
			logger.Warn("Failed to reload config", zap.Error(err))
			return
		}

		callback(config)
	})
	v.WatchConfig()

	return nil
}
