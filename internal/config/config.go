// Package config provides watch CLI configuration with support for
// environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the CLI configuration.
type Config struct {
	Logger LoggerConfig
	Watch  WatchConfig
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string
}

// WatchConfig holds watch configuration.
type WatchConfig struct {
	// Paths are the directories to watch (positional arguments, default ".").
	Paths []string
	// Recursive watches whole subtrees instead of direct children only.
	Recursive bool
	// ForcePolling skips the native backend probe.
	ForcePolling bool
	// PollInterval is the sleep between polling scans.
	PollInterval time.Duration
	// DebounceWindow suppresses repeated same-path events inside the window.
	DebounceWindow time.Duration
	// NoDebounce disables debouncing entirely.
	NoDebounce bool
	// IncludeHidden also reports events for dot-files.
	IncludeHidden bool
}

// Load builds configuration from args (usually os.Args[1:]) with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
// Remaining positional arguments are the paths to watch.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("pathwatch", flag.ContinueOnError)

	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (pretty, json)")
	recursive := fs.String("recursive", "", "Watch whole subtrees (default: false)")
	forcePolling := fs.String("force-polling", "", "Skip the native backend probe (default: false)")
	pollInterval := fs.String("poll-interval", "", "Sleep between polling scans (default: 1s)")
	debounce := fs.String("debounce", "", "Debounce window, e.g. 100ms (default: backend-specific)")
	noDebounce := fs.String("no-debounce", "", "Disable debouncing entirely (default: false)")
	includeHidden := fs.String("include-hidden", "", "Also report dot-files (default: false)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "PATHWATCH_LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "PATHWATCH_LOG_FORMAT", "pretty"),
		},
		Watch: WatchConfig{
			Paths:         fs.Args(),
			Recursive:     getBoolConfigValue(*recursive, "PATHWATCH_RECURSIVE", false),
			ForcePolling:  getBoolConfigValue(*forcePolling, "PATHWATCH_FORCE_POLLING", false),
			NoDebounce:    getBoolConfigValue(*noDebounce, "PATHWATCH_NO_DEBOUNCE", false),
			IncludeHidden: getBoolConfigValue(*includeHidden, "PATHWATCH_INCLUDE_HIDDEN", false),
		},
	}

	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{"."}
	}

	interval, err := getDurationConfigValue(*pollInterval, "PATHWATCH_POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}
	cfg.Watch.PollInterval = interval

	window, err := getDurationConfigValue(*debounce, "PATHWATCH_DEBOUNCE", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid debounce window: %w", err)
	}
	cfg.Watch.DebounceWindow = window

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are sane.
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "pretty" && c.Logger.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be pretty or json)", c.Logger.Format)
	}

	if c.Watch.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Watch.PollInterval)
	}

	if c.Watch.DebounceWindow < 0 {
		return fmt.Errorf("debounce window cannot be negative, got %s", c.Watch.DebounceWindow)
	}

	return nil
}

// getConfigValue returns the first non-empty of flag, env var, default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getDurationConfigValue returns a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(strValue)
}

// loadEnvFile reads KEY=value pairs into the process environment without
// overriding variables that are already set.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value) //nolint:errcheck // Best effort
		}
	}

	return scanner.Err()
}
