package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
)

// CurrentSchemaVersion is the current config schema version.
const CurrentSchemaVersion = 1

// Environment variable names for config overrides.
// Priority: Environment > Config File > Default
const (
	EnvPort           = "LIVETRACK_PORT"
	EnvLanEnabled     = "LIVETRACK_LAN_ENABLED"
	EnvAccount        = "LIVETRACK_ACCOUNT"
	EnvRelayURL       = "LIVETRACK_RELAY_URL"
	EnvDialTimeoutSec = "LIVETRACK_DIAL_TIMEOUT_SEC"
	EnvSerialPort     = "LIVETRACK_SERIAL_PORT"
	EnvBaudRate       = "LIVETRACK_BAUD_RATE"
	EnvRetentionDays  = "LIVETRACK_RETENTION_DAYS"
)

// Config holds non-sensitive application configuration.
type Config struct {
	SchemaVersion  int    `json:"schema_version"`
	Port           int    `json:"port"`
	LanEnabled     bool   `json:"lan_enabled"`
	Account        string `json:"account"`
	RelayURL       string `json:"relay_url"`
	DialTimeoutSec int    `json:"dial_timeout_sec"`
	SerialPort     string `json:"serial_port"`
	BaudRate       int    `json:"baud_rate"`
	RetentionDays  int    `json:"retention_days"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SchemaVersion:  CurrentSchemaVersion,
		Port:           8080,
		LanEnabled:     false,
		Account:        "",
		RelayURL:       "ws://127.0.0.1:8765/live",
		DialTimeoutSec: 30,
		SerialPort:     "", // tracking-only mode
		BaudRate:       9600,
		RetentionDays:  90,
	}
}

// LoadConfig reads config from disk. If the file doesn't exist or is corrupt,
// it returns DefaultConfig with a warning logged (non-fatal).
func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	return LoadConfigFrom(path)
}

// LoadConfigFrom reads config from the specified path.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, use defaults (not an error)
			return cfg, nil
		}
		log.Printf("Warning: failed to read config file: %v, using defaults", err)
		return cfg, nil
	}

	// Try to parse JSON
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		log.Printf("Warning: config file is corrupt: %v, using defaults", err)
		return DefaultConfig(), nil
	}

	// Check schema version
	if cfg.SchemaVersion != CurrentSchemaVersion {
		log.Printf("Warning: config schema version mismatch (got %d, expected %d), using defaults",
			cfg.SchemaVersion, CurrentSchemaVersion)
		return DefaultConfig(), nil
	}

	// Normalize/validate values
	cfg = normalizeConfig(cfg)

	return cfg, nil
}

// normalizeConfig validates and normalizes config values.
func normalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()

	// Ensure schema version
	cfg.SchemaVersion = CurrentSchemaVersion

	// Validate port
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaults.Port
	}

	if cfg.RelayURL == "" {
		cfg.RelayURL = defaults.RelayURL
	}

	if cfg.DialTimeoutSec <= 0 {
		cfg.DialTimeoutSec = defaults.DialTimeoutSec
	}

	if cfg.BaudRate <= 0 {
		cfg.BaudRate = defaults.BaudRate
	}

	if cfg.RetentionDays < 0 {
		cfg.RetentionDays = defaults.RetentionDays
	}

	return cfg
}

// SaveConfig writes config to disk atomically.
func SaveConfig(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	return SaveConfigTo(cfg, path)
}

// SaveConfigTo writes config to the specified path atomically.
func SaveConfigTo(cfg Config, path string) error {
	// Ensure schema version is set
	cfg.SchemaVersion = CurrentSchemaVersion

	return writeJSONAtomic(path, cfg)
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Environment variables take highest priority over config file values.
func ApplyEnvOverrides(cfg Config) Config {
	// Port
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
			cfg.Port = port
		}
	}

	// LAN enabled
	if v := os.Getenv(EnvLanEnabled); v != "" {
		cfg.LanEnabled = parseBool(v)
	}

	// Account to track
	if v := os.Getenv(EnvAccount); v != "" {
		cfg.Account = v
	}

	// Relay websocket URL
	if v := os.Getenv(EnvRelayURL); v != "" {
		cfg.RelayURL = v
	}

	// Dial timeout seconds
	if v := os.Getenv(EnvDialTimeoutSec); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.DialTimeoutSec = sec
		}
	}

	// Serial port
	if v := os.Getenv(EnvSerialPort); v != "" {
		cfg.SerialPort = v
	}

	// Baud rate
	if v := os.Getenv(EnvBaudRate); v != "" {
		if baud, err := strconv.Atoi(v); err == nil && baud > 0 {
			cfg.BaudRate = baud
		}
	}

	// Log retention days
	if v := os.Getenv(EnvRetentionDays); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days >= 0 {
			cfg.RetentionDays = days
		}
	}

	return cfg
}

// parseBool parses a boolean from various string representations.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// All other values are treated as false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
