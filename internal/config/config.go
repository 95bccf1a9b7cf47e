// Package config loads the qtoken configuration file.
//
// A configuration names where the schema comes from (a directory of CUE
// files or a SQLite database), which optional sub-tokens are offered, the
// log level and the CLI output format. Values from a .env file next to the
// configuration and from QTOKEN_* environment variables override the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/qtoken/internal/schema"
	"github.com/roach88/qtoken/internal/token"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "qtoken.yaml"

// Environment variables that override file values.
const (
	EnvSchemaDir = "QTOKEN_SCHEMA_DIR"
	EnvSQLite    = "QTOKEN_SQLITE"
	EnvLogLevel  = "QTOKEN_LOG_LEVEL"
)

// Config is the decoded configuration.
type Config struct {
	// SchemaDir is a directory of CUE schema files.
	SchemaDir string `yaml:"schema_dir"`

	// SQLite is a database whose catalog is imported as the schema.
	SQLite string `yaml:"sqlite"`

	// Options lists the optional sub-tokens offered ("anyall",
	// "aggregates", "casts", "snippet" or "all"). Empty means all.
	Options []string `yaml:"options"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Format is the CLI output format, text or json.
	Format string `yaml:"format"`

	// Auth holds static allow rules.
	Auth schema.Rules `yaml:"auth"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{LogLevel: "info", Format: "text"}
}

// Load reads path, applies .env and environment overrides and validates
// the result. A missing file yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	if err := loadEnvFile(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes a configuration document without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // reject typos such as "schemadir:"
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// loadEnvFile loads path into the process environment if it exists.
// Variables already set are not overwritten.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSchemaDir); v != "" {
		c.SchemaDir = v
		c.SQLite = ""
	}
	if v := os.Getenv(EnvSQLite); v != "" {
		c.SQLite = v
		c.SchemaDir = ""
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	c.SchemaDir = os.ExpandEnv(c.SchemaDir)
	c.SQLite = os.ExpandEnv(c.SQLite)
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.SchemaDir != "" && c.SQLite != "" {
		return errors.New("schema_dir and sqlite are mutually exclusive")
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("format %q: must be text or json", c.Format)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.TokenOptions(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// TokenOptions parses Options. No options means token.OptAll.
func (c *Config) TokenOptions() (token.Options, error) {
	if len(c.Options) == 0 {
		return token.OptAll, nil
	}
	names := make([]string, len(c.Options))
	for i, o := range c.Options {
		names[i] = strings.ToLower(strings.TrimSpace(o))
	}
	opts, ok := token.ParseOptions(names)
	if !ok {
		return 0, fmt.Errorf("options %v: must be among anyall, aggregates, casts, snippet, all", c.Options)
	}
	return opts, nil
}

// Logger builds a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
