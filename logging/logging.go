// Package logging builds the process zerolog.Logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config contains logging configuration.
type Config struct {
	Level   string `yaml:"level" mapstructure:"level"`
	Format  string `yaml:"format" mapstructure:"format"`
	Output  string `yaml:"output" mapstructure:"output"`
	NoColor bool   `yaml:"no_color" mapstructure:"no_color"`
}

// ApplyDefaults fills empty fields with info level JSON on stdout.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

// Validate validates logging configuration.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil || c.Level == "" {
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error, fatal (got: %s)", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case FormatJSON, FormatConsole:
	default:
		return fmt.Errorf("log format must be json or console (got: %s)", c.Format)
	}
	switch strings.ToLower(c.Output) {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("log output must be stdout or stderr (got: %s)", c.Output)
	}
	return nil
}

// ParsedLevel returns the configured level, or info when it does not parse.
func (c *Config) ParsedLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		return zerolog.InfoLevel
	}
	return level
}

// New creates a logger tagged with service, writing to the configured output.
func New(cfg Config, service string) zerolog.Logger {
	cfg.ApplyDefaults()
	return NewWithWriter(cfg, service, outputWriter(cfg.Output))
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg Config, service string, w io.Writer) zerolog.Logger {
	cfg.ApplyDefaults()

	var out io.Writer = w
	if strings.ToLower(cfg.Format) == FormatConsole {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
			NoColor:    cfg.NoColor,
		}
	}

	return zerolog.New(out).
		Level(cfg.ParsedLevel()).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

func outputWriter(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr
	default:
		return os.Stdout
	}
}
