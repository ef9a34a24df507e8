// Package logging builds zerolog loggers writing to the console and,
// optionally, to a rotating log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format selects how log lines are rendered.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config describes a logger.
type Config struct {
	Level      string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format     Format `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=console json"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMB,omitempty" yaml:"maxSizeMB,omitempty" validate:"gte=0"`
	MaxBackups int    `json:"maxBackups,omitempty" yaml:"maxBackups,omitempty" validate:"gte=0"`
	NoColor    bool   `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// DefaultConfig logs warnings and above to the console.
func DefaultConfig() Config {
	return Config{
		Level:      "warn",
		Format:     FormatConsole,
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// ParseLevel parses a level name. An empty name is info.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// New builds a logger writing to console (usually os.Stderr) and to
// cfg.File when set. A nil console writes to the file only.
func New(cfg Config, console io.Writer) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var writers []io.Writer
	if console != nil {
		writers = append(writers, consoleWriter(cfg, console))
	}
	if cfg.File != "" {
		fileWriter, err := newFileWriter(cfg)
		if err != nil {
			return zerolog.Nop(), err
		}
		writers = append(writers, fileWriter)
	}
	if len(writers) == 0 {
		return zerolog.Nop(), nil
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func consoleWriter(cfg Config, w io.Writer) io.Writer {
	if cfg.Format == FormatJSON {
		return w
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    cfg.NoColor,
		TimeFormat: time.Kitchen,
	}
}

// newFileWriter writes JSON lines through a rotating file. Console format
// is rendered without color.
func newFileWriter(cfg Config) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = DefaultConfig().MaxSizeMB
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	}

	if cfg.Format == FormatConsole {
		return zerolog.ConsoleWriter{Out: rotator, NoColor: true, TimeFormat: time.RFC3339}, nil
	}
	return rotator, nil
}
