package slogobs

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is one step more verbose than slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

const (
	envLogFormat = "CHATWIRE_LOG_FORMAT"
	envLogLevel  = "CHATWIRE_LOG_LEVEL"
)

// Option configures an Observer.
type Option func(*config)

type config struct {
	format Format
	level  slog.Level
	output io.Writer
	logger *slog.Logger
}

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(c *config) { c.format = format }
}

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithOutput sets the writer records go to.
func WithOutput(output io.Writer) Option {
	return func(c *config) { c.output = output }
}

// WithLogger uses logger as is; format, level and output are ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func applyOptions(opts ...Option) *config {
	cfg := &config{
		format: FormatFromEnv(),
		level:  LevelFromEnv(),
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// FormatFromEnv reads CHATWIRE_LOG_FORMAT, defaulting to FormatText.
func FormatFromEnv() Format {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(envLogFormat)), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// LevelFromEnv reads CHATWIRE_LOG_LEVEL, defaulting to slog.LevelInfo.
func LevelFromEnv() slog.Level {
	return ParseLevel(os.Getenv(envLogLevel))
}

// ParseLevel maps a level name to a slog.Level; unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
