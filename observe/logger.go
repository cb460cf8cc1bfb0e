package observe

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`

	// Format is json or text (ConsoleWriter).
	// Default: json
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`

	// Caller adds file:line to every event.
	Caller bool `mapstructure:"caller"`

	// Async writes through a non-blocking ring buffer that drops the oldest
	// messages when full.
	Async bool `mapstructure:"async"`

	// File, when Path is set, sends output to a rotating file instead of
	// stderr.
	File LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures rotating file output.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// ParseLevel parses a level name, falling back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stderr
	if cfg.File.Path != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
	}
	if cfg.Async {
		out = diode.NewWriter(out, 100000, 10*time.Millisecond, func(missed int) {
			_, _ = os.Stderr.WriteString("rpcrelay: dropped log messages\n")
		})
	}
	return NewLoggerWithWriter(cfg, out)
}

// NewLoggerWithWriter builds a logger writing to w. File and Async are
// ignored.
func NewLoggerWithWriter(cfg LoggingConfig, w io.Writer) zerolog.Logger {
	if strings.EqualFold(cfg.Format, "text") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000", NoColor: cfg.File.Path != ""}
	}
	lc := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Caller {
		lc = lc.Caller()
	}
	return lc.Logger()
}

// WithCall returns a child of logger carrying meta's identifying fields.
func WithCall(logger zerolog.Logger, meta CallMeta) zerolog.Logger {
	lc := logger.With().Str("urn", meta.URN)
	if meta.Namespace != "" {
		lc = lc.Str("namespace", meta.Namespace)
	}
	if meta.API != "" {
		lc = lc.Str("api", meta.API)
	}
	if meta.Method != "" {
		lc = lc.Str("method", meta.Method)
	}
	if meta.RequestID != "" {
		lc = lc.Str("request_id", meta.RequestID)
	}
	return lc.Logger()
}
