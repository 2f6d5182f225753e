// Package logging provides the process-wide zerolog logger used by
// every component that does not receive its own sub-logger explicitly
// (cmd/geodetector passes this logger to internal/scheduler and
// internal/retention, which derive component-scoped loggers from it via
// .With().Str(...)).
// The logger is configured once from a small Config struct, with
// Init/Logger accessors instead of exposing the zerolog global logger
// directly.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the global logger renders output.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string
	// Format is "json" (production) or "console" (local development).
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns info/json logging to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

func init() {
	initLogger(DefaultConfig())
}

// Init (re)configures the global logger. Call once from main() after
// appconfig.Load(); safe to call again in tests.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	log = zerolog.New(output).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the process-wide logger. Components that need a
// named sub-logger should call Logger().With().Str("component",
// "...").Logger() once at construction, as internal/scheduler and
// internal/retention already do.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}
