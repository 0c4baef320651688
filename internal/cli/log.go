package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// envLogLevel overrides the log level selected by flags when set. Accepted
// values are the charmbracelet level names (debug, info, warn, error).
const envLogLevel = "CGFUSE_LOG"

// newLogger creates a new logger with timestamp formatting and a per-run
// identifier, so interleaved watch-mode runs stay distinguishable.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
	return logger.With("run_id", shortRunID())
}

// shortRunID returns the first uuid group, which is plenty of entropy for
// telling a handful of concurrent runs apart.
func shortRunID() string {
	id := uuid.NewString()
	return id[:8]
}

// levelFromEnv returns the level named by CGFUSE_LOG, or fallback when the
// variable is unset or unparseable.
func levelFromEnv(fallback log.Level) log.Level {
	raw := os.Getenv(envLogLevel)
	if raw == "" {
		return fallback
	}
	level, err := log.ParseLevel(raw)
	if err != nil {
		return fallback
	}
	return level
}

// LoadDotEnv loads CGFUSE_* settings from a .env file in the working
// directory. A missing file is fine; any other read error is reported so a
// malformed file does not silently change behavior.
func LoadDotEnv(logger *log.Logger) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("could not load .env", "err", err)
		}
	}
}

// progress tracks the start time of an operation and logs completion with
// elapsed duration. It is safe for sequential use by a single goroutine.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as
// start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Fused 42 items (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// ctxKey is the type for context keys used in this package. Using a
// distinct type prevents collisions with other packages.
type ctxKey int

// loggerKey is the context key for storing a logger.
const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx. If no logger is
// attached, it returns log.Default() so commands always have a valid
// logger even if context setup fails.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
