//go:build !integration

package logger_test

import (
	"os"

	"github.com/kevin-mind/nopo/pkg/logger"
)

// Note: the default logger writes to the real stdout/stderr, so examples
// construct their own Logger when they need deterministic sinks.

func ExampleSetLogLevel() {
	// Raise the threshold so only warnings and errors are emitted
	logger.SetLogLevel(logger.LevelWarn)
	defer logger.SetLogLevel(logger.LevelInfo)

	// Filtered: info < warn
	logger.Info("compiling workflows")

	// Emitted to stderr with a timestamp prefix:
	// [2025-01-02T15:04:05.000Z] [WARN] manifest is stale {"path":"nopo.yml"}
	logger.Warn("manifest is stale", map[string]any{"path": "nopo.yml"})

	// Output:
}

func ExampleNew() {
	// A Logger with injected sinks, useful in tests
	log := logger.New(os.Stdout, os.Stderr)
	log.SetLevel(logger.LevelDebug)

	if log.Level() == logger.LevelDebug {
		log.Debug("debug logging enabled")
	}
}
