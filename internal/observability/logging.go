// Package observability holds the process-wide loggers.
//
// CLI commands log human-readable output to stderr by default and
// structured JSON when requested, keeping stdout free for JSONL
// records.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the shared logger for CLI commands. It is a no-op until
// InitCLILogger runs, so packages may log unconditionally.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger at the given level. jsonOutput
// selects JSON encoding; otherwise a console encoder is used. The
// level "test" silences output entirely.
func InitCLILogger(level string, jsonOutput bool) error {
	if level == "test" {
		CLILogger = zap.NewNop()
		return nil
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if !jsonOutput {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	CLILogger = logger
	return nil
}

// SyncLogger flushes buffered log entries. Safe to call on a no-op
// logger; sync errors on stderr are ignored.
func SyncLogger() {
	_ = CLILogger.Sync()
}
