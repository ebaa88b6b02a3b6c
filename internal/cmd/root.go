// Package cmd implements the plotman CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lopesmcc/plotman/internal/config"
	"github.com/lopesmcc/plotman/internal/observability"
)

// versionInfo holds build-time version metadata, set via SetVersionInfo
// from main.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile  string
	logLevel string
	logJSON  bool

	// cfg is resolved once in the root PersistentPreRunE and shared by
	// subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "plotman",
	Short: "Plot archival transfer monitor",
	Long: `plotman observes in-flight plot archival transfers by scanning
destination filesystems and the process table, reconciles them into a
job registry, and reports progress, transfer rates, and ETAs.

No daemon hooks or transfer-tool instrumentation are required: all
state is rebuilt from ambient observation every polling cycle.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := observability.InitCLILogger(logLevel, logJSON); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid logging flags", err)
		}

		loaded, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer observability.SyncLogger()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCodeFor(err)
	}
	return 0
}

// codedError carries a process exit code alongside the error chain.
type codedError struct {
	code    int
	message string
	err     error
}

func (e *codedError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *codedError) Unwrap() error {
	return e.err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &codedError{code: code, message: message, err: err}
}

func exitCodeFor(err error) int {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return 1
}
