package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lopesmcc/plotman/internal/observability"
	"github.com/lopesmcc/plotman/pkg/history"
	"github.com/lopesmcc/plotman/pkg/manifest"
	"github.com/lopesmcc/plotman/pkg/monitor"
	"github.com/lopesmcc/plotman/pkg/probe"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the polling monitor loop",
	Long: `Run the monitor loop: scan the farm destination tree and the
process table on every polling interval, reconcile in-flight transfers,
and log the resulting snapshots.

Example:
  plotman monitor --manifest farm.yaml
  plotman monitor --manifest farm.yaml --interval 10s
  plotman monitor --manifest farm.yaml --once`,
	RunE: runMonitor,
}

var (
	monitorManifestPath string
	monitorInterval     time.Duration
	monitorOnce         bool
)

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringVarP(&monitorManifestPath, "manifest", "m", "", "Path to archiving manifest (required)")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Override polling interval")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "Run a single cycle and exit")

	_ = monitorCmd.MarkFlagRequired("manifest")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	poller, cleanup, err := buildPoller(ctx, monitorManifestPath)
	if err != nil {
		return err
	}
	defer cleanup()

	if monitorOnce {
		if err := poller.Cycle(ctx); err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Probe failed", err)
		}
		return emitSnapshot(ctx, poller)
	}

	observability.CLILogger.Info("Starting monitor",
		zap.String("manifest", monitorManifestPath))

	err = poller.Run(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		observability.CLILogger.Info("Monitor stopped")
		return nil
	default:
		var stderrErr *probe.StderrError
		if errors.As(err, &stderrErr) {
			observability.CLILogger.Error("Probe wrote to stderr, halting",
				zap.String("probe", stderrErr.Probe),
				zap.String("stderr", stderrErr.Stderr))
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Monitor failed", err)
	}
}

// buildPoller loads the manifest and assembles the poller with its
// probes and optional history recorder. The returned cleanup closes
// the history store.
func buildPoller(ctx context.Context, manifestPath string) (*monitor.Poller, func(), error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", manifestPath),
			zap.Error(err))
		return nil, nil, exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", manifestPath),
		zap.String("farm_root", m.Farm.Root),
		zap.String("target", m.Archiving.Target))

	fsProbe, err := probe.NewFilesystemProbe(m.Farm.MarkerGlob)
	if err != nil {
		return nil, nil, exitError(foundry.ExitInvalidArgument, "Invalid marker glob", err)
	}
	procProbe := probe.NewProcessProbe(probe.NewExecRunner())

	interval := cfg.Monitor.Interval
	if monitorInterval > 0 {
		interval = monitorInterval
	}

	monitorCfg := monitor.Config{
		FarmRoot:          m.Farm.Root,
		PollInterval:      interval,
		FilesystemTimeout: cfg.Monitor.FilesystemTimeout,
		ProcessTimeout:    cfg.Monitor.ProcessTimeout,
		EgressCorrection:  m.Archiving.EgressCorrection,
	}

	cleanup := func() {}
	var opts []monitor.Option
	if cfg.History.Path != "" {
		store, err := history.Open(ctx, history.Config{Path: cfg.History.Path})
		if err != nil {
			return nil, nil, exitError(foundry.ExitFileWriteError, "Failed to open history ledger", err)
		}
		cleanup = func() { _ = store.Close() }
		opts = append(opts, monitor.WithRecorder(store))
	}

	return monitor.New(monitorCfg, fsProbe, procProbe, observability.CLILogger, opts...), cleanup, nil
}

// emitSnapshot writes the current snapshot as JSONL to stdout.
func emitSnapshot(ctx context.Context, poller *monitor.Poller) error {
	snap := poller.Snapshot()
	if snap == nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "No snapshot captured", errors.New("cycle produced no snapshot"))
	}
	if err := writeSnapshotJSONL(ctx, os.Stdout, poller, snap); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write records", err)
	}
	return nil
}
