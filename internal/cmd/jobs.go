package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/lopesmcc/plotman/pkg/archive"
	"github.com/lopesmcc/plotman/pkg/monitor"
	"github.com/lopesmcc/plotman/pkg/output"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Scan once and emit the job snapshot as JSONL",
	Long: `Run a single probe cycle and write the resulting snapshot to
stdout as JSONL: one record per ingress job, one per egress job, and a
trailing cycle summary.

Example:
  plotman jobs --manifest farm.yaml
  plotman jobs --manifest farm.yaml --output jobs.jsonl`,
	RunE: runJobs,
}

var (
	jobsManifestPath string
	jobsOutput       string
)

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().StringVarP(&jobsManifestPath, "manifest", "m", "", "Path to archiving manifest (required)")
	jobsCmd.Flags().StringVarP(&jobsOutput, "output", "o", "", "Write records to a file instead of stdout")

	_ = jobsCmd.MarkFlagRequired("manifest")
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	poller, cleanup, err := buildPoller(ctx, jobsManifestPath)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := poller.Cycle(ctx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Probe failed", err)
	}
	snap := poller.Snapshot()
	if snap == nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "No snapshot captured", fmt.Errorf("cycle produced no snapshot"))
	}

	dest, destCleanup, err := openOutput(jobsOutput)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer destCleanup()

	if err := writeSnapshotJSONL(ctx, dest, poller, snap); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write records", err)
	}
	return nil
}

// openOutput resolves the output destination. Empty, "-", or "stdout"
// means stdout; a "file:" prefix is stripped.
func openOutput(dest string) (io.Writer, func(), error) {
	if dest == "" || dest == "-" || dest == "stdout" {
		return os.Stdout, func() {}, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func writeSnapshotJSONL(ctx context.Context, dest io.Writer, poller *monitor.Poller, snap *archive.Snapshot) error {
	w := output.NewJSONLWriter(dest, snap.CycleID)
	defer func() { _ = w.Close() }()
	return output.WriteSnapshotRecords(ctx, w, snap, poller.EgressCorrection())
}
