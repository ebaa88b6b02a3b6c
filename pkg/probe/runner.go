// Package probe observes ambient OS state: the process table for
// outbound transfer processes and the destination filesystem for
// partially written marker files.
//
// Probes are read-only and carry no cancellation authority over the
// processes they observe; cancellation applies only to the probe calls
// themselves, bounded by an explicit timeout. All inputs (roots,
// timeouts) are passed in by the caller, never read from ambient
// process state.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Runner executes an external probe command bounded by the context.
// It exists so probes can be exercised in tests without a live process
// table.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// StderrError reports that a probe command produced error-stream
// output. This is a fatal condition for the polling cycle: the caller
// must abort loudly rather than continue on possibly corrupt
// observations.
type StderrError struct {
	Probe  string
	Stderr string
}

func (e *StderrError) Error() string {
	return fmt.Sprintf("probe %s wrote to stderr: %s", e.Probe, e.Stderr)
}

// execRunner runs real commands via os/exec.
type execRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		// The command was killed by the deadline; surface the context
		// error so callers can classify the cycle as degraded.
		return nil, nil, ctxErr
	}
	if err != nil {
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("run %s: %w", name, err)
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}
