package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner returns canned output, or simulates a deadline.
type fakeRunner struct {
	stdout  string
	stderr  string
	err     error
	timeout bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if f.timeout {
		return nil, nil, context.DeadlineExceeded
	}
	return []byte(f.stdout), []byte(f.stderr), f.err
}

const egressLine = "Mon May 31 21:20:03 2021 rsync --bwlimit=80000000 --no-compress --partial --remove-source-files --whole-file -P /scratch/plot-k32-2021-05-31-21-15-abc123def.plot rsync://farmer@nas01:873/plots/012/"

func TestListEgress(t *testing.T) {
	runner := &fakeRunner{stdout: egressLine + "\n" +
		"Mon May 31 21:20:03 2021 /usr/bin/some-daemon --flag\n" +
		"Tue Jun  1 08:01:00 2021 rsync --bwlimit=5 short line\n"}

	probe := NewProcessProbe(runner)
	jobs, degraded, err := probe.ListEgress(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, jobs, 1, "non-conforming lines are dropped whole")

	job := jobs[0]
	assert.Equal(t, "abc123def", job.PlotID)
	assert.Equal(t, 32, job.K)
	assert.Equal(t, int64(80_000_000), job.BandwidthLimit)
	assert.Equal(t, "/scratch/plot-k32-2021-05-31-21-15-abc123def.plot", job.SourcePath)
	assert.Equal(t, "/012@nas01", job.Destination)
	assert.Equal(t, time.Date(2021, 5, 31, 21, 20, 3, 0, time.Local), job.StartedAt)
	assert.Contains(t, job.CommandLine, "abc123def.plot")
	assert.NotContains(t, job.CommandLine, "Mon May", "command line excludes the lstart columns")
}

func TestListEgress_TokenCount(t *testing.T) {
	// Same invocation with one extra flag: ten tokens, silently dropped.
	extra := "Mon May 31 21:20:03 2021 rsync --bwlimit=80000000 --no-compress --partial --remove-source-files --whole-file --extra -P /scratch/plot-k32-2021-05-31-21-15-abc123def.plot /mnt/farm/012/"

	probe := NewProcessProbe(&fakeRunner{stdout: extra})
	jobs, degraded, err := probe.ListEgress(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Empty(t, jobs)
}

func TestListEgress_LocalDestination(t *testing.T) {
	line := "Mon May 31 21:20:03 2021 rsync --bwlimit=80000000 --no-compress --partial --remove-source-files --whole-file -P /scratch/plot-k32-2021-05-31-21-15-abc123def.plot /mnt/farm/012/"

	probe := NewProcessProbe(&fakeRunner{stdout: line})
	jobs, _, err := probe.ListEgress(context.Background(), time.Second)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "/mnt/farm/012/", jobs[0].Destination, "local paths pass through unchanged")
}

func TestListEgress_StderrIsFatal(t *testing.T) {
	probe := NewProcessProbe(&fakeRunner{stdout: egressLine, stderr: "ps: permission denied"})

	_, _, err := probe.ListEgress(context.Background(), time.Second)
	require.Error(t, err)

	var stderrErr *StderrError
	require.True(t, errors.As(err, &stderrErr))
	assert.Equal(t, "ps", stderrErr.Probe)
	assert.Contains(t, stderrErr.Stderr, "permission denied")
}

func TestListEgress_TimeoutDegrades(t *testing.T) {
	probe := NewProcessProbe(&fakeRunner{timeout: true})

	jobs, degraded, err := probe.ListEgress(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Empty(t, jobs)
}

func TestCanonicalDestination(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"transfer url", "rsync://farmer@nas01:873/plots/012/", "/012@nas01"},
		{"no trailing slash", "rsync://farmer@nas01:873/plots/012", "/012@nas01"},
		{"local path", "/mnt/farm/012/", "/mnt/farm/012/"},
		{"relative path", "archive/012", "archive/012"},
		{"empty module path", "rsync://farmer@nas01:873/", "rsync://farmer@nas01:873/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalDestination(tt.in))
		})
	}
}
