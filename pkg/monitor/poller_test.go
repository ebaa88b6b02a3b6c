package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lopesmcc/plotman/pkg/archive"
	"github.com/lopesmcc/plotman/pkg/probe"
)

// scriptedRunner plays one canned process-table response per call.
type scriptedRunner struct {
	mu      sync.Mutex
	stdout  string
	stderr  string
	timeout bool
}

func (s *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeout {
		return nil, nil, context.DeadlineExceeded
	}
	return []byte(s.stdout), []byte(s.stderr), nil
}

func (s *scriptedRunner) set(stdout, stderr string, timeout bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdout, s.stderr, s.timeout = stdout, stderr, timeout
}

func newTestPoller(t *testing.T, root string, runner probe.Runner) *Poller {
	t.Helper()
	fsProbe, err := probe.NewFilesystemProbe("")
	require.NoError(t, err)
	cfg := Config{
		FarmRoot:          root,
		PollInterval:      20 * time.Second,
		FilesystemTimeout: 5 * time.Second,
		ProcessTimeout:    5 * time.Second,
	}
	return New(cfg, fsProbe, probe.NewProcessProbe(runner), zap.NewNop())
}

func writeMarker(t *testing.T, root, disk, name string, size int) string {
	t.Helper()
	path := filepath.Join(root, disk, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestPoller_EndToEnd(t *testing.T) {
	root := t.TempDir()
	marker := writeMarker(t, root, "042", ".plot-k32-2021-05-31-21-15-abc123def.plot.xyz", 1_000_000)

	runner := &scriptedRunner{}
	p := newTestPoller(t, root, runner)

	t0 := time.Unix(5000, 0)
	p.now = func() time.Time { return t0 }
	require.NoError(t, p.Cycle(context.Background()))

	snap := p.Snapshot()
	require.NotNil(t, snap)
	require.Len(t, snap.Ingress, 1)
	job := snap.Ingress[0]
	assert.Equal(t, "xyz", job.JobID)
	assert.Equal(t, int64(1_000_000), job.TransferredBytes)
	_, ok := job.Rate()
	assert.False(t, ok, "no rate on first observation")

	// Ten seconds later the destination file has grown to 3 MB.
	require.NoError(t, os.WriteFile(marker, make([]byte, 3_000_000), 0o644))
	p.now = func() time.Time { return t0.Add(10 * time.Second) }
	require.NoError(t, p.Cycle(context.Background()))

	snap = p.Snapshot()
	require.Len(t, snap.Ingress, 1)
	job = snap.Ingress[0]

	rate, ok := job.Rate()
	require.True(t, ok)
	assert.InDelta(t, 200_000.0, rate, 0.001)

	expected, _ := job.ExpectedSize()
	eta, ok := job.ETA()
	require.True(t, ok)
	assert.Equal(t, time.Duration((expected-3_000_000)/200_000)*time.Second, eta)
}

func TestPoller_AbsenceEviction(t *testing.T) {
	root := t.TempDir()
	marker := writeMarker(t, root, "001", ".plot-k32-2021-05-31-21-15-aa.plot.gone", 100)

	p := newTestPoller(t, root, &scriptedRunner{})
	require.NoError(t, p.Cycle(context.Background()))
	require.Len(t, p.Snapshot().Ingress, 1)

	require.NoError(t, os.Remove(marker))
	require.NoError(t, p.Cycle(context.Background()))
	assert.Empty(t, p.Snapshot().Ingress)
}

func TestPoller_LocalityMarking(t *testing.T) {
	root := t.TempDir()
	writeMarker(t, root, "012", ".plot-k32-2021-05-31-21-15-abc123def.plot.j1", 100)

	egressLine := "Mon May 31 21:20:03 2021 rsync --bwlimit=80000000 --no-compress --partial --remove-source-files --whole-file -P /scratch/plot-k32-2021-05-31-21-15-abc123def.plot rsync://farmer@nas01:873/plots/012/"
	p := newTestPoller(t, root, &scriptedRunner{stdout: egressLine})

	require.NoError(t, p.Cycle(context.Background()))
	snap := p.Snapshot()
	require.Len(t, snap.Ingress, 1)
	require.Len(t, snap.Egress, 1)
	assert.True(t, snap.Ingress[0].Local, "same plot pushed out locally")
}

func TestPoller_DegradedCycleRetainsSnapshot(t *testing.T) {
	root := t.TempDir()
	writeMarker(t, root, "001", ".plot-k32-2021-05-31-21-15-aa.plot.keep", 100)

	runner := &scriptedRunner{}
	p := newTestPoller(t, root, runner)
	require.NoError(t, p.Cycle(context.Background()))
	first := p.Snapshot()
	require.NotNil(t, first)

	runner.set("", "", true) // process probe now times out
	require.NoError(t, p.Cycle(context.Background()))

	assert.Same(t, first, p.Snapshot(), "degraded cycle must not publish")
	require.NoError(t, p.Cycle(context.Background())) // still degraded
	assert.Same(t, first, p.Snapshot())

	runner.set("", "", false)
	require.NoError(t, p.Cycle(context.Background()))
	assert.NotSame(t, first, p.Snapshot())
	assert.Len(t, p.Snapshot().Ingress, 1, "registry survived the degraded cycles")
}

func TestPoller_StderrIsFatal(t *testing.T) {
	root := t.TempDir()
	p := newTestPoller(t, root, &scriptedRunner{stderr: "ps: boom"})

	err := p.Cycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stderr")
}

type memRecorder struct {
	mu   sync.Mutex
	jobs []*archive.IngressJob
}

func (m *memRecorder) RecordCompleted(ctx context.Context, job *archive.IngressJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func TestPoller_RecordsCompletedTransfers(t *testing.T) {
	root := t.TempDir()
	expected, _ := (&archive.IngressJob{K: 32}).ExpectedSize()

	// Sparse file at ~full size so progress clears the completion bar.
	path := filepath.Join(root, "001", ".plot-k32-2021-05-31-21-15-aa.plot.done")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(expected))
	require.NoError(t, f.Close())

	rec := &memRecorder{}
	fsProbe, err := probe.NewFilesystemProbe("")
	require.NoError(t, err)
	p := New(Config{FarmRoot: root}, fsProbe, probe.NewProcessProbe(&scriptedRunner{}), zap.NewNop(), WithRecorder(rec))

	require.NoError(t, p.Cycle(context.Background()))
	require.NoError(t, os.Remove(path))
	require.NoError(t, p.Cycle(context.Background()))

	require.Len(t, rec.jobs, 1)
	assert.Equal(t, "done", rec.jobs[0].JobID)
}

func TestPoller_ForceRefreshThrottled(t *testing.T) {
	p := newTestPoller(t, t.TempDir(), &scriptedRunner{})

	assert.True(t, p.ForceRefresh(), "first request passes")
	assert.False(t, p.ForceRefresh(), "second request inside the window is throttled")
}
