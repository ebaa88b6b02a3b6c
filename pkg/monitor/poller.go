// Package monitor runs the polling loop that turns ambient OS
// observations into published job snapshots.
//
// One cycle is probe → parse → reconcile → classify → publish, executed
// atomically with respect to the registry: the registry is replaced
// wholesale each cycle, never mutated in place, so snapshot readers
// always see a fully-formed cycle. The loop is the registry's only
// writer.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lopesmcc/plotman/pkg/archive"
	"github.com/lopesmcc/plotman/pkg/plotfile"
	"github.com/lopesmcc/plotman/pkg/probe"
)

// completionThreshold is the minimum progress at which a job that
// vanishes from the registry is considered finished rather than
// cancelled, for history recording purposes.
const completionThreshold = 0.95

// Recorder persists jobs that completed and left the registry. It is
// optional; the live registry itself never touches a persistent store.
type Recorder interface {
	RecordCompleted(ctx context.Context, job *archive.IngressJob) error
}

// Config configures the poller.
type Config struct {
	// FarmRoot is the destination root the filesystem probe scans.
	FarmRoot string

	// PollInterval is the cadence of full refresh cycles.
	// Default: 20s.
	PollInterval time.Duration

	// FilesystemTimeout bounds one marker listing. Default: 20s.
	FilesystemTimeout time.Duration

	// ProcessTimeout bounds one process-table scan. Default: 20s.
	ProcessTimeout time.Duration

	// EgressCorrection is the protocol-overhead factor applied to
	// egress progress projections. Default: archive.DefaultEgressCorrection.
	EgressCorrection float64
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 20 * time.Second
	}
	if c.FilesystemTimeout <= 0 {
		c.FilesystemTimeout = 20 * time.Second
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = 20 * time.Second
	}
	if c.EgressCorrection <= 0 {
		c.EgressCorrection = archive.DefaultEgressCorrection
	}
}

// Poller owns the registry and publishes snapshots.
type Poller struct {
	cfg       Config
	fsProbe   *probe.FilesystemProbe
	procProbe *probe.ProcessProbe
	log       *zap.Logger
	recorder  Recorder

	// registry is touched only by the Run goroutine.
	registry *archive.Registry

	snapshot atomic.Pointer[archive.Snapshot]

	refreshLimiter *rate.Limiter
	refreshCh      chan struct{}

	now func() time.Time
}

// Option customizes a Poller.
type Option func(*Poller)

// WithRecorder attaches a completed-transfer recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Poller) { p.recorder = r }
}

// New creates a poller. The logger is required; pass zap.NewNop() to
// silence it.
func New(cfg Config, fsProbe *probe.FilesystemProbe, procProbe *probe.ProcessProbe, log *zap.Logger, opts ...Option) *Poller {
	cfg.applyDefaults()
	p := &Poller{
		cfg:       cfg,
		fsProbe:   fsProbe,
		procProbe: procProbe,
		log:       log,
		registry:  archive.EmptyRegistry(),
		// Forced refreshes are throttled to one per half interval so a
		// chatty consumer cannot turn the poller into a probe storm.
		refreshLimiter: rate.NewLimiter(rate.Every(cfg.PollInterval/2), 1),
		refreshCh:      make(chan struct{}, 1),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the most recently published cycle, or nil before the
// first successful cycle. Safe for concurrent use with Run.
func (p *Poller) Snapshot() *archive.Snapshot {
	return p.snapshot.Load()
}

// ForceRefresh requests an immediate cycle. Returns false when the
// request was throttled or one is already pending.
func (p *Poller) ForceRefresh() bool {
	if !p.refreshLimiter.Allow() {
		return false
	}
	select {
	case p.refreshCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run executes polling cycles until the context is cancelled or a
// fatal probe error occurs. A fatal error halts the loop and is
// returned with its diagnostic intact; transient degradation (probe
// timeouts) is logged and the previous snapshot is retained.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Cycle(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-p.refreshCh:
		}
		if err := p.Cycle(ctx); err != nil {
			return err
		}
	}
}

// Cycle runs one probe→parse→reconcile→classify→publish pass.
//
// Exported so one-shot consumers (the jobs command) can reuse the exact
// cycle semantics without the loop.
func (p *Poller) Cycle(ctx context.Context) error {
	started := p.now()
	root := probe.NormalizeRoot(p.cfg.FarmRoot)

	egress, procDegraded, err := p.procProbe.ListEgress(ctx, p.cfg.ProcessTimeout)
	if err != nil {
		// Error-stream output (or a failed exec) is fatal: halting
		// loudly beats silently corrupting the registry.
		return err
	}

	markers, fsDegraded, err := p.fsProbe.ListMarkers(ctx, root, p.cfg.FilesystemTimeout)
	if err != nil {
		p.log.Warn("filesystem probe failed, retaining previous snapshot",
			zap.String("root", root),
			zap.Error(err))
		return nil
	}
	if procDegraded || fsDegraded {
		p.log.Warn("probe timed out, retaining previous snapshot",
			zap.Bool("process_degraded", procDegraded),
			zap.Bool("filesystem_degraded", fsDegraded))
		return nil
	}

	candidates := make([]archive.Candidate, 0, len(markers))
	for _, m := range markers {
		fields, ok := plotfile.ParseMarker(m.Path, root)
		if !ok {
			// Unrelated files are expected in a full scan; no log spam.
			continue
		}
		candidates = append(candidates, archive.Candidate{Fields: fields, Bytes: m.Bytes})
	}

	next := archive.Reconcile(candidates, p.registry, started)
	p.recordCompleted(ctx, next)
	archive.MarkLocality(next, egress)

	p.registry = next
	snap := archive.NewSnapshot(next, egress, started)
	p.snapshot.Store(snap)

	p.log.Debug("cycle published",
		zap.String("cycle_id", snap.CycleID),
		zap.Int("ingress", len(snap.Ingress)),
		zap.Int("egress", len(snap.Egress)),
		zap.Duration("took", p.now().Sub(started)))
	return nil
}

// recordCompleted persists previously tracked jobs that vanished this
// cycle at near-full progress.
func (p *Poller) recordCompleted(ctx context.Context, next *archive.Registry) {
	if p.recorder == nil {
		return
	}
	for _, prev := range p.registry.Jobs() {
		if _, alive := next.Get(prev.JobID); alive {
			continue
		}
		if prev.Progress() < completionThreshold {
			continue
		}
		if err := p.recorder.RecordCompleted(ctx, prev); err != nil {
			p.log.Warn("failed to record completed transfer",
				zap.String("job_id", prev.JobID),
				zap.Error(err))
		}
	}
}

// EgressCorrection exposes the configured overhead factor for
// presentation layers computing egress progress.
func (p *Poller) EgressCorrection() float64 {
	return p.cfg.EgressCorrection
}
