package archive

import (
	"sort"
	"time"

	"github.com/lopesmcc/plotman/pkg/plotfile"
)

// Candidate is one freshly parsed marker observation from the current
// probe cycle, before reconciliation.
type Candidate struct {
	Fields plotfile.MarkerFields
	Bytes  int64
}

// Registry is the authoritative set of currently-live ingress jobs for
// one polling cycle. A Registry is immutable after construction; each
// cycle produces a new one and the previous is discarded wholesale.
type Registry struct {
	jobs []*IngressJob
	byID map[string]*IngressJob
}

// EmptyRegistry returns a registry with no jobs, the starting point for
// the first cycle.
func EmptyRegistry() *Registry {
	return &Registry{byID: map[string]*IngressJob{}}
}

// Reconcile merges the current cycle's candidates with the previous
// registry by job identity.
//
// A candidate whose JobID matches a previous record inherits that
// record's history with the previous (ObservedAt, TransferredBytes)
// prepended; an unmatched candidate starts with empty history. The
// returned registry contains only records re-confirmed this cycle:
// eviction is purely by absence, there is no explicit removal.
func Reconcile(candidates []Candidate, prev *Registry, now time.Time) *Registry {
	if prev == nil {
		prev = EmptyRegistry()
	}

	next := &Registry{
		jobs: make([]*IngressJob, 0, len(candidates)),
		byID: make(map[string]*IngressJob, len(candidates)),
	}

	for _, c := range candidates {
		job := &IngressJob{
			JobID:            c.Fields.JobID,
			PlotID:           c.Fields.PlotID,
			K:                c.Fields.K,
			CreatedAt:        c.Fields.CreatedAt,
			DiskIndex:        c.Fields.DiskIndex,
			TransferredBytes: c.Bytes,
			ObservedAt:       now,
		}

		if p, ok := prev.byID[c.Fields.JobID]; ok {
			history := make([]ByteSample, 0, len(p.History)+1)
			history = append(history, ByteSample{ObservedAt: p.ObservedAt, Bytes: p.TransferredBytes})
			history = append(history, p.History...)
			job.History = history
		}

		// Last write wins on a duplicate JobID within one cycle.
		// Collisions are an accepted risk, not validated.
		if _, dup := next.byID[job.JobID]; !dup {
			next.jobs = append(next.jobs, job)
		} else {
			for i, existing := range next.jobs {
				if existing.JobID == job.JobID {
					next.jobs[i] = job
					break
				}
			}
		}
		next.byID[job.JobID] = job
	}

	sort.Slice(next.jobs, func(i, j int) bool {
		a, b := next.jobs[i], next.jobs[j]
		if a.DiskIndex != b.DiskIndex {
			return a.DiskIndex < b.DiskIndex
		}
		return a.JobID < b.JobID
	})

	return next
}

// Jobs returns the live jobs ordered by disk index, then job ID.
func (r *Registry) Jobs() []*IngressJob {
	return r.jobs
}

// Get returns the live job with the given ID, if present.
func (r *Registry) Get(jobID string) (*IngressJob, bool) {
	j, ok := r.byID[jobID]
	return j, ok
}

// Len returns the number of live jobs.
func (r *Registry) Len() int {
	return len(r.jobs)
}
