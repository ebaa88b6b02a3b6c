package archive

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the immutable per-cycle view handed to consumers (the
// scheduler, the dashboard, the status API). It is published wholesale
// and never mutated in place, so readers always see a fully-formed
// cycle even when they run concurrently with the poller.
type Snapshot struct {
	// CycleID correlates records emitted for the same polling cycle.
	CycleID string `json:"cycle_id"`

	// CapturedAt is when the cycle's observations were taken.
	CapturedAt time.Time `json:"captured_at"`

	// Ingress jobs, ordered by disk index then job ID.
	Ingress []*IngressJob `json:"ingress"`

	// Egress jobs as observed from the process table.
	Egress []EgressJob `json:"egress"`
}

// NewSnapshot assembles a snapshot from a reconciled registry and the
// cycle's egress observations.
func NewSnapshot(reg *Registry, egress []EgressJob, capturedAt time.Time) *Snapshot {
	return &Snapshot{
		CycleID:    uuid.New().String(),
		CapturedAt: capturedAt,
		Ingress:    reg.Jobs(),
		Egress:     egress,
	}
}
