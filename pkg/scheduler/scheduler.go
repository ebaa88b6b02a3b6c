// Package scheduler defines the collaborator interfaces a full farm
// manager plugs into the monitor.
//
// The monitor itself only observes; starting plots and spawning
// archival transfers are decisions made elsewhere. These interfaces
// keep that boundary explicit so the poller can be embedded without
// importing a manager implementation.
package scheduler

import (
	"context"
	"time"

	"github.com/lopesmcc/plotman/pkg/archive"
)

// StartPolicy decides whether a new plot job should be started given
// the current view of in-flight transfers.
type StartPolicy interface {
	// ShouldStartPlot reports whether a new plot may start now, with a
	// human-readable reason when it may not.
	ShouldStartPlot(ctx context.Context, snap *archive.Snapshot) (ok bool, reason string, err error)
}

// FreeSpaceProber reports remaining capacity on archive destinations.
type FreeSpaceProber interface {
	// FreeBytes returns the free space on the destination identified
	// by its canonical tag (e.g. "/007@nas").
	FreeBytes(ctx context.Context, destination string) (int64, error)
}

// TransferRequest describes one archival transfer to spawn.
type TransferRequest struct {
	// SourcePath is the finished plot to move.
	SourcePath string

	// Destination is the transfer target in tool syntax, e.g. an
	// rsync daemon URL or a local directory.
	Destination string

	// BandwidthLimit caps the transfer rate in bytes/sec; zero means
	// unlimited.
	BandwidthLimit int64
}

// Spawner launches archival transfers. Implementations own process
// lifecycle; the monitor discovers spawned transfers ambiently on its
// next cycle rather than tracking handles.
type Spawner interface {
	Spawn(ctx context.Context, req TransferRequest) error
}

// Clock abstracts time for policies that throttle or window decisions.
type Clock interface {
	Now() time.Time
}
