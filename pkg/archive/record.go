// Package archive reconstructs the set of in-flight archival transfer
// jobs from ambient OS observations and derives progress, rate, and ETA
// estimates for them.
//
// There is no event stream: no job-start or job-end signal exists. Each
// polling cycle the registry is rebuilt from scratch out of whatever the
// probes could see, merged with the previous cycle by job identity. The
// engine is a read-only observer; it never starts, stops, or signals the
// transfer processes it tracks.
package archive

import (
	"time"

	"github.com/lopesmcc/plotman/pkg/plotfile"
)

// ByteSample is a single observation of the destination file size.
// Immutable once recorded.
type ByteSample struct {
	ObservedAt time.Time `json:"observed_at"`
	Bytes      int64     `json:"bytes"`
}

// IngressJob is an inbound copy writing a plot into archival storage,
// observed from the destination side via its marker file.
//
// History holds prior observations newest-first: each time the job is
// re-confirmed, the previous cycle's (ObservedAt, TransferredBytes) is
// prepended and the chain carries forward. History grows without bound
// for the job's lifetime; transfers are naturally short-lived, so
// estimator stability is favored over bounded memory.
type IngressJob struct {
	// JobID is the identity token parsed from the marker filename
	// suffix. Stable across polls for the same logical job; assumed
	// unique among concurrently in-flight jobs.
	JobID string `json:"job_id"`

	// PlotID identifies the plot content, shared with a concurrent
	// egress transfer of the same plot.
	PlotID string `json:"plot_id"`

	// K is the plot size class; expected total bytes come from the
	// fixed lookup table, never from measurement.
	K int `json:"k"`

	// CreatedAt is decoded from the filename's embedded date fields.
	CreatedAt time.Time `json:"created_at"`

	// DiskIndex is the numbered storage slot the marker lives under.
	DiskIndex int `json:"disk_index"`

	// TransferredBytes is the latest observed size of the partially
	// written destination file.
	TransferredBytes int64 `json:"transferred_bytes"`

	// ObservedAt is when TransferredBytes was sampled.
	ObservedAt time.Time `json:"observed_at"`

	// History holds previous samples, newest first.
	History []ByteSample `json:"history,omitempty"`

	// Local is true when the same plot is simultaneously being pushed
	// out by a local egress process, i.e. the inbound copy is not a
	// genuine network hop. Set by the locality classifier.
	Local bool `json:"local"`
}

// EgressJob is an outbound transfer process observed from the process
// table, writing from local scratch storage to an archive target. No
// destination byte count is sampled, so it carries no history.
type EgressJob struct {
	PlotID    string    `json:"plot_id"`
	K         int       `json:"k"`
	CreatedAt time.Time `json:"created_at"`

	// SourcePath is the plot file being pushed.
	SourcePath string `json:"source_path"`

	// Destination is either a plain local path or the canonical
	// locality tag "/<disk>@<host>" rewritten from a transfer URL.
	Destination string `json:"destination"`

	// BandwidthLimit is the configured transfer cap in bytes/sec.
	BandwidthLimit int64 `json:"bandwidth_limit"`

	// StartedAt is the process start time from the process table.
	StartedAt time.Time `json:"started_at"`

	// CommandLine is the raw command-line text of the process, kept
	// for locality classification.
	CommandLine string `json:"command_line"`
}

// ExpectedSize returns the fixed expected total bytes for the job's
// size class. ok is false for unknown classes.
func (j *IngressJob) ExpectedSize() (int64, bool) {
	return plotfile.ExpectedSizeBytes(j.K)
}

// ExpectedSize returns the fixed expected total bytes for the job's
// size class. ok is false for unknown classes.
func (j *EgressJob) ExpectedSize() (int64, bool) {
	return plotfile.ExpectedSizeBytes(j.K)
}
