// Package output provides JSONL output for job snapshots.
//
// Output is structured as typed record envelopes containing ingress
// jobs, egress jobs, and cycle summaries. Each line is a self-contained
// JSON object that can be parsed independently, so snapshots can be
// streamed into log pipelines or diffed across cycles.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: plotman.<type>.v<version>
const (
	// TypeIngress identifies ingress job records.
	TypeIngress = "plotman.ingress.v1"

	// TypeEgress identifies egress job records.
	TypeEgress = "plotman.egress.v1"

	// TypeSnapshot identifies cycle summary records.
	TypeSnapshot = "plotman.snapshot.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "plotman.ingress.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was written (RFC3339Nano).
	TS time.Time `json:"ts"`

	// CycleID correlates records emitted for the same polling cycle.
	CycleID string `json:"cycle_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// IngressRecord is the data payload for one ingress job, with the
// derived estimates flattened in so consumers need no estimator.
type IngressRecord struct {
	JobID            string  `json:"job_id"`
	PlotID           string  `json:"plot_id"`
	K                int     `json:"k"`
	DiskIndex        int     `json:"disk_index"`
	TransferredBytes int64   `json:"transferred_bytes"`
	Progress         float64 `json:"progress"`

	// Rate in bytes/sec; omitted while undefined.
	Rate *float64 `json:"rate,omitempty"`

	// ETASeconds is omitted while the rate is undefined or zero.
	ETASeconds *int64 `json:"eta_seconds,omitempty"`

	Local bool `json:"local"`
}

// EgressRecord is the data payload for one egress job.
type EgressRecord struct {
	PlotID         string  `json:"plot_id"`
	K              int     `json:"k"`
	SourcePath     string  `json:"source_path"`
	Destination    string  `json:"destination"`
	BandwidthLimit int64   `json:"bandwidth_limit"`
	Progress       float64 `json:"progress"`
}

// SnapshotRecord is the cycle summary payload.
type SnapshotRecord struct {
	CapturedAt   time.Time `json:"captured_at"`
	IngressCount int       `json:"ingress_count"`
	EgressCount  int       `json:"egress_count"`
}

// ErrWriterClosed is returned when writing after Close.
var ErrWriterClosed = errors.New("writer is closed")

// WriteError wraps failures while emitting a record.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("output %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
