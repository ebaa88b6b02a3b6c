package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/lopesmcc/plotman/pkg/archive"
)

// Writer outputs JSONL records for snapshots.
//
// Implementations must be safe for concurrent use. Each Write* method
// emits a complete record as a single line of JSON followed by a
// newline.
type Writer interface {
	// WriteIngress emits an ingress job record.
	WriteIngress(ctx context.Context, rec *IngressRecord) error

	// WriteEgress emits an egress job record.
	WriteEgress(ctx context.Context, rec *EgressRecord) error

	// WriteSnapshot emits a cycle summary record.
	WriteSnapshot(ctx context.Context, rec *SnapshotRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized with a mutex to keep lines atomic.
type JSONLWriter struct {
	w       io.Writer
	cycleID string
	mu      sync.Mutex
	closed  bool
}

// NewJSONLWriter creates a writer tagging every record with cycleID.
func NewJSONLWriter(w io.Writer, cycleID string) *JSONLWriter {
	return &JSONLWriter{w: w, cycleID: cycleID}
}

func (jw *JSONLWriter) WriteIngress(ctx context.Context, rec *IngressRecord) error {
	return jw.writeRecord(ctx, TypeIngress, rec)
}

func (jw *JSONLWriter) WriteEgress(ctx context.Context, rec *EgressRecord) error {
	return jw.writeRecord(ctx, TypeEgress, rec)
}

func (jw *JSONLWriter) WriteSnapshot(ctx context.Context, rec *SnapshotRecord) error {
	return jw.writeRecord(ctx, TypeSnapshot, rec)
}

// Close marks the writer as closed. The underlying writer is not
// closed; that remains the caller's responsibility.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

// writeRecord marshals data and writes one complete envelope line.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:    recordType,
		TS:      time.Now().UTC(),
		CycleID: jw.cycleID,
		Data:    dataBytes,
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may return n < len(p) with nil error; a short write
	// would truncate a JSONL line, so loop until done.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// WriteSnapshotRecords emits one ingress record per job, one egress
// record per job, and a trailing cycle summary for the snapshot.
func WriteSnapshotRecords(ctx context.Context, w Writer, snap *archive.Snapshot, egressCorrection float64) error {
	for _, job := range snap.Ingress {
		rec := &IngressRecord{
			JobID:            job.JobID,
			PlotID:           job.PlotID,
			K:                job.K,
			DiskIndex:        job.DiskIndex,
			TransferredBytes: job.TransferredBytes,
			Progress:         job.Progress(),
			Local:            job.Local,
		}
		if rate, ok := job.Rate(); ok {
			rec.Rate = &rate
		}
		if eta, ok := job.ETA(); ok {
			secs := int64(eta.Seconds())
			rec.ETASeconds = &secs
		}
		if err := w.WriteIngress(ctx, rec); err != nil {
			return err
		}
	}

	for _, job := range snap.Egress {
		rec := &EgressRecord{
			PlotID:         job.PlotID,
			K:              job.K,
			SourcePath:     job.SourcePath,
			Destination:    job.Destination,
			BandwidthLimit: job.BandwidthLimit,
			Progress:       job.Progress(snap.CapturedAt, egressCorrection),
		}
		if err := w.WriteEgress(ctx, rec); err != nil {
			return err
		}
	}

	return w.WriteSnapshot(ctx, &SnapshotRecord{
		CapturedAt:   snap.CapturedAt,
		IngressCount: len(snap.Ingress),
		EgressCount:  len(snap.Egress),
	})
}

// Compile-time check that JSONLWriter implements Writer.
var _ Writer = (*JSONLWriter)(nil)
