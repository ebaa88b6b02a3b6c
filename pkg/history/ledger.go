package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lopesmcc/plotman/pkg/archive"
)

// CompletedTransfer is one ledger row.
type CompletedTransfer struct {
	ID               string    `json:"id"`
	JobID            string    `json:"job_id"`
	PlotID           string    `json:"plot_id"`
	K                int       `json:"k"`
	DiskIndex        int       `json:"disk_index"`
	TransferredBytes int64     `json:"transferred_bytes"`
	Local            bool      `json:"local"`
	MeanRate         *float64  `json:"mean_rate,omitempty"`
	FirstObserved    time.Time `json:"first_observed"`
	CompletedAt      time.Time `json:"completed_at"`
}

// RecordCompleted inserts the final state of a job that vanished from
// the registry at (near) full progress. Implements monitor.Recorder.
func (s *Store) RecordCompleted(ctx context.Context, job *archive.IngressJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}

	var meanRate sql.NullFloat64
	if rate, ok := job.Rate(); ok {
		meanRate = sql.NullFloat64{Float64: rate, Valid: true}
	}

	firstObserved := job.ObservedAt
	if n := len(job.History); n > 0 {
		firstObserved = job.History[n-1].ObservedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfers
			(id, job_id, plot_id, k, disk_index, transferred_bytes, local, mean_rate, first_observed, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		uuid.New().String(),
		job.JobID,
		job.PlotID,
		job.K,
		job.DiskIndex,
		job.TransferredBytes,
		job.Local,
		meanRate,
		firstObserved.UTC(),
		job.ObservedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert completed transfer: %w", err)
	}
	return nil
}

// Recent returns the most recently completed transfers, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]CompletedTransfer, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, plot_id, k, disk_index, transferred_bytes, local, mean_rate, first_observed, completed_at
		FROM transfers
		ORDER BY completed_at DESC
		LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query completed transfers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CompletedTransfer
	for rows.Next() {
		var t CompletedTransfer
		var meanRate sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.JobID, &t.PlotID, &t.K, &t.DiskIndex,
			&t.TransferredBytes, &t.Local, &meanRate, &t.FirstObserved, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan completed transfer: %w", err)
		}
		if meanRate.Valid {
			rate := meanRate.Float64
			t.MeanRate = &rate
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
