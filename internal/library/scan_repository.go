package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrScanNotFound = errors.New("scan not found")

type ScanRecord struct {
	ID            string  `json:"id"`
	Mode          string  `json:"mode"`
	Status        string  `json:"status"`
	StartedAt     string  `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt,omitempty"`
	FilesSeen     int     `json:"filesSeen"`
	TracksIndexed int     `json:"tracksIndexed"`
	FilesSkipped  int     `json:"filesSkipped"`
	Error         *string `json:"error,omitempty"`
}

type ScanCounts struct {
	FilesSeen     int
	TracksIndexed int
	FilesSkipped  int
}

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(database *sql.DB) *ScanRepository {
	return &ScanRepository{db: database}
}

func (r *ScanRepository) Create(ctx context.Context, id string, mode string, startedAt time.Time) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO scans(id, mode, status, started_at, files_seen, tracks_indexed, files_skipped)
		 VALUES (?, ?, 'scanning', ?, 0, 0, 0)`,
		id,
		mode,
		startedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert scan %s: %w", id, err)
	}

	return nil
}

func (r *ScanRepository) Finish(ctx context.Context, id string, status string, finishedAt time.Time, counts ScanCounts, scanErr string) error {
	var errArg any
	if scanErr != "" {
		errArg = scanErr
	}

	result, err := r.db.ExecContext(
		ctx,
		`UPDATE scans
		 SET status = ?, finished_at = ?, files_seen = ?, tracks_indexed = ?, files_skipped = ?, error = ?
		 WHERE id = ?`,
		status,
		finishedAt.UTC().Format(time.RFC3339),
		counts.FilesSeen,
		counts.TracksIndexed,
		counts.FilesSkipped,
		errArg,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish scan %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read finished scan count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrScanNotFound
	}

	return nil
}

func (r *ScanRepository) Latest(ctx context.Context) (ScanRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, mode, status, started_at, finished_at, files_seen, tracks_indexed, files_skipped, error
		FROM scans
		ORDER BY started_at DESC
		LIMIT 1
	`)

	record, err := scanScanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScanRecord{}, ErrScanNotFound
		}
		return ScanRecord{}, fmt.Errorf("get latest scan: %w", err)
	}

	return record, nil
}

func (r *ScanRepository) Recent(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mode, status, started_at, finished_at, files_seen, tracks_indexed, files_skipped, error
		FROM scans
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent scans: %w", err)
	}
	defer rows.Close()

	records := make([]ScanRecord, 0)
	for rows.Next() {
		record, scanErr := scanScanRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan scan row: %w", scanErr)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan rows: %w", err)
	}

	return records, nil
}

func scanScanRow(row rowScanner) (ScanRecord, error) {
	var record ScanRecord
	var finishedAt, scanErr sql.NullString

	err := row.Scan(
		&record.ID,
		&record.Mode,
		&record.Status,
		&record.StartedAt,
		&finishedAt,
		&record.FilesSeen,
		&record.TracksIndexed,
		&record.FilesSkipped,
		&scanErr,
	)
	if err != nil {
		return ScanRecord{}, err
	}

	record.FinishedAt = stringPointer(finishedAt)
	record.Error = stringPointer(scanErr)

	return record, nil
}
