package playlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// ErrAlreadyRecorded is returned when a job already has a playback record.
var ErrAlreadyRecorded = errors.New("playback already recorded")

// Compile-time interface check.
var _ domain.PlaybackLogger = (*PostgresLog)(nil)

// Schema is applied by Migrate. job_id is unique so a retried insert can
// never produce a second record for one attempt.
const Schema = `
CREATE TABLE IF NOT EXISTS playback_log (
	id          BIGSERIAL PRIMARY KEY,
	job_id      TEXT        NOT NULL UNIQUE,
	flights     TEXT[]      NOT NULL,
	call_type   TEXT        NOT NULL,
	gate        TEXT        NOT NULL DEFAULT '',
	asset_file  TEXT        NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	failure     TEXT        NOT NULL DEFAULT ''
)`

// PostgresLog writes playback records to PostgreSQL.
type PostgresLog struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresLog connects to the database and checks it answers.
func NewPostgresLog(ctx context.Context, connString string, log *logger.Logger) (*PostgresLog, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("playlog: parsing postgres config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("playlog: creating postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("playlog: postgres not answering: %w", err)
	}

	return &PostgresLog{pool: p, log: log}, nil
}

// Migrate creates the playback_log table if it does not exist.
func (r *PostgresLog) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}

// Record inserts one row per attempt.
func (r *PostgresLog) Record(ctx context.Context, rec domain.PlaybackRecord) error {
	query := `
		INSERT INTO playback_log (job_id, flights, call_type, gate, asset_file, started_at, ended_at, failure)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.JobID,
		rec.Flights,
		rec.CallType.String(),
		rec.Gate,
		rec.AssetFile,
		rec.StartedAt,
		rec.EndedAt,
		rec.Failure,
	)
	if err != nil {
		return insertError(rec.JobID, err)
	}
	r.log.Debug("playlog: stored %s (%s)", rec.JobID, rec.CallType)
	return nil
}

// Recent returns the newest records, newest first.
func (r *PostgresLog) Recent(ctx context.Context, limit int) ([]domain.PlaybackRecord, error) {
	query := `
		SELECT job_id, flights, call_type, gate, asset_file, started_at, ended_at, failure
		FROM playback_log
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("playlog: querying recent: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PlaybackRecord, error) {
		return scanRecord(row)
	})
}

// Close releases the pool.
func (r *PostgresLog) Close() {
	r.pool.Close()
}

// scanRecord reads one playback_log row in the column order Recent selects.
// A call_type this build does not know fails the row.
func scanRecord(row pgx.Row) (domain.PlaybackRecord, error) {
	var rec domain.PlaybackRecord
	var call string
	if err := row.Scan(&rec.JobID, &rec.Flights, &call, &rec.Gate, &rec.AssetFile, &rec.StartedAt, &rec.EndedAt, &rec.Failure); err != nil {
		return rec, fmt.Errorf("playlog: scanning row: %w", err)
	}
	c, err := domain.ParseCallType(call)
	if err != nil {
		return rec, fmt.Errorf("playlog: record %s: %w", rec.JobID, err)
	}
	rec.CallType = c
	return rec, nil
}

// insertError maps a unique violation on job_id to ErrAlreadyRecorded.
func insertError(jobID string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyRecorded
	}
	return fmt.Errorf("playlog: inserting %s: %w", jobID, err)
}
