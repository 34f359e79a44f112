package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/queryir"
	"github.com/roach88/weft/internal/querysql"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns the run record for id.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	var run ir.Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, entry, workers FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Entry, &run.Workers)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return ir.Run{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// ListRuns returns every recorded run ordered by id. Run ids are UUIDv7, so
// this is also creation order.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry, workers FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		var run ir.Run
		if err := rows.Scan(&run.ID, &run.Entry, &run.Workers); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun(ctx context.Context) (ir.Run, error) {
	var run ir.Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, entry, workers FROM runs
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`).Scan(&run.ID, &run.Entry, &run.Workers)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Run{}, ErrRunNotFound
	}
	if err != nil {
		return ir.Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ReadTrace returns every message recorded for a run, ordered by seq.
//
// Returns an empty slice (not nil) if the run has no messages.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]ir.TraceEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, worker_id, fiber_id, module, func, value, detail
		FROM messages
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// QueryTrace returns the messages of q.RunID matching q's filter, ordered
// by seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryTrace(ctx context.Context, q queryir.Select) ([]ir.TraceEntry, error) {
	query, params, err := querysql.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]ir.TraceEntry, error) {
	entries := []ir.TraceEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return entries, nil
}

// CountKind returns how many messages of the given kind a run recorded.
func (s *Store) CountKind(ctx context.Context, runID, kind string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE run_id = ? AND kind = ?
	`, runID, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (ir.TraceEntry, error) {
	var (
		e     ir.TraceEntry
		value []byte
	)
	if err := rows.Scan(
		&e.RunID,
		&e.Seq,
		&e.Kind,
		&e.WorkerID,
		&e.FiberID,
		&e.Module,
		&e.Func,
		&value,
		&e.Detail,
	); err != nil {
		return ir.TraceEntry{}, fmt.Errorf("scan message: %w", err)
	}
	v, err := unmarshalValue(value)
	if err != nil {
		return ir.TraceEntry{}, fmt.Errorf("message %d: %w", e.Seq, err)
	}
	e.Value = v
	return e, nil
}
