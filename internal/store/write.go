package store

import (
	"context"
	"fmt"

	"github.com/roach88/weft/internal/ir"
)

// BeginRun inserts a run record. Uses ON CONFLICT(id) DO NOTHING for
// idempotency: beginning the same run twice is silently ignored.
func (s *Store) BeginRun(ctx context.Context, run ir.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, entry, workers)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Entry, run.Workers)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// Record appends one trace entry. The run referenced by e.RunID must exist
// (foreign key constraint). Writing the same (run_id, seq) twice is ignored.
//
// The entry's Value is serialized to canonical CBOR; a nil Value is stored
// as NULL.
func (s *Store) Record(ctx context.Context, e ir.TraceEntry) error {
	value, err := marshalValue(e.Value)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Kind, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages
		(run_id, seq, kind, worker_id, fiber_id, module, func, value, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		e.RunID,
		e.Seq,
		e.Kind,
		e.WorkerID,
		e.FiberID,
		e.Module,
		e.Func,
		value,
		e.Detail,
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Kind, err)
	}
	return nil
}

func marshalValue(v ir.Value) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshalValue(data []byte) (ir.Value, error) {
	if data == nil {
		return nil, nil
	}
	v, err := ir.UnmarshalCanonical(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
