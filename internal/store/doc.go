// Package store provides SQLite-backed durable storage for weft traces.
//
// A trace is the append-only log of protocol messages one Application run
// exchanged with its Workers:
//   - runs: one row per Application run (entry function, worker count)
//   - messages: spawn, request_code, found_code, main_result and
//     fiber_aborted entries, keyed by (run_id, seq)
//
// Ordering uses the Application's logical clock (seq), never timestamps,
// so a single-worker run produces the same trace every time.
//
// Values are stored as canonical CBOR (see ir.MarshalCanonical).
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: messages must reference a recorded run
package store
