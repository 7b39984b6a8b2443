// Package journal provides SQLite-backed durable records of build
// passes.
//
// The journal is an append-only log with:
//   - Passes: one row per build pass (began dirty, settled clean)
//   - Events: asset availability and error records within a pass
//
// All ordering uses seq INTEGER (the engine's logical clock), never
// timestamps, so a journal read back later reproduces the order the
// engine observed. Queries order by seq ASC, id ASC COLLATE BINARY for
// deterministic results.
//
// The journal is strictly best-effort from the engine's point of view:
// the engine logs a journal failure and keeps building.
package journal
