// Package store provides durable, poll-friendly storage for planning runs.
//
// A run is a directory-like namespace of named documents keyed by run id:
//
//	config.json             resolved configuration
//	logs.json               {status, timestamp, error?}
//	run.log                 captured solver output, one line per entry
//	progress.jsonl          progress samples, one JSON object per line
//	solver_trace.json       solve outcome and attempts
//	dvh.json, metrics.json, clinical_criteria.json
//	plan.json, solution.json
//	dose.npz                dose_1d as a deflated .npy archive
//
// Documents live in a Backend. The filesystem backend lays them out under
// <root>/<run_id>/; the SQLite backend keeps them in two tables.
//
// # Status
//
// Status moves queued → started → completed|failed. Backward moves and
// moves out of a terminal state fail with ErrInvalidTransition.
//
// # Limitations
//
// There is no atomicity across documents. Save writes logs.json last, so a
// reader that sees a terminal status also sees the result documents. Single
// documents are replaced atomically.
package store
