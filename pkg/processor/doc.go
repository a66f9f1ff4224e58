// Package processor implements the dual-priority FIFO execution engine
// (component C): two ordered queues (High drained before Medium), popping at
// most one MessageBatch per Tick, dispatching atomic and non-atomic
// subroutines, tracking per-function retry state, and parking batches
// awaiting an external callback confirmation.
//
// An Engine is single-writer: exactly one goroutine should drive Tick,
// InsertMsgs, EvictMsgs, and DeliverCallback at a time, mirroring the
// "single-threaded cooperative agent" model from spec.md §5. Callers
// needing concurrent access must serialize externally.
package processor
