package domain

// ProgramId identifies a single instantiated program, issued by the registry.
// A zero value means "not yet instantiated".
type ProgramId uint64

// ExecutionId identifies one accepted send_msgs invocation, issued by the
// authorization manager, monotonic per program. Ids are never reused.
type ExecutionId uint64

// BatchId identifies one MessageBatch within a single processor queue,
// assigned at enqueue time, monotonic per queue.
type BatchId uint64

// AccountId and LibraryId are arena keys resolved by the instantiator's
// ProgramConfig against its Accounts/Libraries maps. They exist only prior to
// instantiation; afterward every reference is rewritten to a concrete chain
// address (spec.md §4.5 step 9).
type (
	AccountId uint64
	LibraryId uint64
)

// IdAllocator issues strictly increasing ids starting at 1, used wherever the
// spec requires "monotonic, no reuse" identifiers (ExecutionId, BatchId,
// ProgramId). It is not safe for concurrent use without external
// synchronization; callers (authorization.Manager, processor.Engine,
// registry.Registry) already hold the single-writer lock that gives each of
// them their single-threaded cooperative semantics (spec.md §5).
type IdAllocator struct {
	next uint64
}

// NewIdAllocator returns an allocator whose first Next() call yields 1.
func NewIdAllocator() *IdAllocator {
	return &IdAllocator{next: 1}
}

// Next returns the next id in sequence.
func (a *IdAllocator) Next() uint64 {
	id := a.next
	a.next++
	return id
}

// Peek returns the id that the next call to Next will return, without
// consuming it. Used by the registry to persist/restore allocator state.
func (a *IdAllocator) Peek() uint64 {
	return a.next
}

// Restore resets the allocator so that the next call to Next returns next.
// Used when rehydrating an allocator from persisted registry state; callers
// must ensure next is not less than any id already issued.
func (a *IdAllocator) Restore(next uint64) {
	a.next = next
}
