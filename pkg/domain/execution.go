package domain

// ExecutionResultKind tags the terminal/non-terminal ExecutionResult
// variants from spec.md §3.
type ExecutionResultKind uint8

const (
	ResultPending ExecutionResultKind = iota
	ResultSuccess
	ResultRejected
	ResultPartiallyExecuted
	ResultRemovedByOwner
	ResultTimeout
	ResultExpired
)

func (k ExecutionResultKind) String() string {
	switch k {
	case ResultPending:
		return "pending"
	case ResultSuccess:
		return "success"
	case ResultRejected:
		return "rejected"
	case ResultPartiallyExecuted:
		return "partially_executed"
	case ResultRemovedByOwner:
		return "removed_by_owner"
	case ResultTimeout:
		return "timeout"
	case ResultExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ExecutionResult is the tagged union reported back to the authorization
// manager for every batch that reaches a terminal state (and Pending while
// in flight).
type ExecutionResult struct {
	Kind ExecutionResultKind

	// Reason is populated for Rejected/PartiallyExecuted.
	Reason string
	// NOk is populated for PartiallyExecuted (functions executed before
	// failure) and Expired (functions executed before the expiration
	// short-circuit fired).
	NOk uint32
	// Retriable is populated for Timeout.
	Retriable bool
}

func (r ExecutionResult) Terminal() bool {
	return r.Kind != ResultPending
}

// Pending is the initial ExecutionResult recorded at send_msgs time.
func Pending() ExecutionResult { return ExecutionResult{Kind: ResultPending} }

// Success is the terminal result for a fully completed subroutine.
func Success() ExecutionResult { return ExecutionResult{Kind: ResultSuccess} }

// Rejected is the terminal result for an atomic batch (or a non-atomic batch
// whose first function failed, cursor == 0) that exhausted retries.
func Rejected(reason string) ExecutionResult {
	return ExecutionResult{Kind: ResultRejected, Reason: reason}
}

// PartiallyExecuted is the terminal result for a non-atomic batch that
// committed nOk functions before failing on the next one.
func PartiallyExecuted(nOk uint32, reason string) ExecutionResult {
	return ExecutionResult{Kind: ResultPartiallyExecuted, NOk: nOk, Reason: reason}
}

// RemovedByOwner is the terminal result recorded when the owner evicts a
// batch via evict_msgs.
func RemovedByOwner() ExecutionResult { return ExecutionResult{Kind: ResultRemovedByOwner} }

// Timeout is the terminal (or, if retriable, semi-terminal -- awaiting
// retry_msgs) result recorded on a bridge send timeout.
func Timeout(retriable bool) ExecutionResult {
	return ExecutionResult{Kind: ResultTimeout, Retriable: retriable}
}

// Expired is the terminal result recorded when a batch's subroutine
// expiration short-circuit fires at pop time.
func Expired(nExecuted uint32) ExecutionResult {
	return ExecutionResult{Kind: ResultExpired, NOk: nExecuted}
}

// RetryState tracks a MessageBatch's attempt counter and the next eligible
// height/time for re-attempt after a retry-shift (spec.md §3).
type RetryState struct {
	Attempt uint32

	HasNextEligible  bool
	NextEligibleUseHeight bool
	NextEligibleHeight    uint64
	NextEligibleTime      uint64
}

// Eligible reports whether the batch may be attempted now.
func (r RetryState) Eligible(nowHeight, nowTime uint64) bool {
	if !r.HasNextEligible {
		return true
	}
	if r.NextEligibleUseHeight {
		return nowHeight >= r.NextEligibleHeight
	}
	return nowTime >= r.NextEligibleTime
}

// PendingCallback records the callback-confirmation parking state for a
// non-atomic batch (spec.md §3, §4.2b).
type PendingCallback struct {
	ExpectedBytes   []byte
	ExpectedAddress string
	FnIndex         int
}

// MessageBatch is one concrete invocation of a subroutine, queued by the
// processor (spec.md §3).
type MessageBatch struct {
	Id          BatchId
	ExecutionId ExecutionId

	Subroutine Subroutine
	Messages   [][]byte // one per Subroutine.Functions entry, in order

	Priority Priority
	Label    string // originating authorization label, for InFlight accounting

	Cursor int // next function index to attempt (non-atomic only)

	Retry           RetryState
	PendingCallback *PendingCallback

	EnqueuedAtHeight uint64
	EnqueuedAtTime   uint64
}
