package domain

// AuthorizationState is the lifecycle state of an Authorization
// (spec.md §3 Lifecycles: Created -> Enabled <-> Disabled).
type AuthorizationState uint8

const (
	AuthorizationEnabled AuthorizationState = iota
	AuthorizationDisabled
)

func (s AuthorizationState) String() string {
	if s == AuthorizationDisabled {
		return "disabled"
	}
	return "enabled"
}

// AuthorizationMode tags the admission policy for an Authorization. Exactly
// one of Permissionless/WithLimit/WithoutLimit applies (spec.md §3).
type AuthorizationMode struct {
	kind          authModeKind
	withLimit     map[string]uint64 // holder -> allowance, only for kind == modeWithLimit
	withoutHolder map[string]bool   // holder set, only for kind == modeWithoutLimit
}

type authModeKind uint8

const (
	modePermissionless authModeKind = iota
	modeWithLimit
	modeWithoutLimit
)

// Permissionless constructs the unrestricted AuthorizationMode.
func Permissionless() AuthorizationMode {
	return AuthorizationMode{kind: modePermissionless}
}

// WithLimit constructs a Permissioned(WithLimit) mode, minting allowance
// units of the label's usage token to each holder.
func WithLimit(allowances map[string]uint64) AuthorizationMode {
	cp := make(map[string]uint64, len(allowances))
	for k, v := range allowances {
		cp[k] = v
	}
	return AuthorizationMode{kind: modeWithLimit, withLimit: cp}
}

// WithoutLimit constructs a Permissioned(WithoutLimit) mode: unlimited
// invocations for the listed holders, subject only to
// max_concurrent_executions.
func WithoutLimit(holders []string) AuthorizationMode {
	set := make(map[string]bool, len(holders))
	for _, h := range holders {
		set[h] = true
	}
	return AuthorizationMode{kind: modeWithoutLimit, withoutHolder: set}
}

func (m AuthorizationMode) IsPermissionless() bool { return m.kind == modePermissionless }
func (m AuthorizationMode) IsWithLimit() bool      { return m.kind == modeWithLimit }
func (m AuthorizationMode) IsWithoutLimit() bool   { return m.kind == modeWithoutLimit }
func (m AuthorizationMode) IsPermissioned() bool   { return m.kind != modePermissionless }

// Allowances returns the WithLimit holder->allowance map. Only meaningful
// when IsWithLimit is true.
func (m AuthorizationMode) Allowances() map[string]uint64 {
	return m.withLimit
}

// Allowed reports whether holder is permitted under a WithoutLimit mode.
// Only meaningful when IsWithoutLimit is true.
func (m AuthorizationMode) Allowed(holder string) bool {
	return m.withoutHolder[holder]
}

// Holders returns the WithoutLimit holder set, in no particular order. Only
// meaningful when IsWithoutLimit is true.
func (m AuthorizationMode) Holders() []string {
	out := make([]string, 0, len(m.withoutHolder))
	for h := range m.withoutHolder {
		out = append(out, h)
	}
	return out
}

// RetryLogic configures the interval-based retry policy attached to an
// Atomic subroutine or to an individual non-atomic Function.
type RetryLogic struct {
	// Times bounds the number of retry attempts. Times == 0 means
	// "indefinitely", matching the source's Indefinitely variant.
	Times uint32
	// Interval, in blocks (IntervalHeight) or seconds (IntervalTime);
	// exactly one must be non-zero.
	IntervalHeight uint64
	IntervalTime   uint64
}

// Exhausted reports whether attempt (1-based count of executions already
// made, i.e. attempt-1 retries) has used up the configured number of
// retries. A zero Times value means unlimited.
func (r RetryLogic) Exhausted(attempt uint32) bool {
	return r.Times != 0 && attempt > r.Times
}

// NextEligible computes the next eligible height/time given the attempt that
// just failed and the domain clock's current reading, using whichever of
// IntervalHeight/IntervalTime is configured.
func (r RetryLogic) NextEligible(nowHeight, nowTime uint64) (height, atTime uint64, useHeight bool) {
	if r.IntervalHeight != 0 {
		return nowHeight + r.IntervalHeight, 0, true
	}
	return 0, nowTime + r.IntervalTime, false
}

// CallbackConfirmation marks a non-atomic Function as requiring an external
// callback before the subroutine cursor advances (spec.md §4.2b).
type CallbackConfirmation struct {
	// ExpectedBytes is the exact payload the processor must receive from
	// ContractAddress to consider the function confirmed.
	ExpectedBytes []byte
}

// MessageDetails is the template a sent message is validated against
// (spec.md §3).
type MessageDetails struct {
	Type                string
	Name                string
	ParamRestrictions   []ParamRestriction
}

// Function is one step of a Subroutine.
type Function struct {
	TargetDomain         Domain
	ContractAddress      string
	Message              MessageDetails
	RetryLogic           *RetryLogic // nil => no retry (atomic: no auto-retry; non-atomic: no per-function retry)
	CallbackConfirmation *CallbackConfirmation
}

// SubroutineKind tags Atomic vs NonAtomic dispatch (spec.md §3/§4.2).
type SubroutineKind uint8

const (
	SubroutineAtomic SubroutineKind = iota
	SubroutineNonAtomic
)

// Subroutine is the ordered list of Functions one invocation triggers.
type Subroutine struct {
	Kind SubroutineKind
	Functions []Function

	// AtomicRetryLogic applies to Atomic subroutines only; ExpirationTime is
	// checked at pop time for both kinds.
	AtomicRetryLogic  *RetryLogic
	ExpirationTime    uint64 // seconds; 0 => no expiration short-circuit (spec.md §4.2b)
}

// Domain returns the single domain shared by every function in the
// subroutine (invariant: "all functions in one subroutine share a single
// domain"). Panics if Functions is empty -- callers must validate
// non-emptiness first (create_authorizations does, at construction time).
func (s Subroutine) Domain() Domain {
	return s.Functions[0].TargetDomain
}

// Validate enforces the subroutine-level invariants from spec.md §3:
// atomic subroutines reject any function carrying a callback confirmation,
// and every function must share one domain.
func (s Subroutine) Validate() error {
	if len(s.Functions) == 0 {
		return NewValidationError(CodeInvalidStructure, "subroutine must declare at least one function")
	}
	dom := s.Functions[0].TargetDomain
	for i, fn := range s.Functions {
		if fn.TargetDomain != dom {
			return NewConfigurationError(CodeInvalidStructure, "all functions in one subroutine must share a single domain")
		}
		if s.Kind == SubroutineAtomic && fn.CallbackConfirmation != nil {
			return ErrAtomicWithCallbackConfirmation
		}
		_ = i
	}
	return nil
}

// Authorization is the owner-declared, labeled template governing one class
// of batch invocation (spec.md §3). Label, Mode, and Subroutine's function
// list are immutable once created; only the window, MaxConcurrentExecutions,
// Priority, and State fields may be mutated via modify/enable/disable.
type Authorization struct {
	Label string
	Mode  AuthorizationMode

	NotBefore  Window
	Expiration Window

	MaxConcurrentExecutions uint32 // default 1
	InFlight                uint32 // current in-flight batch count carrying this label

	Subroutine Subroutine
	Priority   Priority
	State      AuthorizationState
}

// Window models an activation/expiration boundary, denominated in either
// block height or unix time. A zero Window (Kind == WindowNone) means
// "unbounded".
type Window struct {
	Kind   WindowKind
	Height uint64
	Time   uint64
}

type WindowKind uint8

const (
	WindowNone WindowKind = iota
	WindowHeight
	WindowTime
)

// Passed reports whether the window's boundary has been reached given the
// current height/time.
func (w Window) Passed(nowHeight, nowTime uint64) bool {
	switch w.Kind {
	case WindowHeight:
		return nowHeight >= w.Height
	case WindowTime:
		return nowTime >= w.Time
	default:
		return false
	}
}
