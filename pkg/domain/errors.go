package domain

import "fmt"

// Code enumerates the specific failure reasons from spec.md §4.1/§4.2/§4.4,
// grouped loosely by the taxon that normally raises them. Taxon boundaries
// are advisory (a Code is carried by whichever of the five error structs the
// raising call site constructs) -- callers should match on Code via
// errors.As, not on taxon.
type Code string

const (
	// Unauthorized(...)
	CodeNotOwner          Code = "not_owner"
	CodeNotAllowed        Code = "not_allowed"
	CodeNotEnabled        Code = "not_enabled"
	CodeNotActiveYet      Code = "not_active_yet"
	CodeExpired           Code = "expired"
	CodeRequiresOneToken  Code = "requires_one_token"

	// Authorization(...)
	CodeDoesNotExist                   Code = "does_not_exist"
	CodeMaxConcurrentExecutionsReached Code = "max_concurrent_executions_reached"
	CodeLabelAlreadyExists             Code = "label_already_exists"

	// Message(...)
	CodeInvalidAmount        Code = "invalid_amount"
	CodeInvalidStructure     Code = "invalid_structure"
	CodeDoesNotMatch         Code = "does_not_match"
	CodeInvalidMessageParams Code = "invalid_message_params"

	CodeDomainIsNotRegistered                     Code = "domain_is_not_registered"
	CodePermissionlessWithHighPriority            Code = "permissionless_authorization_with_high_priority"
	CodeAtomicWithCallbackConfirmation            Code = "atomic_authorization_with_callback_confirmation"
	CodeCantMintForPermissionlessAuthorization    Code = "cant_mint_for_permissionless_authorization"

	// Processor / bridge specific.
	CodeIndexOutOfBounds Code = "index_out_of_bounds"
	CodeNotProcessor     Code = "not_processor"
	CodeNotRetriable     Code = "not_retriable"
	CodeProxyNotCreated  Code = "proxy_not_created"
)

// ConfigurationError reports an invalid declarative configuration, detected
// during create_authorizations or instantiator pre-flight (spec.md §7).
type ConfigurationError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Code, e.Message)
}
func (e *ConfigurationError) Unwrap() error { return e.Cause }

// NewConfigurationError constructs a ConfigurationError.
func NewConfigurationError(code Code, message string) error {
	return &ConfigurationError{Code: code, Message: message}
}

// PolicyError reports an authorization/admission-policy failure: unauthorized
// caller, disabled/expired/inactive authorization, or concurrency exhaustion.
type PolicyError struct {
	Code    Code
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy error [%s]: %s", e.Code, e.Message)
}

// NewPolicyError constructs a PolicyError.
func NewPolicyError(code Code, message string) error {
	return &PolicyError{Code: code, Message: message}
}

// ValidationError reports a message-shape or param-restriction mismatch.
type ValidationError struct {
	Code    Code
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Code, e.Message)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(code Code, message string) error {
	return &ValidationError{Code: code, Message: message}
}

// ExecutionError reports a callee rejection, panic translation, or otherwise
// unexpected executor result.
type ExecutionError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error [%s]: %s", e.Code, e.Message)
}
func (e *ExecutionError) Unwrap() error { return e.Cause }

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(code Code, message string) error {
	return &ExecutionError{Code: code, Message: message}
}

// BridgeError reports a cross-domain timeout or an operation attempted
// against a proxy that has not yet reached Created.
type BridgeError struct {
	Code    Code
	Message string
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge error [%s]: %s", e.Code, e.Message)
}

// NewBridgeError constructs a BridgeError.
func NewBridgeError(code Code, message string) error {
	return &BridgeError{Code: code, Message: message}
}

// Sentinel errors for invariant violations raised at fixed call sites,
// matching by identity via errors.Is rather than by Code.
var (
	ErrAtomicWithCallbackConfirmation = NewConfigurationError(CodeAtomicWithCallbackConfirmation,
		"an Atomic subroutine must not declare callback_confirmation on any function")
	ErrPermissionlessWithHighPriority = NewConfigurationError(CodePermissionlessWithHighPriority,
		"High priority requires a Permissioned authorization")
	ErrCantMintForPermissionless = NewPolicyError(CodeCantMintForPermissionlessAuthorization,
		"cannot mint usage tokens for a Permissionless authorization")
	ErrDomainNotRegistered = NewConfigurationError(CodeDomainIsNotRegistered,
		"target domain is not registered for this program")
	ErrNotProcessor = NewExecutionError(CodeNotProcessor,
		"ExecuteAtomic may only be called by the processor itself")
	ErrNotRetriable = NewBridgeError(CodeNotRetriable,
		"execution is not in a retriable state")
	ErrIndexOutOfBounds = NewPolicyError(CodeIndexOutOfBounds,
		"queue position is out of bounds")
)
