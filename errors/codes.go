package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Build-time errors. A blueprint that produces one of these never reaches a queue.
const (
	// ErrCodeInvalidSplitCollect indicates an unbalanced Split/Collect pair in a blueprint.
	ErrCodeInvalidSplitCollect ErrorCode = "INVALID_SPLIT_COLLECT"
	// ErrCodeFunctionNotFound indicates a carrier does not expose the requested step.
	ErrCodeFunctionNotFound ErrorCode = "FUNCTION_NOT_FOUND"
	// ErrCodeAmbiguousFunction indicates an unnamed lookup matched more than one step.
	ErrCodeAmbiguousFunction ErrorCode = "AMBIGUOUS_FUNCTION"
	// ErrCodeIncorrectErrorProcessor indicates an error processor with an unsupported signature.
	ErrCodeIncorrectErrorProcessor ErrorCode = "INCORRECT_ERROR_PROCESSOR"
	// ErrCodeDuplicateRegistration indicates a routing key, supplier or service registered twice.
	ErrCodeDuplicateRegistration ErrorCode = "DUPLICATE_REGISTRATION"
)

// Binding and execution errors.
const (
	// ErrCodeParameterTypeMismatch indicates a step input cannot be satisfied from the current unit.
	ErrCodeParameterTypeMismatch ErrorCode = "PARAMETER_TYPE_MISMATCH"
	// ErrCodeUnitTypeMismatch indicates a unit could not be read as the requested type.
	ErrCodeUnitTypeMismatch ErrorCode = "UNIT_TYPE_MISMATCH"
	// ErrCodeProcessing indicates a step failed while processing a unit.
	ErrCodeProcessing ErrorCode = "PROCESSING_ERROR"
)

// Header errors.
const (
	// ErrCodeHeaderNotRegistered indicates a header lookup for an absent name.
	ErrCodeHeaderNotRegistered ErrorCode = "HEADER_NOT_REGISTERED"
	// ErrCodeHeaderAlreadyRegistered indicates Add was called for an existing header.
	ErrCodeHeaderAlreadyRegistered ErrorCode = "HEADER_ALREADY_REGISTERED"
	// ErrCodeHeaderTypeMismatch indicates a header value of an unexpected type.
	ErrCodeHeaderTypeMismatch ErrorCode = "HEADER_TYPE_MISMATCH"
)

// Orchestration errors.
const (
	// ErrCodeNoSupplier indicates Start was called without any supplier.
	ErrCodeNoSupplier ErrorCode = "NO_SUPPLIER_REGISTERED"
	// ErrCodeNoBlueprint indicates Start was called without any blueprint.
	ErrCodeNoBlueprint ErrorCode = "NO_BLUEPRINT_REGISTERED"
	// ErrCodeBlueprintNotRegistered indicates a lookup for an unknown pipeline name.
	ErrCodeBlueprintNotRegistered ErrorCode = "BLUEPRINT_NOT_REGISTERED"
	// ErrCodeUnableToPostPackage indicates a synchronous round-trip could not be registered.
	ErrCodeUnableToPostPackage ErrorCode = "UNABLE_TO_POST_PACKAGE"
	// ErrCodeQueueClosed indicates a publish to a queue that no longer accepts packages.
	ErrCodeQueueClosed ErrorCode = "QUEUE_CLOSED"
	// ErrCodeNotRunning indicates an operation that requires a started conveyor.
	ErrCodeNotRunning ErrorCode = "NOT_RUNNING"
	// ErrCodeServiceNotFound indicates the service locator has no matching registration.
	ErrCodeServiceNotFound ErrorCode = "SERVICE_NOT_FOUND"
)

// Generic errors.
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeNotFound indicates a lookup for an absent resource.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:    true,
	ErrCodeNotRunning: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
