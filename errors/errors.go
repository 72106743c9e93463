package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the unified error type of the engine.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the status the admin endpoint reports for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// HasCode reports whether any error in err's chain is an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// --- Build-time errors ---

// InvalidSplitCollect reports a blueprint whose Split and Collect elements do not pair up.
func InvalidSplitCollect(blueprint string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidSplitCollect, Message: fmt.Sprintf("blueprint %q has unbalanced split/collect elements", blueprint),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"blueprint": blueprint},
	}
}

// FunctionNotFound reports a carrier without a matching step. name may be empty
// when the lookup was unnamed.
func FunctionNotFound(carrier, kind, name string) *AppError {
	msg := fmt.Sprintf("no %s found on %s", kind, carrier)
	if name != "" {
		msg = fmt.Sprintf("no %s named %q found on %s", kind, name, carrier)
	}
	return &AppError{
		Code: ErrCodeFunctionNotFound, Message: msg,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"carrier": carrier, "kind": kind, "name": name},
	}
}

// AmbiguousFunction reports an unnamed lookup that matched several steps.
func AmbiguousFunction(carrier, kind string, candidates []string) *AppError {
	return &AppError{
		Code: ErrCodeAmbiguousFunction, Message: fmt.Sprintf("more than one %s found on %s, name one of %v", kind, carrier, candidates),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"carrier": carrier, "kind": kind, "candidates": candidates},
	}
}

// IncorrectErrorProcessor reports an error processor whose signature cannot be bound.
func IncorrectErrorProcessor(carrier, name, reason string) *AppError {
	return &AppError{
		Code: ErrCodeIncorrectErrorProcessor, Message: fmt.Sprintf("error processor %q on %s: %s", name, carrier, reason),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"carrier": carrier, "name": name},
	}
}

// DuplicateRegistration reports a key that was registered twice.
func DuplicateRegistration(kind, key string) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateRegistration, Message: fmt.Sprintf("%s %q is already registered", kind, key),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"kind": kind, "key": key},
	}
}

// --- Binding and execution errors ---

// ParameterTypeMismatch reports a step whose declared input cannot take the current unit.
func ParameterTypeMismatch(step, have, want string) *AppError {
	return &AppError{
		Code: ErrCodeParameterTypeMismatch, Message: fmt.Sprintf("step %q expects %s but unit is %s", step, want, have),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"step": step, "have": have, "want": want},
	}
}

// UnitTypeMismatch reports a unit read as a type it does not have.
func UnitTypeMismatch(unitID, have, want string) *AppError {
	return &AppError{
		Code: ErrCodeUnitTypeMismatch, Message: fmt.Sprintf("unit %q is %s, not %s", unitID, have, want),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"unit_id": unitID, "have": have, "want": want},
	}
}

// Processing wraps a step failure.
func Processing(step string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeProcessing, Message: fmt.Sprintf("step %q failed", step),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"step": step}, Cause: cause,
	}
}

// Aggregate wraps a step failure together with the failure of its error processor.
func Aggregate(step string, cause, handlerErr error) *AppError {
	return &AppError{
		Code: ErrCodeProcessing, Message: fmt.Sprintf("step %q failed and its error processor failed too", step),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"step": step, "aggregate": true}, Cause: stderrors.Join(cause, handlerErr),
	}
}

// --- Header errors ---

// HeaderNotRegistered reports a lookup for a header that is not set.
func HeaderNotRegistered(name string) *AppError {
	return &AppError{
		Code: ErrCodeHeaderNotRegistered, Message: fmt.Sprintf("header %q is not registered", name),
		HTTPStatus: http.StatusNotFound, Details: map[string]any{"header": name},
	}
}

// HeaderAlreadyRegistered reports Add on an existing header.
func HeaderAlreadyRegistered(name string) *AppError {
	return &AppError{
		Code: ErrCodeHeaderAlreadyRegistered, Message: fmt.Sprintf("header %q is already registered", name),
		HTTPStatus: http.StatusConflict, Details: map[string]any{"header": name},
	}
}

// HeaderTypeMismatch reports a header whose value has an unexpected type.
func HeaderTypeMismatch(name, have, want string) *AppError {
	return &AppError{
		Code: ErrCodeHeaderTypeMismatch, Message: fmt.Sprintf("header %q is %s, not %s", name, have, want),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"header": name, "have": have, "want": want},
	}
}

// --- Orchestration errors ---

// NoSupplier reports a conveyor started without suppliers.
func NoSupplier() *AppError {
	return &AppError{
		Code: ErrCodeNoSupplier, Message: "no supplier registered",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// NoBlueprint reports a conveyor started without blueprints.
func NoBlueprint() *AppError {
	return &AppError{
		Code: ErrCodeNoBlueprint, Message: "no blueprint registered",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// BlueprintNotRegistered reports a routing name that maps to no pipeline.
func BlueprintNotRegistered(name string) *AppError {
	return &AppError{
		Code: ErrCodeBlueprintNotRegistered, Message: fmt.Sprintf("blueprint %q is not registered", name),
		HTTPStatus: http.StatusNotFound, Details: map[string]any{"blueprint": name},
	}
}

// UnableToPostPackage reports a synchronous round-trip whose correlation id is taken.
func UnableToPostPackage(deliveryID string) *AppError {
	return &AppError{
		Code: ErrCodeUnableToPostPackage, Message: "unable to post package on processing",
		HTTPStatus: http.StatusConflict, Details: map[string]any{"delivery_id": deliveryID},
	}
}

// QueueClosed reports a publish after the queue was closed.
func QueueClosed(queue string) *AppError {
	return &AppError{
		Code: ErrCodeQueueClosed, Message: fmt.Sprintf("queue %q is closed", queue),
		HTTPStatus: http.StatusServiceUnavailable, Details: map[string]any{"queue": queue},
	}
}

// NotRunning reports an operation that needs a started conveyor.
func NotRunning(operation string) *AppError {
	return &AppError{
		Code: ErrCodeNotRunning, Message: fmt.Sprintf("conveyor is not running, cannot %s", operation),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
	}
}

// ServiceNotFound reports a service locator miss.
func ServiceNotFound(key string) *AppError {
	return &AppError{
		Code: ErrCodeServiceNotFound, Message: fmt.Sprintf("service %q is not registered", key),
		HTTPStatus: http.StatusInternalServerError, Details: map[string]any{"service": key},
	}
}

// --- Generic errors ---

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s timed out", operation),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// NotFound creates a new AppError for an absent resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id),
		HTTPStatus: http.StatusNotFound, Details: map[string]any{resource: id},
	}
}

// Internal creates a new AppError for an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}
