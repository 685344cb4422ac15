// Package errors defines the errors of the object graph: sentinels for every
// failure mode, typed errors carrying the object handle or unique name
// involved, and helpers that classify an error chain.
//
// RegistryError comes from the object manager and LifecycleError from a
// refused or failed teardown. NotFoundError and AlreadyExistsError describe
// files and other named resources of the command.
//
//	err := errors.NewRegistryError("cannot register object", errors.ErrAlreadyReferenced).
//		WithOperation("register").
//		WithUniqueName("geo1")
//
//	if errors.Is(err, errors.ErrAlreadyReferenced) { ... }
//
//	var regErr *errors.RegistryError
//	if errors.As(err, &regErr) { ... }
//
// A naming conflict is retryable with another name; a second manager or a
// nil object is a critical usage error.
package errors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// The standard helpers, so callers need a single errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity ranks errors for logging and exit codes.
type Severity int

// Severities, least severe first.
const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical // the caller misused the object graph
)

var severityNames = [...]string{"debug", "info", "warning", "error", "critical"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "unknown"
	}
	return severityNames[s]
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Object manager.
var (
	ErrManagerExists         = New("object manager already initialized")
	ErrManagerNotInitialized = New("object manager not initialized")
	ErrNilObject             = New("nil object")
	ErrEmptyUniqueName       = New("empty unique name")
	// ErrAlreadyReferenced: another registered object uses the unique name.
	ErrAlreadyReferenced = New("unique name already referenced")
	// ErrNotReferenced: no registered object has the unique name.
	ErrNotReferenced  = New("unique name not referenced")
	ErrInvalidPattern = New("invalid lookup pattern")
)

// Object lifecycle.
var (
	// ErrDestructionBlocked: Destroy was called while a blocking observer
	// remained.
	ErrDestructionBlocked = New("destruction blocked by observers")
	ErrDestroyed          = New("object destroyed")
	ErrCallbackPanic      = New("observer callback panicked")
)

// Command.
var (
	ErrCanceled     = New("operation canceled")
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Classified errors
// -----------------------------------------------------------------------------

// CoreError is implemented by every typed error of this package.
type CoreError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
	// IsRetryable reports whether the operation may succeed with other
	// input, e.g. another unique name.
	IsRetryable() bool
	// IsUserFacing reports whether the message is meant for the user
	// rather than for a bug report.
	IsUserFacing() bool
}

// baseError holds what every typed error carries.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *baseError) Unwrap() error        { return e.cause }
func (e *baseError) Is(target error) bool { return e.cause != nil && errors.Is(e.cause, target) }
func (e *baseError) Severity() Severity   { return e.severity }
func (e *baseError) IsRetryable() bool    { return e.retryable }
func (e *baseError) IsUserFacing() bool   { return e.userFacing }

// format renders "kind [k=v, ...]: message: cause", skipping empty values.
func (e *baseError) format(kind string, kv ...string) string {
	var b strings.Builder
	b.WriteString(kind)

	sep := " ["
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(kv[i] + "=" + kv[i+1])
		sep = ", "
	}
	if sep == ", " {
		b.WriteString("]")
	}

	b.WriteString(": ")
	b.WriteString(e.Error())
	return b.String()
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// RegistryError represents errors raised by the named-object manager.
//
// Example:
//
//	err := errors.NewRegistryError("an object with this unique name is already referenced", errors.ErrAlreadyReferenced)
//	err = err.WithOperation("register").WithUniqueName("geo1")
//	fmt.Println(err) // "registry error [op=register, name=geo1]: an object ...: unique name already referenced"
type RegistryError struct {
	baseError
	Operation  string
	UniqueName string
}

// NewRegistryError creates a new RegistryError. The severity and retry
// classification follow from the cause: naming conflicts and lookup misses
// are recoverable, everything else is a usage error.
func NewRegistryError(message string, cause error) *RegistryError {
	e := &RegistryError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
	}
	switch {
	case errors.Is(cause, ErrAlreadyReferenced):
		e.severity = SeverityError
		e.retryable = true
	case errors.Is(cause, ErrNotReferenced), errors.Is(cause, ErrInvalidPattern):
		e.severity = SeverityWarning
		e.retryable = true
	}
	return e
}

// WithOperation records the manager operation that failed.
func (e *RegistryError) WithOperation(op string) *RegistryError {
	e.Operation = op
	return e
}

// WithUniqueName records the unique name involved in the failure.
func (e *RegistryError) WithUniqueName(name string) *RegistryError {
	e.UniqueName = name
	return e
}

// WithSeverity sets the error severity.
func (e *RegistryError) WithSeverity(s Severity) *RegistryError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *RegistryError) Error() string {
	return e.format("registry error", "op", e.Operation, "name", e.UniqueName)
}

// Is checks if this error matches the target.
func (e *RegistryError) Is(target error) bool {
	if _, ok := target.(*RegistryError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// LifecycleError represents errors raised while destroying an object.
//
// Example:
//
//	err := errors.NewLifecycleError("cannot destroy object", errors.ErrDestructionBlocked)
//	err = err.WithObjectID(42).WithState("live")
type LifecycleError struct {
	baseError
	ObjectID uint64
	State    string
}

// NewLifecycleError creates a new LifecycleError.
func NewLifecycleError(message string, cause error) *LifecycleError {
	return &LifecycleError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
	}
}

// WithObjectID adds the object handle to the error context.
func (e *LifecycleError) WithObjectID(id uint64) *LifecycleError {
	e.ObjectID = id
	return e
}

// WithState adds the lifecycle state the object was in.
func (e *LifecycleError) WithState(state string) *LifecycleError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *LifecycleError) WithSeverity(s Severity) *LifecycleError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *LifecycleError) Error() string {
	id := ""
	if e.ObjectID != 0 {
		id = strconv.FormatUint(e.ObjectID, 10)
	}
	return e.format("lifecycle error", "object", id, "state", e.State)
}

// Is checks if this error matches the target.
func (e *LifecycleError) Is(target error) bool {
	if _, ok := target.(*LifecycleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// resourceError is a named resource in an unexpected state
// ("scenario 'smoke.yaml' not found").
type resourceError struct {
	baseError
	ResourceType string
	ResourceID   string
}

func newResourceError(resourceType, resourceID, state string) resourceError {
	return resourceError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' %s", resourceType, resourceID, state),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("scenario", "smoke.yaml")
//	fmt.Println(err) // "scenario 'smoke.yaml' not found"
type NotFoundError struct {
	resourceError
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{newResourceError(resourceType, resourceID, "not found")}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Is matches any *NotFoundError, then the cause.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("config file", "~/.config/mgx3d/config.yaml")
type AlreadyExistsError struct {
	resourceError
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{newResourceError(resourceType, resourceID, "already exists")}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Is matches any *AlreadyExistsError, then the cause.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// classify reads a property of the first CoreError in err's chain, or
// returns fallback when there is none.
func classify[T any](err error, get func(CoreError) T, fallback T) T {
	var coreErr CoreError
	if As(err, &coreErr) {
		return get(coreErr)
	}
	return fallback
}

// IsRetryable reports whether the operation may succeed with other input,
// e.g. another unique name. A bare ErrAlreadyReferenced counts as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return classify(err, CoreError.IsRetryable, Is(err, ErrAlreadyReferenced))
}

// IsUserFacing reports whether err's message can be shown as is. Untyped
// errors are not.
func IsUserFacing(err error) bool {
	return err != nil && classify(err, CoreError.IsUserFacing, false)
}

// GetSeverity returns the severity of err, SeverityError for untyped errors
// and SeverityDebug for nil.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	return classify(err, CoreError.Severity, SeverityError)
}

// IsUsageError reports whether err signals a programming error: a second
// manager, a missing manager, or an object that cannot be registered.
func IsUsageError(err error) bool {
	return Is(err, ErrManagerExists) || Is(err, ErrManagerNotInitialized) ||
		Is(err, ErrNilObject) || Is(err, ErrEmptyUniqueName)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap prefixes err with message, keeping it matchable with Is and As.
// A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
