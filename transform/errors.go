package transform

import "fmt"

// ErrorKind categorizes localization errors.
type ErrorKind uint8

const (
	// ErrNotImplemented indicates an index-conversion operand shape the
	// pass does not handle.
	ErrNotImplemented ErrorKind = iota

	// ErrMissingTable indicates a mapping with no conversion table in the mesh.
	ErrMissingTable

	// ErrMissingCapacity indicates a mapping whose element type has no
	// patch capacity in the mesh.
	ErrMissingCapacity

	// ErrInvalidTask indicates a mesh-for task lacking what task
	// splitting must provide.
	ErrInvalidTask

	// ErrInvalidRoot indicates a root that is neither a kernel nor a task.
	ErrInvalidRoot
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrNotImplemented:
		return "NotImplemented"
	case ErrMissingTable:
		return "MissingTable"
	case ErrMissingCapacity:
		return "MissingCapacity"
	case ErrInvalidTask:
		return "InvalidTask"
	case ErrInvalidRoot:
		return "InvalidRoot"
	default:
		return "Unknown"
	}
}

// Error represents a localization failure. All of them are internal
// compiler errors that abort compilation of the kernel.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Task names the task being processed, if any.
	Task string

	// Message provides details about the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("localize %s in task %s: %s", e.Kind, e.Task, e.Message)
	}
	return fmt.Sprintf("localize %s: %s", e.Kind, e.Message)
}

// NewError creates a new localization error.
func NewError(kind ErrorKind, task, message string) *Error {
	return &Error{
		Kind:    kind,
		Task:    task,
		Message: message,
	}
}

// IsNotImplemented returns true if the error is ErrNotImplemented.
func (e *Error) IsNotImplemented() bool {
	return e.Kind == ErrNotImplemented
}

// IsMissingTable returns true if the error is ErrMissingTable.
func (e *Error) IsMissingTable() bool {
	return e.Kind == ErrMissingTable
}
