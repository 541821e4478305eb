package webvfs

import "errors"

var (
	// ErrNotFound a path segment or entry name does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotADirectory a directory was expected but the path names a file
	ErrNotADirectory = errors.New("not a directory")
	// ErrIsADirectory a file was expected but the entry is a directory
	ErrIsADirectory = errors.New("is a directory")
	// ErrPermissionOutOfRange requested permission exceeds MaxPermission
	ErrPermissionOutOfRange = errors.New("permission out of range")
	// ErrInvalidName entry names must be non-empty, not "." or "..", and contain no "/"
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidContent content cannot be stored losslessly under its content type
	ErrInvalidContent = errors.New("invalid content")
	// ErrInvalidMove a directory cannot be moved into its own subtree
	ErrInvalidMove = errors.New("invalid move")
	// ErrNotReady the backend needs an external handshake before it can persist
	ErrNotReady = errors.New("backend not ready")
	// ErrUnknownBackend no backend is registered for the configured type
	ErrUnknownBackend = errors.New("unknown backend")
)

// PathError records the failed operation and the path it failed on
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}
