package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources, including
	// unknown or expired sessions.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidCredential marks a generator credential rejection. It is
	// batch-fatal: the orchestrator stops the remaining lessons when it sees it.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrConflict marks an illegal session state transition, e.g. starting a
	// second batch on a session that is already generating.
	ErrConflict = errors.New("conflict")
)
