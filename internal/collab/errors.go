package collab

import (
	"errors"
	"fmt"
)

// ErrAccessDenied rejects a join when the document access check fails. A
// failed join never creates a room or a member session.
var ErrAccessDenied = errors.New("access denied")

// ErrCommentNotFound is returned by ResolveComment for a comment id that is
// not in the room's list.
var ErrCommentNotFound = errors.New("comment not found")

// ValidationError reports a malformed client payload. It is delivered to the
// offending connection only and never broadcast.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
