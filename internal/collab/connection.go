package collab

import "context"

// Connection is the transport seam between the core and one client link.
// Send must not block: implementations enqueue the event and drop it if the
// client cannot keep up. Any transport that can deliver named JSON events
// can implement it.
type Connection interface {
	Send(event string, payload any)
}

// AccessChecker answers "may user U open document D". It is consulted once,
// before a member session is admitted to a room.
type AccessChecker interface {
	CanAccess(ctx context.Context, userID, documentID string) (bool, error)
}

// SuggestionGenerator produces improvement suggestions for a section's
// content. The relay treats any error as "no suggestions".
type SuggestionGenerator interface {
	GenerateSuggestions(ctx context.Context, content, section, extra string) ([]string, error)
}

// CommentSink receives comment changes for durable storage. Sink calls are
// fire-and-forget: the in-memory room list stays authoritative while the
// room is alive, and a sink failure never surfaces to clients.
type CommentSink interface {
	SaveComment(ctx context.Context, c Comment) error
	ResolveComment(ctx context.Context, documentID, commentID, resolvedBy string) error
}
