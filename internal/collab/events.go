package collab

import "encoding/json"

// Server-to-client event names, as used by the web client.
const (
	EventDocumentState     = "document-state"
	EventDocumentOperation = "document-operation"
	EventPresenceUpdate    = "presence-update"
	EventDocumentComments  = "document-comments"
	EventCommentAdded      = "comment-added"
	EventCommentResolved   = "comment-resolved"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventAISuggestions     = "ai-suggestions"
	EventError             = "error"
)

// DocumentState is sent once to a member on join. Content is a placeholder:
// document text is fetched out of band from the PRD content routes, never
// through the socket. Version is the room's operation sequence at join time.
type DocumentState struct {
	Content string       `json:"content"`
	Version uint64       `json:"version"`
	Users   []PublicUser `json:"users"`
}

// PresenceEvent tags a relayed presence update with the sender.
type PresenceEvent struct {
	UserID string          `json:"userId"`
	Type   PresenceKind    `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type CommentResolvedEvent struct {
	CommentID  string `json:"commentId"`
	ResolvedBy string `json:"resolvedBy"`
}

type UserLeftEvent struct {
	UserID string `json:"userId"`
}

type SuggestionsEvent struct {
	Section     string   `json:"section"`
	Suggestions []string `json:"suggestions"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
