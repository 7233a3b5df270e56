package ws

import (
	"encoding/json"

	"prdhub/api/internal/collab"
)

// Client-to-server event names.
const (
	eventJoinDocument  = "join-document"
	eventLeaveDocument = "leave-document"
	eventOperation     = "document-operation"
	eventPresence      = "presence-update"
	eventAddComment    = "add-comment"
	eventResolve       = "resolve-comment"
	eventRequestAI     = "request-ai-suggestions"
)

// envelope is the wire frame in both directions: an event name and an
// event-specific payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type joinPayload struct {
	DocumentID string `json:"documentId"`
}

type operationPayload struct {
	DocumentID string                `json:"documentId"`
	Operation  collab.OperationInput `json:"operation"`
}

type presencePayload struct {
	DocumentID string                `json:"documentId"`
	Update     collab.PresenceUpdate `json:"update"`
}

type commentPayload struct {
	DocumentID string              `json:"documentId"`
	Comment    collab.CommentDraft `json:"comment"`
}

type resolvePayload struct {
	DocumentID string `json:"documentId"`
	CommentID  string `json:"commentId"`
}

type suggestPayload struct {
	DocumentID string `json:"documentId"`
	Section    string `json:"section"`
	Content    string `json:"content"`
	Context    string `json:"context"`
}
