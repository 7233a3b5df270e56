// Package collab implements the real-time collaboration core: rooms keyed by
// PRD id, member presence, edit-operation relay, comment threads, and AI
// suggestion delivery, multiplexed over one connection per client.
//
// The core is a pure in-memory relay. It never persists document text;
// durable content lives behind the PRD content routes, and comments are
// mirrored to an optional write-through sink.
package collab

import (
	"encoding/json"
	"time"
)

// User is the authenticated identity attached to a connection before the
// core is ever invoked.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// PublicUser is the identity shape shared with other room members. Email is
// deliberately not part of it.
type PublicUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}

// Cursor is a caret position inside a named document section.
type Cursor struct {
	Section  string `json:"section"`
	Position int    `json:"position"`
}

// Selection is a highlighted range inside a named document section.
type Selection struct {
	Section string `json:"section"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

type OpType string

const (
	OpInsert  OpType = "insert"
	OpDelete  OpType = "delete"
	OpReplace OpType = "replace"
)

// OperationInput is a client-submitted edit intent, before the server
// assigns identity and sequencing metadata.
type OperationInput struct {
	Type     OpType `json:"type"`
	Section  string `json:"section"`
	Position int    `json:"position"`
	Content  string `json:"content,omitempty"`
	Length   int    `json:"length"`
}

// Operation is a finished edit relayed to other room members. Operations are
// transient: accepted, broadcast, and discarded. The core trusts the
// sender's position to be relative to the sender's local view and does not
// attempt to merge conflicting edits.
type Operation struct {
	ID        string    `json:"id"`
	Type      OpType    `json:"type"`
	Section   string    `json:"section"`
	Position  int       `json:"position"`
	Content   string    `json:"content,omitempty"`
	Length    int       `json:"length"`
	UserID    string    `json:"userId"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Applied   bool      `json:"applied"`
}

// CommentDraft is a client-submitted comment before the server assigns id
// and timestamps. Resolved is accepted for payload-shape compatibility but
// new comments always start unresolved.
type CommentDraft struct {
	Section  string `json:"section"`
	Position int    `json:"position"`
	Content  string `json:"content"`
	Resolved bool   `json:"resolved"`
	ParentID string `json:"parentId,omitempty"`
}

// Comment is a room-scoped thread entry. Resolution is one-way: a resolved
// comment never reopens through this core.
type Comment struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	UserID     string    `json:"userId"`
	Section    string    `json:"section"`
	Position   int       `json:"position"`
	Content    string    `json:"content"`
	Resolved   bool      `json:"resolved"`
	ResolvedBy string    `json:"resolvedBy,omitempty"`
	ParentID   string    `json:"parentId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type PresenceKind string

const (
	PresenceCursor    PresenceKind = "cursor"
	PresenceSelection PresenceKind = "selection"
	PresenceTyping    PresenceKind = "typing"
	PresenceIdle      PresenceKind = "idle"
)

// PresenceUpdate is an ephemeral cursor/selection/typing event. Data is kept
// raw so the broadcast carries exactly what the sender provided; it is
// decoded once at the boundary for validation.
type PresenceUpdate struct {
	Type PresenceKind    `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
