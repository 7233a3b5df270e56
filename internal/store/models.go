package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Team struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

type Membership struct {
	TeamID string
	UserID string
	Role   string
}

type PRD struct {
	ID         string
	TeamID     string
	Title      string
	Summary    string
	Status     string
	Visibility string
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Comment is the durable mirror of a collaboration comment. The in-memory
// room list is authoritative while a room is alive; this table is the
// write-through sink that survives process restarts.
type Comment struct {
	ID         string
	PRDID      string
	UserID     string
	Section    string
	Position   int
	Content    string
	Resolved   bool
	ResolvedBy string
	ParentID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
