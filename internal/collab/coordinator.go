package collab

import (
	"context"
	"log"
	"sync"
)

// Coordinator is the single entry and exit point for document collaboration.
// It owns the room arena, admits clients after an access check, and routes
// each inbound event to the component that handles it.
//
// Lock order is always coordinator.mu before room.mu. Handlers mutate room
// state under the room lock and broadcast only after releasing it, so no
// other handler can observe a half-applied change.
type Coordinator struct {
	access  AccessChecker
	suggest SuggestionGenerator
	sink    CommentSink

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewCoordinator wires the core to its collaborators. suggest and sink may
// be nil: without a generator every suggestion request yields an empty list,
// and without a sink comments live only as long as the room.
func NewCoordinator(access AccessChecker, suggest SuggestionGenerator, sink CommentSink) *Coordinator {
	return &Coordinator{
		access:  access,
		suggest: suggest,
		sink:    sink,
		rooms:   make(map[string]*Room),
	}
}

// Join admits the user to the document's room after the access check passes,
// sends the room snapshot to the joining connection, and announces the new
// member to everyone else. The room is created on first join.
func (c *Coordinator) Join(ctx context.Context, documentID string, user User, conn Connection) (*MemberSession, error) {
	if documentID == "" {
		return nil, validationf("documentId is required")
	}

	if c.access != nil {
		allowed, err := c.access.CanAccess(ctx, user.ID, documentID)
		if err != nil {
			log.Printf("collab: access check for user %s on %s: %v", user.ID, documentID, err)
			return nil, ErrAccessDenied
		}
		if !allowed {
			return nil, ErrAccessDenied
		}
	}

	c.mu.Lock()
	room, ok := c.rooms[documentID]
	if !ok {
		room = newRoom(documentID)
		c.rooms[documentID] = room
	}
	session, others, comments, version := room.addMember(user, conn)
	c.mu.Unlock()

	conn.Send(EventDocumentState, DocumentState{Content: "", Version: version, Users: others})
	conn.Send(EventDocumentComments, comments)
	room.broadcast(EventUserJoined, user.Public(), session.ID)
	return session, nil
}

// Leave removes the session from its room and announces the departure. The
// room is discarded the instant its last member leaves; its comments and
// sequence counter go with it.
func (c *Coordinator) Leave(session *MemberSession) {
	if session == nil {
		return
	}
	room := session.room

	c.mu.Lock()
	room.mu.Lock()
	if _, ok := room.members[session.ID]; !ok {
		room.mu.Unlock()
		c.mu.Unlock()
		return
	}
	delete(room.members, session.ID)
	if len(room.members) == 0 {
		delete(c.rooms, room.documentID)
	}
	remaining := room.recipients("")
	room.mu.Unlock()
	c.mu.Unlock()

	for _, conn := range remaining {
		conn.Send(EventUserLeft, UserLeftEvent{UserID: session.User.ID})
	}
}

// MemberCount reports how many sessions are connected to the document's
// room. Zero means the room does not exist.
func (c *Coordinator) MemberCount(documentID string) int {
	c.mu.RLock()
	room, ok := c.rooms[documentID]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.members)
}

// persist runs a sink write off the event path. Sink failures are logged and
// never surfaced to clients.
func (c *Coordinator) persist(what string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	go func() {
		if err := fn(context.Background()); err != nil {
			log.Printf("collab: persist %s: %v", what, err)
		}
	}()
}
