package collab

import (
	"sync"

	"github.com/google/uuid"
)

// MemberSession is one connected client's participation in one room. Sessions
// are keyed by connection, not user id: the same user in two browser tabs
// holds two independent sessions, and each is excluded only from its own
// operation broadcasts.
type MemberSession struct {
	ID   string
	User User

	conn Connection
	room *Room

	// presence fields, guarded by the owning room's mutex
	cursor    *Cursor
	selection *Selection
	typing    bool
}

// DocumentID returns the id of the room this session belongs to.
func (m *MemberSession) DocumentID() string {
	return m.room.documentID
}

// Room is the ephemeral collaboration state for one document: the connected
// member sessions, the authoritative comment list, and the operation
// sequence counter. A room exists only while it has members; all fields
// below mu are guarded by it.
type Room struct {
	documentID string

	mu       sync.Mutex
	members  map[string]*MemberSession
	comments []*Comment
	seq      uint64
}

func newRoom(documentID string) *Room {
	return &Room{
		documentID: documentID,
		members:    make(map[string]*MemberSession),
	}
}

// addMember registers a new session and returns it together with a snapshot
// of the other members and the current comment list, taken atomically so the
// joiner cannot miss a concurrent change.
func (r *Room) addMember(user User, conn Connection) (*MemberSession, []PublicUser, []Comment, uint64) {
	session := &MemberSession{
		ID:   uuid.NewString(),
		User: user,
		conn: conn,
		room: r,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	others := make([]PublicUser, 0, len(r.members))
	for _, m := range r.members {
		others = append(others, m.User.Public())
	}
	comments := make([]Comment, 0, len(r.comments))
	for _, c := range r.comments {
		comments = append(comments, *c)
	}
	r.members[session.ID] = session
	return session, others, comments, r.seq
}

// recipients snapshots the connections to deliver to, excluding the given
// session id (empty string excludes nobody). Callers send outside the lock.
func (r *Room) recipients(exceptID string) []Connection {
	conns := make([]Connection, 0, len(r.members))
	for id, m := range r.members {
		if id == exceptID {
			continue
		}
		conns = append(conns, m.conn)
	}
	return conns
}

func (r *Room) broadcast(event string, payload any, exceptID string) {
	r.mu.Lock()
	conns := r.recipients(exceptID)
	r.mu.Unlock()
	for _, conn := range conns {
		conn.Send(event, payload)
	}
}
