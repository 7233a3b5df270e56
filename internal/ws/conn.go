package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"prdhub/api/internal/collab"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 32
)

// Conn is one client socket. It fans events from the coordinator into a
// buffered send channel drained by writeLoop, so a slow reader can never
// block a room broadcast. The send channel is never closed: broadcasters
// may still hold a recipient snapshot taken just before teardown, and a
// send must stay a harmless drop at that point. Teardown is signalled
// through done instead. One socket can hold sessions in several documents
// at once.
type Conn struct {
	ws    *websocket.Conn
	user  collab.User
	coord *collab.Coordinator

	send chan outbound
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	sessions map[string]*collab.MemberSession
}

func newConn(ws *websocket.Conn, user collab.User, coord *collab.Coordinator) *Conn {
	return &Conn{
		ws:       ws,
		user:     user,
		coord:    coord,
		send:     make(chan outbound, sendBuffer),
		done:     make(chan struct{}),
		sessions: make(map[string]*collab.MemberSession),
	}
}

// Send queues a frame for delivery without ever blocking the caller. When
// the buffer is full, presence frames are dropped (the next update
// supersedes them anyway) and the client is disconnected for anything
// else: losing an operation or comment frame would leave this member's
// document silently divergent, so a clean rejoin is the lesser harm.
func (c *Conn) Send(event string, payload any) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- outbound{Event: event, Data: payload}:
		return
	case <-c.done:
		return
	default:
	}
	if event == collab.EventPresenceUpdate {
		log.Printf("ws: dropping presence frame to slow client %s", c.user.ID)
		return
	}
	log.Printf("ws: send buffer full on %s, disconnecting slow client %s", event, c.user.ID)
	go c.close()
}

func (c *Conn) sendError(message string) {
	c.Send(collab.EventError, collab.ErrorEvent{Message: message})
}

// session returns the member session for a document, or nil if this socket
// never joined it.
func (c *Conn) session(documentID string) *collab.MemberSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[documentID]
}

func (c *Conn) readLoop(ctx context.Context) {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read from %s: %v", c.user.ID, err)
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("malformed message")
			continue
		}
		if err := c.dispatch(ctx, env); err != nil {
			c.sendError(userMessage(err))
		}
	}
}

func (c *Conn) dispatch(ctx context.Context, env envelope) error {
	switch env.Event {
	case eventJoinDocument:
		var p joinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errMalformed
		}
		return c.join(ctx, p.DocumentID)

	case eventLeaveDocument:
		var p joinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errMalformed
		}
		c.leave(p.DocumentID)
		return nil

	case eventOperation:
		var p operationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errMalformed
		}
		session := c.session(p.DocumentID)
		if session == nil {
			return nil
		}
		return c.coord.SubmitOperation(session, p.Operation)

	case eventPresence:
		var p presencePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errMalformed
		}
		session := c.session(p.DocumentID)
		if session == nil {
			return nil
		}
		return c.coord.UpdatePresence(session, p.Update)

	case eventAddComment:
		var p commentPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errMalformed
		}
		session := c.session(p.DocumentID)
		if session == nil {
			return nil
		}
		_, err := c.coord.AddComment(session, p.Comment)
		return err

	case eventResolve:
		var p resolvePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errMalformed
		}
		session := c.session(p.DocumentID)
		if session == nil {
			return nil
		}
		return c.coord.ResolveComment(session, p.CommentID)

	case eventRequestAI:
		var p suggestPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errMalformed
		}
		session := c.session(p.DocumentID)
		if session == nil {
			return nil
		}
		return c.coord.RequestSuggestions(ctx, session, p.Section, p.Content, p.Context)

	default:
		return errUnknownEvent
	}
}

func (c *Conn) join(ctx context.Context, documentID string) error {
	c.mu.Lock()
	_, already := c.sessions[documentID]
	c.mu.Unlock()
	if already {
		return errAlreadyJoined
	}

	session, err := c.coord.Join(ctx, documentID, c.user, c)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sessions[documentID] = session
	c.mu.Unlock()
	return nil
}

func (c *Conn) leave(documentID string) {
	c.mu.Lock()
	session := c.sessions[documentID]
	delete(c.sessions, documentID)
	c.mu.Unlock()
	if session != nil {
		c.coord.Leave(session)
	}
}

// close tears down every session this socket holds and stops writeLoop.
// Safe to call more than once.
func (c *Conn) close() {
	c.once.Do(func() {
		c.mu.Lock()
		sessions := make([]*collab.MemberSession, 0, len(c.sessions))
		for _, s := range c.sessions {
			sessions = append(sessions, s)
		}
		c.sessions = make(map[string]*collab.MemberSession)
		c.mu.Unlock()

		for _, s := range sessions {
			c.coord.Leave(s)
		}
		close(c.done)
		c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var (
	errMalformed     = errors.New("malformed payload")
	errUnknownEvent  = errors.New("unknown event")
	errAlreadyJoined = errors.New("already joined document")
)

// userMessage maps a handler error to the message carried by the error
// event. Core errors get their own text; anything unexpected is flattened
// so internals never leak to clients.
func userMessage(err error) string {
	var ve *collab.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Reason
	case errors.Is(err, collab.ErrAccessDenied):
		return "access denied"
	case errors.Is(err, collab.ErrCommentNotFound):
		return "comment not found"
	case errors.Is(err, errMalformed), errors.Is(err, errUnknownEvent), errors.Is(err, errAlreadyJoined):
		return err.Error()
	default:
		log.Printf("ws: handler error: %v", err)
		return "internal error"
	}
}
