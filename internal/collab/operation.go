package collab

import (
	"time"

	"github.com/google/uuid"
)

// validateOperation checks the shape of a submitted edit. Positions must be
// non-negative; delete and replace need a non-negative length; insert needs
// content, and replace needs content unless it clears a range (length > 0
// with empty content).
func validateOperation(in OperationInput) error {
	if in.Section == "" {
		return validationf("operation section is required")
	}
	if in.Position < 0 {
		return validationf("operation position must be >= 0")
	}
	switch in.Type {
	case OpInsert:
		if in.Content == "" {
			return validationf("insert requires content")
		}
	case OpDelete:
		if in.Length < 0 {
			return validationf("delete length must be >= 0")
		}
	case OpReplace:
		if in.Length < 0 {
			return validationf("replace length must be >= 0")
		}
		if in.Content == "" && in.Length == 0 {
			return validationf("replace requires content or a range to clear")
		}
	default:
		return validationf("unknown operation type %q", in.Type)
	}
	return nil
}

// SubmitOperation validates, sequences, and relays an edit to every other
// member of the sender's room. The sender never receives its own operation
// back, and nothing is retained: this is a best-effort real-time relay, not
// a replicated log.
func (c *Coordinator) SubmitOperation(session *MemberSession, in OperationInput) error {
	if err := validateOperation(in); err != nil {
		return err
	}

	room := session.room
	room.mu.Lock()
	room.seq++
	op := Operation{
		ID:        uuid.NewString(),
		Type:      in.Type,
		Section:   in.Section,
		Position:  in.Position,
		Content:   in.Content,
		Length:    in.Length,
		UserID:    session.User.ID,
		Sequence:  room.seq,
		Timestamp: time.Now().UTC(),
		Applied:   true,
	}
	conns := room.recipients(session.ID)
	room.mu.Unlock()

	for _, conn := range conns {
		conn.Send(EventDocumentOperation, op)
	}
	return nil
}
