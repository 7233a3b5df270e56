package collab

import "encoding/json"

// UpdatePresence overwrites the sender's last-known cursor/selection/typing
// state and relays the update to the rest of the room. Cursor and selection
// are independent: a cursor update leaves a previously set selection intact,
// and vice versa. Nothing is stored beyond the session's current state.
func (c *Coordinator) UpdatePresence(session *MemberSession, update PresenceUpdate) error {
	var cursor *Cursor
	var selection *Selection

	switch update.Type {
	case PresenceCursor:
		var payload Cursor
		if err := json.Unmarshal(update.Data, &payload); err != nil {
			return validationf("malformed cursor payload")
		}
		if payload.Section == "" || payload.Position < 0 {
			return validationf("cursor requires a section and a position >= 0")
		}
		cursor = &payload
	case PresenceSelection:
		var payload Selection
		if err := json.Unmarshal(update.Data, &payload); err != nil {
			return validationf("malformed selection payload")
		}
		if payload.Section == "" || payload.Start < 0 || payload.End < 0 {
			return validationf("selection requires a section and offsets >= 0")
		}
		selection = &payload
	case PresenceTyping, PresenceIdle:
		// no payload beyond the kind itself
	default:
		return validationf("unknown presence type %q", update.Type)
	}

	room := session.room
	room.mu.Lock()
	switch update.Type {
	case PresenceCursor:
		session.cursor = cursor
	case PresenceSelection:
		session.selection = selection
	case PresenceTyping:
		session.typing = true
	case PresenceIdle:
		session.typing = false
	}
	conns := room.recipients(session.ID)
	room.mu.Unlock()

	event := PresenceEvent{UserID: session.User.ID, Type: update.Type, Data: update.Data}
	for _, conn := range conns {
		conn.Send(EventPresenceUpdate, event)
	}
	return nil
}
