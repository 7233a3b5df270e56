package collab

import (
	"context"
	"log"
)

// RequestSuggestions forwards a section's content to the suggestion
// generator and delivers the result to the requester only; suggestions are
// specific to the requester's editing context, so this is never a room-wide
// broadcast. A generator failure yields an empty list, not an error event.
// This is the one operation in the core that waits on an external call, and
// it blocks nothing but the requesting connection.
func (c *Coordinator) RequestSuggestions(ctx context.Context, session *MemberSession, section, content, extra string) error {
	if section == "" {
		return validationf("section is required")
	}

	suggestions := []string{}
	if c.suggest != nil {
		result, err := c.suggest.GenerateSuggestions(ctx, content, section, extra)
		if err != nil {
			log.Printf("collab: suggestions for %s/%s: %v", session.DocumentID(), section, err)
		} else if result != nil {
			suggestions = result
		}
	}

	session.conn.Send(EventAISuggestions, SuggestionsEvent{Section: section, Suggestions: suggestions})
	return nil
}
