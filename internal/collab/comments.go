package collab

import (
	"context"
	"time"

	"prdhub/api/internal/util"
)

// AddComment validates and appends a comment to the room's list, then
// broadcasts it to every member including the sender: the sender needs the
// server-assigned id back, so comments are echoed where operations are not.
func (c *Coordinator) AddComment(session *MemberSession, draft CommentDraft) (Comment, error) {
	if draft.Section == "" {
		return Comment{}, validationf("comment section is required")
	}
	if draft.Position < 0 {
		return Comment{}, validationf("comment position must be >= 0")
	}
	if draft.Content == "" {
		return Comment{}, validationf("comment content is required")
	}

	room := session.room
	now := time.Now().UTC()
	comment := Comment{
		ID:         util.NewID("cmt"),
		DocumentID: room.documentID,
		UserID:     session.User.ID,
		Section:    draft.Section,
		Position:   draft.Position,
		Content:    draft.Content,
		ParentID:   draft.ParentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	room.mu.Lock()
	room.comments = append(room.comments, &comment)
	conns := room.recipients("")
	room.mu.Unlock()

	for _, conn := range conns {
		conn.Send(EventCommentAdded, comment)
	}

	if c.sink != nil {
		saved := comment
		c.persist("comment "+saved.ID, func(ctx context.Context) error {
			return c.sink.SaveComment(ctx, saved)
		})
	}
	return comment, nil
}

// ResolveComment flips a comment to resolved and broadcasts the resolution
// to the whole room. Resolution is idempotent: resolving an already-resolved
// comment succeeds without re-broadcasting and keeps the original resolver.
func (c *Coordinator) ResolveComment(session *MemberSession, commentID string) error {
	room := session.room

	room.mu.Lock()
	var target *Comment
	for _, comment := range room.comments {
		if comment.ID == commentID {
			target = comment
			break
		}
	}
	if target == nil {
		room.mu.Unlock()
		return ErrCommentNotFound
	}
	if target.Resolved {
		room.mu.Unlock()
		return nil
	}
	target.Resolved = true
	target.ResolvedBy = session.User.ID
	target.UpdatedAt = time.Now().UTC()
	resolvedBy := target.ResolvedBy
	conns := room.recipients("")
	room.mu.Unlock()

	event := CommentResolvedEvent{CommentID: commentID, ResolvedBy: resolvedBy}
	for _, conn := range conns {
		conn.Send(EventCommentResolved, event)
	}

	if c.sink != nil {
		documentID := room.documentID
		c.persist("resolution of "+commentID, func(ctx context.Context) error {
			return c.sink.ResolveComment(ctx, documentID, commentID, resolvedBy)
		})
	}
	return nil
}
