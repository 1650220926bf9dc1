package inbox

import (
	"context"
	"fmt"
)

// MarkRead transitions the messages selected by target to read.
func (s *Service) MarkRead(ctx context.Context, target ReadTarget, viewerID int64) (int, error) {
	switch {
	case target.All:
		return s.MarkAllRead(ctx, viewerID)
	case target.Thread != nil:
		return s.MarkThreadRead(ctx, *target.Thread, viewerID)
	default:
		return s.MarkOneRead(ctx, target.MessageID, viewerID)
	}
}

// MarkOneRead marks a single message read. Messages the viewer did not
// receive, already read messages and unknown ids are ignored.
func (s *Service) MarkOneRead(ctx context.Context, messageID, viewerID int64) (int, error) {
	if err := checkViewer(viewerID); err != nil {
		return 0, err
	}
	if messageID <= 0 {
		return 0, nil
	}
	return s.markRead(ctx, viewerID, []int64{messageID})
}

// MarkAllRead marks every unread message the viewer received. Nothing is
// written when there is nothing unread.
func (s *Service) MarkAllRead(ctx context.Context, viewerID int64) (int, error) {
	if err := checkViewer(viewerID); err != nil {
		return 0, err
	}
	msgs, err := s.Store.FindByRecipient(ctx, viewerID)
	if err != nil {
		return 0, fmt.Errorf("find messages: %w", err)
	}
	return s.markRead(ctx, viewerID, unreadIDs(msgs, viewerID, nil))
}

// MarkThreadRead marks the unread messages the viewer received in the thread
// identified by key. Calling it again has no further effect.
func (s *Service) MarkThreadRead(ctx context.Context, key ThreadKey, viewerID int64) (int, error) {
	if err := checkViewer(viewerID); err != nil {
		return 0, err
	}
	msgs, err := s.Store.FindUnreadInThread(ctx, viewerID, key)
	if err != nil {
		return 0, fmt.Errorf("find unread in thread: %w", err)
	}
	return s.markRead(ctx, viewerID, unreadIDs(msgs, viewerID, func(m Message) bool {
		return KeyOf(m, viewerID) == key
	}))
}

// MarkPostRead marks every unread comment notification of a feed post the
// viewer received, whoever commented.
func (s *Service) MarkPostRead(ctx context.Context, postID, viewerID int64) (int, error) {
	if err := checkViewer(viewerID); err != nil {
		return 0, err
	}
	msgs, err := s.Store.FindByRecipient(ctx, viewerID)
	if err != nil {
		return 0, fmt.Errorf("find messages: %w", err)
	}
	return s.markRead(ctx, viewerID, unreadIDs(msgs, viewerID, func(m Message) bool {
		return m.PostID == postID && m.Kind == KindPond
	}))
}

func (s *Service) markRead(ctx context.Context, viewerID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.Store.MarkRead(ctx, viewerID, ids)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	s.log().Debug("Marked messages read", "viewer_id", viewerID, "count", n)
	return n, nil
}

// unreadIDs returns the ids of the unread messages viewerID received that
// match keep. A nil keep matches everything.
func unreadIDs(msgs []Message, viewerID int64, keep func(Message) bool) []int64 {
	var ids []int64
	for _, m := range msgs {
		if m.RecipientID != viewerID || m.Read {
			continue
		}
		if keep != nil && !keep(m) {
			continue
		}
		ids = append(ids, m.ID)
	}
	return ids
}
