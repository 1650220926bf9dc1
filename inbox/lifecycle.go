package inbox

import (
	"context"
	"fmt"
)

// DeleteThread permanently removes the messages of the thread described by
// dc, as seen by the viewer:
//
//   - post and other user: the post's messages exchanged with that user;
//   - product and other user: both directions of the product chat;
//   - post only: every viewer message about that post;
//   - anything else: nothing.
//
// Deleting a thread that does not exist is not an error.
func (s *Service) DeleteThread(ctx context.Context, dc DeleteContext, viewerID int64) (int, error) {
	if err := checkViewer(viewerID); err != nil {
		return 0, err
	}

	var (
		ids []int64
		err error
	)
	switch {
	case dc.PostID != nil && dc.OtherUserID != nil:
		ids, err = s.participantIDs(ctx, viewerID, func(m Message) bool {
			return m.PostID == *dc.PostID && !m.IsSystem() && m.OtherParticipant(viewerID) == *dc.OtherUserID
		})
	case dc.ProductID != nil && dc.OtherUserID != nil:
		ids, err = s.twoPartyIDs(ctx, *dc.ProductID, viewerID, *dc.OtherUserID)
	case dc.PostID != nil:
		ids, err = s.participantIDs(ctx, viewerID, func(m Message) bool {
			return m.PostID == *dc.PostID
		})
	default:
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.Store.Delete(ctx, viewerID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	s.log().Info("Deleted thread", "viewer_id", viewerID, "count", n)
	return n, nil
}

func (s *Service) participantIDs(ctx context.Context, viewerID int64, keep func(Message) bool) ([]int64, error) {
	msgs, err := s.Store.FindByParticipant(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	var ids []int64
	for _, m := range msgs {
		if keep(m) {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (s *Service) twoPartyIDs(ctx context.Context, productID, viewerID, otherID int64) ([]int64, error) {
	msgs, err := s.Store.FindTwoPartyThread(ctx, productID, viewerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("find thread: %w", err)
	}
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids, nil
}
