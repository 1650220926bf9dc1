package inbox

import (
	"context"
	"slices"
	"sync"
	"time"
)

// memstore is an in-memory Store used by the engine tests.
type memstore struct {
	mu     sync.Mutex
	nextID int64
	msgs   []Message
	writes int
	now    time.Time
}

func newMemstore(msgs ...Message) *memstore {
	s := &memstore{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	for _, m := range msgs {
		if m.ID > s.nextID {
			s.nextID = m.ID
		}
		s.msgs = append(s.msgs, m)
	}
	return s
}

func (s *memstore) Insert(_ context.Context, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.msgs = append(s.msgs, m)
	s.writes++
	return m, nil
}

func (s *memstore) filter(keep func(Message) bool) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.msgs {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s *memstore) FindByRecipient(_ context.Context, userID int64) ([]Message, error) {
	return s.filter(func(m Message) bool { return m.RecipientID == userID }), nil
}

func (s *memstore) FindByParticipant(_ context.Context, userID int64) ([]Message, error) {
	return s.filter(func(m Message) bool { return m.RecipientID == userID || m.SenderID == userID }), nil
}

func (s *memstore) CountUnread(_ context.Context, userID int64) (int, error) {
	return len(s.filter(func(m Message) bool { return m.RecipientID == userID && !m.Read })), nil
}

func productChat(m Message, productID int64) bool {
	return m.PostID == 0 && m.ProductID == productID && !m.IsSystem()
}

func (s *memstore) FindTwoPartyThread(_ context.Context, productID, a, b int64) ([]Message, error) {
	out := s.filter(func(m Message) bool {
		return productChat(m, productID) &&
			(m.RecipientID == a && m.SenderID == b || m.RecipientID == b && m.SenderID == a)
	})
	slices.SortStableFunc(out, func(x, y Message) int { return x.CreatedAt.Compare(y.CreatedAt) })
	return out, nil
}

func (s *memstore) FindUnreadInThread(_ context.Context, viewerID int64, key ThreadKey) ([]Message, error) {
	return s.filter(func(m Message) bool {
		if m.RecipientID != viewerID || m.Read {
			return false
		}
		switch key.Scope {
		case ScopeSystem:
			return m.IsSystem() && m.ID == key.ContextID
		case ScopePost:
			return m.PostID == key.ContextID && m.SenderID == key.OtherUserID
		case ScopeProduct:
			return productChat(m, key.ContextID) && m.SenderID == key.OtherUserID
		}
		return false
	}), nil
}

func (s *memstore) MarkRead(_ context.Context, recipientID int64, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	n := 0
	for i, m := range s.msgs {
		if slices.Contains(ids, m.ID) && m.RecipientID == recipientID && !m.Read {
			s.msgs[i].Read = true
			s.msgs[i].UpdatedAt = s.now
			n++
		}
	}
	return n, nil
}

func (s *memstore) Delete(_ context.Context, participantID int64, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	before := len(s.msgs)
	s.msgs = slices.DeleteFunc(s.msgs, func(m Message) bool {
		return slices.Contains(ids, m.ID) && (m.RecipientID == participantID || m.SenderID == participantID)
	})
	return before - len(s.msgs), nil
}

func (s *memstore) readFlags() map[int64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]bool, len(s.msgs))
	for _, m := range s.msgs {
		out[m.ID] = m.Read
	}
	return out
}

// testdir is a Directory backed by maps that counts lookups.
type testdir struct {
	users    map[int64]string
	products map[int64]string
	posts    map[int64]string
	calls    int
	err      error
}

func lookupIn(d *testdir, m map[int64]string, id int64) (string, error) {
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	v, ok := m[id]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (d *testdir) ResolveUser(_ context.Context, id int64) (string, error) {
	return lookupIn(d, d.users, id)
}

func (d *testdir) ResolveProduct(_ context.Context, id int64) (string, error) {
	return lookupIn(d, d.products, id)
}

func (d *testdir) ResolvePost(_ context.Context, id int64) (string, error) {
	return lookupIn(d, d.posts, id)
}
