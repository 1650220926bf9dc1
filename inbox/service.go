package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// A Store persists messages. Implementations must scope MarkRead to rows
// received by recipientID that are still unread, and Delete to rows the
// participant sent or received.
type Store interface {
	Insert(ctx context.Context, msg Message) (Message, error)
	// FindByRecipient returns the messages addressed to userID.
	FindByRecipient(ctx context.Context, userID int64) ([]Message, error)
	// FindByParticipant returns the messages userID sent or received.
	FindByParticipant(ctx context.Context, userID int64) ([]Message, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	// FindTwoPartyThread returns both directions of the product chat between
	// a and b, oldest first. A zero productID selects productless chat.
	FindTwoPartyThread(ctx context.Context, productID, a, b int64) ([]Message, error)
	FindUnreadInThread(ctx context.Context, viewerID int64, key ThreadKey) ([]Message, error)
	MarkRead(ctx context.Context, recipientID int64, ids []int64) (int, error)
	Delete(ctx context.Context, participantID int64, ids []int64) (int, error)
}

// A UserResolver resolves a user id to a display name.
type UserResolver interface {
	ResolveUser(ctx context.Context, id int64) (string, error)
}

// A ProductResolver resolves a product id to its title.
type ProductResolver interface {
	ResolveProduct(ctx context.Context, id int64) (string, error)
}

// A PostResolver resolves a feed post id to its content.
type PostResolver interface {
	ResolvePost(ctx context.Context, id int64) (string, error)
}

// A Directory bundles all three resolvers.
type Directory interface {
	UserResolver
	ProductResolver
	PostResolver
}

// Service is the conversation engine. Every call takes the viewer explicitly
// and recomputes what it needs from the Store; the Service keeps no state
// between calls.
//
// Users, Products and Posts are optional. When nil, the matching decoration
// is skipped.
type Service struct {
	Logger   *slog.Logger
	Store    Store
	Users    UserResolver
	Products ProductResolver
	Posts    PostResolver

	// Now is used for message timestamps. Defaults to time.Now.
	Now func() time.Time
}

// NewService returns a Service that decorates threads through dir.
func NewService(logger *slog.Logger, store Store, dir Directory) *Service {
	return &Service{
		Logger:   logger,
		Store:    store,
		Users:    dir,
		Products: dir,
		Posts:    dir,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func checkViewer(viewerID int64) error {
	if viewerID <= 0 {
		return ErrNotAuthenticated
	}
	return nil
}

// ListThreads returns the viewer's conversation threads, most recently
// active first.
func (s *Service) ListThreads(ctx context.Context, viewerID int64) ([]Thread, error) {
	if err := checkViewer(viewerID); err != nil {
		return nil, err
	}
	msgs, err := s.Store.FindByParticipant(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	threads := Aggregate(msgs, viewerID)
	for i := range threads {
		s.decorate(ctx, &threads[i])
	}
	return threads, nil
}

// UnreadCount returns how many unread messages the viewer received. It always
// equals the sum of Unread over ListThreads.
func (s *Service) UnreadCount(ctx context.Context, viewerID int64) (int, error) {
	if err := checkViewer(viewerID); err != nil {
		return 0, err
	}
	n, err := s.Store.CountUnread(ctx, viewerID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *Service) decorate(ctx context.Context, t *Thread) {
	if t.Key.Scope == ScopeProduct && t.ProductID != 0 && t.ProductTitle == "" && s.Products != nil {
		t.ProductTitle = s.lookup(ctx, "product", t.ProductID, s.Products.ResolveProduct)
	}
	if t.Key.Scope == ScopePost && t.PostExcerpt == "" && s.Posts != nil {
		t.PostExcerpt = Excerpt(s.lookup(ctx, "post", t.PostID, s.Posts.ResolvePost))
	}
	if t.OtherUserID != 0 && t.OtherName == "" && s.Users != nil {
		t.OtherName = s.lookup(ctx, "user", t.OtherUserID, s.Users.ResolveUser)
	}
}

func (s *Service) lookup(ctx context.Context, what string, id int64, resolve func(context.Context, int64) (string, error)) string {
	v, err := resolve(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		s.log().Debug("Snapshot not found", "kind", what, "id", id)
		return ""
	case err != nil:
		s.log().Warn("Could not resolve snapshot", "kind", what, "id", id, "error", err.Error())
		return ""
	}
	return v
}
