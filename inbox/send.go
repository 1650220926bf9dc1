package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	chatTitlePrefix = "About product: "
	pondTitlePrefix = "Commented on your post: "
	pondFallback    = "Pond post"
)

// A ChatMessage is a buyer/seller message about a product. The title is
// taken from the product record, never from the caller.
type ChatMessage struct {
	SenderID    int64
	SenderName  string
	RecipientID int64
	ProductID   int64
	Content     string
}

// A PondComment notifies a post author that someone commented on the post.
type PondComment struct {
	SenderID    int64
	SenderName  string
	RecipientID int64
	PostID      int64
	PostContent string
	Comment     string
}

// SendSystemMessage stores a message without a sender. An empty kind
// defaults to KindSystem.
func (s *Service) SendSystemMessage(ctx context.Context, recipientID int64, title, content string, kind Kind) (Message, error) {
	if kind == "" {
		kind = KindSystem
	}
	if !kind.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return s.insert(ctx, Message{
		RecipientID: recipientID,
		Title:       title,
		Content:     content,
		Kind:        kind,
	})
}

// SendChatMessage stores a chat message from one user to another about a
// product.
func (s *Service) SendChatMessage(ctx context.Context, cm ChatMessage) (Message, error) {
	if err := checkViewer(cm.SenderID); err != nil {
		return Message{}, err
	}
	if cm.SenderID == cm.RecipientID {
		return Message{}, ErrSelfConversation
	}
	content := strings.TrimSpace(cm.Content)
	if content == "" {
		return Message{}, ErrEmptyContent
	}
	title, err := s.productTitle(ctx, cm.ProductID)
	if err != nil {
		return Message{}, err
	}
	return s.insert(ctx, Message{
		RecipientID: cm.RecipientID,
		SenderID:    cm.SenderID,
		SenderName:  cm.SenderName,
		Title:       chatTitlePrefix + title,
		Content:     content,
		ProductID:   cm.ProductID,
		Kind:        KindChat,
	})
}

// productTitle returns the title of productID. Productless chat has no title.
func (s *Service) productTitle(ctx context.Context, productID int64) (string, error) {
	if productID == 0 {
		return "", nil
	}
	if s.Products == nil {
		return "", fmt.Errorf("resolve product %d: no product resolver", productID)
	}
	title, err := s.Products.ResolveProduct(ctx, productID)
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("%w: %d", ErrProductNotFound, productID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve product %d: %w", productID, err)
	}
	return title, nil
}

// SendPondCommentMessage stores a comment notification for a feed post.
func (s *Service) SendPondCommentMessage(ctx context.Context, pc PondComment) (Message, error) {
	if err := checkViewer(pc.SenderID); err != nil {
		return Message{}, err
	}
	excerpt := Excerpt(pc.PostContent)
	if excerpt == "" {
		excerpt = pondFallback
	}
	return s.insert(ctx, Message{
		RecipientID: pc.RecipientID,
		SenderID:    pc.SenderID,
		SenderName:  pc.SenderName,
		Title:       pondTitlePrefix + excerpt,
		Content:     pc.Comment,
		PostID:      pc.PostID,
		Kind:        KindPond,
	})
}

// Conversation marks the viewer's received messages in the product chat with
// otherID as read and returns the whole exchange, oldest first.
func (s *Service) Conversation(ctx context.Context, productID, viewerID, otherID int64) ([]Message, error) {
	if err := checkViewer(viewerID); err != nil {
		return nil, err
	}
	if viewerID == otherID {
		return nil, ErrSelfConversation
	}
	key := ThreadKey{Scope: ScopeProduct, ContextID: productID, OtherUserID: otherID}
	if _, err := s.MarkThreadRead(ctx, key, viewerID); err != nil {
		return nil, err
	}
	msgs, err := s.Store.FindTwoPartyThread(ctx, productID, viewerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("find thread: %w", err)
	}
	return msgs, nil
}

func (s *Service) insert(ctx context.Context, m Message) (Message, error) {
	if m.RecipientID <= 0 {
		return Message{}, fmt.Errorf("%w: recipient", ErrNotFound)
	}
	now := s.now()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Read = false
	out, err := s.Store.Insert(ctx, m)
	if err != nil {
		return Message{}, fmt.Errorf("insert: %w", err)
	}
	return out, nil
}
