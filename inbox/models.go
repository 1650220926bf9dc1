package inbox

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// A Kind tags what produced a message. It does not change the shape of the
// record, only how the message is grouped into threads.
type Kind string

const (
	KindSystem Kind = "system"
	KindOrder  Kind = "order"
	KindChat   Kind = "chat"
	KindPond   Kind = "pond"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSystem, KindOrder, KindChat, KindPond:
		return true
	}
	return false
}

// A Message is a single directional message addressed to RecipientID.
//
// Zero values of SenderID, ProductID and PostID mean the field is absent. A
// message without a sender is a system message.
type Message struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	SenderID    int64     `json:"sender_id,omitempty"`
	SenderName  string    `json:"sender_name,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ProductID   int64     `json:"product_id,omitempty"`
	PostID      int64     `json:"post_id,omitempty"`
	Kind        Kind      `json:"kind"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsSystem reports whether the message has no sender.
func (m Message) IsSystem() bool {
	return m.SenderID == 0
}

// OtherParticipant returns the user on the other side of the message as seen
// by viewerID.
func (m Message) OtherParticipant(viewerID int64) int64 {
	if m.SenderID == viewerID {
		return m.RecipientID
	}
	return m.SenderID
}

// A Scope is the context a thread is grouped under.
type Scope uint8

const (
	ScopeSystem Scope = iota + 1
	ScopeProduct
	ScopePost
)

var scopeNames = map[Scope]string{
	ScopeSystem:  "system",
	ScopeProduct: "product",
	ScopePost:    "pond",
}

// A ThreadKey identifies a thread for one viewer. It is comparable and can be
// used as a map key.
//
// System threads carry the message id in ContextID and no OtherUserID.
type ThreadKey struct {
	Scope       Scope
	ContextID   int64
	OtherUserID int64
}

// KeyOf derives the thread key of m as seen by viewerID.
func KeyOf(m Message, viewerID int64) ThreadKey {
	if m.IsSystem() {
		return ThreadKey{Scope: ScopeSystem, ContextID: m.ID}
	}
	other := m.OtherParticipant(viewerID)
	if m.PostID != 0 {
		return ThreadKey{Scope: ScopePost, ContextID: m.PostID, OtherUserID: other}
	}
	return ThreadKey{Scope: ScopeProduct, ContextID: m.ProductID, OtherUserID: other}
}

// String formats the key as "system-<id>", "product-<id>-<user>" or
// "pond-<id>-<user>".
func (k ThreadKey) String() string {
	name, ok := scopeNames[k.Scope]
	if !ok {
		return "invalid"
	}
	if k.Scope == ScopeSystem {
		return fmt.Sprintf("%s-%d", name, k.ContextID)
	}
	return fmt.Sprintf("%s-%d-%d", name, k.ContextID, k.OtherUserID)
}

// MarshalText implements encoding.TextMarshaler.
func (k ThreadKey) MarshalText() ([]byte, error) {
	if _, ok := scopeNames[k.Scope]; !ok {
		return nil, fmt.Errorf("invalid thread scope %d", k.Scope)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ThreadKey) UnmarshalText(b []byte) error {
	key, err := ParseThreadKey(string(b))
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// ParseThreadKey parses the output of ThreadKey.String.
func ParseThreadKey(s string) (ThreadKey, error) {
	parts := strings.Split(s, "-")
	var scope Scope
	for sc, name := range scopeNames {
		if parts[0] == name {
			scope = sc
		}
	}
	if scope == 0 {
		return ThreadKey{}, fmt.Errorf("%w: unknown scope in %q", ErrInvalidThreadKey, s)
	}

	want := 3
	if scope == ScopeSystem {
		want = 2
	}
	if len(parts) != want {
		return ThreadKey{}, fmt.Errorf("%w: %q", ErrInvalidThreadKey, s)
	}

	ids := make([]int64, 0, 2)
	for _, p := range parts[1:] {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id < 0 {
			return ThreadKey{}, fmt.Errorf("%w: bad id %q", ErrInvalidThreadKey, p)
		}
		ids = append(ids, id)
	}

	key := ThreadKey{Scope: scope, ContextID: ids[0]}
	if scope != ScopeSystem {
		key.OtherUserID = ids[1]
	}
	// Only product threads may have a zero context (productless chat).
	if key.ContextID == 0 && scope != ScopeProduct {
		return ThreadKey{}, fmt.Errorf("%w: %q", ErrInvalidThreadKey, s)
	}
	return key, nil
}

// A Thread is a derived summary of the messages sharing one ThreadKey. It is
// recomputed on every read and never stored.
type Thread struct {
	Key          ThreadKey `json:"key"`
	LastID       int64     `json:"last_id"`
	LastContent  string    `json:"last_content"`
	LastKind     Kind      `json:"last_kind"`
	LastTime     time.Time `json:"last_time"`
	Title        string    `json:"title"`
	ProductID    int64     `json:"product_id,omitempty"`
	ProductTitle string    `json:"product_title,omitempty"`
	PostID       int64     `json:"post_id,omitempty"`
	PostExcerpt  string    `json:"post_excerpt,omitempty"`
	OtherUserID  int64     `json:"other_user_id,omitempty"`
	OtherName    string    `json:"other_name,omitempty"`
	Unread       int       `json:"unread"`
}

// ReadTarget selects what MarkRead transitions. Exactly one of the fields
// should be set; All wins over Thread, which wins over MessageID.
type ReadTarget struct {
	MessageID int64
	Thread    *ThreadKey
	All       bool
}

// DeleteContext carries the identifying fields of the thread a viewer wants
// to delete, as read from a thread summary.
type DeleteContext struct {
	ProductID   *int64
	PostID      *int64
	OtherUserID *int64
}
