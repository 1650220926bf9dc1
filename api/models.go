package api

import (
	"time"

	"github.com/marketplace/messagecenter/inbox"
)

// A Thread is a conversation summary as returned to clients. Product threads
// always carry product_id, 0 for productless chat, so a client can send it
// back to delete the thread.
type Thread struct {
	Key          string    `json:"key"`
	LastID       int64     `json:"last_id"`
	LastContent  string    `json:"last_content"`
	LastType     string    `json:"last_type"`
	LastTime     time.Time `json:"last_time"`
	Title        string    `json:"title"`
	ProductID    *int64    `json:"product_id,omitempty"`
	ProductTitle string    `json:"product_title,omitempty"`
	PostID       int64     `json:"post_id,omitempty"`
	PostTitle    string    `json:"post_title,omitempty"`
	OtherUserID  int64     `json:"other_user_id,omitempty"`
	OtherName    string    `json:"other_name,omitempty"`
	Unread       int       `json:"unread"`
}

// A Message is a single message of a conversation as returned to clients.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

const systemSender = "System"

func apiThread(t inbox.Thread) Thread {
	var productID *int64
	if t.Key.Scope == inbox.ScopeProduct || t.ProductID != 0 {
		productID = &t.ProductID
	}
	return Thread{
		Key:          t.Key.String(),
		LastID:       t.LastID,
		LastContent:  t.LastContent,
		LastType:     string(t.LastKind),
		LastTime:     t.LastTime,
		Title:        t.Title,
		ProductID:    productID,
		ProductTitle: t.ProductTitle,
		PostID:       t.PostID,
		PostTitle:    t.PostExcerpt,
		OtherUserID:  t.OtherUserID,
		OtherName:    t.OtherName,
		Unread:       t.Unread,
	}
}

func apiMessage(m inbox.Message) Message {
	name := m.SenderName
	if name == "" && m.IsSystem() {
		name = systemSender
	}
	return Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: name,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
