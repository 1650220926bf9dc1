package postgres

import (
	"time"

	"github.com/marketplace/messagecenter/inbox"
	"github.com/uptrace/bun"
)

// A message represents a message in the database. Absent sender, product and
// post ids are stored as NULL.
type message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID         int64     `bun:",pk,autoincrement"`
	UserID     int64     `bun:",notnull"`
	SenderID   int64     `bun:",nullzero"`
	SenderName string    `bun:",nullzero"`
	Title      string    `bun:",notnull"`
	Content    string    `bun:",nullzero"`
	ProductID  int64     `bun:",nullzero"`
	PostID     int64     `bun:",nullzero"`
	Type       string    `bun:",notnull,default:'system'"`
	ReadFlag   bool      `bun:",notnull,default:false"`
	CreateTime time.Time `bun:",nullzero,notnull,default:now()"`
	UpdateTime time.Time `bun:",nullzero,notnull,default:now()"`
}

// The lookup tables belong to other parts of the marketplace. Only the
// columns needed for display snapshots are mapped.
type user struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64  `bun:",pk,autoincrement"`
	Username string `bun:",notnull"`
}

type product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID    int64  `bun:",pk,autoincrement"`
	Title string `bun:",notnull"`
}

type pondPost struct {
	bun.BaseModel `bun:"table:pond_posts,alias:pp"`

	ID      int64  `bun:",pk,autoincrement"`
	Content string `bun:",nullzero"`
}

func fromAPI(msg inbox.Message) *message {
	return &message{
		ID:         msg.ID,
		UserID:     msg.RecipientID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Title:      msg.Title,
		Content:    msg.Content,
		ProductID:  msg.ProductID,
		PostID:     msg.PostID,
		Type:       string(msg.Kind),
		ReadFlag:   msg.Read,
		CreateTime: msg.CreatedAt,
		UpdateTime: msg.UpdatedAt,
	}
}

func (m message) APIMessage() inbox.Message {
	return inbox.Message{
		ID:          m.ID,
		RecipientID: m.UserID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		Title:       m.Title,
		Content:     m.Content,
		ProductID:   m.ProductID,
		PostID:      m.PostID,
		Kind:        inbox.Kind(m.Type),
		Read:        m.ReadFlag,
		CreatedAt:   m.CreateTime,
		UpdatedAt:   m.UpdateTime,
	}
}

func apiMessages(msgs []message) []inbox.Message {
	out := make([]inbox.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.APIMessage()
	}
	return out
}
