package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marketplace/messagecenter/inbox"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Postgres provides message storage and snapshot lookups in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

var (
	_ inbox.Store     = (*Postgres)(nil)
	_ inbox.Directory = (*Postgres)(nil)
)

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// Close closes the underlying connection pool.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// CreateSchema creates the messages table and its indexes when missing.
func (pg *Postgres) CreateSchema(ctx context.Context) error {
	if _, err := pg.bun.NewCreateTable().Model((*message)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	indexes := map[string][]string{
		"messages_user_id_read_flag_idx": {"user_id", "read_flag"},
		"messages_sender_id_idx":         {"sender_id"},
		"messages_product_id_idx":        {"product_id"},
		"messages_post_id_idx":           {"post_id"},
	}
	for name, cols := range indexes {
		_, err := pg.bun.NewCreateIndex().
			Model((*message)(nil)).
			Index(name).
			IfNotExists().
			Column(cols...).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return nil
}

// Insert inserts a message. The returned message holds auto generated fields,
// such as the message id.
func (pg *Postgres) Insert(ctx context.Context, msg inbox.Message) (inbox.Message, error) {
	m := fromAPI(msg)
	m.ID = 0
	if _, err := pg.bun.NewInsert().Model(m).Returning("*").Exec(ctx); err != nil {
		return inbox.Message{}, fmt.Errorf("insert: %w", err)
	}
	return m.APIMessage(), nil
}

func (pg *Postgres) list(ctx context.Context, order string, where func(*bun.SelectQuery) *bun.SelectQuery) ([]inbox.Message, error) {
	var msgs []message
	q := where(pg.bun.NewSelect().Model(&msgs)).Order(order)
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return apiMessages(msgs), nil
}

// FindByRecipient returns the messages addressed to userID, newest first.
func (pg *Postgres) FindByRecipient(ctx context.Context, userID int64) ([]inbox.Message, error) {
	return pg.list(ctx, "m.create_time DESC", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("m.user_id = ?", userID)
	})
}

// FindByParticipant returns the messages userID sent or received, newest
// first.
func (pg *Postgres) FindByParticipant(ctx context.Context, userID int64) ([]inbox.Message, error) {
	return pg.list(ctx, "m.create_time DESC", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("m.user_id = ?", userID).WhereOr("m.sender_id = ?", userID)
		})
	})
}

// CountUnread counts the unread messages addressed to userID.
func (pg *Postgres) CountUnread(ctx context.Context, userID int64) (int, error) {
	n, err := pg.bun.NewSelect().
		Model((*message)(nil)).
		Where("m.user_id = ?", userID).
		Where("m.read_flag = FALSE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// productChat restricts q to sender-bearing messages grouped under productID.
// Messages about a post never belong to a product thread.
func productChat(q *bun.SelectQuery, productID int64) *bun.SelectQuery {
	q = q.Where("m.sender_id IS NOT NULL").Where("m.post_id IS NULL")
	if productID == 0 {
		return q.Where("m.product_id IS NULL")
	}
	return q.Where("m.product_id = ?", productID)
}

// FindTwoPartyThread returns both directions of the chat between a and b
// about productID, oldest first.
func (pg *Postgres) FindTwoPartyThread(ctx context.Context, productID, a, b int64) ([]inbox.Message, error) {
	return pg.list(ctx, "m.create_time ASC", func(q *bun.SelectQuery) *bun.SelectQuery {
		return productChat(q, productID).WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.Where("m.user_id = ?", a).Where("m.sender_id = ?", b)
				}).
				WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.Where("m.user_id = ?", b).Where("m.sender_id = ?", a)
				})
		})
	})
}

// FindUnreadInThread returns the unread messages viewerID received in the
// thread identified by key.
func (pg *Postgres) FindUnreadInThread(ctx context.Context, viewerID int64, key inbox.ThreadKey) ([]inbox.Message, error) {
	return pg.list(ctx, "m.create_time DESC", func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("m.user_id = ?", viewerID).Where("m.read_flag = FALSE")
		switch key.Scope {
		case inbox.ScopeSystem:
			return q.Where("m.id = ?", key.ContextID).Where("m.sender_id IS NULL")
		case inbox.ScopePost:
			return q.Where("m.post_id = ?", key.ContextID).Where("m.sender_id = ?", key.OtherUserID)
		case inbox.ScopeProduct:
			return productChat(q, key.ContextID).Where("m.sender_id = ?", key.OtherUserID)
		}
		return q.Where("FALSE")
	})
}

// MarkRead marks the given messages read. Only unread messages addressed to
// recipientID change, so repeating the call is harmless.
func (pg *Postgres) MarkRead(ctx context.Context, recipientID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := pg.bun.NewUpdate().
		Model((*message)(nil)).
		Set("read_flag = TRUE").
		Set("update_time = ?", time.Now()).
		Where("m.id IN (?)", bun.In(ids)).
		Where("m.user_id = ?", recipientID).
		Where("m.read_flag = FALSE").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}
	return rowsAffected(res)
}

// Delete permanently deletes the given messages, restricted to the ones
// participantID sent or received.
func (pg *Postgres) Delete(ctx context.Context, participantID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := pg.bun.NewDelete().
		Model((*message)(nil)).
		Where("m.id IN (?)", bun.In(ids)).
		WhereGroup(" AND ", func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.Where("m.user_id = ?", participantID).WhereOr("m.sender_id = ?", participantID)
		}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return rowsAffected(res)
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (pg *Postgres) lookup(ctx context.Context, model any, column string, id int64) (string, error) {
	var v sql.NullString
	err := pg.bun.NewSelect().
		Model(model).
		Column(column).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", inbox.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select %s: %w", column, err)
	}
	return v.String, nil
}

// ResolveUser returns the display name of a user.
func (pg *Postgres) ResolveUser(ctx context.Context, id int64) (string, error) {
	return pg.lookup(ctx, (*user)(nil), "username", id)
}

// ResolveProduct returns the title of a product.
func (pg *Postgres) ResolveProduct(ctx context.Context, id int64) (string, error) {
	return pg.lookup(ctx, (*product)(nil), "title", id)
}

// ResolvePost returns the content of a pond post.
func (pg *Postgres) ResolvePost(ctx context.Context, id int64) (string, error) {
	return pg.lookup(ctx, (*pondPost)(nil), "content", id)
}
