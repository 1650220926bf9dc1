package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marketplace/messagecenter/inbox"
	"github.com/redis/go-redis/v9"
)

// Redis provides caching in Redis.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.cli.Close()
}

const snapshotPrefix = "snapshots"

// missing marks ids the directory reported as not found, so repeated lookups
// of deleted users or products do not reach the database until the TTL runs
// out.
const missing = "\x00"

func snapshotKey(kind string, id int64) string {
	return fmt.Sprintf("%s:%s:%d", snapshotPrefix, kind, id)
}

// Snapshots wraps a directory with a read-through cache. Entries expire after
// ttl. Cache failures are logged and fall back to the wrapped directory.
func (r *Redis) Snapshots(logger *slog.Logger, next inbox.Directory, ttl time.Duration) *Snapshots {
	return &Snapshots{logger: logger, cli: r.cli, next: next, ttl: ttl}
}

// kv is the part of the client Snapshots uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Snapshots caches display names, product titles and post contents.
type Snapshots struct {
	logger *slog.Logger
	cli    kv
	next   inbox.Directory
	ttl    time.Duration
}

var _ inbox.Directory = (*Snapshots)(nil)

// ResolveUser implements inbox.UserResolver.
func (s *Snapshots) ResolveUser(ctx context.Context, id int64) (string, error) {
	return s.get(ctx, "user", id, s.next.ResolveUser)
}

// ResolveProduct implements inbox.ProductResolver.
func (s *Snapshots) ResolveProduct(ctx context.Context, id int64) (string, error) {
	return s.get(ctx, "product", id, s.next.ResolveProduct)
}

// ResolvePost implements inbox.PostResolver.
func (s *Snapshots) ResolvePost(ctx context.Context, id int64) (string, error) {
	return s.get(ctx, "post", id, s.next.ResolvePost)
}

func (s *Snapshots) get(ctx context.Context, kind string, id int64, resolve func(context.Context, int64) (string, error)) (string, error) {
	key := snapshotKey(kind, id)
	v, err := s.cli.Get(ctx, key).Result()
	switch {
	case err == nil && v == missing:
		return "", inbox.ErrNotFound
	case err == nil:
		return v, nil
	case !errors.Is(err, redis.Nil):
		s.logger.Debug("Could not read snapshot from cache", "key", key, "error", err.Error())
		return resolve(ctx, id)
	}

	v, err = resolve(ctx, id)
	if errors.Is(err, inbox.ErrNotFound) {
		s.set(ctx, key, missing)
		return "", err
	}
	if err != nil {
		return "", err
	}
	s.set(ctx, key, v)
	return v, nil
}

// set stores a snapshot. A failed write only costs a later lookup.
func (s *Snapshots) set(ctx context.Context, key, v string) {
	if err := s.cli.Set(ctx, key, v, s.ttl).Err(); err != nil {
		s.logger.Debug("Could not cache snapshot", "key", key, "error", err.Error())
	}
}
