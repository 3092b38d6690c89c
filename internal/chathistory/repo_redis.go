package chathistory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chat_history:"

// RedisRepo stores each history as one JSON value.
type RedisRepo struct {
	cli *redis.Client
	ttl time.Duration
}

// NewRedisRepo wraps a client. A zero ttl keeps histories forever.
func NewRedisRepo(cli *redis.Client, ttl time.Duration) *RedisRepo {
	return &RedisRepo{cli: cli, ttl: ttl}
}

// DialRedis connects and pings a Redis server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	cli := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return cli, nil
}

func redisKey(documentID, ownerID string) string {
	return redisKeyPrefix + Key(documentID, ownerID)
}

// Save replaces the stored history.
func (r *RedisRepo) Save(ctx context.Context, h History) error {
	if h.Entries == nil {
		h.Entries = []Entry{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return r.cli.Set(ctx, redisKey(h.DocumentID, h.OwnerID), b, r.ttl).Err()
}

// Load returns the stored history.
func (r *RedisRepo) Load(ctx context.Context, documentID, ownerID string) (History, error) {
	b, err := r.cli.Get(ctx, redisKey(documentID, ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return History{}, ErrNotFound
	}
	if err != nil {
		return History{}, err
	}
	var h History
	if err := json.Unmarshal(b, &h); err != nil {
		return History{}, fmt.Errorf("decode history: %w", err)
	}
	return h, nil
}

var _ Repo = (*RedisRepo)(nil)
