package app

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"readinglist/internal/util"
)

const confirmKeyPrefix = "readinglist:confirm:"

// RedisConfirmStore holds short-lived delete-confirmation tokens. A delete
// only proceeds when it presents the token issued for that exact book.
type RedisConfirmStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisConfirmStore connects to Redis for confirmation tokens.
// ttl bounds how long a pending confirmation stays valid.
func NewRedisConfirmStore(addr, password string, ttl time.Duration) *RedisConfirmStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisConfirmStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

// Issue creates a one-time token confirming deletion of the given book.
func (s *RedisConfirmStore) Issue(userID, bookID string) (string, error) {
	token := util.NewID()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.key(userID, bookID), token, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume checks and invalidates the token. It returns true only when the
// presented token matches the one issued for this user and book.
func (s *RedisConfirmStore) Consume(userID, bookID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stored, err := s.client.GetDel(ctx, s.key(userID, bookID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == token, nil
}

func (s *RedisConfirmStore) key(userID, bookID string) string {
	return confirmKeyPrefix + userID + ":" + bookID
}
