package app

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const prefsKeyPrefix = "readinglist:prefs:"

// Preferences are per-user presentation settings that survive sessions.
type Preferences struct {
	ViewMode string `json:"viewMode"`
	Theme    string `json:"theme"`
}

func defaultPreferences() Preferences {
	return Preferences{ViewMode: "grid", Theme: "light"}
}

// RedisPreferenceStore persists presentation preferences in Redis.
type RedisPreferenceStore struct {
	client *redis.Client
}

// NewRedisPreferenceStore connects to Redis for preference storage.
func NewRedisPreferenceStore(addr, password string) *RedisPreferenceStore {
	return &RedisPreferenceStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Get returns the user's stored preferences, falling back to defaults for
// unset fields or when Redis is unreachable.
func (s *RedisPreferenceStore) Get(userID string) Preferences {
	prefs := defaultPreferences()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	fields, err := s.client.HGetAll(ctx, prefsKeyPrefix+userID).Result()
	if err != nil {
		return prefs
	}
	if v := strings.TrimSpace(fields["viewMode"]); v != "" {
		prefs.ViewMode = v
	}
	if v := strings.TrimSpace(fields["theme"]); v != "" {
		prefs.Theme = v
	}
	return prefs
}

// Set stores the non-empty fields, leaving the others unchanged.
func (s *RedisPreferenceStore) Set(userID string, prefs Preferences) error {
	fields := map[string]any{}
	if v := strings.TrimSpace(prefs.ViewMode); v != "" {
		fields["viewMode"] = v
	}
	if v := strings.TrimSpace(prefs.Theme); v != "" {
		fields["theme"] = v
	}
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.client.HSet(ctx, prefsKeyPrefix+userID, fields).Err()
}
