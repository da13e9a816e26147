package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another holder owns a lock.
var ErrLocked = errors.New("resource locked")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store wraps go-redis with the small primitives the services share:
// dedupe markers, owner-checked locks and one-shot values.
type Store struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "spendwatch"
	}
	return &Store{client: client, prefix: prefix}
}

// SeenBefore marks key as seen for ttl and reports whether it already was.
func (s *Store) SeenBefore(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	created, err := s.client.SetNX(ctx, s.prefixed("seen", key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", key, err)
	}
	return !created, nil
}

// Forget removes a dedupe marker so the key can be processed again.
func (s *Store) Forget(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.prefixed("seen", key)).Err()
}

// Lock is a held Redis lock.
type Lock struct {
	store *Store
	key   string
	token string
}

// Lock acquires key for ttl or returns ErrLocked.
func (s *Store) Lock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if s == nil || s.client == nil {
		return &Lock{}, nil
	}
	token := uuid.NewString()
	redisKey := s.prefixed("lock", key)
	ok, err := s.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{store: s, key: redisKey, token: token}, nil
}

// Release drops the lock if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.store == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.store.client, []string{l.key}, l.token).Err()
}

// Put stores a value that can be read back once with Take.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return errors.New("cache: redis client not configured")
	}
	return s.client.Set(ctx, s.prefixed("once", key), value, ttl).Err()
}

// Take reads and deletes a value stored with Put.
func (s *Store) Take(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, nil
	}
	data, err := s.client.GetDel(ctx, s.prefixed("once", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) prefixed(kind, key string) string {
	return s.prefix + ":" + kind + ":" + key
}
