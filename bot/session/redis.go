package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "listingbot:session:"

// redisStore keeps sessions in Redis so conversations survive restarts.
// Per-key serialization is process-local; the bot runs as a single instance.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration

	locksMu sync.Mutex
	locks   map[Key]*sync.Mutex
}

// NewRedisStore connects to Redis using the provided URL. A zero ttl keeps
// sessions until explicitly deleted.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis ping: %w", err)
	}
	return &redisStore{
		client: client,
		ttl:    ttl,
		locks:  make(map[Key]*sync.Mutex),
	}, nil
}

// Close releases the Redis connection.
func (r *redisStore) Close() error {
	return r.client.Close()
}

func redisKey(key Key) string {
	return redisKeyPrefix + key.String()
}

func (r *redisStore) keyLock(key Key) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

func (r *redisStore) Get(ctx context.Context, key Key) (*Session, error) {
	raw, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		// A corrupt record is dropped rather than wedging the user.
		_ = r.client.Del(ctx, redisKey(key)).Err()
		return nil, nil
	}
	return &s, nil
}

func (r *redisStore) Put(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(s.Key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

func (r *redisStore) Do(ctx context.Context, key Key, fn func(*Session) error) error {
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if s == nil {
		s = New(key)
	}
	if err := fn(s); err != nil {
		return err
	}
	return r.Put(ctx, s)
}
