package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLStore keeps short-lived marker keys: revoked token IDs, OAuth state values.
// Redis is used when available so markers are shared across instances; otherwise
// an in-process map is used (single-instance only).
type TTLStore struct {
	rdb    *redis.Client
	prefix string

	mu  sync.Mutex
	mem map[string]time.Time
}

// NewTTLStore returns a store namespacing its keys under prefix. rdb may be nil.
func NewTTLStore(rdb *redis.Client, prefix string) *TTLStore {
	return &TTLStore{rdb: rdb, prefix: prefix, mem: map[string]time.Time{}}
}

// Put records key until ttl elapses. Non-positive ttl is a no-op.
// In memory mode each Put also drops expired keys.
func (s *TTLStore) Put(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if s.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return s.rdb.Set(ctx, s.prefix+key, "1", ttl).Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, exp := range s.mem {
		if now.After(exp) {
			delete(s.mem, k)
		}
	}
	s.mem[key] = now.Add(ttl)
	return nil
}

// Exists reports whether key is present and not expired.
func (s *TTLStore) Exists(ctx context.Context, key string) bool {
	if s.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := s.rdb.Exists(ctx, s.prefix+key).Result()
		if err != nil {
			// fail open so a Redis outage does not log everyone out
			return false
		}
		return n > 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.mem[key]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(s.mem, key)
		return false
	}
	return true
}

// Consume removes key and reports whether it was present. Each key can be consumed once.
func (s *TTLStore) Consume(ctx context.Context, key string) bool {
	if s.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		full := s.prefix + key
		if v, err := s.rdb.GetDel(ctx, full).Result(); err == nil {
			return v != ""
		} else if err == redis.Nil {
			return false
		}
		// GETDEL needs Redis >= 6.2; fall back to an atomic script
		script := `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`
		res, err := s.rdb.Eval(ctx, script, []string{full}).Result()
		return err == nil && res != nil
	}
	s.mu.Lock()
	exp, ok := s.mem[key]
	if ok {
		delete(s.mem, key)
	}
	s.mu.Unlock()
	return ok && time.Now().Before(exp)
}
