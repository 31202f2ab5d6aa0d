package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 120 * time.Second

// Cache maps a normalized request shape to a previously fetched question set.
// Lookup returns (nil, nil) on a miss, which includes entries past their TTL.
// The cache deliberately does no request coalescing: two callers that miss on
// the same key simultaneously will both fetch, and the later Store wins.
type Cache interface {
	Lookup(ctx context.Context, req Request) ([]Question, error)
	Store(ctx context.Context, req Request, payload []Question) error
}

// cacheKey normalizes a request so semantically identical requests always
// map to the same entry.
func cacheKey(req Request) string {
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "any"
	}
	return strings.Join([]string{
		"questions",
		strings.ToLower(strings.TrimSpace(req.Topic)),
		fmt.Sprint(req.Amount),
		strings.ToLower(difficulty),
	}, ":")
}

type memoryEntry struct {
	payload  []Question
	storedAt time.Time
}

// MemoryCache is the in-process backend: a map guarded by a mutex with a
// single process-wide TTL. Entries are never swept; expiry is computed at
// lookup time, which bounds memory by the set of distinct request shapes
// actually seen.
type MemoryCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]memoryEntry

	now func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Lookup(_ context.Context, req Request) ([]Question, error) {
	key := cacheKey(req)
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, nil
	}
	return entry.payload, nil
}

func (c *MemoryCache) Store(_ context.Context, req Request, payload []Question) error {
	key := cacheKey(req)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{payload: payload, storedAt: c.now()}
	return nil
}

// RedisCache shares cached question sets across instances. Expiry is enforced
// by Redis itself via the key TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Lookup(ctx context.Context, req Request) ([]Question, error) {
	data, err := c.client.Get(ctx, cacheKey(req)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var payload []Question
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *RedisCache) Store(ctx context.Context, req Request, payload []Question) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(req), data, c.ttl).Err()
}
