package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"optitrack/pnl"
)

// SummaryCache stores computed summaries keyed by a hash of their inputs.
// A miss always falls back to full recomputation.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*pnl.Summary, bool)
	Set(ctx context.Context, key string, summary pnl.Summary)
}

// SummaryKey hashes everything a summary depends on
func SummaryKey(in pnl.Input) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

type memoryEntry struct {
	summary pnl.Summary
	expires time.Time
}

// MemorySummaryCache is an in-process SummaryCache with a TTL
type MemorySummaryCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemorySummaryCache creates an in-memory cache
func NewMemorySummaryCache(ttl time.Duration) *MemorySummaryCache {
	return &MemorySummaryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

// Get implements SummaryCache
func (c *MemorySummaryCache) Get(_ context.Context, key string) (*pnl.Summary, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	summary := entry.summary
	return &summary, true
}

// Set implements SummaryCache. Expired entries are swept on write.
func (c *MemorySummaryCache) Set(_ context.Context, key string, summary pnl.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = memoryEntry{summary: summary, expires: now.Add(c.ttl)}
}

// RedisSummaryCache is a SummaryCache shared across processes
type RedisSummaryCache struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	onError func(error)
}

// NewRedisSummaryCache creates a Redis-backed cache. onError may be nil.
func NewRedisSummaryCache(client *redis.Client, ttl time.Duration, onError func(error)) *RedisSummaryCache {
	return &RedisSummaryCache{
		client:  client,
		ttl:     ttl,
		prefix:  "optitrack:summary:",
		onError: onError,
	}
}

// Get implements SummaryCache. Redis errors other than redis.Nil are
// reported through onError and treated as misses.
func (c *RedisSummaryCache) Get(ctx context.Context, key string) (*pnl.Summary, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.onError != nil {
			c.onError(err)
		}
		return nil, false
	}

	var summary pnl.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, false
	}
	return &summary, true
}

// Set implements SummaryCache
func (c *RedisSummaryCache) Set(ctx context.Context, key string, summary pnl.Summary) {
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil && c.onError != nil {
		c.onError(err)
	}
}
