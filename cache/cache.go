// Package cache implements ResponseCache (spec §4.11): an LRU with
// per-entry TTL keyed by a fingerprint of domains, normalized query, and
// user context. Streaming responses are never cached.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hanbit-ai/advisor-rag/domainlabel"
)

// Entry is a cached response.
type Entry struct {
	Answer string
	Meta   map[string]any
}

type cacheRecord struct {
	entry     Entry
	expiresAt time.Time
}

// Key computes the cache key per spec §4.11:
// sha256(domain_labels || normalize(query) || user_context_fingerprint).
func Key(domains []domainlabel.Label, query, userContextFingerprint string) string {
	sorted := make([]string, len(domains))
	for i, d := range domains {
		sorted[i] = string(d)
	}
	sort.Strings(sorted)

	normalized := normalizeQuery(query)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",") + "|" + normalized + "|" + userContextFingerprint))
	return hex.EncodeToString(sum[:])
}

// normalizeQuery collapses whitespace and lowercases ASCII, matching the
// teacher's lack of a locale-aware normalizer: Korean text has no case to
// fold, so this only needs to handle whitespace/ASCII.
func normalizeQuery(query string) string {
	fields := strings.Fields(strings.ToLower(query))
	return strings.Join(fields, " ")
}

// Backend is the contract both ResponseCache (in-process) and
// RedisResponseCache (shared) satisfy, so callers can swap backends without
// caring which one is wired in.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

// ResponseCache is an in-process LRU+TTL cache (spec §4.11). It is
// internally synchronized; reads and writes are atomic per key (spec §5
// shared-resource policy).
type ResponseCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, cacheRecord]
}

// NewResponseCache builds a cache with the given capacity.
func NewResponseCache(maxSize int) (*ResponseCache, error) {
	if maxSize <= 0 {
		maxSize = 1000
	}
	c, err := lru.New[string, cacheRecord](maxSize)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{lru: c}, nil
}

// Get returns the cached entry for key if present and not expired.
func (c *ResponseCache) Get(ctx context.Context, key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.lru.Get(key)
	if !ok {
		return Entry{}, false
	}
	if time.Now().After(rec.expiresAt) {
		c.lru.Remove(key)
		return Entry{}, false
	}
	return rec.entry, true
}

// Set stores entry under key with the given TTL.
func (c *ResponseCache) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, cacheRecord{entry: entry, expiresAt: time.Now().Add(ttl)})
	return nil
}

// Len reports the number of entries currently cached (expired or not).
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
