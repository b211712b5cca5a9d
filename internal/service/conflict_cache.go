package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// DefaultCacheMaxItems bounds the local cache when no size is configured.
const DefaultCacheMaxItems = 1000

// CacheStats represents conflict cache statistics
type CacheStats struct {
	Hits         int64     `json:"hits"`
	Misses       int64     `json:"misses"`
	RemoteHits   int64     `json:"remote_hits"`
	RemoteErrors int64     `json:"remote_errors"`
	Entries      int       `json:"entries"`
	MaxItems     int       `json:"max_items"`
	RemoteState  string    `json:"remote_state,omitempty"`
	LastReset    time.Time `json:"last_reset"`
}

// cacheKey identifies one cached enumeration: the knowledge base generation plus
// the sorted, lowercased, deduplicated drug and condition sets.
type cacheKey struct {
	generation string
	drugs      string
	conditions string
}

// ConflictCache memoizes FindConflicts per knowledge base instance.
// Callers always receive their own copy of a cached result.
type ConflictCache struct {
	mu       sync.Mutex
	bounded  *lru.Cache[cacheKey, []domain.Conflict]
	entries  map[cacheKey][]domain.Conflict
	maxItems int

	remote *RemoteTier
	logger *logrus.Logger
	stats  CacheStats
}

// NewConflictCache creates a cache holding at most maxItems results.
// maxItems <= 0 keeps every result.
func NewConflictCache(maxItems int, logger *logrus.Logger) (*ConflictCache, error) {
	c := &ConflictCache{
		maxItems: maxItems,
		logger:   logger,
		stats:    CacheStats{LastReset: time.Now()},
	}

	if maxItems > 0 {
		bounded, err := lru.New[cacheKey, []domain.Conflict](maxItems)
		if err != nil {
			return nil, fmt.Errorf("failed to create conflict cache: %w", err)
		}
		c.bounded = bounded
	} else {
		c.entries = make(map[cacheKey][]domain.Conflict)
	}

	return c, nil
}

// WithRemote attaches a shared second tier consulted on local misses.
func (c *ConflictCache) WithRemote(remote *RemoteTier) *ConflictCache {
	c.remote = remote
	return c
}

// FindConflictsCached returns FindConflicts(prescription, conditionTokens, kb), reusing a
// previous result computed against the same kb instance for the same drug and condition sets.
// Remote tier failures are logged and never fail the call.
func (c *ConflictCache) FindConflictsCached(ctx context.Context, prescription, conditionTokens []string, kb *KnowledgeBase) []domain.Conflict {
	if kb == nil {
		return []domain.Conflict{}
	}
	key := cacheKey{
		generation: kb.Generation(),
		drugs:      setKey(prescription),
		conditions: setKey(conditionTokens),
	}

	c.mu.Lock()
	if cached, ok := c.get(key); ok {
		c.stats.Hits++
		c.mu.Unlock()
		c.logger.WithField("generation", key.generation).Debug("Conflict cache hit")
		return slices.Clone(cached)
	}
	c.mu.Unlock()

	if c.remote != nil {
		if conflicts, ok := c.fromRemote(ctx, key); ok {
			c.mu.Lock()
			c.stats.Hits++
			c.stats.RemoteHits++
			c.put(key, slices.Clone(conflicts))
			c.mu.Unlock()
			return conflicts
		}
	}

	conflicts := FindConflicts(prescription, conditionTokens, kb)

	c.mu.Lock()
	c.stats.Misses++
	c.put(key, slices.Clone(conflicts))
	c.mu.Unlock()

	if c.remote != nil {
		if err := c.remote.Set(ctx, key, conflicts); err != nil {
			c.remoteFailed(err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"generation": key.generation,
		"conflicts":  len(conflicts),
	}).Debug("Conflict cache miss")

	return conflicts
}

func (c *ConflictCache) fromRemote(ctx context.Context, key cacheKey) ([]domain.Conflict, bool) {
	conflicts, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		c.remoteFailed(err)
		return nil, false
	}
	return conflicts, ok
}

func (c *ConflictCache) remoteFailed(err error) {
	c.mu.Lock()
	c.stats.RemoteErrors++
	c.mu.Unlock()
	c.logger.WithError(err).Warn("Remote conflict cache unavailable, using local tier only")
}

// DropGeneration removes every local entry computed against the given knowledge base generation.
// It returns the number of entries removed.
func (c *ConflictCache) DropGeneration(generation string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	if c.bounded != nil {
		for _, k := range c.bounded.Keys() {
			if k.generation == generation && c.bounded.Remove(k) {
				removed++
			}
		}
		return removed
	}

	for k := range c.entries {
		if k.generation == generation {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Purge removes all local entries and resets the counters.
func (c *ConflictCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bounded != nil {
		c.bounded.Purge()
	} else {
		c.entries = make(map[cacheKey][]domain.Conflict)
	}
	c.stats = CacheStats{LastReset: time.Now()}
}

// Stats returns a snapshot of the cache counters.
func (c *ConflictCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.lenLocked()
	s.MaxItems = c.maxItems
	if c.remote != nil {
		s.RemoteState = c.remote.State().String()
	}
	return s
}

func (c *ConflictCache) get(key cacheKey) ([]domain.Conflict, bool) {
	if c.bounded != nil {
		return c.bounded.Get(key)
	}
	v, ok := c.entries[key]
	return v, ok
}

func (c *ConflictCache) put(key cacheKey, conflicts []domain.Conflict) {
	if c.bounded != nil {
		c.bounded.Add(key, conflicts)
		return
	}
	c.entries[key] = conflicts
}

func (c *ConflictCache) lenLocked() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	return len(c.entries)
}

// setKey renders items as a sorted, deduplicated, lowercase set.
func setKey(items []string) string {
	set := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			set = append(set, s)
		}
	}
	sort.Strings(set)
	return strings.Join(slices.Compact(set), "\x1f")
}
