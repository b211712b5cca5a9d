package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

const remoteKeyPrefix = "rxcheck:conflicts:"

// RemoteTier is a Redis-backed second cache level shared by server replicas.
// Calls go through a circuit breaker; when it is open the tier reports
// gobreaker.ErrOpenState and callers fall back to local-only caching.
type RemoteTier struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *logrus.Logger
}

// cachedConflicts is the JSON envelope stored in Redis.
type cachedConflicts struct {
	Generation string            `json:"generation"`
	Conflicts  []domain.Conflict `json:"conflicts"`
	CachedAt   time.Time         `json:"cached_at"`
}

// NewRemoteTier connects to the Redis instance named by cfg.RedisURL.
func NewRemoteTier(cfg domain.CacheConfig, logger *logrus.Logger) (*RemoteTier, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRemoteTierWithClient(client, cfg.RemoteTTL, logger), nil
}

// NewRemoteTierWithClient wraps an existing Redis client.
func NewRemoteTierWithClient(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *RemoteTier {
	if ttl <= 0 {
		ttl = time.Hour
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "conflict-cache-redis",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RemoteTier{
		client:  client,
		breaker: breaker,
		ttl:     ttl,
		logger:  logger,
	}
}

// Get returns the conflicts cached under key. A Redis miss is not an error.
func (t *RemoteTier) Get(ctx context.Context, key cacheKey) ([]domain.Conflict, bool, error) {
	res, err := t.breaker.Execute(func() (interface{}, error) {
		val, err := t.client.Get(ctx, remoteKey(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return val, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("remote cache get: %w", err)
	}
	if res == nil {
		return nil, false, nil
	}

	var cached cachedConflicts
	if err := json.Unmarshal(res.([]byte), &cached); err != nil {
		// Corrupted entry
		t.client.Del(ctx, remoteKey(key))
		return nil, false, nil
	}
	if cached.Generation != key.generation {
		return nil, false, nil
	}
	if cached.Conflicts == nil {
		cached.Conflicts = []domain.Conflict{}
	}
	return cached.Conflicts, true, nil
}

// Set stores conflicts under key with the tier's TTL.
func (t *RemoteTier) Set(ctx context.Context, key cacheKey, conflicts []domain.Conflict) error {
	data, err := json.Marshal(cachedConflicts{
		Generation: key.generation,
		Conflicts:  conflicts,
		CachedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal conflicts: %w", err)
	}

	_, err = t.breaker.Execute(func() (interface{}, error) {
		return nil, t.client.Set(ctx, remoteKey(key), data, t.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("remote cache set: %w", err)
	}
	return nil
}

// State returns the circuit breaker state.
func (t *RemoteTier) State() gobreaker.State {
	return t.breaker.State()
}

// Close releases the Redis client.
func (t *RemoteTier) Close() error {
	return t.client.Close()
}

func remoteKey(key cacheKey) string {
	sum := sha256.Sum256([]byte(key.drugs + "\x00" + key.conditions))
	return remoteKeyPrefix + key.generation + ":" + hex.EncodeToString(sum[:])
}
