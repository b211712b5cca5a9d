package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

func newTestCache(t *testing.T, maxItems int) *ConflictCache {
	t.Helper()
	cache, err := NewConflictCache(maxItems, testLogger())
	require.NoError(t, err)
	return cache
}

func newTestRemote(t *testing.T) (*RemoteTier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	remote := NewRemoteTierWithClient(client, time.Minute, testLogger())
	t.Cleanup(func() { _ = remote.Close() })
	return remote, mr
}

func TestConflictCache_FindConflictsCached(t *testing.T) {
	ctx := context.Background()
	kb := BuildKnowledgeBase(sampleRecords())
	rx := []string{"Aspirin", "Warfarin"}

	t.Run("Miss_Then_Hit", func(t *testing.T) {
		cache := newTestCache(t, 100)

		first := cache.FindConflictsCached(ctx, rx, nil, kb)
		stats := cache.Stats()
		assert.Equal(t, int64(0), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)

		second := cache.FindConflictsCached(ctx, rx, nil, kb)
		stats = cache.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, 1, stats.Entries)
		assert.Equal(t, first, second)
	})

	t.Run("Key_Is_A_Set", func(t *testing.T) {
		cache := newTestCache(t, 100)

		cache.FindConflictsCached(ctx, []string{"Aspirin", "Warfarin"}, []string{"Hypertension"}, kb)
		cache.FindConflictsCached(ctx, []string{" warfarin", "ASPIRIN", "aspirin"}, []string{"hypertension"}, kb)

		stats := cache.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
	})

	t.Run("Rebuilt_Knowledge_Base_Misses", func(t *testing.T) {
		cache := newTestCache(t, 100)

		cache.FindConflictsCached(ctx, rx, nil, kb)
		rebuilt := BuildKnowledgeBase(sampleRecords())
		result := cache.FindConflictsCached(ctx, rx, nil, rebuilt)

		stats := cache.Stats()
		assert.Equal(t, int64(0), stats.Hits)
		assert.Equal(t, int64(2), stats.Misses)
		assert.Equal(t, FindConflicts(rx, nil, kb), result)
	})

	t.Run("Caller_Mutation_Does_Not_Leak", func(t *testing.T) {
		cache := newTestCache(t, 100)

		first := cache.FindConflictsCached(ctx, rx, nil, kb)
		require.Len(t, first, 1)
		first[0].Severity = domain.Minor
		first[0].Recommendation = "tampered"

		second := cache.FindConflictsCached(ctx, rx, nil, kb)
		require.Len(t, second, 1)
		assert.Equal(t, domain.Major, second[0].Severity)
		assert.Equal(t, "Avoid combination", second[0].Recommendation)

		second[0].Score = 0
		third := cache.FindConflictsCached(ctx, rx, nil, kb)
		assert.Equal(t, 3, third[0].Score)
	})

	t.Run("LRU_Bound", func(t *testing.T) {
		cache := newTestCache(t, 2)

		cache.FindConflictsCached(ctx, []string{"A"}, nil, kb)
		cache.FindConflictsCached(ctx, []string{"B"}, nil, kb)
		cache.FindConflictsCached(ctx, []string{"C"}, nil, kb)
		assert.Equal(t, 2, cache.Stats().Entries)

		// "A" was evicted
		cache.FindConflictsCached(ctx, []string{"A"}, nil, kb)
		assert.Equal(t, int64(4), cache.Stats().Misses)
	})

	t.Run("Unbounded", func(t *testing.T) {
		cache := newTestCache(t, 0)

		for _, d := range []string{"A", "B", "C", "D"} {
			cache.FindConflictsCached(ctx, []string{d}, nil, kb)
		}
		stats := cache.Stats()
		assert.Equal(t, 4, stats.Entries)
		assert.Equal(t, 0, stats.MaxItems)
	})

	t.Run("Nil_Knowledge_Base", func(t *testing.T) {
		cache := newTestCache(t, 10)
		assert.Empty(t, cache.FindConflictsCached(ctx, rx, nil, nil))
	})
}

func TestConflictCache_DropGeneration(t *testing.T) {
	ctx := context.Background()

	for _, size := range []int{10, 0} {
		cache := newTestCache(t, size)
		kb1 := BuildKnowledgeBase(sampleRecords())
		kb2 := BuildKnowledgeBase(sampleRecords())

		cache.FindConflictsCached(ctx, []string{"Aspirin", "Warfarin"}, nil, kb1)
		cache.FindConflictsCached(ctx, []string{"Ibuprofen"}, []string{"Hypertension"}, kb1)
		cache.FindConflictsCached(ctx, []string{"Aspirin", "Warfarin"}, nil, kb2)

		assert.Equal(t, 2, cache.DropGeneration(kb1.Generation()))
		assert.Equal(t, 1, cache.Stats().Entries)
		assert.Equal(t, 0, cache.DropGeneration(kb1.Generation()))
	}
}

func TestConflictCache_Purge(t *testing.T) {
	cache := newTestCache(t, 10)
	kb := BuildKnowledgeBase(sampleRecords())

	cache.FindConflictsCached(context.Background(), []string{"Aspirin"}, nil, kb)
	cache.Purge()

	stats := cache.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestConflictCache_RemoteTier(t *testing.T) {
	ctx := context.Background()
	kb := BuildKnowledgeBase(sampleRecords())
	rx := []string{"Aspirin", "Warfarin"}

	t.Run("Shared_Between_Replicas", func(t *testing.T) {
		remote, mr := newTestRemote(t)
		replicaA := newTestCache(t, 10).WithRemote(remote)
		replicaB := newTestCache(t, 10).WithRemote(remote)

		expected := replicaA.FindConflictsCached(ctx, rx, nil, kb)
		assert.Len(t, mr.Keys(), 1)

		got := replicaB.FindConflictsCached(ctx, rx, nil, kb)
		assert.Equal(t, expected, got)

		stats := replicaB.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.RemoteHits)
		assert.Equal(t, int64(0), stats.Misses)
		assert.Equal(t, "closed", stats.RemoteState)

		// Promoted into the local tier
		replicaB.FindConflictsCached(ctx, rx, nil, kb)
		assert.Equal(t, int64(1), replicaB.Stats().RemoteHits)
		assert.Equal(t, int64(2), replicaB.Stats().Hits)
	})

	t.Run("Generation_Scoped", func(t *testing.T) {
		remote, _ := newTestRemote(t)
		replicaA := newTestCache(t, 10).WithRemote(remote)
		replicaB := newTestCache(t, 10).WithRemote(remote)

		replicaA.FindConflictsCached(ctx, rx, nil, kb)
		replicaB.FindConflictsCached(ctx, rx, nil, BuildKnowledgeBase(sampleRecords()))

		assert.Equal(t, int64(0), replicaB.Stats().RemoteHits)
		assert.Equal(t, int64(1), replicaB.Stats().Misses)
	})

	t.Run("Empty_Result_Is_Cached", func(t *testing.T) {
		remote, _ := newTestRemote(t)
		replicaA := newTestCache(t, 10).WithRemote(remote)
		replicaB := newTestCache(t, 10).WithRemote(remote)

		replicaA.FindConflictsCached(ctx, []string{"Paracetamol"}, nil, kb)
		got := replicaB.FindConflictsCached(ctx, []string{"Paracetamol"}, nil, kb)

		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.Equal(t, int64(1), replicaB.Stats().RemoteHits)
	})

	t.Run("Redis_Down_Falls_Back_To_Local", func(t *testing.T) {
		remote, mr := newTestRemote(t)
		cache := newTestCache(t, 10).WithRemote(remote)
		mr.Close()

		first := cache.FindConflictsCached(ctx, rx, nil, kb)
		second := cache.FindConflictsCached(ctx, rx, nil, kb)

		require.Len(t, first, 1)
		assert.Equal(t, first, second)

		stats := cache.Stats()
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, int64(1), stats.Hits)
		assert.GreaterOrEqual(t, stats.RemoteErrors, int64(2))
	})

	t.Run("Corrupted_Entry_Ignored", func(t *testing.T) {
		remote, mr := newTestRemote(t)
		key := cacheKey{generation: kb.Generation(), drugs: setKey(rx)}
		require.NoError(t, mr.Set(remoteKey(key), "not-json"))

		conflicts, ok, err := remote.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, conflicts)
		assert.False(t, mr.Exists(remoteKey(key)))
	})
}
