package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"booksync/core/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	IsValid  bool     `json:"isValid"`
	Warnings []string `json:"warnings"`
}

func newTestManager(cfg Config) *Manager {
	return NewManager(cfg, nil, nil)
}

func TestManager_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 10, TTLSeconds: 60, Eviction: EvictionLRU})

	in := outcome{IsValid: true, Warnings: []string{"SHORT_TITLE"}}
	require.NoError(t, m.Set(ctx, TypeValidation, "readmoo:abc", in))

	var out outcome
	hit, err := m.Get(ctx, TypeValidation, "readmoo:abc", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, in, out)

	var missed outcome
	hit, err = m.Get(ctx, TypeValidation, "readmoo:other", &missed)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestManager_DeepCopyOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 10, TTLSeconds: 60})

	in := outcome{IsValid: true, Warnings: []string{"A"}}
	require.NoError(t, m.Set(ctx, TypeValidation, "k", in))

	// Mutating the original after Set must not affect the cached value.
	in.Warnings[0] = "MUTATED"

	var first outcome
	_, err := m.Get(ctx, TypeValidation, "k", &first)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, first.Warnings)

	// Mutating a read value must not affect later reads.
	first.Warnings[0] = "MUTATED"
	var second outcome
	_, err = m.Get(ctx, TypeValidation, "k", &second)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, second.Warnings)
}

func TestManager_PartitionBound(t *testing.T) {
	ctx := context.Background()
	const size = 5
	m := newTestManager(Config{Enabled: true, Size: size, TTLSeconds: 60})

	// Insert size+k entries; the partition never exceeds size.
	for i := 0; i < size+7; i++ {
		require.NoError(t, m.Set(ctx, TypeValidation, fmt.Sprintf("key-%d", i), i))
		stats := m.Statistics()[TypeValidation]
		assert.LessOrEqual(t, stats.Size, size)
	}
	stats := m.Statistics()[TypeValidation]
	assert.Equal(t, size, stats.Size)
	assert.Equal(t, uint64(7), stats.Evictions)
}

func TestManager_LRUEviction(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 2, TTLSeconds: 60, Eviction: EvictionLRU})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Set(ctx, TypeValidation, "old", 1))
	clock = clock.Add(time.Second)
	require.NoError(t, m.Set(ctx, TypeValidation, "fresh", 2))

	// Touch "old" so "fresh" becomes the LRU victim.
	clock = clock.Add(time.Second)
	var v int
	_, err := m.Get(ctx, TypeValidation, "old", &v)
	require.NoError(t, err)

	clock = clock.Add(time.Second)
	require.NoError(t, m.Set(ctx, TypeValidation, "newest", 3))

	hit, _ := m.Get(ctx, TypeValidation, "old", &v)
	assert.True(t, hit, "recently accessed entry survived")
	hit, _ = m.Get(ctx, TypeValidation, "fresh", &v)
	assert.False(t, hit, "least recently used entry evicted")
}

func TestManager_LFUEviction(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 2, TTLSeconds: 60, Eviction: EvictionLFU})

	require.NoError(t, m.Set(ctx, TypeValidation, "popular", 1))
	require.NoError(t, m.Set(ctx, TypeValidation, "unpopular", 2))

	var v int
	for i := 0; i < 3; i++ {
		_, err := m.Get(ctx, TypeValidation, "popular", &v)
		require.NoError(t, err)
	}

	require.NoError(t, m.Set(ctx, TypeValidation, "third", 3))

	hit, _ := m.Get(ctx, TypeValidation, "popular", &v)
	assert.True(t, hit)
	hit, _ = m.Get(ctx, TypeValidation, "unpopular", &v)
	assert.False(t, hit, "lowest access count evicted")
}

func TestManager_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 10, TTLSeconds: 60})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Set(ctx, TypeValidation, "k", 42))

	var v int
	hit, err := m.Get(ctx, TypeValidation, "k", &v)
	require.NoError(t, err)
	assert.True(t, hit)

	clock = base.Add(61 * time.Second)
	hit, err = m.Get(ctx, TypeValidation, "k", &v)
	require.NoError(t, err)
	assert.False(t, hit, "entry past its TTL is a miss")
}

func TestManager_PriorityShieldsEntries(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 2, TTLSeconds: 60, Eviction: EvictionLRU})

	require.NoError(t, m.SetWithPriority(ctx, TypeRules, "rules:readmoo", "important", 10))
	require.NoError(t, m.Set(ctx, TypeRules, "scratch", "cheap"))
	require.NoError(t, m.Set(ctx, TypeRules, "more", "cheap"))

	var v string
	hit, _ := m.Get(ctx, TypeRules, "rules:readmoo", &v)
	assert.True(t, hit, "high priority entry survived eviction")
}

func TestManager_InvalidatePattern(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 10, TTLSeconds: 60})

	require.NoError(t, m.Set(ctx, TypeValidation, "readmoo:a", 1))
	require.NoError(t, m.Set(ctx, TypeValidation, "readmoo:b", 2))
	require.NoError(t, m.Set(ctx, TypeValidation, "kobo:a", 3))

	removed := m.Invalidate(TypeValidation, "readmoo:")
	assert.Equal(t, 2, removed)

	var v int
	hit, _ := m.Get(ctx, TypeValidation, "kobo:a", &v)
	assert.True(t, hit)
	assert.Equal(t, 0, m.Invalidate(TypeValidation, ""))
}

func TestManager_InvalidateOlderThan(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 10, TTLSeconds: 3600})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Set(ctx, TypeNormalized, "stale", 1))
	clock = base.Add(10 * time.Minute)
	require.NoError(t, m.Set(ctx, TypeNormalized, "recent", 2))

	removed := m.InvalidateOlderThan(TypeNormalized, 5*time.Minute)
	assert.Equal(t, 1, removed)

	var v int
	hit, _ := m.Get(ctx, TypeNormalized, "recent", &v)
	assert.True(t, hit)
}

func TestManager_ClearAndStatistics(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 10, TTLSeconds: 60})

	require.NoError(t, m.Set(ctx, TypeValidation, "a", 1))
	var v int
	_, _ = m.Get(ctx, TypeValidation, "a", &v)
	_, _ = m.Get(ctx, TypeValidation, "missing", &v)

	stats := m.Statistics()[TypeValidation]
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Sets)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)

	m.Clear(TypeValidation)
	assert.Equal(t, 0, m.Statistics()[TypeValidation].Size)
}

func TestManager_DisabledCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: false, Size: 10, TTLSeconds: 60})

	require.NoError(t, m.Set(ctx, TypeValidation, "k", 1))
	var v int
	hit, err := m.Get(ctx, TypeValidation, "k", &v)
	require.NoError(t, err)
	assert.False(t, hit)
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("kv offline")
}
func (failingStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("kv offline")
}
func (failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("kv offline")
}

func TestManager_PersistentFailureDegradesToMemory(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Config{Enabled: true, Size: 10, TTLSeconds: 60, Persistent: true}, failingStore{}, nil)

	require.NoError(t, m.Set(ctx, TypeValidation, "k", 7))
	var v int
	hit, err := m.Get(ctx, TypeValidation, "k", &v)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, v)
}

func TestManager_PersistentTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	writer := NewManager(Config{Enabled: true, Size: 10, TTLSeconds: 60, Persistent: true}, store, nil)
	require.NoError(t, writer.Set(ctx, TypeValidation, "k", outcome{IsValid: true}))

	// A fresh manager with an empty memory tier hits the persistent tier.
	reader := NewManager(Config{Enabled: true, Size: 10, TTLSeconds: 60, Persistent: true}, store, nil)
	var out outcome
	hit, err := reader.Get(ctx, TypeValidation, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, out.IsValid)
}

func TestManager_GetOrComputeSharesComputation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(Config{Enabled: true, Size: 10, TTLSeconds: 60})

	var mu sync.Mutex
	calls := 0
	compute := func() (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return outcome{IsValid: true}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out outcome
			if assert.NoError(t, m.GetOrCompute(ctx, TypeValidation, "shared", &out, compute)) {
				assert.True(t, out.IsValid)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls, "concurrent callers share one computation")
}
