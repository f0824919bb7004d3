package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"booksync/core/errs"
	"booksync/core/kvstore"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Type names a logical cache partition. Each partition is independently
// size-bounded and keeps its own counters.
type Type string

const (
	// TypeValidation caches validation outcomes keyed by (platform, hash).
	TypeValidation Type = "validation"
	// TypeNormalized caches normalized records.
	TypeNormalized Type = "normalized"
	// TypeRules caches platform rule lookups.
	TypeRules Type = "rules"
)

// entry is one cached item. Data is stored as JSON so reads and writes are
// deep copies; cached state can never be mutated through a caller's pointer.
type entry struct {
	key         string
	data        []byte
	createdAt   time.Time
	expiresAt   time.Time
	priority    int
	accessCount uint64
	lastAccess  time.Time
}

// persistedEntry is the envelope written to the persistent tier.
type persistedEntry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at"`
	Priority  int             `json:"priority"`
}

type partition struct {
	entries   map[string]*entry
	hits      uint64
	misses    uint64
	sets      uint64
	evictions uint64
}

// Stats describes one partition for observability.
type Stats struct {
	Size       int       `json:"size"`
	MaxSize    int       `json:"max_size"`
	Hits       uint64    `json:"hits"`
	Misses     uint64    `json:"misses"`
	Sets       uint64    `json:"sets"`
	Evictions  uint64    `json:"evictions"`
	HitRate    float64   `json:"hit_rate"`
	LastAccess time.Time `json:"last_access"`
}

// Manager is the partitioned TTL cache used by the validator and the
// conflict resolver. An optional persistent tier mirrors entries into a
// key-value store; persistence failures degrade to memory-only caching.
type Manager struct {
	mu         sync.Mutex
	partitions map[Type]*partition
	cfg        Config
	ttl        time.Duration
	persistent kvstore.Store
	logger     *zap.Logger
	sf         singleflight.Group
	now        func() time.Time
}

// NewManager creates a cache manager. persistent may be nil for
// memory-only operation.
func NewManager(cfg Config, persistent kvstore.Store, logger *zap.Logger) *Manager {
	if cfg.Size <= 0 {
		cfg.Size = 1000
	}
	if !cfg.IsValidEviction() {
		cfg.Eviction = EvictionLRU
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Persistent {
		persistent = nil
	}
	return &Manager{
		partitions: make(map[Type]*partition),
		cfg:        cfg,
		ttl:        time.Duration(cfg.TTLSeconds) * time.Second,
		persistent: persistent,
		logger:     logger,
		now:        time.Now,
	}
}

// Set stores value under (typ, key) with the default TTL and priority 0.
func (m *Manager) Set(ctx context.Context, typ Type, key string, value any) error {
	return m.SetWithPriority(ctx, typ, key, value, 0)
}

// SetWithPriority stores value with an eviction priority. Higher priority
// entries are evicted last within the configured policy.
func (m *Manager) SetWithPriority(ctx context.Context, typ Type, key string, value any, priority int) error {
	if !m.cfg.Enabled {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errs.Transient(errs.CodeParse, err, "cache payload not serializable")
	}

	now := m.now()
	e := &entry{
		key:         key,
		data:        data,
		createdAt:   now,
		expiresAt:   now.Add(m.ttl),
		priority:    priority,
		lastAccess:  now,
	}

	m.mu.Lock()
	p := m.partitionLocked(typ)
	if _, exists := p.entries[key]; !exists && len(p.entries) >= m.cfg.Size {
		m.evictLocked(p)
	}
	p.entries[key] = e
	p.sets++
	m.mu.Unlock()

	m.persistSet(ctx, typ, key, e)
	return nil
}

// Get loads the value under (typ, key) into out. It returns false on a
// miss or expired entry. out must be a pointer.
func (m *Manager) Get(ctx context.Context, typ Type, key string, out any) (bool, error) {
	if !m.cfg.Enabled {
		return false, nil
	}

	m.mu.Lock()
	p := m.partitionLocked(typ)
	e, ok := p.entries[key]
	now := m.now()
	if ok && now.After(e.expiresAt) {
		delete(p.entries, key)
		ok = false
	}
	if ok {
		e.accessCount++
		e.lastAccess = now
		p.hits++
		data := e.data
		m.mu.Unlock()
		if err := json.Unmarshal(data, out); err != nil {
			return false, errs.Transient(errs.CodeParse, err, "cached payload corrupt")
		}
		return true, nil
	}
	p.misses++
	m.mu.Unlock()

	return m.persistGet(ctx, typ, key, out)
}

// GetOrCompute returns the cached value or computes and caches it.
// Concurrent callers for the same key share one computation.
func (m *Manager) GetOrCompute(ctx context.Context, typ Type, key string, out any, compute func() (any, error)) error {
	hit, err := m.Get(ctx, typ, key, out)
	if err != nil {
		return err
	}
	if hit {
		return nil
	}

	result, err, _ := m.sf.Do(string(typ)+":"+key, func() (any, error) {
		value, err := compute()
		if err != nil {
			return nil, err
		}
		if err := m.Set(ctx, typ, key, value); err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), out)
}

// Invalidate removes entries in typ whose key contains pattern.
// An empty pattern removes nothing; use Clear for that.
func (m *Manager) Invalidate(typ Type, pattern string) int {
	if pattern == "" {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.partitionLocked(typ)
	removed := 0
	for key := range p.entries {
		if strings.Contains(key, pattern) {
			delete(p.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidateOlderThan removes entries in typ created more than age ago.
func (m *Manager) InvalidateOlderThan(typ Type, age time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.partitionLocked(typ)
	cutoff := m.now().Add(-age)
	removed := 0
	for key, e := range p.entries {
		if e.createdAt.Before(cutoff) {
			delete(p.entries, key)
			removed++
		}
	}
	return removed
}

// Clear empties one partition.
func (m *Manager) Clear(typ Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.partitionLocked(typ)
	p.entries = make(map[string]*entry)
}

// ClearAll empties every partition.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.partitions {
		p.entries = make(map[string]*entry)
	}
}

// Statistics returns per-partition counters.
func (m *Manager) Statistics() map[Type]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Type]Stats, len(m.partitions))
	for typ, p := range m.partitions {
		s := Stats{
			Size:      len(p.entries),
			MaxSize:   m.cfg.Size,
			Hits:      p.hits,
			Misses:    p.misses,
			Sets:      p.sets,
			Evictions: p.evictions,
		}
		if total := p.hits + p.misses; total > 0 {
			s.HitRate = float64(p.hits) / float64(total)
		}
		for _, e := range p.entries {
			if e.lastAccess.After(s.LastAccess) {
				s.LastAccess = e.lastAccess
			}
		}
		out[typ] = s
	}
	return out
}

func (m *Manager) partitionLocked(typ Type) *partition {
	p, ok := m.partitions[typ]
	if !ok {
		p = &partition{entries: make(map[string]*entry)}
		m.partitions[typ] = p
	}
	return p
}

// evictLocked removes one victim chosen by the configured policy.
// Lower priority entries are always preferred as victims.
func (m *Manager) evictLocked(p *partition) {
	var victim *entry
	for _, e := range p.entries {
		if victim == nil {
			victim = e
			continue
		}
		if e.priority != victim.priority {
			if e.priority < victim.priority {
				victim = e
			}
			continue
		}
		switch m.cfg.Eviction {
		case EvictionLFU:
			if e.accessCount < victim.accessCount {
				victim = e
			}
		case EvictionTTL:
			if e.expiresAt.Before(victim.expiresAt) {
				victim = e
			}
		default: // lru
			if e.lastAccess.Before(victim.lastAccess) {
				victim = e
			}
		}
	}
	if victim != nil {
		delete(p.entries, victim.key)
		p.evictions++
	}
}

func (m *Manager) persistKey(typ Type, key string) string {
	return string(typ) + ":" + key
}

func (m *Manager) persistSet(ctx context.Context, typ Type, key string, e *entry) {
	if m.persistent == nil {
		return
	}
	envelope := persistedEntry{Data: e.data, ExpiresAt: e.expiresAt, Priority: e.priority}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	if err := m.persistent.Set(ctx, m.persistKey(typ, key), payload); err != nil {
		m.logger.Warn("persistent cache write failed, continuing memory-only",
			zap.String("type", string(typ)), zap.Error(err))
	}
}

func (m *Manager) persistGet(ctx context.Context, typ Type, key string, out any) (bool, error) {
	if m.persistent == nil {
		return false, nil
	}
	payload, err := m.persistent.Get(ctx, m.persistKey(typ, key))
	if err != nil {
		if err != kvstore.ErrNotFound {
			m.logger.Warn("persistent cache read failed, continuing memory-only",
				zap.String("type", string(typ)), zap.Error(err))
		}
		return false, nil
	}

	var envelope persistedEntry
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return false, nil
	}
	if m.now().After(envelope.ExpiresAt) {
		_ = m.persistent.Delete(ctx, m.persistKey(typ, key))
		return false, nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return false, nil
	}

	// Promote back into the memory tier.
	now := m.now()
	m.mu.Lock()
	p := m.partitionLocked(typ)
	if _, exists := p.entries[key]; !exists && len(p.entries) >= m.cfg.Size {
		m.evictLocked(p)
	}
	p.entries[key] = &entry{
		key:        key,
		data:       envelope.Data,
		createdAt:  now,
		expiresAt:  envelope.ExpiresAt,
		priority:   envelope.Priority,
		lastAccess: now,
	}
	p.hits++
	m.mu.Unlock()
	return true, nil
}
