package redis

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore is an in-process KVStore with the same TTL semantics as the
// real client. It backs tests and serves as a degraded fallback when no
// Redis address is configured. State is lost on restart.
type memoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]memoryEntry
	zsets map[string]map[string]float64
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func NewMemoryStore() KVStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock injects the clock so TTL behavior is testable
// without sleeping.
func NewMemoryStoreWithClock(now func() time.Time) KVStore {
	return &memoryStore{
		now:   now,
		items: make(map[string]memoryEntry),
		zsets: make(map[string]map[string]float64),
	}
}

func (m *memoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}

func (m *memoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = entry
	return nil
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if m.expired(e) {
		delete(m.items, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return false, nil
	}
	delete(m.items, key)
	if m.expired(e) {
		return false, nil
	}
	return true, nil
}

func (m *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m *memoryStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	zs, ok := m.zsets[key]
	if !ok {
		zs = make(map[string]float64)
		m.zsets[key] = zs
	}
	zs[member] = score
	return nil
}

func (m *memoryStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	zs := m.zsets[key]
	type pair struct {
		member string
		score  float64
	}
	pairs := make([]pair, 0, len(zs))
	for member, score := range zs {
		pairs = append(pairs, pair{member, score})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		// Redis breaks score ties by reverse lexical order of the member.
		return pairs[i].member > pairs[j].member
	})
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(pairs)) {
		stop = int64(len(pairs)) - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, 0, stop-start+1)
	for _, p := range pairs[start : stop+1] {
		out = append(out, p.member)
	}
	return out, nil
}

func (m *memoryStore) ZRem(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if zs, ok := m.zsets[key]; ok {
		delete(zs, member)
	}
	return nil
}

func (m *memoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.items[key]; ok && !m.expired(e) {
		e.expiresAt = m.now().Add(ttl)
		m.items[key] = e
	}
	// TTLs on zset keys are accepted but not enforced here; the unread
	// index is pruned by the aggregator skipping dead entries.
	return nil
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }

func (m *memoryStore) Close() error { return nil }
