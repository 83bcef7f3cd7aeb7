// Package cache stores aircraft metadata by icao24 address so repeated
// snapshots do not look the same airframe up twice.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yash/flightvectors/pkg/models"
)

// Store is a metadata cache. Get reports ok=false on a miss.
type Store interface {
	Get(ctx context.Context, icao24 string) (models.AircraftInfo, bool, error)
	Set(ctx context.Context, icao24 string, info models.AircraftInfo) error
}

func normalize(icao24 string) string {
	return strings.ToLower(strings.TrimSpace(icao24))
}

// ---------------------------------------------------------------------------
// In-memory
// ---------------------------------------------------------------------------

// Memory is a process-local Store. Entries older than ttl are treated as
// misses and removed by Sweep; a zero ttl keeps entries forever.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry

	totalExpired atomic.Int64
}

type memoryEntry struct {
	info   models.AircraftInfo
	stored time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry, 256),
	}
}

func (m *Memory) expired(e memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.stored) >= m.ttl
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, icao24 string) (models.AircraftInfo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[normalize(icao24)]
	if !ok || m.expired(e) {
		return models.AircraftInfo{}, false, nil
	}
	return e.info, true, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, icao24 string, info models.AircraftInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[normalize(icao24)] = memoryEntry{info: info, stored: m.now()}
	return nil
}

// Len returns the number of stored airframes, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}

	m.mu.Lock()
	removed := 0
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			removed++
		}
	}
	m.mu.Unlock()

	m.totalExpired.Add(int64(removed))
	return removed
}

// TotalExpired returns the number of entries removed by Sweep so far.
func (m *Memory) TotalExpired() int64 {
	return m.totalExpired.Load()
}

// Run sweeps every ttl/12, clamped to [1m, 30m], until ctx is done.
func (m *Memory) Run(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}

	interval := m.ttl / 12
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > 30*time.Minute {
		interval = 30 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// KeyPrefix namespaces cache entries in Redis.
const KeyPrefix = "aircraft:"

// Redis is a Store backed by a Redis server; entries expire after ttl.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection with PING.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: "", DB: 0})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, icao24 string) (models.AircraftInfo, bool, error) {
	data, err := r.client.Get(ctx, KeyPrefix+normalize(icao24)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.AircraftInfo{}, false, nil
	}
	if err != nil {
		return models.AircraftInfo{}, false, fmt.Errorf("redis get: %w", err)
	}

	var info models.AircraftInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return models.AircraftInfo{}, false, fmt.Errorf("decoding cached aircraft: %w", err)
	}
	return info, true, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, icao24 string, info models.AircraftInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding aircraft: %w", err)
	}
	if err := r.client.Set(ctx, KeyPrefix+normalize(icao24), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
