package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Request types. They key the TTL policy and tag the stored entries.
const (
	TypeActiveAlerts                 = "active_alerts"
	TypeAlertsHistory                = "alerts_history"
	TypeAirRaidAlertStatus           = "air_raid_alert_status"
	TypeAirRaidAlertStatusesByOblast = "air_raid_alert_statuses_by_oblast"
	TypeAirRaidAlertStatuses         = "air_raid_alert_statuses"
	TypeLocationResolver             = "location_resolver"
)

const (
	// DefaultTTL applies to request types missing from the policy
	DefaultTTL = 300 * time.Second

	// SideEntryTTL is the lifetime of last-modified tokens and processed data
	SideEntryTTL = 24 * time.Hour
)

// DefaultTTLPolicy returns a fresh copy of the built-in TTL table
func DefaultTTLPolicy() map[string]time.Duration {
	return map[string]time.Duration{
		TypeActiveAlerts:                 30 * time.Second,
		TypeAlertsHistory:                300 * time.Second,
		TypeAirRaidAlertStatus:           15 * time.Second,
		TypeAirRaidAlertStatusesByOblast: 15 * time.Second,
		TypeAirRaidAlertStatuses:         15 * time.Second,
		TypeLocationResolver:             24 * time.Hour,
	}
}

// Producer fetches a fresh value on a cache miss
type Producer func(ctx context.Context) ([]byte, error)

// Manager adds request-type policy on top of a TTLCache
type Manager struct {
	store TTLCache

	mu          sync.RWMutex
	ttls        map[string]time.Duration
	defaultTTL  time.Duration
	lastRefresh map[string]time.Time

	minRefresh   time.Duration
	staleIfError func(error) bool

	sf      singleflight.Group
	now     func() time.Time
	log     zerolog.Logger
	metrics *Metrics
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithTTL overrides the TTL of one request type
func WithTTL(typ string, d time.Duration) ManagerOption {
	return func(m *Manager) { m.ttls[typ] = d }
}

// WithDefaultTTL sets the TTL for request types missing from the policy
func WithDefaultTTL(d time.Duration) ManagerOption {
	return func(m *Manager) { m.defaultTTL = d }
}

// WithMinRefreshInterval limits how often one key is refreshed. Inside the
// window an expired entry is served stale if present.
func WithMinRefreshInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.minRefresh = d }
}

// WithStaleIfError serves an expired entry when the producer fails with an
// error matching pred
func WithStaleIfError(pred func(error) bool) ManagerOption {
	return func(m *Manager) { m.staleIfError = pred }
}

// WithManagerClock overrides the time source used for refresh bookkeeping
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithManagerLogger sets the manager logger
func WithManagerLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// WithMetrics records lookups and failures
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager wraps store
func NewManager(store TTLCache, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:       store,
		ttls:        DefaultTTLPolicy(),
		defaultTTL:  DefaultTTL,
		lastRefresh: make(map[string]time.Time),
		now:         time.Now,
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Store returns the underlying TTLCache
func (m *Manager) Store() TTLCache {
	return m.store
}

// TTL returns the policy TTL for typ
func (m *Manager) TTL(typ string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.ttls[typ]; ok {
		return d
	}
	return m.defaultTTL
}

// SetTTL changes the TTL of typ for subsequent stores. Entries already
// stored keep their expiry.
func (m *Manager) SetTTL(typ string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[typ] = d
}

// LastRefresh reports when key was last stored by GetOrSet. Refreshes are
// tracked only while a minimum refresh interval is configured, and only for
// the length of that interval.
func (m *Manager) LastRefresh(key string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.lastRefresh[key]
	return t, ok
}

// GetOrSet returns the cached value for key or stores what producer returns.
//
// With useCache false the store is neither read nor written. Concurrent
// misses on the same key share one producer call.
func (m *Manager) GetOrSet(ctx context.Context, key, typ string, useCache bool, producer Producer) ([]byte, error) {
	if !useCache {
		m.metrics.lookup(typ, ResultBypass)
		return producer(ctx)
	}

	if v, ok := m.store.Get(ctx, key); ok {
		m.metrics.lookup(typ, ResultHit)
		m.log.Debug().Str("key", key).Str("type", typ).Msg("cache hit")
		return v, nil
	}

	if m.refreshThrottled(key) {
		if v, ok := m.store.GetStale(ctx, key); ok {
			m.metrics.lookup(typ, ResultStale)
			m.log.Debug().Str("key", key).Str("type", typ).Msg("refresh throttled, serving stale")
			return v, nil
		}
	}

	m.metrics.lookup(typ, ResultMiss)
	m.log.Debug().Str("key", key).Str("type", typ).Msg("cache miss")

	// the shared refresh is not tied to any one caller's cancellation
	shared := context.WithoutCancel(ctx)
	ch := m.sf.DoChan(key, func() (any, error) {
		return m.refresh(shared, key, typ, producer)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (m *Manager) refresh(ctx context.Context, key, typ string, producer Producer) ([]byte, error) {
	v, err := producer(ctx)
	if err != nil {
		m.metrics.refreshError(typ)
		if m.staleIfError != nil && m.staleIfError(err) {
			if stale, ok := m.store.GetStale(ctx, key); ok {
				m.metrics.lookup(typ, ResultStale)
				m.log.Warn().Err(err).Str("key", key).Msg("refresh failed, serving stale")
				return stale, nil
			}
		}
		return nil, err
	}

	if err := m.store.Set(ctx, key, v, m.TTL(typ), typ); err != nil {
		m.metrics.storeFailure(typ)
		m.log.Warn().Err(err).Str("key", key).Msg("cache store failed")
	}

	m.recordRefresh(key)
	return v, nil
}

func (m *Manager) recordRefresh(key string) {
	if m.minRefresh <= 0 {
		return
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, at := range m.lastRefresh {
		if now.Sub(at) >= m.minRefresh {
			delete(m.lastRefresh, k)
		}
	}
	m.lastRefresh[key] = now
}

func (m *Manager) refreshThrottled(key string) bool {
	if m.minRefresh <= 0 {
		return false
	}
	last, ok := m.LastRefresh(key)
	return ok && m.now().Sub(last) < m.minRefresh
}

// InvalidateTags drops every entry carrying any of tags. Stores without tag
// support make this a no-op.
func (m *Manager) InvalidateTags(ctx context.Context, tags ...string) error {
	ti, ok := m.store.(TagInvalidator)
	if !ok {
		m.log.Debug().Strs("tags", tags).Msg("store has no tag support")
		return nil
	}
	m.metrics.invalidation()
	return ti.InvalidateTags(ctx, tags...)
}

// Clear empties the store and the refresh bookkeeping
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	clear(m.lastRefresh)
	m.mu.Unlock()
	return m.store.Clear(ctx)
}

// SetLastModified stores the revalidation token for key
func (m *Manager) SetLastModified(ctx context.Context, key, token string) error {
	return m.store.Set(ctx, LastModifiedKey(key), []byte(token), SideEntryTTL, key)
}

// GetLastModified returns the revalidation token for key
func (m *Manager) GetLastModified(ctx context.Context, key string) (string, bool) {
	v, ok := m.store.Get(ctx, LastModifiedKey(key))
	if !ok || len(v) == 0 {
		return "", false
	}
	return string(v), true
}

// StoreProcessedData keeps the processed result for key so a not-modified
// response can be served without re-parsing
func (m *Manager) StoreProcessedData(ctx context.Context, key string, data []byte) error {
	if data == nil {
		return errors.New("cache: nil processed data")
	}
	return m.store.Set(ctx, ProcessedKey(key), data, SideEntryTTL, key)
}

// GetCachedData returns the processed result stored for key
func (m *Manager) GetCachedData(ctx context.Context, key string) ([]byte, bool) {
	return m.store.Get(ctx, ProcessedKey(key))
}
