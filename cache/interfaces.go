// Package cache provides pluggable TTL stores for API responses and a Manager
// that layers per-request-type TTL policy, tag invalidation and conditional
// revalidation bookkeeping on top of them.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidTTL is returned by Set for a negative TTL
	ErrInvalidTTL = errors.New("cache: negative ttl")
)

// Entry represents a cached value with its metadata
type Entry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"` // zero means the entry never expires
	Tags      []string  `json:"tags,omitempty"`
}

func newEntry(key string, value []byte, ttl time.Duration, now time.Time, tags []string) (*Entry, error) {
	if ttl < 0 {
		return nil, ErrInvalidTTL
	}
	e := &Entry{
		Key:   key,
		Value: append([]byte(nil), value...),
		Tags:  dedupe(tags),
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e, nil
}

// Expired reports whether the entry is logically absent at now
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// HasTag reports whether the entry carries any of tags
func (e *Entry) HasTag(tags ...string) bool {
	for _, t := range e.Tags {
		for _, want := range tags {
			if t == want {
				return true
			}
		}
	}
	return false
}

// TTLCache is the storage contract every backend implements.
//
// Storage failures never surface from the read side: Get, GetStale, Has and
// Keys report a miss instead, and CleanupExpired is silent.
type TTLCache interface {
	// Get returns the value only while the entry has not expired
	Get(ctx context.Context, key string) ([]byte, bool)

	// GetStale returns the value regardless of expiry
	GetStale(ctx context.Context, key string) ([]byte, bool)

	// Set replaces any entry under key. A ttl of 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error

	// Delete removes key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Has is equivalent to a successful Get
	Has(ctx context.Context, key string) bool

	// Clear removes every entry this cache created and nothing else
	Clear(ctx context.Context) error

	// Keys lists persisted keys, expired ones included
	Keys(ctx context.Context) []string

	// CleanupExpired purges entries whose expiry has passed
	CleanupExpired(ctx context.Context)
}

// TagInvalidator is implemented by stores that can drop entries by tag
type TagInvalidator interface {
	InvalidateTags(ctx context.Context, tags ...string) error
}

type options struct {
	now            func() time.Time
	log            zerolog.Logger
	prefix         string
	staleRetention time.Duration
}

// Option configures a store
type Option func(*options)

// WithClock overrides the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used to report degraded storage operations
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithPrefix sets the key namespace of a shared store (redis only)
func WithPrefix(p string) Option {
	return func(o *options) { o.prefix = p }
}

// WithStaleRetention sets how long an expired entry stays readable through
// GetStale before the backing store drops it (redis only)
func WithStaleRetention(d time.Duration) Option {
	return func(o *options) { o.staleRetention = d }
}

func buildOptions(opts []Option) options {
	o := options{
		now:            time.Now,
		log:            zerolog.Nop(),
		prefix:         DefaultRedisPrefix,
		staleRetention: DefaultStaleRetention,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
