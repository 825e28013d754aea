package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultRedisPrefix    = "ALERTSUA-"
	DefaultStaleRetention = time.Hour

	entryNS = "k:"
	tagNS   = "t:"
)

// RedisCache implements TTLCache on a shared Redis (or Valkey) server.
// Entries keep their logical expiry in the payload; Redis drops them
// physically once the stale retention window has passed as well.
type RedisCache struct {
	rdb            redis.UniversalClient
	prefix         string
	staleRetention time.Duration
	now            func() time.Time
	log            zerolog.Logger
}

// NewRedisCache wraps an existing client
func NewRedisCache(rdb redis.UniversalClient, opts ...Option) *RedisCache {
	o := buildOptions(opts)
	return &RedisCache{
		rdb:            rdb,
		prefix:         o.prefix,
		staleRetention: o.staleRetention,
		now:            o.now,
		log:            o.log,
	}
}

// Ping checks connectivity
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) entryKey(key string) string { return c.prefix + entryNS + key }
func (c *RedisCache) tagKey(tag string) string   { return c.prefix + tagNS + tag }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok := c.read(ctx, key)
	if !ok || e.Expired(c.now()) {
		return nil, false
	}
	return e.Value, true
}

func (c *RedisCache) GetStale(ctx context.Context, key string) ([]byte, bool) {
	e, ok := c.read(ctx, key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	e, err := newEntry(key, value, ttl, c.now(), tags)
	if err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error marshaling entry: %w", err)
	}

	var expiration time.Duration
	if ttl > 0 {
		expiration = ttl + c.staleRetention
	}

	old, hadOld := c.read(ctx, key)
	tagTTLs := c.tagTTLs(ctx, e.Tags)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if hadOld {
			for _, t := range old.Tags {
				pipe.SRem(ctx, c.tagKey(t), key)
			}
		}
		pipe.Set(ctx, c.entryKey(key), data, expiration)
		for _, t := range e.Tags {
			tk := c.tagKey(t)
			pipe.SAdd(ctx, tk, key)
			// a tag set lives as long as its longest-lived member
			switch cur := tagTTLs[t]; {
			case expiration == 0:
				pipe.Persist(ctx, tk)
			case cur == persistentTTL:
			case cur < expiration:
				pipe.PExpire(ctx, tk, expiration)
			}
		}
		return nil
	})
	return err
}

// persistentTTL is what PTTL reports for a key without expiry
const persistentTTL = time.Duration(-1)

// tagTTLs returns the remaining lifetime of each tag set. Missing sets report
// a negative value other than persistentTTL.
func (c *RedisCache) tagTTLs(ctx context.Context, tags []string) map[string]time.Duration {
	if len(tags) == 0 {
		return nil
	}
	cmds := make(map[string]*redis.DurationCmd, len(tags))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range tags {
			cmds[t] = pipe.PTTL(ctx, c.tagKey(t))
		}
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("cache: redis tag ttl lookup failed")
	}
	out := make(map[string]time.Duration, len(tags))
	for t, cmd := range cmds {
		d, err := cmd.Result()
		if err != nil {
			d = -2
		}
		out[t] = d
	}
	return out
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	old, hadOld := c.read(ctx, key)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.entryKey(key))
		if hadOld {
			for _, t := range old.Tags {
				pipe.SRem(ctx, c.tagKey(t), key)
			}
		}
		return nil
	})
	return err
}

func (c *RedisCache) Has(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

// Clear deletes every key under the prefix, tag sets included
func (c *RedisCache) Clear(ctx context.Context) error {
	keys, err := c.scan(ctx, c.prefix+"*")
	if err != nil {
		return fmt.Errorf("error fetching keys: %w", err)
	}
	return c.del(ctx, keys)
}

func (c *RedisCache) Keys(ctx context.Context) []string {
	raw, err := c.scan(ctx, c.prefix+entryNS+"*")
	if err != nil {
		c.log.Warn().Err(err).Msg("cache: redis scan failed")
		return nil
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, c.prefix+entryNS))
	}
	sort.Strings(keys)
	return keys
}

// CleanupExpired deletes logically expired entries and drops tag set
// members whose entries Redis has already evicted
func (c *RedisCache) CleanupExpired(ctx context.Context) {
	now := c.now()
	for _, key := range c.Keys(ctx) {
		e, ok := c.read(ctx, key)
		if ok && e.Expired(now) {
			_ = c.Delete(ctx, key)
		}
	}

	tagKeys, err := c.scan(ctx, c.prefix+tagNS+"*")
	if err != nil {
		c.log.Warn().Err(err).Msg("cache: redis scan failed")
		return
	}
	for _, tk := range tagKeys {
		if err := c.pruneTagSet(ctx, tk); err != nil {
			c.log.Warn().Err(err).Str("tag", strings.TrimPrefix(tk, c.prefix+tagNS)).Msg("cache: tag prune failed")
		}
	}
}

func (c *RedisCache) pruneTagSet(ctx context.Context, tk string) error {
	members, err := c.rdb.SMembers(ctx, tk).Result()
	if err != nil || len(members) == 0 {
		return err
	}
	exists := make([]*redis.IntCmd, len(members))
	if _, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			exists[i] = pipe.Exists(ctx, c.entryKey(m))
		}
		return nil
	}); err != nil {
		return err
	}
	var dead []any
	for i, m := range members {
		if exists[i].Val() == 0 {
			dead = append(dead, m)
		}
	}
	if len(dead) == 0 {
		return nil
	}
	return c.rdb.SRem(ctx, tk, dead...).Err()
}

func (c *RedisCache) InvalidateTags(ctx context.Context, tags ...string) error {
	var errs []error
	for _, t := range tags {
		members, err := c.rdb.SMembers(ctx, c.tagKey(t)).Result()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		keys := make([]string, 0, len(members)+1)
		for _, m := range members {
			keys = append(keys, c.entryKey(m))
			if e, ok := c.read(ctx, m); ok {
				for _, other := range e.Tags {
					if other != t {
						if err := c.rdb.SRem(ctx, c.tagKey(other), m).Err(); err != nil {
							errs = append(errs, err)
						}
					}
				}
			}
		}
		keys = append(keys, c.tagKey(t))
		if err := c.del(ctx, keys); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *RedisCache) read(ctx context.Context, key string) (*Entry, bool) {
	data, err := c.rdb.Get(ctx, c.entryKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache: redis get failed")
		}
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache: corrupt entry")
		return nil, false
	}
	return &e, true
}

func (c *RedisCache) scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (c *RedisCache) del(ctx context.Context, keys []string) error {
	const batch = 500
	for len(keys) > 0 {
		n := min(batch, len(keys))
		if err := c.rdb.Del(ctx, keys[:n]...).Err(); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}

var (
	_ TTLCache       = (*RedisCache)(nil)
	_ TagInvalidator = (*RedisCache)(nil)
)
