package cache

import (
	"context"
	"encoding/json"
)

// GetOrSetJSON adapts Manager.GetOrSet to a typed producer. Values are stored
// JSON-encoded; an entry that no longer decodes is dropped and refetched.
func GetOrSetJSON[T any](ctx context.Context, m *Manager, key, typ string, useCache bool, producer func(context.Context) (T, error)) (T, error) {
	var (
		zero     T
		produced *T
	)
	encode := func(ctx context.Context) ([]byte, error) {
		v, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		produced = &v
		return json.Marshal(v)
	}

	b, err := m.GetOrSet(ctx, key, typ, useCache, encode)
	if err != nil {
		return zero, err
	}
	if produced != nil {
		return *produced, nil
	}

	var v T
	if err = json.Unmarshal(b, &v); err == nil {
		return v, nil
	}
	m.log.Warn().Err(err).Str("key", key).Msg("cached value does not decode, refetching")

	if err := m.store.Delete(ctx, key); err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
	b, err = m.GetOrSet(ctx, key, typ, useCache, encode)
	if err != nil {
		return zero, err
	}
	if produced != nil {
		return *produced, nil
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, err
	}
	return v, nil
}

// StoreProcessedJSON encodes v and stores it as the processed result of key
func StoreProcessedJSON[T any](ctx context.Context, m *Manager, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.StoreProcessedData(ctx, key, b)
}

// CachedJSON decodes the processed result of key
func CachedJSON[T any](ctx context.Context, m *Manager, key string) (T, bool) {
	var v T
	b, ok := m.GetCachedData(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("processed value does not decode")
		return v, false
	}
	return v, true
}
