// Package cache provides a TTL memory cache used to memoize estimator
// totals so identical events do not hit the model twice.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/superdango/waste-carbon-predictor/internal/must"
)

var ErrNotFound = errors.New("entry not found")

type entry struct {
	expiresAt time.Time
	v         any
}

func (e *entry) isExpired() bool {
	return time.Since(e.expiresAt) > 0
}

type Memory struct {
	m          *sync.Map
	defaultTTL time.Duration
}

func NewMemory(ctx context.Context, defaultTTL time.Duration) *Memory {
	cache := &Memory{
		m:          new(sync.Map),
		defaultTTL: defaultTTL,
	}

	go cache.expirerer(ctx)

	return cache
}

func (m *Memory) Set(ctx context.Context, k string, v any, ttl ...time.Duration) error {
	defaultTTL := m.defaultTTL
	if len(ttl) > 0 {
		defaultTTL = ttl[0]
	}

	m.m.Store(k, &entry{
		expiresAt: time.Now().Add(defaultTTL),
		v:         v,
	})

	slog.Debug("new cache entry", "key", k)
	return nil
}

func (m *Memory) GetOrSet(ctx context.Context, key string, valueFunc func(ctx context.Context) (any, error), ttl ...time.Duration) (v any, err error) {
	v, err = m.Get(ctx, key)
	if err != nil {
		if err == ErrNotFound {
			v, err = valueFunc(ctx)
			if err != nil {
				return nil, err
			}

			err = m.Set(ctx, key, v, ttl...)
			if err != nil {
				return nil, err
			}

			return v, nil
		}
		return nil, err
	}

	return v, nil
}

func (m *Memory) Get(ctx context.Context, k string) (v any, err error) {
	v, found := m.m.Load(k)
	if !found {
		return nil, ErrNotFound
	}

	entry, ok := v.(*entry)
	must.Assert(ok, "loaded value is not an entry")

	if entry.isExpired() {
		slog.Debug("cache expired", "key", k)
		m.m.Delete(k)
		return nil, ErrNotFound
	}

	return entry.v, nil
}

func (m *Memory) expirerer(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.m.Range(func(k, v any) bool {
			entry, ok := v.(*entry)
			must.Assert(ok, "loaded value is not an entry")

			if entry.isExpired() {
				slog.Debug("cache expired", "key", k)
				m.m.Delete(k)
			}

			return true
		})
	}
}
