package cache

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory(t *testing.T) {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	memory := NewMemory(t.Context(), 1*time.Second)
	err := memory.Set(t.Context(), "k1", "v1", 0*time.Second)
	assert.NoError(t, err)

	// should be expired as TTL is 0 second
	_, err = memory.Get(t.Context(), "k1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = memory.Set(t.Context(), "k2", 42.0)
	assert.NoError(t, err)

	v, err := memory.Get(t.Context(), "k2")
	assert.NoError(t, err)
	assert.Equal(t, 42.0, v)
}

func TestMemoryGetOrSet(t *testing.T) {
	memory := NewMemory(t.Context(), 1*time.Minute)

	calls := 0
	valueFunc := func(ctx context.Context) (any, error) {
		calls++
		return 500.0, nil
	}

	v, err := memory.GetOrSet(t.Context(), "total", valueFunc)
	assert.NoError(t, err)
	assert.Equal(t, 500.0, v)

	// second call within the TTL never invokes the value func
	v, err = memory.GetOrSet(t.Context(), "total", valueFunc)
	assert.NoError(t, err)
	assert.Equal(t, 500.0, v)
	assert.Equal(t, 1, calls)

	_, err = memory.GetOrSet(t.Context(), "failing", func(ctx context.Context) (any, error) {
		return nil, fmt.Errorf("expected error")
	})
	assert.Error(t, err)

	// failed computations are not cached
	_, err = memory.Get(t.Context(), "failing")
	assert.ErrorIs(t, err, ErrNotFound)
}
