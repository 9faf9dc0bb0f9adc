package listing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorServesFromCache(t *testing.T) {
	var calls atomic.Int32
	source := func(ctx context.Context, req PageRequest) ([]string, int, error) {
		calls.Add(1)
		return []string{"a", "b"}, 2, nil
	}
	e := NewExecutor("things", source, 3*time.Second, 20*time.Second, nil)

	req := PageRequest{Page: 1, Size: 15}
	first, err := e.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Total)

	second, err := e.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "identical warm request must not recompute")
}

func TestExecutorDistinctRequestsMiss(t *testing.T) {
	var calls atomic.Int32
	source := func(ctx context.Context, req PageRequest) ([]string, int, error) {
		calls.Add(1)
		return nil, 0, nil
	}
	e := NewExecutor("things", source, 3*time.Second, 20*time.Second, nil)

	_, err := e.Execute(context.Background(), PageRequest{Page: 1, Size: 15})
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), PageRequest{Page: 2, Size: 15})
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), PageRequest{Page: 1, Size: 15, Search: "acme"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecutorMasksSourceError(t *testing.T) {
	boom := errors.New("connection refused")
	source := func(ctx context.Context, req PageRequest) ([]string, int, error) {
		return nil, 0, boom
	}
	e := NewExecutor("things", source, 3*time.Second, 20*time.Second, nil)

	_, err := e.Execute(context.Background(), PageRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)
	assert.NotContains(t, err.Error(), "connection refused")
}

func TestExecutorErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	source := func(ctx context.Context, req PageRequest) ([]string, int, error) {
		if calls.Add(1) == 1 {
			return nil, 0, errors.New("transient")
		}
		return []string{"ok"}, 1, nil
	}
	e := NewExecutor("things", source, 3*time.Second, 20*time.Second, nil)

	_, err := e.Execute(context.Background(), PageRequest{})
	require.ErrorIs(t, err, ErrInternal)

	page, err := e.Execute(context.Background(), PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestExecutorNormalizesBeforeKeying(t *testing.T) {
	var calls atomic.Int32
	source := func(ctx context.Context, req PageRequest) ([]string, int, error) {
		calls.Add(1)
		return nil, 0, nil
	}
	e := NewExecutor("things", source, 3*time.Second, 20*time.Second, nil)

	_, err := e.Execute(context.Background(), PageRequest{Page: 0, Size: 0})
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), PageRequest{Page: 1, Size: DefaultPageSize})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "equivalent requests share one cache entry")
}
