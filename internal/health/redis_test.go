package health

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	checker := NewRedisChecker(client)
	assert.Equal(t, "redis", checker.Name())
	require.NoError(t, checker.Check(context.Background()))
	require.NoError(t, checker.Check(context.Background()), "a live server stays healthy across checks")

	details := checker.Details()
	assert.GreaterOrEqual(t, details["total_conns"], uint32(1))
	assert.Contains(t, details, "hits")

	mr.Close()
	err := checker.Check(context.Background())
	require.Error(t, err)
	assert.True(t, IsDegraded(err))
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	checker := NewDirChecker("crops", dir)
	assert.Equal(t, "crops", checker.Name())

	require.NoError(t, checker.Check(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file should be removed")
}

func TestDirChecker_Missing(t *testing.T) {
	checker := NewDirChecker("crops", filepath.Join(t.TempDir(), "missing"))

	err := checker.Check(context.Background())
	require.Error(t, err)
	assert.True(t, IsDegraded(err))
	assert.Contains(t, err.Error(), "not writable")
}

func TestMemoryChecker(t *testing.T) {
	tests := []struct {
		name     string
		limit    uint64
		heap     uint64
		degraded bool
	}{
		{name: "under limit", limit: 512 << 20, heap: 100 << 20},
		{name: "over limit", limit: 512 << 20, heap: 600 << 20, degraded: true},
		{name: "disabled", limit: 0, heap: 4 << 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewMemoryChecker(tt.limit)
			checker.read = func(ms *runtime.MemStats) {
				ms.HeapAlloc = tt.heap
				ms.Sys = tt.heap * 2
				ms.NumGC = 7
			}

			err := checker.Check(context.Background())
			if tt.degraded {
				require.Error(t, err)
				assert.True(t, IsDegraded(err))
				assert.Contains(t, err.Error(), "exceeds limit")
			} else {
				assert.NoError(t, err)
			}

			details := checker.Details()
			assert.Equal(t, tt.heap>>20, details["heap_alloc_mb"])
			assert.Equal(t, uint32(7), details["num_gc"])
			assert.Contains(t, details, "goroutines")
		})
	}
}
