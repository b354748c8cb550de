package health

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisChecker checks Redis connectivity.
type RedisChecker struct {
	client *redis.Client
	name   string
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{
		client: client,
		name:   "redis",
	}
}

// Name returns the name of the checker.
func (r *RedisChecker) Name() string {
	return r.name
}

// Check pings Redis. The sink is best effort, so an unreachable Redis
// degrades the service rather than taking it down.
func (r *RedisChecker) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return Degraded(fmt.Errorf("redis ping failed: %w", err))
	}
	return nil
}

// Details reports connection pool usage.
func (r *RedisChecker) Details() map[string]interface{} {
	ps := r.client.PoolStats()
	return map[string]interface{}{
		"total_conns": ps.TotalConns,
		"idle_conns":  ps.IdleConns,
		"hits":        ps.Hits,
		"misses":      ps.Misses,
		"timeouts":    ps.Timeouts,
	}
}

// DirChecker checks that a directory is writable, e.g. the crop store.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker named name for path.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (d *DirChecker) Name() string {
	return d.name
}

// Check creates and removes a probe file.
func (d *DirChecker) Check(ctx context.Context) error {
	f, err := os.CreateTemp(d.path, ".health-*")
	if err != nil {
		return Degraded(fmt.Errorf("%s is not writable: %w", d.path, err))
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// MemoryChecker compares the Go heap against a limit.
type MemoryChecker struct {
	limit uint64 // bytes, 0 disables the check
	read  func(*runtime.MemStats)

	mu   sync.Mutex
	last runtime.MemStats
}

// NewMemoryChecker creates a new memory checker.
func NewMemoryChecker(limitBytes uint64) *MemoryChecker {
	return &MemoryChecker{
		limit: limitBytes,
		read:  runtime.ReadMemStats,
	}
}

// Name returns the name of the checker.
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check reports degraded when the live heap exceeds the limit.
func (m *MemoryChecker) Check(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read(&m.last)
	if m.limit > 0 && m.last.HeapAlloc > m.limit {
		return Degraded(fmt.Errorf("heap %d MB exceeds limit %d MB", m.last.HeapAlloc>>20, m.limit>>20))
	}
	return nil
}

// Details reports heap figures from the last Check.
func (m *MemoryChecker) Details() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]interface{}{
		"heap_alloc_mb": m.last.HeapAlloc >> 20,
		"sys_mb":        m.last.Sys >> 20,
		"num_gc":        m.last.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}
}
