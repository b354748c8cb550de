// Package sink forwards published DetectionSets to external systems.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/facelens/internal/config"
	"github.com/zsiec/facelens/internal/detection"
	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/metrics"
)

const sinkName = "redis"

// writeTimeout bounds one SET+PUBLISH round trip.
const writeTimeout = 2 * time.Second

// NewRedisClient builds a client from the redis section of the config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addresses[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

// Redis stores the latest DetectionSet as JSON under <prefix>latest and
// publishes every set on a channel.
//
// Publish hands the set to a single-slot mailbox and returns immediately;
// Run drains it. A set still waiting when a newer one arrives is replaced,
// so a slow Redis costs freshness, never pipeline latency.
type Redis struct {
	client  *redis.Client
	key     string
	channel string
	ttl     time.Duration
	logger  *logger.SampledLogger

	mailbox chan *detection.DetectionSet

	written    atomic.Uint64
	failed     atomic.Uint64
	superseded atomic.Uint64
}

// Stats counts sink outcomes.
type Stats struct {
	Written    uint64 `json:"written"`
	Failed     uint64 `json:"failed"`
	Superseded uint64 `json:"superseded"`
}

// NewRedis creates a sink. Call Run to start writing.
func NewRedis(client *redis.Client, cfg config.SinkConfig, log logger.Logger) *Redis {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Redis{
		client:  client,
		key:     cfg.KeyPrefix + "latest",
		channel: cfg.Channel,
		ttl:     cfg.TTL,
		logger:  logger.NewPipelineLogger(log.WithField("component", "sink")),
		mailbox: make(chan *detection.DetectionSet, 1),
	}
}

// Client returns the underlying Redis client.
func (r *Redis) Client() *redis.Client { return r.client }

// Key returns the Redis key holding the latest set.
func (r *Redis) Key() string { return r.key }

// Publish implements detection.Publisher. It never blocks.
func (r *Redis) Publish(set *detection.DetectionSet) {
	for {
		select {
		case r.mailbox <- set:
			return
		default:
		}
		select {
		case <-r.mailbox:
			r.superseded.Add(1)
			metrics.IncrementSinkPublish(sinkName, "superseded")
		default:
		}
	}
}

// Run writes queued sets until ctx is done.
func (r *Redis) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case set := <-r.mailbox:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := r.Write(wctx, set)
			cancel()
			if err != nil {
				r.failed.Add(1)
				metrics.IncrementSinkPublish(sinkName, "error")
				r.logger.WarnWithCategory(logger.CategorySink, "Failed to write detection set", map[string]interface{}{
					"error":     err.Error(),
					"frame_seq": set.FrameSeq,
				})
				continue
			}
			r.written.Add(1)
			metrics.IncrementSinkPublish(sinkName, "ok")
		}
	}
}

// Write stores and publishes one set synchronously.
func (r *Redis) Write(ctx context.Context, set *detection.DetectionSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal detection set: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key, data, r.ttl)
	if r.channel != "" {
		pipe.Publish(ctx, r.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store detection set: %w", err)
	}
	return nil
}

// Latest reads back the stored set. It returns nil, nil when none is stored.
func (r *Redis) Latest(ctx context.Context) (*detection.DetectionSet, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read detection set: %w", err)
	}
	var set detection.DetectionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detection set: %w", err)
	}
	return &set, nil
}

// Stats returns a snapshot of sink counters.
func (r *Redis) Stats() Stats {
	return Stats{
		Written:    r.written.Load(),
		Failed:     r.failed.Load(),
		Superseded: r.superseded.Load(),
	}
}
