package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key, e.g. "autovoice".
	Prefix string

	// Capacity bounds the entry list. Counters are unbounded.
	Capacity int

	// DialTimeout bounds the initial ping.
	DialTimeout time.Duration

	Logger *slog.Logger
}

// DefaultRedisConfig returns defaults for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		Prefix:      "autovoice",
		Capacity:    1000,
		DialTimeout: 5 * time.Second,
		Logger:      slog.Default(),
	}
}

// RedisStore keeps entries in a capped Redis list, newest at the head,
// with counters in hashes.
type RedisStore struct {
	client   redis.UniversalClient
	prefix   string
	capacity int
	logger   *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("history: redis ping %s: %w", cfg.Addr, err)
	}

	store := NewRedisStoreFromClient(client, cfg.Prefix, cfg.Capacity)
	store.logger = cfg.Logger.With("component", "history.redis")
	store.logger.Info("connected to redis", "addr", cfg.Addr, "db", cfg.DB)
	return store, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, prefix string, capacity int) *RedisStore {
	if prefix == "" {
		prefix = "autovoice"
	}
	if capacity < 1 {
		capacity = 1000
	}
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		capacity: capacity,
		logger:   slog.Default().With("component", "history.redis"),
	}
}

func (r *RedisStore) key(name string) string {
	return r.prefix + ":history:" + name
}

// Add pushes the entry and bumps the counters in one transaction.
func (r *RedisStore) Add(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return ErrNoID
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("history: encode entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key("entries"), data)
		pipe.LTrim(ctx, r.key("entries"), 0, int64(r.capacity-1))
		pipe.Incr(ctx, r.key("total"))
		pipe.HIncrBy(ctx, r.key("outcomes"), e.Outcome, 1)
		if e.Command != "" {
			pipe.HIncrBy(ctx, r.key("commands"), e.Command, 1)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to add entry", "id", e.ID, "error", err)
		return fmt.Errorf("history: redis add: %w", err)
	}
	return nil
}

// Recent reads the list head and filters it client-side.
func (r *RedisStore) Recent(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.limit()
	stop := int64(limit - 1)
	if q.Command != "" || q.Outcome != "" {
		stop = -1
	}

	raw, err := r.client.LRange(ctx, r.key("entries"), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("history: redis range: %w", err)
	}

	out := make([]Entry, 0, min(limit, len(raw)))
	for _, item := range raw {
		var e Entry
		if err := json.UnmarshalFromString(item, &e); err != nil {
			r.logger.Warn("skipping undecodable entry", "error", err)
			continue
		}
		if !q.match(e) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Stats reads the counters.
func (r *RedisStore) Stats(ctx context.Context) (Stats, error) {
	pipe := r.client.Pipeline()
	total := pipe.Get(ctx, r.key("total"))
	commands := pipe.HGetAll(ctx, r.key("commands"))
	outcomes := pipe.HGetAll(ctx, r.key("outcomes"))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("history: redis stats: %w", err)
	}

	stats := newStats()
	if n, err := total.Int(); err == nil {
		stats.Total = n
	}
	stats.ByCommand = parseCounts(commands.Val())
	stats.ByOutcome = parseCounts(outcomes.Val())
	return stats, nil
}

func parseCounts(h map[string]string) map[string]int {
	out := make(map[string]int, len(h))
	for k, v := range h {
		if n, err := strconv.Atoi(v); err == nil {
			out[k] = n
		}
	}
	return out
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Verify RedisStore implements Store at compile time.
var _ Store = (*RedisStore)(nil)
