package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// #region redis-config
// RedisConfig addresses the stream that receives audit records.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// DefaultStream is used when RedisConfig.Stream is empty.
const DefaultStream = "assistant:audit"

// #endregion redis-config

// #region redis-sink
// RedisSink appends records to a Redis Stream with XADD. Each entry holds
// the seq and the record as JSON.
type RedisSink struct {
	rdb    *redis.Client
	stream string
}

// NewRedisSink connects and pings the server.
func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisSink{rdb: rdb, stream: cfg.Stream}, nil
}

func (s *RedisSink) Append(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"seq":    rec.Seq,
			"hash":   rec.Hash,
			"record": string(raw),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd failed: %w", err)
	}
	return nil
}

func (s *RedisSink) LastHash(ctx context.Context) (int64, string, error) {
	msgs, err := s.rdb.XRevRangeN(ctx, s.stream, "+", "-", 1).Result()
	if err != nil {
		return 0, "", fmt.Errorf("xrevrange failed: %w", err)
	}
	if len(msgs) == 0 {
		return 0, "", nil
	}
	seq, err := strconv.ParseInt(fmt.Sprint(msgs[0].Values["seq"]), 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse seq of %s: %w", msgs[0].ID, err)
	}
	return seq, fmt.Sprint(msgs[0].Values["hash"]), nil
}

func (s *RedisSink) List(ctx context.Context, limit int) ([]Record, error) {
	var (
		msgs []redis.XMessage
		err  error
	)
	if limit > 0 {
		msgs, err = s.rdb.XRevRangeN(ctx, s.stream, "+", "-", int64(limit)).Result()
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	} else {
		msgs, err = s.rdb.XRange(ctx, s.stream, "-", "+").Result()
	}
	if err != nil {
		return nil, fmt.Errorf("read audit stream: %w", err)
	}

	out := make([]Record, 0, len(msgs))
	for _, m := range msgs {
		var rec Record
		raw, _ := m.Values["record"].(string)
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", m.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close closes the Redis connection pool.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}

// #endregion redis-sink
