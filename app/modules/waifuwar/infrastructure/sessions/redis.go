package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "waifuwar:guide:"
	// DefaultTTL expires guides a user walked away from.
	DefaultTTL = 24 * time.Hour
)

// RedisStore keeps guide steps in Redis, one key per user, so they are shared
// by every replica and survive restarts.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client. A non-positive ttl uses DefaultTTL.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: defaultPrefix, ttl: ttl}
}

func (s *RedisStore) key(userID sharedtypes.DiscordID) string {
	return s.prefix + string(userID)
}

func (s *RedisStore) Get(ctx context.Context, userID sharedtypes.DiscordID) (waifuwartypes.GuideStep, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return waifuwartypes.GuideStepNone, nil
	}
	if err != nil {
		return waifuwartypes.GuideStepNone, fmt.Errorf("get guide step: %w", err)
	}
	return parseStep(raw)
}

func (s *RedisStore) Set(ctx context.Context, userID sharedtypes.DiscordID, step waifuwartypes.GuideStep) error {
	if step == waifuwartypes.GuideStepNone {
		return s.Clear(ctx, userID)
	}
	if err := s.client.Set(ctx, s.key(userID), int(step), s.ttl).Err(); err != nil {
		return fmt.Errorf("set guide step: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID sharedtypes.DiscordID) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear guide step: %w", err)
	}
	return nil
}

// Snapshot scans every guide key under the store's prefix.
func (s *RedisStore) Snapshot(ctx context.Context) (map[sharedtypes.DiscordID]waifuwartypes.GuideStep, error) {
	out := make(map[sharedtypes.DiscordID]waifuwartypes.GuideStep)
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get guide step: %w", err)
		}
		step, err := parseStep(raw)
		if err != nil {
			return nil, err
		}
		out[sharedtypes.DiscordID(strings.TrimPrefix(key, s.prefix))] = step
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan guide steps: %w", err)
	}
	return out, nil
}

// Restore writes steps in one pipeline.
func (s *RedisStore) Restore(ctx context.Context, steps map[sharedtypes.DiscordID]waifuwartypes.GuideStep) error {
	if len(steps) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for userID, step := range steps {
			if step == waifuwartypes.GuideStepNone {
				continue
			}
			p.Set(ctx, s.key(userID), int(step), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore guide steps: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parseStep(raw string) (waifuwartypes.GuideStep, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return waifuwartypes.GuideStepNone, fmt.Errorf("corrupt guide step %q: %w", raw, err)
	}
	return waifuwartypes.GuideStep(n), nil
}
