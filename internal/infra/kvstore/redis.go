package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fastprodman/buzzledger/internal/config"
)

var _ Store = (*RedisStore)(nil)

// Expiry is only set when TTL reports -1 (key exists without expiry).
var (
	hincrByScript = redis.NewScript(`
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if redis.call('TTL', KEYS[1]) == -1 then
	redis.call('EXPIREAT', KEYS[1], ARGV[3])
end
return v
`)

	// All fields are checked first so a bad field leaves the hash untouched.
	hincrByManyScript = redis.NewScript(`
for i = 2, #ARGV, 2 do
	local cur = redis.call('HGET', KEYS[1], ARGV[i])
	if cur and not string.match(cur, '^%-?%d+$') then
		return redis.error_reply('ERR hash value is not an integer: ' .. ARGV[i])
	end
end
local out = {}
for i = 2, #ARGV, 2 do
	out[#out + 1] = redis.call('HINCRBY', KEYS[1], ARGV[i], ARGV[i + 1])
end
if redis.call('TTL', KEYS[1]) == -1 then
	redis.call('EXPIREAT', KEYS[1], ARGV[1])
end
return out
`)

	hsetNXScript = redis.NewScript(`
local ok = redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2])
if redis.call('TTL', KEYS[1]) == -1 then
	redis.call('EXPIREAT', KEYS[1], ARGV[3])
end
return ok
`)
)

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, incr int64, expireAt time.Time) (int64, error) {
	v, err := hincrByScript.Run(ctx, s.client, []string{key}, field, incr, expireAt.Unix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("hincrby %s: %w", key, err)
	}

	return v, nil
}

func (s *RedisStore) HIncrByMany(
	ctx context.Context,
	key string,
	incrs map[string]int64,
	expireAt time.Time,
) (map[string]int64, error) {
	if len(incrs) == 0 {
		return map[string]int64{}, nil
	}

	fields := make([]string, 0, len(incrs))
	for f := range incrs {
		fields = append(fields, f)
	}

	sort.Strings(fields)

	args := make([]any, 0, 1+2*len(fields))
	args = append(args, expireAt.Unix())

	for _, f := range fields {
		args = append(args, f, incrs[f])
	}

	vals, err := hincrByManyScript.Run(ctx, s.client, []string{key}, args...).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("hincrby many %s: %w", key, err)
	}

	if len(vals) != len(fields) {
		return nil, fmt.Errorf("hincrby many %s: got %d results for %d fields", key, len(vals), len(fields))
	}

	out := make(map[string]int64, len(fields))
	for i, f := range fields {
		out[f] = vals[i]
	}

	return out, nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("hget %s: %w", key, err)
	}

	return v, nil
}

func (s *RedisStore) HMGet(ctx context.Context, key string, fields []string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	if len(fields) == 0 {
		return out, nil
	}

	vals, err := s.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", key, err)
	}

	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}

		out[fields[i]] = str
	}

	return out, nil
}

func (s *RedisStore) HSetNX(ctx context.Context, key, field, value string, expireAt time.Time) (bool, error) {
	n, err := hsetNXScript.Run(ctx, s.client, []string{key}, field, value, expireAt.Unix()).Int64()
	if err != nil {
		return false, fmt.Errorf("hsetnx %s: %w", key, err)
	}

	return n == 1, nil
}

func (s *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}

	err := s.client.HDel(ctx, key, fields...).Err()
	if err != nil {
		return fmt.Errorf("hdel %s: %w", key, err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
