package kvstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fastprodman/buzzledger/internal/config"
)

const testRedisAddr = "localhost:6379"

func newTestRedis(t *testing.T) *RedisStore {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()

	s, err := NewRedisStore(ctx, config.RedisConfig{Addr: testRedisAddr, DB: 15})
	if err != nil {
		t.Skipf("redis not available at %s: %v", testRedisAddr, err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestRedisStore_IncrAndExpiry(t *testing.T) {
	t.Parallel()

	s := newTestRedis(t)
	ctx := t.Context()

	key := fmt.Sprintf("kvstore-test:%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = s.client.Del(context.Background(), key).Err() })

	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	v, err := s.HIncrBy(ctx, key, "a", 4, exp)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}

	if v != 4 {
		t.Fatalf("want 4, got %d", v)
	}

	_, err = s.HIncrBy(ctx, key, "a", 1, exp.Add(time.Hour))
	if err != nil {
		t.Fatalf("incr: %v", err)
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}

	if ttl > time.Hour || ttl <= 0 {
		t.Fatalf("expiry should stay at the first write, ttl=%s", ttl)
	}

	many, err := s.HIncrByMany(ctx, key, map[string]int64{"a": 1, "b": 7}, exp)
	if err != nil {
		t.Fatalf("incr many: %v", err)
	}

	if many["a"] != 6 || many["b"] != 7 {
		t.Fatalf("unexpected many result %v", many)
	}

	set, err := s.HSetNX(ctx, key, "hit", "123", exp)
	if err != nil || !set {
		t.Fatalf("hsetnx: set=%v err=%v", set, err)
	}

	set, err = s.HSetNX(ctx, key, "hit", "456", exp)
	if err != nil || set {
		t.Fatalf("second hsetnx: set=%v err=%v", set, err)
	}

	vals, err := s.HMGet(ctx, key, []string{"a", "hit", "missing"})
	if err != nil {
		t.Fatalf("hmget: %v", err)
	}

	if vals["a"] != "6" || vals["hit"] != "123" || len(vals) != 2 {
		t.Fatalf("unexpected hmget %v", vals)
	}

	err = s.HDel(ctx, key, "a")
	if err != nil {
		t.Fatalf("hdel: %v", err)
	}

	_, err = s.HGet(ctx, key, "a")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRedisStore_ManyRejectsBatchWithNonInteger(t *testing.T) {
	t.Parallel()

	s := newTestRedis(t)
	ctx := t.Context()

	key := fmt.Sprintf("kvstore-test-batch:%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = s.client.Del(context.Background(), key).Err() })

	exp := time.Now().Add(time.Hour)

	_, err := s.HIncrBy(ctx, key, "b", 1, exp)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = s.HSetNX(ctx, key, "word", "abc", exp)
	if err != nil {
		t.Fatalf("hsetnx: %v", err)
	}

	// "b" sorts before "word" and would be written first without the pre-check.
	_, err = s.HIncrByMany(ctx, key, map[string]int64{"b": 5, "word": 1}, exp)
	if err == nil {
		t.Fatal("want error for non-integer field")
	}

	got, err := s.HGet(ctx, key, "b")
	if err != nil || got != "1" {
		t.Fatalf("failed batch was partially applied: b=%q err=%v", got, err)
	}
}
