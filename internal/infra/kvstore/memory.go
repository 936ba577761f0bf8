package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type memHash struct {
	fields   map[string]string
	expireAt time.Time
}

// MemoryStore is a process-local Store for tests and single-instance dev runs.
type MemoryStore struct {
	mu     sync.Mutex
	hashes map[string]*memHash
	now    func() time.Time
}

// NewMemoryStore uses now to decide expiry; nil means time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}

	return &MemoryStore{
		hashes: make(map[string]*memHash),
		now:    now,
	}
}

// live returns the hash if it exists and has not expired. Caller holds mu.
func (s *MemoryStore) live(key string) *memHash {
	h, ok := s.hashes[key]
	if !ok {
		return nil
	}

	if !h.expireAt.IsZero() && !s.now().Before(h.expireAt) {
		delete(s.hashes, key)

		return nil
	}

	return h
}

// writable returns a live hash, creating it if needed. Caller holds mu.
func (s *MemoryStore) writable(key string, expireAt time.Time) *memHash {
	h := s.live(key)
	if h == nil {
		h = &memHash{fields: make(map[string]string)}
		s.hashes[key] = h
	}

	if h.expireAt.IsZero() {
		h.expireAt = expireAt
	}

	return h
}

func incrField(h *memHash, field string, incr int64) (int64, error) {
	var cur int64

	raw, ok := h.fields[field]
	if ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %s is not an integer: %w", field, err)
		}

		cur = v
	}

	cur += incr
	h.fields[field] = strconv.FormatInt(cur, 10)

	return cur, nil
}

func (s *MemoryStore) HIncrBy(_ context.Context, key, field string, incr int64, expireAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return incrField(s.writable(key, expireAt), field, incr)
}

func (s *MemoryStore) HIncrByMany(
	_ context.Context,
	key string,
	incrs map[string]int64,
	expireAt time.Time,
) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(incrs))
	if len(incrs) == 0 {
		return out, nil
	}

	// Nothing is written unless every field holds an integer.
	if h := s.live(key); h != nil {
		for f := range incrs {
			raw, ok := h.fields[f]
			if !ok {
				continue
			}

			_, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s is not an integer: %w", f, err)
			}
		}
	}

	h := s.writable(key, expireAt)

	for f, d := range incrs {
		v, err := incrField(h, f, d)
		if err != nil {
			return nil, err
		}

		out[f] = v
	}

	return out, nil
}

func (s *MemoryStore) HGet(_ context.Context, key, field string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.live(key)
	if h == nil {
		return "", ErrNotFound
	}

	v, ok := h.fields[field]
	if !ok {
		return "", ErrNotFound
	}

	return v, nil
}

func (s *MemoryStore) HMGet(_ context.Context, key string, fields []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(fields))

	h := s.live(key)
	if h == nil {
		return out, nil
	}

	for _, f := range fields {
		v, ok := h.fields[f]
		if ok {
			out[f] = v
		}
	}

	return out, nil
}

func (s *MemoryStore) HSetNX(_ context.Context, key, field, value string, expireAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.writable(key, expireAt)

	_, exists := h.fields[field]
	if exists {
		return false, nil
	}

	h.fields[field] = value

	return true, nil
}

func (s *MemoryStore) HDel(_ context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.live(key)
	if h == nil {
		return nil
	}

	for _, f := range fields {
		delete(h.fields, f)
	}

	if len(h.fields) == 0 {
		delete(s.hashes, key)
	}

	return nil
}

// ExpireAt reports the expiry of key, zero if the key is absent.
func (s *MemoryStore) ExpireAt(key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.live(key)
	if h == nil {
		return time.Time{}
	}

	return h.expireAt
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hashes = make(map[string]*memHash)

	return nil
}
