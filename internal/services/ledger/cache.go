package ledger

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// balanceCache is a process-local read cache in front of the running sum.
//
// A fill is dropped when any invalidation happened after the caller took its
// generation, so a balance read before a commit can never overwrite the
// invalidation of that commit. Commits made by other processes are only seen
// once an entry is older than ttl.
type balanceCache struct {
	mu  sync.Mutex
	gen uint64
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

type cachedBalance struct {
	balance   int64
	expiresAt time.Time
}

func newBalanceCache(size int, ttl time.Duration, now func() time.Time) (*balanceCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	if now == nil {
		now = time.Now
	}

	return &balanceCache{lru: c, ttl: ttl, now: now}, nil
}

func (c *balanceCache) get(accountID int64) (int64, bool) {
	v, ok := c.lru.Get(accountID)
	if !ok {
		return 0, false
	}

	e := v.(cachedBalance)
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(accountID)

		return 0, false
	}

	return e.balance, true
}

func (c *balanceCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.gen
}

func (c *balanceCache) fill(accountID, balance int64, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return false
	}

	c.lru.Add(accountID, cachedBalance{balance: balance, expiresAt: c.now().Add(c.ttl)})

	return true
}

func (c *balanceCache) invalidate(accountIDs ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++

	for _, id := range accountIDs {
		c.lru.Remove(id)
	}
}

func (c *balanceCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.lru.Purge()
}
