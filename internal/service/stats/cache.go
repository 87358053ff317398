package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type cacheKey struct {
	userID   uuid.UUID
	moduleID uuid.UUID
}

type cacheEntry struct {
	summary   *Statistics
	expiresAt time.Time
}

// userCache holds one user's summaries, keyed by module (uuid.Nil for the
// overall summary). gen changes on invalidate; loads counts callers that are
// waiting on a load, and the record is kept while it is non-zero.
type userCache struct {
	gen     uint64
	loads   int
	entries map[uuid.UUID]cacheEntry
}

// cache is a per-(user, module) TTL cache. Concurrent misses for the same
// key share one load, and a load that started before an invalidation is
// never stored. Expired entries are dropped when read and by a sweep that
// runs at most once per TTL; users with nothing cached and nothing loading
// are forgotten.
type cache struct {
	ttl       time.Duration
	now       func() time.Time
	group     singleflight.Group
	mu        sync.Mutex
	users     map[uuid.UUID]*userCache
	nextSweep time.Time
	// seq issues generations. It never repeats, so a record created after
	// its predecessor was forgotten cannot join that predecessor's loads.
	seq uint64
}

func newCache(ttl time.Duration, now func() time.Time) *cache {
	return &cache{
		ttl:   ttl,
		now:   now,
		users: make(map[uuid.UUID]*userCache),
	}
}

// getOrLoad returns a copy of the cached summary for key, calling load on a
// miss. Callers may modify the result freely.
func (c *cache) getOrLoad(key cacheKey, load func() (*Statistics, error)) (*Statistics, error) {
	if c.ttl < 0 {
		return load()
	}

	c.mu.Lock()
	now := c.now()
	c.sweepLocked(now)
	user := c.users[key.userID]
	if user == nil {
		c.seq++
		user = &userCache{gen: c.seq, entries: make(map[uuid.UUID]cacheEntry)}
		c.users[key.userID] = user
	}
	if entry, ok := user.entries[key.moduleID]; ok {
		if now.Before(entry.expiresAt) {
			c.mu.Unlock()
			return entry.summary.clone(), nil
		}
		delete(user.entries, key.moduleID)
	}
	gen := user.gen
	user.loads++
	c.mu.Unlock()

	flight := fmt.Sprintf("%s/%s/%d", key.userID, key.moduleID, gen)
	v, err, _ := c.group.Do(flight, func() (interface{}, error) {
		summary, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if user.gen == gen {
			user.entries[key.moduleID] = cacheEntry{summary: summary, expiresAt: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return summary, nil
	})

	c.mu.Lock()
	user.loads--
	c.forgetIfIdleLocked(key.userID, user)
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return v.(*Statistics).clone(), nil
}

func (c *cache) invalidate(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	user, ok := c.users[userID]
	if !ok {
		return
	}
	c.seq++
	user.gen = c.seq
	clear(user.entries)
	c.forgetIfIdleLocked(userID, user)
}

// sweepLocked drops expired entries across all users once the sweep is due.
func (c *cache) sweepLocked(now time.Time) {
	if now.Before(c.nextSweep) {
		return
	}
	c.nextSweep = now.Add(c.ttl)
	for userID, user := range c.users {
		for moduleID, entry := range user.entries {
			if !now.Before(entry.expiresAt) {
				delete(user.entries, moduleID)
			}
		}
		c.forgetIfIdleLocked(userID, user)
	}
}

// forgetIfIdleLocked removes the user's record when it holds no entries and
// no load is in progress. Only the record currently mapped is removed.
func (c *cache) forgetIfIdleLocked(userID uuid.UUID, user *userCache) {
	if user.loads > 0 || len(user.entries) > 0 {
		return
	}
	if c.users[userID] == user {
		delete(c.users, userID)
	}
}

// size reports how many users and entries are held.
func (c *cache) size() (users, entries int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, user := range c.users {
		entries += len(user.entries)
	}
	return len(c.users), entries
}
