package zone

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/rrset"
)

// Credibility ranks a cached entry's trustworthiness, ascending (§3 Cache
// entry). Insert policy: equal-or-higher credibility replaces; lower is
// ignored.
type Credibility int

const (
	CredHint            Credibility = 0
	CredGlue            Credibility = 1
	CredAdditional      Credibility = 1
	CredNonAuthAnswer   Credibility = 3
	CredNonAuthAuthority Credibility = 3
	CredAuthAnswer      Credibility = 4
	CredAuthAuthority   Credibility = 4
	CredZone            Credibility = 5
)

type cacheKey struct {
	name  string
	rtype uint16
	class uint16
}

type cacheEntry struct {
	set         *rrset.RRset
	credibility Credibility
	expiresAt   time.Time
	negative    bool
}

// shardCount mirrors the teacher cache's sharding factor to keep lock
// contention low under concurrent lookups/inserts.
const shardCount = 256

type cacheShard struct {
	mu    sync.RWMutex
	items map[cacheKey]cacheEntry
}

// Cache is a credibility-ranked, TTL-expiring, sharded in-memory DNS
// cache (§3 Cache entry, §4.F cache-specific lookup rules).
type Cache struct {
	shards      [shardCount]*cacheShard
	MaxNegTTL   time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewCache builds an empty cache and starts its background expiry sweep.
// maxNegativeTTL bounds how long NXDOMAIN/NXRRSET entries are kept
// regardless of the SOA minimum they were stored with (§4.F).
func NewCache(maxNegativeTTL time.Duration) *Cache {
	c := &Cache{MaxNegTTL: maxNegativeTTL, stop: make(chan struct{})}
	for i := range c.shards {
		c.shards[i] = &cacheShard{items: make(map[cacheKey]cacheEntry)}
	}
	go c.sweepLoop()
	return c
}

// Close stops the background expiry sweep.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) shardFor(k cacheKey) *cacheShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.name))
	return c.shards[h.Sum32()%shardCount]
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	for _, shard := range c.shards {
		shard.mu.Lock()
		for k, v := range shard.items {
			if now.After(v.expiresAt) {
				delete(shard.items, k)
			}
		}
		shard.mu.Unlock()
	}
}

// Insert applies the §3 insert policy: a record of equal or higher
// credibility than any existing entry for this key replaces it; lower
// credibility is ignored.
func (c *Cache) Insert(set *rrset.RRset, class uint16, credibility Credibility, ttl time.Duration) {
	k := cacheKey{name: key(set.Name), rtype: set.Type, class: class}
	shard := c.shardFor(k)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	existing, ok := shard.items[k]
	if ok && existing.credibility > credibility && time.Now().Before(existing.expiresAt) {
		return
	}
	shard.items[k] = cacheEntry{set: set, credibility: credibility, expiresAt: time.Now().Add(ttl)}
}

// InsertNegative records an NXDOMAIN/NXRRSET entry, its TTL bounded by
// MaxNegTTL (§4.F).
func (c *Cache) InsertNegative(name dname.Name, rtype, class uint16, credibility Credibility, ttl time.Duration) {
	if c.MaxNegTTL > 0 && ttl > c.MaxNegTTL {
		ttl = c.MaxNegTTL
	}
	k := cacheKey{name: key(name), rtype: rtype, class: class}
	shard := c.shardFor(k)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	existing, ok := shard.items[k]
	if ok && existing.credibility > credibility && time.Now().Before(existing.expiresAt) {
		return
	}
	shard.items[k] = cacheEntry{credibility: credibility, expiresAt: time.Now().Add(ttl), negative: true}
}

// Lookup implements §4.F's shared outcome algebra for the cache: only
// entries with credibility >= minCredibility are considered; expired
// entries are treated as absent.
func (c *Cache) Lookup(name dname.Name, rtype, class uint16, minCredibility Credibility) SetResponse {
	k := cacheKey{name: key(name), rtype: rtype, class: class}
	shard := c.shardFor(k)
	shard.mu.RLock()
	entry, ok := shard.items[k]
	shard.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) || entry.credibility < minCredibility {
		return unknown()
	}
	if entry.negative {
		return nxRRSet(name)
	}
	return successful([]*rrset.RRset{entry.set})
}

// Get is a convenience wrapper used by tests and callers that just want
// the cached RRset without the full outcome algebra.
func (c *Cache) Get(name dname.Name, rtype, class uint16, minCredibility Credibility) (*rrset.RRset, bool) {
	resp := c.Lookup(name, rtype, class, minCredibility)
	if !resp.IsSuccessful() || len(resp.Answers) == 0 {
		return nil, false
	}
	return resp.Answers[0], true
}

// Size counts live (non-expired) entries across all shards, mainly for
// metrics/tests.
func (c *Cache) Size() int {
	now := time.Now()
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		for _, v := range shard.items {
			if now.Before(v.expiresAt) {
				total++
			}
		}
		shard.mu.RUnlock()
	}
	return total
}

// rdataGetAdditionalName reports the name NS/MX/SRV rdata point at,
// used by a server assembling glue into the additional section (§4.F
// "Glue handling: answers placed in additional are pulled via
// getAdditionalName()").
func rdataGetAdditionalName(rr rdata.RR) (dname.Name, bool) {
	switch v := rr.Rdata.(type) {
	case *rdata.NameRdata:
		if rr.Header.Type == rdata.TypeNS {
			return v.Target, true
		}
	case *rdata.PreferenceNameRdata:
		return v.Exchange, true
	case *rdata.SRV:
		return v.Target, true
	}
	return dname.Name{}, false
}

// GetAdditionalNames returns the glue-eligible target names referenced by
// set's records (§4.F glue handling).
func GetAdditionalNames(set *rrset.RRset) []dname.Name {
	var out []dname.Name
	for _, rr := range set.Records {
		if n, ok := rdataGetAdditionalName(rr); ok {
			out = append(out, n)
		}
	}
	return out
}
