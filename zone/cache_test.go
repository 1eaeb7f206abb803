package zone

import (
	"net/netip"
	"testing"
	"time"

	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/rrset"
	"github.com/stretchr/testify/require"
)

func aSet(t *testing.T, owner, ip string, ttl uint32) *rrset.RRset {
	t.Helper()
	set := rrset.NewRRset(mustName(t, owner), rdata.ClassIN, rdata.TypeA)
	require.NoError(t, set.Add(aRR(t, owner, ip, ttl)))
	return set
}

func TestCacheInsertThenLookup(t *testing.T) {
	c := NewCache(3 * time.Hour)
	defer c.Close()

	set := aSet(t, "www.example.com.", "192.0.2.1", 300)
	c.Insert(set, rdata.ClassIN, CredAuthAnswer, 300*time.Second)

	resp := c.Lookup(mustName(t, "www.example.com."), rdata.TypeA, rdata.ClassIN, CredHint)
	require.Equal(t, Successful, resp.Outcome)
	require.Len(t, resp.Answers, 1)
}

func TestCacheLookupBelowMinCredibilityMisses(t *testing.T) {
	c := NewCache(3 * time.Hour)
	defer c.Close()

	set := aSet(t, "www.example.com.", "192.0.2.1", 300)
	c.Insert(set, rdata.ClassIN, CredGlue, 300*time.Second)

	resp := c.Lookup(mustName(t, "www.example.com."), rdata.TypeA, rdata.ClassIN, CredZone)
	require.Equal(t, Unknown, resp.Outcome)
}

func TestCacheHigherCredibilityReplacesLower(t *testing.T) {
	c := NewCache(3 * time.Hour)
	defer c.Close()

	low := aSet(t, "www.example.com.", "192.0.2.1", 300)
	c.Insert(low, rdata.ClassIN, CredNonAuthAnswer, 300*time.Second)

	high := aSet(t, "www.example.com.", "192.0.2.99", 300)
	c.Insert(high, rdata.ClassIN, CredAuthAnswer, 300*time.Second)

	got, ok := c.Get(mustName(t, "www.example.com."), rdata.TypeA, rdata.ClassIN, CredHint)
	require.True(t, ok)
	require.True(t, got.Records[0].Rdata.(*rdata.A).Addr == netip.MustParseAddr("192.0.2.99"))
}

func TestCacheLowerCredibilityIsIgnored(t *testing.T) {
	c := NewCache(3 * time.Hour)
	defer c.Close()

	high := aSet(t, "www.example.com.", "192.0.2.99", 300)
	c.Insert(high, rdata.ClassIN, CredAuthAnswer, 300*time.Second)

	low := aSet(t, "www.example.com.", "192.0.2.1", 300)
	c.Insert(low, rdata.ClassIN, CredNonAuthAnswer, 300*time.Second)

	got, ok := c.Get(mustName(t, "www.example.com."), rdata.TypeA, rdata.ClassIN, CredHint)
	require.True(t, ok)
	require.True(t, got.Records[0].Rdata.(*rdata.A).Addr == netip.MustParseAddr("192.0.2.99"))
}

func TestCacheEqualCredibilityReplaces(t *testing.T) {
	c := NewCache(3 * time.Hour)
	defer c.Close()

	first := aSet(t, "www.example.com.", "192.0.2.1", 300)
	c.Insert(first, rdata.ClassIN, CredAuthAnswer, 300*time.Second)

	second := aSet(t, "www.example.com.", "192.0.2.2", 300)
	c.Insert(second, rdata.ClassIN, CredAuthAnswer, 300*time.Second)

	got, ok := c.Get(mustName(t, "www.example.com."), rdata.TypeA, rdata.ClassIN, CredHint)
	require.True(t, ok)
	require.True(t, got.Records[0].Rdata.(*rdata.A).Addr == netip.MustParseAddr("192.0.2.2"))
}

func TestCacheExpiredEntryTreatedAsAbsent(t *testing.T) {
	c := NewCache(3 * time.Hour)
	defer c.Close()

	set := aSet(t, "www.example.com.", "192.0.2.1", 300)
	c.Insert(set, rdata.ClassIN, CredAuthAnswer, 1*time.Nanosecond)
	time.Sleep(time.Millisecond)

	resp := c.Lookup(mustName(t, "www.example.com."), rdata.TypeA, rdata.ClassIN, CredHint)
	require.Equal(t, Unknown, resp.Outcome)
}

func TestCacheNegativeEntry(t *testing.T) {
	c := NewCache(60 * time.Second)
	defer c.Close()

	c.InsertNegative(mustName(t, "nothere.example.com."), rdata.TypeA, rdata.ClassIN, CredAuthAuthority, 300*time.Second)

	resp := c.Lookup(mustName(t, "nothere.example.com."), rdata.TypeA, rdata.ClassIN, CredHint)
	require.Equal(t, NXRRSet, resp.Outcome)
}

func TestCacheNegativeEntryBoundedByMaxNegTTL(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	defer c.Close()

	c.InsertNegative(mustName(t, "nothere.example.com."), rdata.TypeA, rdata.ClassIN, CredAuthAuthority, 1*time.Hour)
	time.Sleep(30 * time.Millisecond)

	resp := c.Lookup(mustName(t, "nothere.example.com."), rdata.TypeA, rdata.ClassIN, CredHint)
	require.Equal(t, Unknown, resp.Outcome)
}

func TestCacheSizeCountsLiveEntries(t *testing.T) {
	c := NewCache(3 * time.Hour)
	defer c.Close()

	c.Insert(aSet(t, "a.example.com.", "192.0.2.1", 300), rdata.ClassIN, CredZone, 300*time.Second)
	c.Insert(aSet(t, "b.example.com.", "192.0.2.2", 300), rdata.ClassIN, CredZone, 300*time.Second)
	require.Equal(t, 2, c.Size())
}

func TestGetAdditionalNamesFromNSSet(t *testing.T) {
	set := rrset.NewRRset(mustName(t, "example.com."), rdata.ClassIN, rdata.TypeNS)
	require.NoError(t, set.Add(nsRR(t, "example.com.", "ns1.example.com.", 3600)))
	require.NoError(t, set.Add(nsRR(t, "example.com.", "ns2.example.com.", 3600)))

	names := GetAdditionalNames(set)
	require.Len(t, names, 2)
}
