package rrset

import (
	"net/netip"
	"testing"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/wire"
	"github.com/stretchr/testify/require"
)

func mustName(t *testing.T, s string) dname.Name {
	t.Helper()
	n, err := dname.Parse(s)
	require.NoError(t, err)
	return n
}

func aRecord(t *testing.T, name, ip string, ttl uint32) rdata.RR {
	return rdata.RR{
		Header: rdata.Header{Name: mustName(t, name), Type: rdata.TypeA, Class: rdata.ClassIN, TTL: ttl},
		Rdata:  &rdata.A{Addr: netip.MustParseAddr(ip)},
	}
}

func TestAddTakesMinimumTTL(t *testing.T) {
	set := NewRRset(mustName(t, "www.example.com."), rdata.ClassIN, rdata.TypeA)
	require.NoError(t, set.Add(aRecord(t, "www.example.com.", "192.0.2.1", 300)))
	require.NoError(t, set.Add(aRecord(t, "www.example.com.", "192.0.2.2", 100)))
	require.Equal(t, uint32(100), set.TTL)
	require.Equal(t, 2, set.Len())
}

func TestAddRejectsWrongSet(t *testing.T) {
	set := NewRRset(mustName(t, "www.example.com."), rdata.ClassIN, rdata.TypeA)
	err := set.Add(aRecord(t, "other.example.com.", "192.0.2.1", 300))
	require.Error(t, err)
	var wrongSet *ErrWrongSet
	require.ErrorAs(t, err, &wrongSet)
}

func TestAddDeduplicates(t *testing.T) {
	set := NewRRset(mustName(t, "www.example.com."), rdata.ClassIN, rdata.TypeA)
	rr := aRecord(t, "www.example.com.", "192.0.2.1", 300)
	require.NoError(t, set.Add(rr))
	require.NoError(t, set.Add(rr))
	require.Equal(t, 1, set.Len())
}

func TestSameSet(t *testing.T) {
	a := aRecord(t, "www.example.com.", "192.0.2.1", 300)
	b := aRecord(t, "www.example.com.", "192.0.2.2", 100)
	c := aRecord(t, "other.example.com.", "192.0.2.1", 300)
	require.True(t, SameSet(a, b))
	require.False(t, SameSet(a, c))
}

func TestTypeCollapsesRRSIGOntoCoveredType(t *testing.T) {
	aRR := aRecord(t, "www.example.com.", "192.0.2.1", 300)
	require.Equal(t, rdata.TypeA, Type(aRR))

	// RRSIG rdata covering A: type covered, algorithm, labels, original
	// TTL, expiration, inception, key tag, root signer name, empty signature.
	w := wire.NewWriter(32)
	w.U16(rdata.TypeA)
	w.U8(8)
	w.U8(3)
	w.U32(300)
	w.U32(0)
	w.U32(0)
	w.U16(1)
	w.U8(0)
	sig := rdata.New(rdata.TypeRRSIG)
	require.NoError(t, sig.Unpack(wire.NewReader(w.Buf)))
	sigRR := rdata.RR{
		Header: rdata.Header{Name: aRR.Header.Name, Type: rdata.TypeRRSIG, Class: rdata.ClassIN, TTL: 300},
		Rdata:  sig,
	}
	require.Equal(t, rdata.TypeA, Type(sigRR))
}

func TestTypeBitmapRoundTrip(t *testing.T) {
	types := []uint16{rdata.TypeA, rdata.TypeNS, rdata.TypeSOA, rdata.TypeRRSIG, rdata.TypeNSEC, 1234}
	encoded := EncodeTypeBitmap(types)
	decoded := DecodeTypeBitmap(encoded)
	require.ElementsMatch(t, types, decoded)
}

func TestHasType(t *testing.T) {
	encoded := EncodeTypeBitmap([]uint16{rdata.TypeA, rdata.TypeMX})
	require.True(t, HasType(encoded, rdata.TypeA))
	require.True(t, HasType(encoded, rdata.TypeMX))
	require.False(t, HasType(encoded, rdata.TypeAAAA))
}

func TestCanonicalSortOrdersByWireForm(t *testing.T) {
	set := NewRRset(mustName(t, "www.example.com."), rdata.ClassIN, rdata.TypeA)
	require.NoError(t, set.Add(aRecord(t, "www.example.com.", "192.0.2.9", 300)))
	require.NoError(t, set.Add(aRecord(t, "www.example.com.", "192.0.2.1", 300)))
	set.CanonicalSort()
	require.Equal(t, "192.0.2.1", set.Records[0].Rdata.String())
	require.Equal(t, "192.0.2.9", set.Records[1].Rdata.String())
}
