package edns

import (
	"net/netip"
	"testing"

	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/wire"
	"github.com/stretchr/testify/require"
)

func TestOPTRoundTripThroughRR(t *testing.T) {
	opt := &OPT{
		UDPPayloadSize: 4096,
		ExtendedRcode:  1,
		Version:        0,
		DNSSECOK:       true,
		Options: []Option{
			&NSIDOption{Data: []byte("server-1")},
			&ClientSubnetOption{Family: 1, SourcePrefix: 24, ScopePrefix: 0, Address: netip.MustParseAddr("192.0.2.0")},
		},
	}
	rr := opt.NewRecord()

	w := wire.NewWriter(64)
	require.NoError(t, rdata.WriteRR(w, rr, nil, false))

	r := wire.NewReader(w.Buf)
	decoded, err := rdata.ReadRR(r)
	require.NoError(t, err)
	require.Equal(t, rdata.TypeOPT, decoded.Header.Type)

	parsed, err := ParseRR(decoded)
	require.NoError(t, err)
	require.Equal(t, opt.UDPPayloadSize, parsed.UDPPayloadSize)
	require.Equal(t, opt.ExtendedRcode, parsed.ExtendedRcode)
	require.True(t, parsed.DNSSECOK)
	require.Len(t, parsed.Options, 2)
	require.Equal(t, CodeNSID, parsed.Options[0].Code())
	require.Equal(t, CodeClientSubnet, parsed.Options[1].Code())

	cs, ok := parsed.Options[1].(*ClientSubnetOption)
	require.True(t, ok)
	require.Equal(t, uint8(24), cs.SourcePrefix)
}

func TestUnknownOptionFallsBackToGeneric(t *testing.T) {
	opt := &OPT{Options: []Option{&GenericOption{CodeVal: 9999, Data: []byte{1, 2, 3}}}}
	w := wire.NewWriter(32)
	require.NoError(t, opt.Pack(w, nil, false))

	r := wire.NewReader(w.Buf)
	require.NoError(t, r.PushRegion(len(w.Buf)))
	out := &OPT{}
	require.NoError(t, out.Unpack(r))
	require.Len(t, out.Options, 1)
	generic, ok := out.Options[0].(*GenericOption)
	require.True(t, ok)
	require.Equal(t, uint16(9999), generic.CodeVal)
}

func TestUpdateLeaseRoundTrip(t *testing.T) {
	opt := &OPT{Options: []Option{&UpdateLeaseOption{LeaseSeconds: 3600}}}
	w := wire.NewWriter(32)
	require.NoError(t, opt.Pack(w, nil, false))
	r := wire.NewReader(w.Buf)
	require.NoError(t, r.PushRegion(len(w.Buf)))
	out := &OPT{}
	require.NoError(t, out.Unpack(r))
	lease, ok := out.Options[0].(*UpdateLeaseOption)
	require.True(t, ok)
	require.Equal(t, uint32(3600), lease.LeaseSeconds)
}

func TestExtendedErrorRoundTrip(t *testing.T) {
	opt := &OPT{Options: []Option{&ExtendedErrorOption{InfoCode: EDEStaleAnswer, ExtraText: "cache stale"}}}
	w := wire.NewWriter(32)
	require.NoError(t, opt.Pack(w, nil, false))
	r := wire.NewReader(w.Buf)
	require.NoError(t, r.PushRegion(len(w.Buf)))
	out := &OPT{}
	require.NoError(t, out.Unpack(r))
	ede, ok := out.Options[0].(*ExtendedErrorOption)
	require.True(t, ok)
	require.Equal(t, EDEStaleAnswer, ede.InfoCode)
	require.Equal(t, "cache stale", ede.ExtraText)
}

func TestTTLFieldRoundTrip(t *testing.T) {
	opt := &OPT{ExtendedRcode: 0x12, Version: 0, DNSSECOK: true}
	ttl := opt.TTLField()
	ercode, version, do := FromTTL(ttl)
	require.Equal(t, opt.ExtendedRcode, ercode)
	require.Equal(t, opt.Version, version)
	require.True(t, do)
}
