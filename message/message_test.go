package message

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

// TestHeaderRoundTrip implements scenario S1: encode then decode a header
// and expect byte-exact field recovery.
func TestHeaderRoundTrip(t *testing.T) {
	m := New()
	m.Header = Header{
		ID: 0xBEEF, Response: true, Opcode: OpcodeQuery, AuthoritativeAns: true,
		RecursionDesired: true, RecursionAvailable: true, Rcode: RcodeNoError,
	}
	m.Question = []Question{{Name: mustName(t, "example.com."), Type: rdata.TypeA, Class: rdata.ClassIN}}

	buf, err := Render(m, RenderOptions{})
	require.NoError(t, err)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, m.Header.ID, decoded.Header.ID)
	require.Equal(t, m.Header.Response, decoded.Header.Response)
	require.Equal(t, m.Header.AuthoritativeAns, decoded.Header.AuthoritativeAns)
	require.Equal(t, m.Header.RecursionDesired, decoded.Header.RecursionDesired)
	require.Equal(t, m.Header.RecursionAvailable, decoded.Header.RecursionAvailable)
	require.Equal(t, uint16(1), decoded.Header.QDCount)
}

// TestARecordWireForm implements scenario S2: an A-record answer
// round-trips to the identical presentation form.
func TestARecordWireForm(t *testing.T) {
	m := New()
	m.Header.Response = true
	m.Question = []Question{{Name: mustName(t, "www.example.com."), Type: rdata.TypeA, Class: rdata.ClassIN}}
	m.Answer = []rdata.RR{{
		Header: rdata.Header{Name: mustName(t, "www.example.com."), Type: rdata.TypeA, Class: rdata.ClassIN, TTL: 300},
		Rdata:  &rdata.A{Addr: netip.MustParseAddr("192.0.2.5")},
	}}

	buf, err := Render(m, RenderOptions{})
	require.NoError(t, err)
	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, decoded.Answer, 1)
	require.Equal(t, "192.0.2.5", decoded.Answer[0].Rdata.String())
}

// TestTruncationPreservesRRsetAtomicity implements scenario S4: a 10-A
// answer RRset rendered with a tiny MaxLength truncates the whole set,
// never a partial one.
func TestTruncationPreservesRRsetAtomicity(t *testing.T) {
	m := New()
	m.Header.Response = true
	for i := 0; i < 10; i++ {
		m.Answer = append(m.Answer, rdata.RR{
			Header: rdata.Header{Name: mustName(t, "www.example.com."), Type: rdata.TypeA, Class: rdata.ClassIN, TTL: 300},
			Rdata:  &rdata.A{Addr: netip.MustParseAddr("192.0.2.1")},
		})
	}

	buf, err := Render(m, RenderOptions{MaxLength: 100})
	require.NoError(t, err)
	require.LessOrEqual(t, len(buf), 100)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.True(t, decoded.Header.Truncated)
	require.Equal(t, uint16(0), decoded.Header.ANCount)
	require.Empty(t, decoded.Answer)
}

func TestGetRcodeCombinesExtendedNibble(t *testing.T) {
	m := New()
	m.Header.Rcode = 1 // FORMERR low nibble
	m.Additional = []rdata.RR{{
		Header: rdata.Header{Name: dname.Root, Type: rdata.TypeOPT, Class: 4096, TTL: uint32(0x05) << 24},
	}}
	require.Equal(t, uint16(0x051), m.GetRcode())
}

func TestCloneIsIndependent(t *testing.T) {
	m := New()
	m.Question = []Question{{Name: mustName(t, "example.com."), Type: rdata.TypeA, Class: rdata.ClassIN}}
	clone := m.Clone()
	clone.Question[0].Type = rdata.TypeAAAA
	require.Equal(t, rdata.TypeA, m.Question[0].Type)
	require.Equal(t, rdata.TypeAAAA, clone.Question[0].Type)
}

// TestDecodeTruncatedMessageTolerant exercises §4.D's "if TC is set, a
// wire-parse failure while reading the remainder is tolerated" rule: a
// header claims one answer record that the buffer doesn't actually
// contain, and decoding still succeeds because TC is set.
func TestDecodeTruncatedMessageTolerant(t *testing.T) {
	hdr := Header{Truncated: true, ANCount: 1}
	w := wire.NewWriter(12)
	hdr.write(w)
	// no question/answer bytes follow — the declared ANCount is a lie
	decoded, err := Decode(w.Buf)
	require.NoError(t, err)
	require.Empty(t, decoded.Answer)
}

// TestDecodeWithoutTCIsFatal confirms the same malformed buffer fails to
// decode when TC is not set.
func TestDecodeWithoutTCIsFatal(t *testing.T) {
	hdr := Header{Truncated: false, ANCount: 1}
	w := wire.NewWriter(12)
	hdr.write(w)
	_, err := Decode(w.Buf)
	require.Error(t, err)
}
