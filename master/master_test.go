package master

import (
	"strings"
	"testing"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/stretchr/testify/require"
)

func mustOrigin(t *testing.T, s string) dname.Name {
	t.Helper()
	n, err := dname.Parse(s)
	require.NoError(t, err)
	return n
}

func TestParseSimpleRecords(t *testing.T) {
	input := `
$ORIGIN example.com.
$TTL 3600
@    IN SOA ns1.example.com. hostmaster.example.com. ( 2024010100 3600 900 604800 300 )
     IN NS  ns1.example.com.
www  IN A   192.0.2.1
www  IN AAAA 2001:db8::1
mail IN MX  10 mail.example.com.
`
	p := NewParser(mustOrigin(t, "example.com."), rdata.ClassIN)
	records, includes, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, includes)
	require.Len(t, records, 5)

	soa := records[0]
	require.Equal(t, rdata.TypeSOA, soa.Type())
	soaRd, ok := soa.Rdata.(*rdata.SOA)
	require.True(t, ok)
	require.Equal(t, uint32(2024010100), soaRd.Serial)
	require.Equal(t, uint32(3600), soaRd.Refresh)
	require.Equal(t, uint32(300), soaRd.Minimum)
	require.True(t, soa.Name().Equal(mustOrigin(t, "example.com.")))

	ns := records[1]
	require.Equal(t, uint32(3600), ns.Header.TTL)
	require.True(t, ns.Name().Equal(mustOrigin(t, "example.com.")))

	a := records[2]
	require.True(t, a.Name().Equal(mustOrigin(t, "www.example.com.")))
	aRd, ok := a.Rdata.(*rdata.A)
	require.True(t, ok)
	require.Equal(t, "192.0.2.1", aRd.Addr.String())

	mx := records[4]
	mxRd, ok := mx.Rdata.(*rdata.PreferenceNameRdata)
	require.True(t, ok)
	require.Equal(t, uint16(10), mxRd.Preference)
	require.True(t, mxRd.Exchange.Equal(mustOrigin(t, "mail.example.com.")))
}

func TestParseLeadingWhitespaceReusesOwnerName(t *testing.T) {
	input := `
$ORIGIN example.com.
www  IN A   192.0.2.1
     IN A   192.0.2.2
`
	p := NewParser(mustOrigin(t, "example.com."), rdata.ClassIN)
	records, _, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.True(t, records[0].Name().Equal(records[1].Name()))
}

func TestParseStripsCommentsOutsideQuotesOnly(t *testing.T) {
	input := `
$ORIGIN example.com.
txt IN TXT "a ; not a comment" ; this is a comment
`
	p := NewParser(mustOrigin(t, "example.com."), rdata.ClassIN)
	records, _, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	txt, ok := records[0].Rdata.(*rdata.TXTRdata)
	require.True(t, ok)
	require.Equal(t, []string{"a ; not a comment"}, txt.Strings)
}

func TestParseParenthesizedMultilineSOA(t *testing.T) {
	input := `
$ORIGIN example.com.
@ IN SOA ns1.example.com. hostmaster.example.com. (
          2024010100 ; serial
          3600       ; refresh
          900        ; retry
          604800     ; expire
          300 )      ; minimum
`
	p := NewParser(mustOrigin(t, "example.com."), rdata.ClassIN)
	records, _, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	soa, ok := records[0].Rdata.(*rdata.SOA)
	require.True(t, ok)
	require.Equal(t, uint32(2024010100), soa.Serial)
	require.Equal(t, uint32(300), soa.Minimum)
}

func TestParseGenericFallbackForUnknownPresentation(t *testing.T) {
	input := `
$ORIGIN example.com.
thing IN TYPE65280 \# 4 DEADBEEF
`
	p := NewParser(mustOrigin(t, "example.com."), rdata.ClassIN)
	_, _, err := p.Parse(strings.NewReader(input))
	// TYPE65280 is not registered in this build's registry, so it is
	// expected to fail lookup rather than silently drop the record.
	require.Error(t, err)
}

func TestParseGenericFallbackForRegisteredType(t *testing.T) {
	input := `
$ORIGIN example.com.
thing IN HINFO \# 4 DEADBEEF
`
	p := NewParser(mustOrigin(t, "example.com."), rdata.ClassIN)
	records, _, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	generic, ok := records[0].Rdata.(*rdata.Generic)
	require.True(t, ok)
	require.Equal(t, rdata.TypeHINFO, generic.TypeCode)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, generic.Data)
}

func TestParseOriginDirectiveChangesSubsequentOwners(t *testing.T) {
	input := `
$ORIGIN first.example.
a IN A 192.0.2.1
$ORIGIN second.example.
b IN A 192.0.2.2
`
	p := NewParser(mustOrigin(t, "unused.example."), rdata.ClassIN)
	records, _, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.True(t, records[0].Name().Equal(mustOrigin(t, "a.first.example.")))
	require.True(t, records[1].Name().Equal(mustOrigin(t, "b.second.example.")))
}

func TestParseIncludeDirectiveIsReturnedNotFollowed(t *testing.T) {
	input := `
$ORIGIN example.com.
$INCLUDE other.zone example.com.
a IN A 192.0.2.1
`
	p := NewParser(mustOrigin(t, "example.com."), rdata.ClassIN)
	records, includes, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, includes, 1)
	require.Equal(t, "other.zone", includes[0].Path)
}

func TestParseGenerateExpandsRange(t *testing.T) {
	input := `
$ORIGIN example.com.
$GENERATE 1-3 host$ IN A 192.0.2.$
`
	p := NewParser(mustOrigin(t, "example.com."), rdata.ClassIN)
	records, _, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.True(t, records[0].Name().Equal(mustOrigin(t, "host1.example.com.")))
	require.True(t, records[2].Name().Equal(mustOrigin(t, "host3.example.com.")))
	a2, ok := records[1].Rdata.(*rdata.A)
	require.True(t, ok)
	require.Equal(t, "192.0.2.2", a2.Addr.String())
}

func TestGenerateDirectiveExpandHandlesLiteralDollar(t *testing.T) {
	g := GenerateDirective{Start: 1, Stop: 2, Step: 1, Template: "host$ A 10.0.0.$$"}
	lines, err := g.Expand()
	require.NoError(t, err)
	require.Equal(t, []string{"host1 A 10.0.0.$", "host2 A 10.0.0.$"}, lines)
}

func TestParseZoneBuildsQueryableZone(t *testing.T) {
	input := `
$ORIGIN example.com.
$TTL 3600
@   IN SOA ns1.example.com. hostmaster.example.com. ( 1 3600 900 604800 300 )
@   IN NS  ns1.example.com.
www IN A   192.0.2.1
`
	z, err := ParseZone(strings.NewReader(input), mustOrigin(t, "example.com."), rdata.ClassIN)
	require.NoError(t, err)
	resp := z.Lookup(mustOrigin(t, "www.example.com."), rdata.TypeA)
	require.True(t, resp.IsSuccessful())
	require.Len(t, resp.Answers, 1)
}
