package dname

import (
	"testing"

	"github.com/haldur/dnscore/wire"
)

func TestParseAndString(t *testing.T) {
	n, err := Parse("www.example.com.")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := n.String(), "www.example.com."; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if len(n.Labels()) != 3 {
		t.Errorf("got %d labels, want 3", len(n.Labels()))
	}
}

func TestWildcard(t *testing.T) {
	n, _ := Parse("*.example.com.")
	if !n.IsWild() {
		t.Errorf("expected *.example.com. to be a wildcard")
	}
	n2, _ := Parse("www.example.com.")
	if n2.IsWild() {
		t.Errorf("did not expect www.example.com. to be a wildcard")
	}
}

func TestEqualCaseInsensitive(t *testing.T) {
	a, _ := Parse("WWW.Example.COM.")
	b, _ := Parse("www.example.com.")
	if !a.Equal(b) {
		t.Errorf("expected case-insensitive equality")
	}
	if a.String() == b.String() {
		t.Errorf("case should be preserved in presentation form")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	n, _ := Parse("example.com.")
	w := wire.NewWriter(32)
	if err := n.Encode(w, nil, false); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	r := wire.NewReader(w.Buf)
	got, err := ParseFrom(r)
	if err != nil {
		t.Fatalf("ParseFrom: %v", err)
	}
	if !got.Equal(n) {
		t.Errorf("got %s, want %s", got, n)
	}
}

// TestCompressionSharedSuffix mirrors S3: a message whose second name
// shares a suffix with the first must encode as a pointer to that suffix.
func TestCompressionSharedSuffix(t *testing.T) {
	ns1, _ := Parse("ns1.example.com.")
	ns2, _ := Parse("ns2.example.com.")

	w := wire.NewWriter(64)
	comp := NewCompressionMap()
	if err := ns1.Encode(w, comp, false); err != nil {
		t.Fatalf("Encode ns1: %v", err)
	}
	suffixOffset, ok := comp["example.com"]
	if !ok {
		t.Fatalf("expected example.com to be recorded in compression map")
	}

	beforeSecond := w.Position()
	if err := ns2.Encode(w, comp, false); err != nil {
		t.Fatalf("Encode ns2: %v", err)
	}

	// ns2 should be "03 6e 73 32" (len 3 "ns2") followed by a 2-byte pointer.
	encoded := w.Buf[beforeSecond:]
	if len(encoded) != 6 {
		t.Fatalf("expected 6-byte encoding for ns2 (1+3 label + 2 pointer), got %d: %x", len(encoded), encoded)
	}
	if encoded[0] != 3 || string(encoded[1:4]) != "ns2" {
		t.Fatalf("expected label 'ns2', got %x", encoded[:4])
	}
	ptr := int(encoded[5]) | int(encoded[4]&0x3F)<<8
	if ptr != suffixOffset {
		t.Errorf("pointer targets %d, want %d", ptr, suffixOffset)
	}

	r := wire.NewReader(w.Buf)
	got1, err := ParseFrom(r)
	if err != nil {
		t.Fatalf("ParseFrom ns1: %v", err)
	}
	if !got1.Equal(ns1) {
		t.Errorf("got %s, want %s", got1, ns1)
	}
	r.Restore(beforeSecond)
	got2, err := ParseFrom(r)
	if err != nil {
		t.Fatalf("ParseFrom ns2: %v", err)
	}
	if !got2.Equal(ns2) {
		t.Errorf("got %s, want %s", got2, ns2)
	}
}

func TestRejectsForwardPointer(t *testing.T) {
	// A pointer at offset 0 targeting offset 0 (itself) must fail.
	buf := []byte{0xC0, 0x00}
	r := wire.NewReader(buf)
	if _, err := ParseFrom(r); err == nil {
		t.Fatalf("expected forward/self pointer to be rejected")
	}
}

func TestRejectsOverlongName(t *testing.T) {
	// 4 labels of 63 bytes plus root exceeds 255 octets.
	w := wire.NewWriter(300)
	for i := 0; i < 4; i++ {
		w.U8(63)
		w.Bytes(make([]byte, 63))
	}
	w.U8(0)
	r := wire.NewReader(w.Buf)
	if _, err := ParseFrom(r); err == nil {
		t.Fatalf("expected name >255 octets to be rejected")
	}
}

func TestSubstituteSuffixDNAME(t *testing.T) {
	owner, _ := Parse("sub.example.com.")
	target, _ := Parse("other.example.net.")
	query, _ := Parse("host.sub.example.com.")

	got, err := query.SubstituteSuffix(owner, target)
	if err != nil {
		t.Fatalf("SubstituteSuffix: %v", err)
	}
	want, _ := Parse("host.other.example.net.")
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonicalLowerOnlyASCII(t *testing.T) {
	n, _ := Parse("WWW.Example.COM.")
	got := n.CanonicalLower().String()
	if got != "www.example.com." {
		t.Errorf("got %q, want %q", got, "www.example.com.")
	}
}

func TestCompareCanonicalOrder(t *testing.T) {
	a, _ := Parse("a.example.com.")
	b, _ := Parse("b.example.com.")
	if a.Compare(b) >= 0 {
		t.Errorf("expected a.example.com. < b.example.com.")
	}
	if b.Compare(a) <= 0 {
		t.Errorf("expected b.example.com. > a.example.com.")
	}
	if a.Compare(a) != 0 {
		t.Errorf("expected equal names to compare 0")
	}
}
