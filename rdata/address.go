package rdata

import (
	"fmt"
	"net/netip"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/wire"
)

// TypeA and friends are the RR type codes the registry knows about
// (RFC 1035 §3.2.2 + the RFCs named per type below).
const (
	TypeA          uint16 = 1
	TypeNS         uint16 = 2
	TypeMD         uint16 = 3
	TypeMF         uint16 = 4
	TypeCNAME      uint16 = 5
	TypeSOA        uint16 = 6
	TypeMB         uint16 = 7
	TypeMG         uint16 = 8
	TypeMR         uint16 = 9
	TypeNULL       uint16 = 10
	TypeWKS        uint16 = 11
	TypePTR        uint16 = 12
	TypeHINFO      uint16 = 13
	TypeMINFO      uint16 = 14
	TypeMX         uint16 = 15
	TypeTXT        uint16 = 16
	TypeRP         uint16 = 17
	TypeAFSDB      uint16 = 18
	TypeX25        uint16 = 19
	TypeISDN       uint16 = 20
	TypeRT         uint16 = 21
	TypeSIG        uint16 = 24
	TypeKEY        uint16 = 25
	TypeAAAA       uint16 = 28
	TypeLOC        uint16 = 29
	TypeSRV        uint16 = 33
	TypeNAPTR      uint16 = 35
	TypeKX         uint16 = 36
	TypeCERT       uint16 = 37
	TypeDNAME      uint16 = 39
	TypeOPT        uint16 = 41
	TypeAPL        uint16 = 42
	TypeDS         uint16 = 43
	TypeSSHFP      uint16 = 44
	TypeRRSIG      uint16 = 46
	TypeNSEC       uint16 = 47
	TypeDNSKEY     uint16 = 48
	TypeDHCID      uint16 = 49
	TypeNSEC3      uint16 = 50
	TypeNSEC3PARAM uint16 = 51
	TypeTLSA       uint16 = 52
	TypeSPF        uint16 = 99
	TypeTKEY       uint16 = 249
	TypeTSIG       uint16 = 250
	TypeIXFR       uint16 = 251
	TypeAXFR       uint16 = 252
	TypeANY        uint16 = 255
)

// A is an IPv4 address record.
type A struct{ Addr netip.Addr }

func (r *A) Type() uint16 { return TypeA }

func (r *A) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	if !r.Addr.Is4() {
		return fmt.Errorf("rdata: A record requires an IPv4 address, got %s", r.Addr)
	}
	b := r.Addr.As4()
	w.Bytes(b[:])
	return nil
}

func (r *A) Unpack(rd *wire.Reader) error {
	b, err := rd.Bytes(4)
	if err != nil {
		return err
	}
	r.Addr = netip.AddrFrom4([4]byte(b))
	return nil
}

func (r *A) String() string { return r.Addr.String() }

// AAAA is an IPv6 address record.
type AAAA struct{ Addr netip.Addr }

func (r *AAAA) Type() uint16 { return TypeAAAA }

func (r *AAAA) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	if !r.Addr.Is6() {
		return fmt.Errorf("rdata: AAAA record requires an IPv6 address, got %s", r.Addr)
	}
	b := r.Addr.As16()
	w.Bytes(b[:])
	return nil
}

func (r *AAAA) Unpack(rd *wire.Reader) error {
	b, err := rd.Bytes(16)
	if err != nil {
		return err
	}
	r.Addr = netip.AddrFrom16([16]byte(b))
	return nil
}

func (r *AAAA) String() string { return r.Addr.String() }
