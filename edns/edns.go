// Package edns implements the OPT pseudo-record (RFC 6891) and its
// option list: known option types with typed codecs, and a generic
// fallback for anything the registry doesn't recognize.
package edns

import (
	"fmt"
	"net/netip"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/wire"
)

// Option codes this package knows how to decode (RFC 6891 §6.1.2, RFC
// 5001 NSID, RFC 7871 CLIENT_SUBNET). UPDATE_LEASE is decoded into the
// typed UpdateLeaseOption. LLQ is carried opaquely per the Open Question
// decision recorded in SPEC_FULL.md: its internal layout (RFC
// draft-sekar-dns-llq, expired) is not load-bearing for this library, so
// LLQOption's Data is kept as an uninterpreted blob rather than guessing a
// field layout from an expired draft.
const (
	CodeLLQ          uint16 = 1
	CodeUpdateLease  uint16 = 2
	CodeNSID         uint16 = 3
	CodeClientSubnet uint16 = 8
	CodeExtendedErr  uint16 = 15
)

// Option is one (code, length, data) entry carried by an OPT record.
type Option interface {
	Code() uint16
	Encode(w *wire.Writer)
	String() string
}

// decoders maps an option code to a function that parses its data bytes.
var decoders = map[uint16]func([]byte) Option{
	CodeNSID:         func(b []byte) Option { return &NSIDOption{Data: b} },
	CodeClientSubnet: decodeClientSubnet,
	CodeLLQ:          func(b []byte) Option { return &LLQOption{Data: b} },
	CodeUpdateLease:  decodeUpdateLease,
	CodeExtendedErr:  decodeExtendedError,
}

func decodeOption(code uint16, data []byte) Option {
	if dec, ok := decoders[code]; ok {
		return dec(data)
	}
	return &GenericOption{CodeVal: code, Data: data}
}

// NSIDOption is the server identifier option (RFC 5001): opaque bytes
// with no wire substructure.
type NSIDOption struct{ Data []byte }

func (o *NSIDOption) Code() uint16        { return CodeNSID }
func (o *NSIDOption) Encode(w *wire.Writer) { w.Bytes(o.Data) }
func (o *NSIDOption) String() string       { return fmt.Sprintf("NSID %x", o.Data) }

// ClientSubnetOption carries EDNS Client Subnet data (RFC 7871 §6).
type ClientSubnetOption struct {
	Family       uint16
	SourcePrefix uint8
	ScopePrefix  uint8
	Address      netip.Addr
}

func (o *ClientSubnetOption) Code() uint16 { return CodeClientSubnet }

func (o *ClientSubnetOption) Encode(w *wire.Writer) {
	w.U16(o.Family)
	w.U8(o.SourcePrefix)
	w.U8(o.ScopePrefix)
	addrBytes := addressBytes(o.Address, o.SourcePrefix)
	w.Bytes(addrBytes)
}

func (o *ClientSubnetOption) String() string {
	return fmt.Sprintf("CLIENT-SUBNET %s/%d/%d", o.Address, o.SourcePrefix, o.ScopePrefix)
}

// addressBytes truncates addr's wire form to the number of whole octets
// needed for a /prefix, per RFC 7871 §6's rule that only significant
// octets are transmitted.
func addressBytes(addr netip.Addr, prefix uint8) []byte {
	octets := (int(prefix) + 7) / 8
	if addr.Is4() {
		b := addr.As4()
		if octets > 4 {
			octets = 4
		}
		return b[:octets]
	}
	b := addr.As16()
	if octets > 16 {
		octets = 16
	}
	return b[:octets]
}

func decodeClientSubnet(data []byte) Option {
	if len(data) < 4 {
		return &GenericOption{CodeVal: CodeClientSubnet, Data: data}
	}
	family := uint16(data[0])<<8 | uint16(data[1])
	source := data[2]
	scope := data[3]
	addrBytes := data[4:]
	var addr netip.Addr
	if family == 1 {
		var buf [4]byte
		copy(buf[:], addrBytes)
		addr = netip.AddrFrom4(buf)
	} else {
		var buf [16]byte
		copy(buf[:], addrBytes)
		addr = netip.AddrFrom16(buf)
	}
	return &ClientSubnetOption{Family: family, SourcePrefix: source, ScopePrefix: scope, Address: addr}
}

// LLQOption carries Long-Lived Query option data opaquely — see the
// package doc comment on CodeLLQ for why this type does not decode a
// field layout.
type LLQOption struct{ Data []byte }

func (o *LLQOption) Code() uint16         { return CodeLLQ }
func (o *LLQOption) Encode(w *wire.Writer) { w.Bytes(o.Data) }
func (o *LLQOption) String() string        { return fmt.Sprintf("LLQ %x", o.Data) }

// UpdateLeaseOption carries the DNS Update Lease duration, in seconds
// (draft-sekar-dns-ul §3): a single uint32.
type UpdateLeaseOption struct{ LeaseSeconds uint32 }

func (o *UpdateLeaseOption) Code() uint16 { return CodeUpdateLease }
func (o *UpdateLeaseOption) Encode(w *wire.Writer) { w.U32(o.LeaseSeconds) }
func (o *UpdateLeaseOption) String() string {
	return fmt.Sprintf("UPDATE-LEASE %d", o.LeaseSeconds)
}

func decodeUpdateLease(data []byte) Option {
	if len(data) != 4 {
		return &GenericOption{CodeVal: CodeUpdateLease, Data: data}
	}
	v := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	return &UpdateLeaseOption{LeaseSeconds: v}
}

// ExtendedErrorOption is an Extended DNS Error (RFC 8914 §2): a 2-byte
// info code followed by an optional UTF-8 extra-text string.
type ExtendedErrorOption struct {
	InfoCode uint16
	ExtraText string
}

func (o *ExtendedErrorOption) Code() uint16 { return CodeExtendedErr }

func (o *ExtendedErrorOption) Encode(w *wire.Writer) {
	w.U16(o.InfoCode)
	w.Bytes([]byte(o.ExtraText))
}

func (o *ExtendedErrorOption) String() string {
	return fmt.Sprintf("EDE %d %q", o.InfoCode, o.ExtraText)
}

func decodeExtendedError(data []byte) Option {
	if len(data) < 2 {
		return &GenericOption{CodeVal: CodeExtendedErr, Data: data}
	}
	info := uint16(data[0])<<8 | uint16(data[1])
	return &ExtendedErrorOption{InfoCode: info, ExtraText: string(data[2:])}
}

// Extended DNS Error info codes this library names (RFC 8914 §4).
const (
	EDEOther               uint16 = 0
	EDEUnsupportedDNSKEY   uint16 = 1
	EDEUnsupportedDS       uint16 = 2
	EDEStaleAnswer         uint16 = 3
	EDEForgedAnswer        uint16 = 4
	EDEDNSSECIndeterminate uint16 = 5
	EDEDNSSECBogus         uint16 = 6
	EDESignatureExpired    uint16 = 7
	EDESignatureNotYet     uint16 = 8
	EDEMissingDNSKEY       uint16 = 9
	EDEMissingDS           uint16 = 10
	EDEBlocked             uint16 = 15
	EDECensored            uint16 = 16
	EDEFiltered            uint16 = 17
	EDEProhibited          uint16 = 18
)

// GenericOption is the fallback for any option code this package has no
// typed decoder for: carried as opaque bytes and re-emitted verbatim.
type GenericOption struct {
	CodeVal uint16
	Data    []byte
}

func (o *GenericOption) Code() uint16         { return o.CodeVal }
func (o *GenericOption) Encode(w *wire.Writer) { w.Bytes(o.Data) }
func (o *GenericOption) String() string {
	return fmt.Sprintf("OPT%d %x", o.CodeVal, o.Data)
}

// OPT is the EDNS(0) pseudo-record (RFC 6891 §6.1). It is never a real
// owner-named record: Name is always the root, Class carries the UDP
// payload size, and TTL is repurposed into extended-rcode/version/flags.
type OPT struct {
	UDPPayloadSize uint16
	ExtendedRcode  uint8
	Version        uint8
	DNSSECOK       bool
	Options        []Option
}

func (o *OPT) Type() uint16 { return rdata.TypeOPT }

func (o *OPT) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	for _, opt := range o.Options {
		w.U16(opt.Code())
		lenPos := w.ReserveU16()
		start := w.Position()
		opt.Encode(w)
		w.PatchU16(lenPos, uint16(w.Position()-start))
	}
	return nil
}

func (o *OPT) Unpack(r *wire.Reader) error {
	var opts []Option
	for r.Len() > 0 {
		code, err := r.U16()
		if err != nil {
			return err
		}
		length, err := r.U16()
		if err != nil {
			return err
		}
		data, err := r.Bytes(int(length))
		if err != nil {
			return err
		}
		opts = append(opts, decodeOption(code, data))
	}
	o.Options = opts
	return nil
}

func (o *OPT) String() string {
	out := fmt.Sprintf("; EDNS: version: %d, flags:; udp: %d", o.Version, o.UDPPayloadSize)
	for _, opt := range o.Options {
		out += "\n; " + opt.String()
	}
	return out
}

// TTLField packs ExtendedRcode/Version/DNSSECOK into the 32-bit TTL slot
// an OPT record's fixed header carries them in (RFC 6891 §6.1.3).
func (o *OPT) TTLField() uint32 {
	ttl := uint32(o.ExtendedRcode) << 24
	ttl |= uint32(o.Version) << 16
	if o.DNSSECOK {
		ttl |= 1 << 15
	}
	return ttl
}

// NewRecord builds the rdata.RR carrying this OPT pseudo-record, ready to
// append to a message's additional section.
func (o *OPT) NewRecord() rdata.RR {
	return rdata.RR{
		Header: rdata.Header{Name: dname.Root, Type: rdata.TypeOPT, Class: o.UDPPayloadSize, TTL: o.TTLField()},
		Rdata:  o,
	}
}

// FromTTL decodes the extended-rcode/version/DO-bit fields out of an
// OPT record's raw TTL, the inverse of TTLField.
func FromTTL(ttl uint32) (extendedRcode, version uint8, dnssecOK bool) {
	extendedRcode = uint8(ttl >> 24)
	version = uint8((ttl >> 16) & 0xFF)
	dnssecOK = ttl&(1<<15) != 0
	return
}

// ParseRR recovers an *OPT from a generic resource record decoded by the
// record registry (the registry has no entry for type 41 — OPT repurposes
// class/TTL outside the normal class/TTL contract, so it is parsed here
// rather than registered as an ordinary rdata type).
func ParseRR(rr rdata.RR) (*OPT, error) {
	var data []byte
	switch v := rr.Rdata.(type) {
	case *rdata.Generic:
		data = v.Data
	case *OPT:
		return v, nil
	default:
		return nil, fmt.Errorf("edns: record of type %s is not an OPT", rdata.TypeName(rr.Header.Type))
	}
	ercode, version, do := FromTTL(rr.Header.TTL)
	opt := &OPT{UDPPayloadSize: rr.Header.Class, ExtendedRcode: ercode, Version: version, DNSSECOK: do}
	r := wire.NewReader(data)
	if err := r.PushRegion(len(data)); err != nil {
		return nil, err
	}
	if err := opt.Unpack(r); err != nil {
		return nil, err
	}
	return opt, nil
}
