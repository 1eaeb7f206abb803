// Package rdata implements the per-record-type wire/presentation codec
// table described by §4.C: an Rdata interface playing the role of a
// discriminated union (one small struct per record type, replacing the
// deep per-type inheritance of the source this library's behavior is
// modeled on), a registry mapping numeric type code to constructor, and a
// generic fallback for any type the registry does not know.
package rdata

import (
	"fmt"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/wire"
)

// Rdata is the type-specific payload of a resource record. Implementations
// must be safe to construct via a zero value (the registry's constructors
// return one) and must read/write exactly their own rdata bytes — callers
// bound the wire region to rdlength before calling Unpack.
type Rdata interface {
	// Type returns this rdata's RR type code.
	Type() uint16
	// Pack appends the wire-format rdata to w. comp, when non-nil, is the
	// in-progress message compression table; canonical disables
	// compression and lowercases any embedded names (§4.B/§4.C).
	Pack(w *wire.Writer, comp dname.CompressionMap, canonical bool) error
	// Unpack reads the wire-format rdata from r, whose active region is
	// already bounded to exactly rdlength bytes.
	Unpack(r *wire.Reader) error
	// String renders the rdata in presentation form.
	String() string
}

// Header is the fixed (non-rdata) portion of a resource record: owner
// name, type, class, and TTL (§3 Record).
type Header struct {
	Name  dname.Name
	Type  uint16
	Class uint16
	TTL   uint32
}

// RR is a complete resource record: header plus type-specific rdata.
type RR struct {
	Header Header
	Rdata  Rdata
}

// Name returns the record's owner name, satisfying the "common operations
// across record kinds" shape used by RRset grouping.
func (rr RR) Name() dname.Name { return rr.Header.Name }

// Type returns the record's wire type code as recorded in Header.Type
// (ReadRR and the constructors keep it in sync with Rdata).
func (rr RR) Type() uint16 { return rr.Header.Type }

// String renders rr in a one-line presentation form:
// "name TTL CLASS TYPE rdata".
func (rr RR) String() string {
	return fmt.Sprintf("%s\t%d\t%s\t%s\t%s", rr.Header.Name, rr.Header.TTL, ClassString(rr.Header.Class), TypeName(rr.Header.Type), rr.Rdata.String())
}

// Equal implements §3's record equality: deep comparison of name, type,
// class, and rdata — TTL is intentionally excluded.
func (rr RR) Equal(other RR) bool {
	if !rr.Header.Name.Equal(other.Header.Name) {
		return false
	}
	if rr.Header.Type != other.Header.Type || rr.Header.Class != other.Header.Class {
		return false
	}
	return rr.Rdata.String() == other.Rdata.String() && sameWire(rr, other)
}

func sameWire(a, b RR) bool {
	wa := wire.NewWriter(64)
	wb := wire.NewWriter(64)
	_ = a.Rdata.Pack(wa, nil, true)
	_ = b.Rdata.Pack(wb, nil, true)
	if len(wa.Buf) != len(wb.Buf) {
		return false
	}
	for i := range wa.Buf {
		if wa.Buf[i] != wb.Buf[i] {
			return false
		}
	}
	return true
}

// TypeInfo describes one registered record type: its numeric code,
// presentation name, a constructor for a blank instance, and whether its
// rdata historically participates in name compression (only a small
// legacy set does — §4.B).
type TypeInfo struct {
	Code              uint16
	Name              string
	New               func() Rdata
	CompressibleNames bool
}

var (
	byCode = map[uint16]TypeInfo{}
	byName = map[string]TypeInfo{}
)

// Register adds a type to the process-wide registry. Intended to be
// called from package init() functions only (§5: "a process-wide
// read-mostly table; entries are registered at startup and not mutated
// thereafter").
func Register(info TypeInfo) {
	byCode[info.Code] = info
	byName[info.Name] = info
}

// Lookup returns the registered TypeInfo for a numeric type code.
func Lookup(code uint16) (TypeInfo, bool) {
	info, ok := byCode[code]
	return info, ok
}

// LookupByName returns the registered TypeInfo for a presentation name
// such as "A" or "RRSIG".
func LookupByName(name string) (TypeInfo, bool) {
	info, ok := byName[name]
	return info, ok
}

// TypeName renders a numeric type code using its registered presentation
// name, falling back to the generic "TYPEnnn" form (RFC 3597) for unknown
// codes.
func TypeName(code uint16) string {
	if info, ok := byCode[code]; ok {
		return info.Name
	}
	return fmt.Sprintf("TYPE%d", code)
}

// ClassString renders the handful of DNS classes §3 cares about.
func ClassString(class uint16) string {
	switch class {
	case ClassIN:
		return "IN"
	case ClassCH:
		return "CH"
	case ClassHS:
		return "HS"
	case ClassNONE:
		return "NONE"
	case ClassANY:
		return "ANY"
	default:
		return fmt.Sprintf("CLASS%d", class)
	}
}

// DNS classes (RFC 1035 §3.2.4, RFC 2136 §2.5 for NONE/ANY-as-deletion).
const (
	ClassIN   uint16 = 1
	ClassCH   uint16 = 3
	ClassHS   uint16 = 4
	ClassNONE uint16 = 254
	ClassANY  uint16 = 255
)

// New returns a blank Rdata instance for code, consulting the registry
// first and falling back to an opaque Generic record for anything
// unregistered (§4.C).
func New(code uint16) Rdata {
	if info, ok := byCode[code]; ok {
		return info.New()
	}
	return &Generic{TypeCode: code}
}

// ReadRR decodes one resource record: name, type, class, ttl, rdlength,
// then rdata narrowed to exactly rdlength bytes via the reader's active
// region (§4.C).
func ReadRR(r *wire.Reader) (RR, error) {
	name, err := dname.ParseFrom(r)
	if err != nil {
		return RR{}, err
	}
	typ, err := r.U16()
	if err != nil {
		return RR{}, err
	}
	class, err := r.U16()
	if err != nil {
		return RR{}, err
	}
	ttl, err := r.U32()
	if err != nil {
		return RR{}, err
	}
	rdlen, err := r.U16()
	if err != nil {
		return RR{}, err
	}
	if err := r.PushRegion(int(rdlen)); err != nil {
		return RR{}, err
	}
	defer r.PopRegion()

	rd := New(typ)
	if err := rd.Unpack(r); err != nil {
		return RR{}, fmt.Errorf("rdata: unpack %s: %w", TypeName(typ), err)
	}
	return RR{Header: Header{Name: name, Type: typ, Class: class, TTL: ttl}, Rdata: rd}, nil
}

// WriteRR encodes rr: header fields, then a reserved rdlength, then the
// rdata, then backpatches the real length (§4.C).
func WriteRR(w *wire.Writer, rr RR, comp dname.CompressionMap, canonical bool) error {
	nameForWire := rr.Header.Name
	if canonical {
		nameForWire = nameForWire.CanonicalLower()
	}
	if err := nameForWire.Encode(w, comp, canonical); err != nil {
		return err
	}
	w.U16(rr.Header.Type)
	w.U16(rr.Header.Class)
	w.U32(rr.Header.TTL)
	lenPos := w.ReserveU16()
	start := w.Position()
	if err := rr.Rdata.Pack(w, comp, canonical); err != nil {
		return err
	}
	w.PatchU16(lenPos, uint16(w.Position()-start))
	return nil
}

// Generic is the fallback rdata for any type code the registry does not
// recognize: the rdata is carried as opaque bytes and re-emitted verbatim
// (RFC 3597 "unknown RR" handling).
type Generic struct {
	TypeCode uint16
	Data     []byte
}

func (g *Generic) Type() uint16 { return g.TypeCode }

func (g *Generic) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.Bytes(g.Data)
	return nil
}

func (g *Generic) Unpack(r *wire.Reader) error {
	b, err := r.Remaining()
	if err != nil {
		return err
	}
	g.Data = b
	return nil
}

func (g *Generic) String() string {
	return fmt.Sprintf("\\# %d %x", len(g.Data), g.Data)
}
