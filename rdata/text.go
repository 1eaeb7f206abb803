package rdata

import (
	"strconv"
	"strings"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/wire"
)

// TXTRdata covers TXT and SPF (RFC 1035 §3.3.14, RFC 4408): an ordered
// list of <character-string>s. Two TXT rdata are the same content iff
// their string sequences are pairwise equal — see SameTxt below, which
// corrects the apparent bug the source has in the equivalent method
// (§9 DESIGN NOTES Open Question).
type TXTRdata struct {
	TypeCode uint16
	Strings  []string
}

func newTXTRdata(code uint16) func() Rdata {
	return func() Rdata { return &TXTRdata{TypeCode: code} }
}

func (r *TXTRdata) Type() uint16 { return r.TypeCode }

func (r *TXTRdata) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	if len(r.Strings) == 0 {
		return w.CountedString("")
	}
	for _, s := range r.Strings {
		if err := w.CountedString(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *TXTRdata) Unpack(rd *wire.Reader) error {
	var out []string
	for rd.Len() > 0 {
		s, err := rd.CountedString()
		if err != nil {
			return err
		}
		out = append(out, s)
	}
	r.Strings = out
	return nil
}

func (r *TXTRdata) String() string {
	parts := make([]string, len(r.Strings))
	for i, s := range r.Strings {
		parts[i] = "\"" + s + "\""
	}
	return strings.Join(parts, " ")
}

// SameTxt reports whether a and b's string sequences are pairwise equal.
// The Java source this library's behavior is modeled on returns false
// unconditionally here (an acknowledged bug); this implementation performs
// the actual comparison, per §9.
func SameTxt(a, b *TXTRdata) bool {
	if len(a.Strings) != len(b.Strings) {
		return false
	}
	for i := range a.Strings {
		if a.Strings[i] != b.Strings[i] {
			return false
		}
	}
	return true
}

// HINFO is host information (RFC 1035 §3.3.2): CPU and OS character-strings.
type HINFO struct {
	CPU string
	OS  string
}

func (r *HINFO) Type() uint16 { return TypeHINFO }

func (r *HINFO) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	if err := w.CountedString(r.CPU); err != nil {
		return err
	}
	return w.CountedString(r.OS)
}

func (r *HINFO) Unpack(rd *wire.Reader) error {
	cpu, err := rd.CountedString()
	if err != nil {
		return err
	}
	os, err := rd.CountedString()
	if err != nil {
		return err
	}
	r.CPU, r.OS = cpu, os
	return nil
}

func (r *HINFO) String() string { return "\"" + r.CPU + "\" \"" + r.OS + "\"" }

// X25 carries a PSDN address (RFC 1183 §3.1) as a single character-string.
type X25 struct{ PSDNAddress string }

func (r *X25) Type() uint16 { return TypeX25 }

func (r *X25) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	return w.CountedString(r.PSDNAddress)
}

func (r *X25) Unpack(rd *wire.Reader) error {
	s, err := rd.CountedString()
	if err != nil {
		return err
	}
	r.PSDNAddress = s
	return nil
}

func (r *X25) String() string { return "\"" + r.PSDNAddress + "\"" }

// ISDN is an ISDN address (RFC 1183 §3.2): address plus an optional
// subaddress character-string.
type ISDN struct {
	Address    string
	SubAddress string
}

func (r *ISDN) Type() uint16 { return TypeISDN }

func (r *ISDN) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	if err := w.CountedString(r.Address); err != nil {
		return err
	}
	if r.SubAddress == "" {
		return nil
	}
	return w.CountedString(r.SubAddress)
}

func (r *ISDN) Unpack(rd *wire.Reader) error {
	addr, err := rd.CountedString()
	if err != nil {
		return err
	}
	r.Address = addr
	if rd.Len() == 0 {
		return nil
	}
	sub, err := rd.CountedString()
	if err != nil {
		return err
	}
	r.SubAddress = sub
	return nil
}

func (r *ISDN) String() string {
	if r.SubAddress == "" {
		return "\"" + r.Address + "\""
	}
	return "\"" + r.Address + "\" \"" + r.SubAddress + "\""
}

// NAPTR is a naming authority pointer (RFC 3403): two uint16 fields, three
// character-strings, and a non-compressible replacement name.
type NAPTR struct {
	Order       uint16
	Preference  uint16
	Flags       string
	Services    string
	Regexp      string
	Replacement dname.Name
}

func (r *NAPTR) Type() uint16 { return TypeNAPTR }

func (r *NAPTR) Pack(w *wire.Writer, _ dname.CompressionMap, canonical bool) error {
	w.U16(r.Order)
	w.U16(r.Preference)
	if err := w.CountedString(r.Flags); err != nil {
		return err
	}
	if err := w.CountedString(r.Services); err != nil {
		return err
	}
	if err := w.CountedString(r.Regexp); err != nil {
		return err
	}
	target := r.Replacement
	if canonical {
		target = target.CanonicalLower()
	}
	return target.Encode(w, nil, canonical)
}

func (r *NAPTR) Unpack(rd *wire.Reader) error {
	order, err := rd.U16()
	if err != nil {
		return err
	}
	pref, err := rd.U16()
	if err != nil {
		return err
	}
	flags, err := rd.CountedString()
	if err != nil {
		return err
	}
	services, err := rd.CountedString()
	if err != nil {
		return err
	}
	regexp, err := rd.CountedString()
	if err != nil {
		return err
	}
	replacement, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	*r = NAPTR{Order: order, Preference: pref, Flags: flags, Services: services, Regexp: regexp, Replacement: replacement}
	return nil
}

func (r *NAPTR) String() string {
	return strings.Join([]string{
		strconv.Itoa(int(r.Order)), strconv.Itoa(int(r.Preference)),
		"\"" + r.Flags + "\"", "\"" + r.Services + "\"", "\"" + r.Regexp + "\"",
		r.Replacement.String(),
	}, " ")
}
