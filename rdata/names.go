package rdata

import (
	"strconv"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/wire"
)

// NameRdata covers every RR whose entire rdata is a single domain name:
// NS, CNAME, PTR, MD, MF, MB, MG (all compressible, §4.B's "small historic
// set") and DNAME (never compressible, required for DNAME-chain
// canonicalization per §4.B).
type NameRdata struct {
	TypeCode   uint16
	Target     dname.Name
	Compresses bool
}

func newNameRdata(code uint16, compresses bool) func() Rdata {
	return func() Rdata { return &NameRdata{TypeCode: code, Compresses: compresses} }
}

func (r *NameRdata) Type() uint16 { return r.TypeCode }

func (r *NameRdata) Pack(w *wire.Writer, comp dname.CompressionMap, canonical bool) error {
	target := r.Target
	useComp := comp
	if !r.Compresses || canonical {
		useComp = nil
	}
	if canonical {
		target = target.CanonicalLower()
	}
	return target.Encode(w, useComp, canonical)
}

func (r *NameRdata) Unpack(rd *wire.Reader) error {
	n, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	r.Target = n
	return nil
}

func (r *NameRdata) String() string { return r.Target.String() }

// PreferenceNameRdata covers MX (compressible exchange name) and the
// structurally identical AFSDB/RT/KX (never compressible).
type PreferenceNameRdata struct {
	TypeCode     uint16
	Preference   uint16
	Exchange     dname.Name
	Compresses   bool
	FieldKeyword string // "exchange" vs "subtype"/"host" for presentation clarity
}

func newPreferenceNameRdata(code uint16, compresses bool, keyword string) func() Rdata {
	return func() Rdata {
		return &PreferenceNameRdata{TypeCode: code, Compresses: compresses, FieldKeyword: keyword}
	}
}

func (r *PreferenceNameRdata) Type() uint16 { return r.TypeCode }

func (r *PreferenceNameRdata) Pack(w *wire.Writer, comp dname.CompressionMap, canonical bool) error {
	w.U16(r.Preference)
	exch := r.Exchange
	useComp := comp
	if !r.Compresses || canonical {
		useComp = nil
	}
	if canonical {
		exch = exch.CanonicalLower()
	}
	return exch.Encode(w, useComp, canonical)
}

func (r *PreferenceNameRdata) Unpack(rd *wire.Reader) error {
	pref, err := rd.U16()
	if err != nil {
		return err
	}
	n, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	r.Preference = pref
	r.Exchange = n
	return nil
}

func (r *PreferenceNameRdata) String() string {
	return strconv.Itoa(int(r.Preference)) + " " + r.Exchange.String()
}

// TwoNameRdata covers RP (mbox-dname, txt-dname) and MINFO (rmailbx,
// emailbx): two names back to back, MINFO's historically compressible,
// RP's not.
type TwoNameRdata struct {
	TypeCode   uint16
	First      dname.Name
	Second     dname.Name
	Compresses bool
}

func newTwoNameRdata(code uint16, compresses bool) func() Rdata {
	return func() Rdata { return &TwoNameRdata{TypeCode: code, Compresses: compresses} }
}

func (r *TwoNameRdata) Type() uint16 { return r.TypeCode }

func (r *TwoNameRdata) Pack(w *wire.Writer, comp dname.CompressionMap, canonical bool) error {
	useComp := comp
	if !r.Compresses || canonical {
		useComp = nil
	}
	first, second := r.First, r.Second
	if canonical {
		first, second = first.CanonicalLower(), second.CanonicalLower()
	}
	if err := first.Encode(w, useComp, canonical); err != nil {
		return err
	}
	return second.Encode(w, useComp, canonical)
}

func (r *TwoNameRdata) Unpack(rd *wire.Reader) error {
	a, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	b, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	r.First, r.Second = a, b
	return nil
}

func (r *TwoNameRdata) String() string { return r.First.String() + " " + r.Second.String() }
