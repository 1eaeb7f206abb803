package rdata

import (
	"fmt"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/wire"
)

// SOA is the start-of-authority record (RFC 1035 §3.3.13): MNAME/RNAME are
// historically compressible names, the rest are plain uint32 fields.
type SOA struct {
	MName   dname.Name
	RName   dname.Name
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (r *SOA) Type() uint16 { return TypeSOA }

func (r *SOA) Pack(w *wire.Writer, comp dname.CompressionMap, canonical bool) error {
	mname, rname := r.MName, r.RName
	useComp := comp
	if canonical {
		useComp = nil
		mname, rname = mname.CanonicalLower(), rname.CanonicalLower()
	}
	if err := mname.Encode(w, useComp, canonical); err != nil {
		return err
	}
	if err := rname.Encode(w, useComp, canonical); err != nil {
		return err
	}
	w.U32(r.Serial)
	w.U32(r.Refresh)
	w.U32(r.Retry)
	w.U32(r.Expire)
	w.U32(r.Minimum)
	return nil
}

func (r *SOA) Unpack(rd *wire.Reader) error {
	mname, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	rname, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	serial, err := rd.U32()
	if err != nil {
		return err
	}
	refresh, err := rd.U32()
	if err != nil {
		return err
	}
	retry, err := rd.U32()
	if err != nil {
		return err
	}
	expire, err := rd.U32()
	if err != nil {
		return err
	}
	minimum, err := rd.U32()
	if err != nil {
		return err
	}
	*r = SOA{MName: mname, RName: rname, Serial: serial, Refresh: refresh, Retry: retry, Expire: expire, Minimum: minimum}
	return nil
}

func (r *SOA) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d", r.MName, r.RName, r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum)
}
