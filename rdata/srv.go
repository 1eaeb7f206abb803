package rdata

import (
	"strconv"
	"strings"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/wire"
)

// SRV is a service locator (RFC 2782): priority, weight, port, and a
// non-compressible target name.
type SRV struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   dname.Name
}

func (r *SRV) Type() uint16 { return TypeSRV }

func (r *SRV) Pack(w *wire.Writer, _ dname.CompressionMap, canonical bool) error {
	w.U16(r.Priority)
	w.U16(r.Weight)
	w.U16(r.Port)
	target := r.Target
	if canonical {
		target = target.CanonicalLower()
	}
	return target.Encode(w, nil, canonical)
}

func (r *SRV) Unpack(rd *wire.Reader) error {
	pri, err := rd.U16()
	if err != nil {
		return err
	}
	weight, err := rd.U16()
	if err != nil {
		return err
	}
	port, err := rd.U16()
	if err != nil {
		return err
	}
	target, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	*r = SRV{Priority: pri, Weight: weight, Port: port, Target: target}
	return nil
}

func (r *SRV) String() string {
	return strings.Join([]string{
		strconv.Itoa(int(r.Priority)), strconv.Itoa(int(r.Weight)), strconv.Itoa(int(r.Port)), r.Target.String(),
	}, " ")
}
