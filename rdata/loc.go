package rdata

import (
	"fmt"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/wire"
)

// LOC is geographic location information (RFC 1876 §2): version plus
// size/precision octets in the RFC's "exponential" encoding and raw
// latitude/longitude fields (1000ths of an arc-second) and altitude field
// (centimetres), all biased so the wire form never goes negative.
type LOC struct {
	Version   uint8
	Size      uint8
	HorizPre  uint8
	VertPre   uint8
	Latitude  uint32
	Longitude uint32
	Altitude  uint32
}

func (r *LOC) Type() uint16 { return TypeLOC }

func (r *LOC) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.U8(r.Version)
	w.U8(r.Size)
	w.U8(r.HorizPre)
	w.U8(r.VertPre)
	w.U32(r.Latitude)
	w.U32(r.Longitude)
	w.U32(r.Altitude)
	return nil
}

func (r *LOC) Unpack(rd *wire.Reader) error {
	version, err := rd.U8()
	if err != nil {
		return err
	}
	size, err := rd.U8()
	if err != nil {
		return err
	}
	horiz, err := rd.U8()
	if err != nil {
		return err
	}
	vert, err := rd.U8()
	if err != nil {
		return err
	}
	lat, err := rd.U32()
	if err != nil {
		return err
	}
	lon, err := rd.U32()
	if err != nil {
		return err
	}
	alt, err := rd.U32()
	if err != nil {
		return err
	}
	*r = LOC{Version: version, Size: size, HorizPre: horiz, VertPre: vert, Latitude: lat, Longitude: lon, Altitude: alt}
	return nil
}

// degrees decodes an RFC 1876 latitude/longitude field (1000ths of an
// arcsecond, biased by 2^31) into signed degrees, minutes, seconds.
func degrees(v uint32, positive, negative string) string {
	const equator = 1 << 31
	signed := int64(v) - equator
	hemi := positive
	if signed < 0 {
		hemi = negative
		signed = -signed
	}
	totalMillis := signed
	d := totalMillis / (3600 * 1000)
	totalMillis -= d * 3600 * 1000
	m := totalMillis / (60 * 1000)
	totalMillis -= m * 60 * 1000
	s := float64(totalMillis) / 1000.0
	return fmt.Sprintf("%d %d %.3f %s", d, m, s, hemi)
}

func (r *LOC) String() string {
	alt := (float64(r.Altitude) - 10000000) / 100.0
	return fmt.Sprintf("%s %s %.2fm", degrees(r.Latitude, "N", "S"), degrees(r.Longitude, "E", "W"), alt)
}
