package rdata

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/wire"
)

// WKS is a well-known-services record (RFC 1035 §3.4.2): an IPv4 address,
// a protocol octet, and a bitmap of listening ports.
type WKS struct {
	Addr     netip.Addr
	Protocol uint8
	BitMap   []byte
}

func (r *WKS) Type() uint16 { return TypeWKS }

func (r *WKS) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	if !r.Addr.Is4() {
		return fmt.Errorf("rdata: WKS record requires an IPv4 address, got %s", r.Addr)
	}
	b := r.Addr.As4()
	w.Bytes(b[:])
	w.U8(r.Protocol)
	w.Bytes(r.BitMap)
	return nil
}

func (r *WKS) Unpack(rd *wire.Reader) error {
	b, err := rd.Bytes(4)
	if err != nil {
		return err
	}
	proto, err := rd.U8()
	if err != nil {
		return err
	}
	bitmap, err := rd.Remaining()
	if err != nil {
		return err
	}
	*r = WKS{Addr: netip.AddrFrom4([4]byte(b)), Protocol: proto, BitMap: bitmap}
	return nil
}

func (r *WKS) String() string {
	ports := make([]string, 0, len(r.BitMap)*8)
	for i, b := range r.BitMap {
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>uint(bit)) != 0 {
				ports = append(ports, strconv.Itoa(i*8+bit))
			}
		}
	}
	return fmt.Sprintf("%s %d %s", r.Addr, r.Protocol, strings.Join(ports, " "))
}

// APLItem is one address-prefix entry within an APL record.
type APLItem struct {
	AddressFamily uint16
	Prefix        uint8
	Negate        bool
	AFData        []byte
}

// APL is an address prefix list (RFC 3123): a sequence of family/prefix/
// negate/data tuples.
type APL struct{ Items []APLItem }

func (r *APL) Type() uint16 { return TypeAPL }

func (r *APL) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	for _, item := range r.Items {
		w.U16(item.AddressFamily)
		w.U8(item.Prefix)
		afdlen := uint8(len(item.AFData))
		if item.Negate {
			afdlen |= 0x80
		}
		w.U8(afdlen)
		w.Bytes(item.AFData)
	}
	return nil
}

func (r *APL) Unpack(rd *wire.Reader) error {
	var items []APLItem
	for rd.Len() > 0 {
		family, err := rd.U16()
		if err != nil {
			return err
		}
		prefix, err := rd.U8()
		if err != nil {
			return err
		}
		lenByte, err := rd.U8()
		if err != nil {
			return err
		}
		negate := lenByte&0x80 != 0
		afdlen := int(lenByte &^ 0x80)
		data, err := rd.Bytes(afdlen)
		if err != nil {
			return err
		}
		items = append(items, APLItem{AddressFamily: family, Prefix: prefix, Negate: negate, AFData: data})
	}
	r.Items = items
	return nil
}

func (r *APL) String() string {
	parts := make([]string, len(r.Items))
	for i, item := range r.Items {
		neg := ""
		if item.Negate {
			neg = "!"
		}
		parts[i] = fmt.Sprintf("%s%d:%x/%d", neg, item.AddressFamily, item.AFData, item.Prefix)
	}
	return strings.Join(parts, " ")
}

// TKEY negotiates a shared secret out-of-band (RFC 2930). Like TSIG its
// algorithm name is never compressed.
type TKEY struct {
	Algorithm  dname.Name
	Inception  uint32
	Expiration uint32
	Mode       uint16
	Error      uint16
	Key        []byte
	Other      []byte
}

func (r *TKEY) Type() uint16 { return TypeTKEY }

func (r *TKEY) Pack(w *wire.Writer, _ dname.CompressionMap, canonical bool) error {
	alg := r.Algorithm
	if canonical {
		alg = alg.CanonicalLower()
	}
	if err := alg.Encode(w, nil, canonical); err != nil {
		return err
	}
	w.U32(r.Inception)
	w.U32(r.Expiration)
	w.U16(r.Mode)
	w.U16(r.Error)
	w.U16(uint16(len(r.Key)))
	w.Bytes(r.Key)
	w.U16(uint16(len(r.Other)))
	w.Bytes(r.Other)
	return nil
}

func (r *TKEY) Unpack(rd *wire.Reader) error {
	alg, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	inception, err := rd.U32()
	if err != nil {
		return err
	}
	expiration, err := rd.U32()
	if err != nil {
		return err
	}
	mode, err := rd.U16()
	if err != nil {
		return err
	}
	errCode, err := rd.U16()
	if err != nil {
		return err
	}
	keyLen, err := rd.U16()
	if err != nil {
		return err
	}
	key, err := rd.Bytes(int(keyLen))
	if err != nil {
		return err
	}
	otherLen, err := rd.U16()
	if err != nil {
		return err
	}
	other, err := rd.Bytes(int(otherLen))
	if err != nil {
		return err
	}
	*r = TKEY{Algorithm: alg, Inception: inception, Expiration: expiration, Mode: mode, Error: errCode, Key: key, Other: other}
	return nil
}

func (r *TKEY) String() string {
	return fmt.Sprintf("%s %d %d %d %d", r.Algorithm, r.Inception, r.Expiration, r.Mode, r.Error)
}

// TSIGRdata is the rdata carried by a TSIG pseudo-record (RFC 2845 §2.3).
// Signing/verification logic lives in the tsig package; this type only
// frames the bytes. AlgorithmName is never compressed.
type TSIGRdata struct {
	AlgorithmName dname.Name
	TimeSigned    uint64 // 48-bit value
	Fudge         uint16
	MAC           []byte
	OriginalID    uint16
	Error         uint16
	Other         []byte
}

func (r *TSIGRdata) Type() uint16 { return TypeTSIG }

func (r *TSIGRdata) Pack(w *wire.Writer, _ dname.CompressionMap, canonical bool) error {
	alg := r.AlgorithmName
	if canonical {
		alg = alg.CanonicalLower()
	}
	if err := alg.Encode(w, nil, canonical); err != nil {
		return err
	}
	w.U16(uint16(r.TimeSigned >> 32))
	w.U32(uint32(r.TimeSigned & 0xFFFFFFFF))
	w.U16(r.Fudge)
	w.U16(uint16(len(r.MAC)))
	w.Bytes(r.MAC)
	w.U16(r.OriginalID)
	w.U16(r.Error)
	w.U16(uint16(len(r.Other)))
	w.Bytes(r.Other)
	return nil
}

func (r *TSIGRdata) Unpack(rd *wire.Reader) error {
	alg, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	timeHigh, err := rd.U16()
	if err != nil {
		return err
	}
	timeLow, err := rd.U32()
	if err != nil {
		return err
	}
	fudge, err := rd.U16()
	if err != nil {
		return err
	}
	macLen, err := rd.U16()
	if err != nil {
		return err
	}
	mac, err := rd.Bytes(int(macLen))
	if err != nil {
		return err
	}
	origID, err := rd.U16()
	if err != nil {
		return err
	}
	errCode, err := rd.U16()
	if err != nil {
		return err
	}
	otherLen, err := rd.U16()
	if err != nil {
		return err
	}
	other, err := rd.Bytes(int(otherLen))
	if err != nil {
		return err
	}
	*r = TSIGRdata{
		AlgorithmName: alg,
		TimeSigned:    uint64(timeHigh)<<32 | uint64(timeLow),
		Fudge:         fudge, MAC: mac, OriginalID: origID, Error: errCode, Other: other,
	}
	return nil
}

func (r *TSIGRdata) String() string {
	return fmt.Sprintf("%s %d %d ...", r.AlgorithmName, r.TimeSigned, r.Fudge)
}

// NULL is the RFC 1035 §3.3.10 any-data placeholder: opaque bytes, no
// interpretation.
type NULL struct{ Data []byte }

func (r *NULL) Type() uint16 { return TypeNULL }

func (r *NULL) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.Bytes(r.Data)
	return nil
}

func (r *NULL) Unpack(rd *wire.Reader) error {
	b, err := rd.Remaining()
	if err != nil {
		return err
	}
	r.Data = b
	return nil
}

func (r *NULL) String() string { return fmt.Sprintf("\\# %d %x", len(r.Data), r.Data) }
