package rdata

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/wire"
)

// DNSKEY is a DNSSEC public key (RFC 4034 §2). Validation of the key
// material itself is out of scope; this type only carries the record's
// structure.
type DNSKEY struct {
	Flags     uint16
	Protocol  uint8
	Algorithm uint8
	PublicKey []byte
}

func (r *DNSKEY) Type() uint16 { return TypeDNSKEY }

func (r *DNSKEY) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.U16(r.Flags)
	w.U8(r.Protocol)
	w.U8(r.Algorithm)
	w.Bytes(r.PublicKey)
	return nil
}

func (r *DNSKEY) Unpack(rd *wire.Reader) error {
	flags, err := rd.U16()
	if err != nil {
		return err
	}
	proto, err := rd.U8()
	if err != nil {
		return err
	}
	alg, err := rd.U8()
	if err != nil {
		return err
	}
	key, err := rd.Remaining()
	if err != nil {
		return err
	}
	*r = DNSKEY{Flags: flags, Protocol: proto, Algorithm: alg, PublicKey: key}
	return nil
}

func (r *DNSKEY) String() string {
	return fmt.Sprintf("%d %d %d %s", r.Flags, r.Protocol, r.Algorithm, base64.StdEncoding.EncodeToString(r.PublicKey))
}

// KEY shares DNSKEY's wire layout (RFC 2535, superseded by DNSKEY for
// DNSSEC but still seen in SIG(0)/other uses).
type KEY struct{ DNSKEY }

func (r *KEY) Type() uint16 { return TypeKEY }

// DS is a delegation signer record (RFC 4034 §5): a digest of a child
// zone's DNSKEY, carried by the parent.
type DS struct {
	KeyTag     uint16
	Algorithm  uint8
	DigestType uint8
	Digest     []byte
}

func (r *DS) Type() uint16 { return TypeDS }

func (r *DS) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.U16(r.KeyTag)
	w.U8(r.Algorithm)
	w.U8(r.DigestType)
	w.Bytes(r.Digest)
	return nil
}

func (r *DS) Unpack(rd *wire.Reader) error {
	tag, err := rd.U16()
	if err != nil {
		return err
	}
	alg, err := rd.U8()
	if err != nil {
		return err
	}
	digType, err := rd.U8()
	if err != nil {
		return err
	}
	digest, err := rd.Remaining()
	if err != nil {
		return err
	}
	*r = DS{KeyTag: tag, Algorithm: alg, DigestType: digType, Digest: digest}
	return nil
}

func (r *DS) String() string {
	return fmt.Sprintf("%d %d %d %s", r.KeyTag, r.Algorithm, r.DigestType, strings.ToUpper(hex.EncodeToString(r.Digest)))
}

// RRSIG is a DNSSEC signature over an RRset (RFC 4034 §3). SignerName is
// never compressed (RFC 3597 §4 / RFC 4034 §6.2).
type RRSIG struct {
	TypeCovered uint16
	Algorithm   uint8
	Labels      uint8
	OrigTTL     uint32
	Expiration  uint32
	Inception   uint32
	KeyTag      uint16
	SignerName  dname.Name
	Signature   []byte
}

func newRRSIG(code uint16) func() Rdata {
	return func() Rdata { return &rrsigT{TypeCode: code} }
}

// rrsigT backs both RRSIG and the legacy SIG type, which share a wire
// layout (RFC 2535 §4.1, RFC 4034 §3.1); TypeCode records which name this
// instance renders as.
type rrsigT struct {
	TypeCode uint16
	RRSIG
}

func (r *rrsigT) Type() uint16 { return r.TypeCode }

// CoveredType reports the RR type this signature covers, letting the
// rrset package collapse RRSIG/SIG onto the type they sign.
func (r *rrsigT) CoveredType() uint16 { return r.TypeCovered }

func (r *rrsigT) Pack(w *wire.Writer, _ dname.CompressionMap, canonical bool) error {
	w.U16(r.TypeCovered)
	w.U8(r.Algorithm)
	w.U8(r.Labels)
	w.U32(r.OrigTTL)
	w.U32(r.Expiration)
	w.U32(r.Inception)
	w.U16(r.KeyTag)
	signer := r.SignerName
	if canonical {
		signer = signer.CanonicalLower()
	}
	if err := signer.Encode(w, nil, canonical); err != nil {
		return err
	}
	w.Bytes(r.Signature)
	return nil
}

func (r *rrsigT) Unpack(rd *wire.Reader) error {
	typeCovered, err := rd.U16()
	if err != nil {
		return err
	}
	alg, err := rd.U8()
	if err != nil {
		return err
	}
	labels, err := rd.U8()
	if err != nil {
		return err
	}
	origTTL, err := rd.U32()
	if err != nil {
		return err
	}
	expiration, err := rd.U32()
	if err != nil {
		return err
	}
	inception, err := rd.U32()
	if err != nil {
		return err
	}
	keyTag, err := rd.U16()
	if err != nil {
		return err
	}
	signer, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	sig, err := rd.Remaining()
	if err != nil {
		return err
	}
	r.RRSIG = RRSIG{
		TypeCovered: typeCovered, Algorithm: alg, Labels: labels, OrigTTL: origTTL,
		Expiration: expiration, Inception: inception, KeyTag: keyTag, SignerName: signer, Signature: sig,
	}
	return nil
}

func (r *rrsigT) String() string {
	return fmt.Sprintf("%s %d %d %d %d %d %d %s %s",
		TypeName(r.TypeCovered), r.Algorithm, r.Labels, r.OrigTTL, r.Expiration, r.Inception,
		r.KeyTag, r.SignerName, base64.StdEncoding.EncodeToString(r.Signature))
}

// NSEC proves non-existence by naming the next owner in canonical order
// and the set of types present at this owner (RFC 4034 §4). NextName is
// never compressed.
type NSEC struct {
	NextName   dname.Name
	TypeBitMap []byte
}

func (r *NSEC) Type() uint16 { return TypeNSEC }

func (r *NSEC) Pack(w *wire.Writer, _ dname.CompressionMap, canonical bool) error {
	next := r.NextName
	if canonical {
		next = next.CanonicalLower()
	}
	if err := next.Encode(w, nil, canonical); err != nil {
		return err
	}
	w.Bytes(r.TypeBitMap)
	return nil
}

func (r *NSEC) Unpack(rd *wire.Reader) error {
	next, err := dname.ParseFrom(rd)
	if err != nil {
		return err
	}
	bitmap, err := rd.Remaining()
	if err != nil {
		return err
	}
	r.NextName = next
	r.TypeBitMap = bitmap
	return nil
}

func (r *NSEC) String() string {
	return r.NextName.String() + " " + strings.Join(decodeTypeBitmap(r.TypeBitMap), " ")
}

// NSEC3 is the hashed analogue of NSEC (RFC 5155 §3): algorithm, flags,
// iteration count, salt, next-hashed-owner, and a type bitmap.
type NSEC3 struct {
	HashAlg    uint8
	Flags      uint8
	Iterations uint16
	Salt       []byte
	NextHashed []byte
	TypeBitMap []byte
}

func (r *NSEC3) Type() uint16 { return TypeNSEC3 }

func (r *NSEC3) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.U8(r.HashAlg)
	w.U8(r.Flags)
	w.U16(r.Iterations)
	w.U8(uint8(len(r.Salt)))
	w.Bytes(r.Salt)
	w.U8(uint8(len(r.NextHashed)))
	w.Bytes(r.NextHashed)
	w.Bytes(r.TypeBitMap)
	return nil
}

func (r *NSEC3) Unpack(rd *wire.Reader) error {
	hashAlg, err := rd.U8()
	if err != nil {
		return err
	}
	flags, err := rd.U8()
	if err != nil {
		return err
	}
	iterations, err := rd.U16()
	if err != nil {
		return err
	}
	saltLen, err := rd.U8()
	if err != nil {
		return err
	}
	salt, err := rd.Bytes(int(saltLen))
	if err != nil {
		return err
	}
	hashLen, err := rd.U8()
	if err != nil {
		return err
	}
	nextHashed, err := rd.Bytes(int(hashLen))
	if err != nil {
		return err
	}
	bitmap, err := rd.Remaining()
	if err != nil {
		return err
	}
	*r = NSEC3{HashAlg: hashAlg, Flags: flags, Iterations: iterations, Salt: salt, NextHashed: nextHashed, TypeBitMap: bitmap}
	return nil
}

func (r *NSEC3) String() string {
	return fmt.Sprintf("%d %d %d %s %s %s", r.HashAlg, r.Flags, r.Iterations,
		saltString(r.Salt), base32hexNoPad(r.NextHashed), strings.Join(decodeTypeBitmap(r.TypeBitMap), " "))
}

// NSEC3PARAM advertises the hash parameters a zone uses for its NSEC3
// chain (RFC 5155 §4): same prefix as NSEC3 minus the two hash fields.
type NSEC3PARAM struct {
	HashAlg    uint8
	Flags      uint8
	Iterations uint16
	Salt       []byte
}

func (r *NSEC3PARAM) Type() uint16 { return TypeNSEC3PARAM }

func (r *NSEC3PARAM) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.U8(r.HashAlg)
	w.U8(r.Flags)
	w.U16(r.Iterations)
	w.U8(uint8(len(r.Salt)))
	w.Bytes(r.Salt)
	return nil
}

func (r *NSEC3PARAM) Unpack(rd *wire.Reader) error {
	hashAlg, err := rd.U8()
	if err != nil {
		return err
	}
	flags, err := rd.U8()
	if err != nil {
		return err
	}
	iterations, err := rd.U16()
	if err != nil {
		return err
	}
	saltLen, err := rd.U8()
	if err != nil {
		return err
	}
	salt, err := rd.Bytes(int(saltLen))
	if err != nil {
		return err
	}
	*r = NSEC3PARAM{HashAlg: hashAlg, Flags: flags, Iterations: iterations, Salt: salt}
	return nil
}

func (r *NSEC3PARAM) String() string {
	return fmt.Sprintf("%d %d %d %s", r.HashAlg, r.Flags, r.Iterations, saltString(r.Salt))
}

func saltString(salt []byte) string {
	if len(salt) == 0 {
		return "-"
	}
	return strings.ToUpper(hex.EncodeToString(salt))
}

func base32hexNoPad(b []byte) string {
	return strings.ToLower(base32.HexEncoding.WithPadding(base32.NoPadding).EncodeToString(b))
}

// decodeTypeBitmap renders an RFC 4034 §4.1.2 window-block type bitmap as
// a sequence of presentation-form type names, for String() only — the
// rrset package owns the canonical builder used for signing/encoding.
func decodeTypeBitmap(b []byte) []string {
	var out []string
	for i := 0; i+2 <= len(b); {
		window := int(b[i])
		length := int(b[i+1])
		i += 2
		if i+length > len(b) {
			break
		}
		for j := 0; j < length; j++ {
			bits := b[i+j]
			for bit := 0; bit < 8; bit++ {
				if bits&(0x80>>uint(bit)) != 0 {
					code := uint16(window*256 + j*8 + bit)
					out = append(out, TypeName(code))
				}
			}
		}
		i += length
	}
	return out
}

// CERT carries a certificate or CRL (RFC 4398): a type code, key tag,
// algorithm, and opaque certificate bytes.
type CERT struct {
	CertType  uint16
	KeyTag    uint16
	Algorithm uint8
	Cert      []byte
}

func (r *CERT) Type() uint16 { return TypeCERT }

func (r *CERT) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.U16(r.CertType)
	w.U16(r.KeyTag)
	w.U8(r.Algorithm)
	w.Bytes(r.Cert)
	return nil
}

func (r *CERT) Unpack(rd *wire.Reader) error {
	certType, err := rd.U16()
	if err != nil {
		return err
	}
	keyTag, err := rd.U16()
	if err != nil {
		return err
	}
	alg, err := rd.U8()
	if err != nil {
		return err
	}
	cert, err := rd.Remaining()
	if err != nil {
		return err
	}
	*r = CERT{CertType: certType, KeyTag: keyTag, Algorithm: alg, Cert: cert}
	return nil
}

func (r *CERT) String() string {
	return fmt.Sprintf("%d %d %d %s", r.CertType, r.KeyTag, r.Algorithm, base64.StdEncoding.EncodeToString(r.Cert))
}

// SSHFP is an SSH public key fingerprint (RFC 4255): algorithm, digest
// type, and the raw digest.
type SSHFP struct {
	Algorithm  uint8
	DigestType uint8
	Digest     []byte
}

func (r *SSHFP) Type() uint16 { return TypeSSHFP }

func (r *SSHFP) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.U8(r.Algorithm)
	w.U8(r.DigestType)
	w.Bytes(r.Digest)
	return nil
}

func (r *SSHFP) Unpack(rd *wire.Reader) error {
	alg, err := rd.U8()
	if err != nil {
		return err
	}
	digType, err := rd.U8()
	if err != nil {
		return err
	}
	digest, err := rd.Remaining()
	if err != nil {
		return err
	}
	*r = SSHFP{Algorithm: alg, DigestType: digType, Digest: digest}
	return nil
}

func (r *SSHFP) String() string {
	return fmt.Sprintf("%d %d %s", r.Algorithm, r.DigestType, strings.ToUpper(hex.EncodeToString(r.Digest)))
}

// DHCID carries opaque DHCP client identity data (RFC 4701): identifier
// type, digest type, and digest, all folded into one base64 blob on the
// wire per the RFC's "no internal substructure on read" note — callers
// that need the substructure decode Data themselves.
type DHCID struct{ Data []byte }

func (r *DHCID) Type() uint16 { return TypeDHCID }

func (r *DHCID) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.Bytes(r.Data)
	return nil
}

func (r *DHCID) Unpack(rd *wire.Reader) error {
	b, err := rd.Remaining()
	if err != nil {
		return err
	}
	r.Data = b
	return nil
}

func (r *DHCID) String() string { return base64.StdEncoding.EncodeToString(r.Data) }

// TLSA associates a TLS server certificate with the domain name (RFC
// 6698): usage/selector/matching-type octets plus the association data.
type TLSA struct {
	Usage        uint8
	Selector     uint8
	MatchingType uint8
	Data         []byte
}

func (r *TLSA) Type() uint16 { return TypeTLSA }

func (r *TLSA) Pack(w *wire.Writer, _ dname.CompressionMap, _ bool) error {
	w.U8(r.Usage)
	w.U8(r.Selector)
	w.U8(r.MatchingType)
	w.Bytes(r.Data)
	return nil
}

func (r *TLSA) Unpack(rd *wire.Reader) error {
	usage, err := rd.U8()
	if err != nil {
		return err
	}
	selector, err := rd.U8()
	if err != nil {
		return err
	}
	matching, err := rd.U8()
	if err != nil {
		return err
	}
	data, err := rd.Remaining()
	if err != nil {
		return err
	}
	*r = TLSA{Usage: usage, Selector: selector, MatchingType: matching, Data: data}
	return nil
}

func (r *TLSA) String() string {
	return strconv.Itoa(int(r.Usage)) + " " + strconv.Itoa(int(r.Selector)) + " " + strconv.Itoa(int(r.MatchingType)) + " " + strings.ToUpper(hex.EncodeToString(r.Data))
}
