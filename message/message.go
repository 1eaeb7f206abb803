// Package message implements the DNS message envelope: header, four
// sections, wire encode/decode, size-bounded rendering with mandatory
// RRset atomicity on truncation, and TSIG/SIG(0) record location.
package message

import (
	"fmt"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/rrset"
	"github.com/haldur/dnscore/wire"
)

// Opcode values (RFC 1035 §4.1.1, RFC 1996, RFC 2136).
const (
	OpcodeQuery  uint8 = 0
	OpcodeIQuery uint8 = 1
	OpcodeStatus uint8 = 2
	OpcodeNotify uint8 = 4
	OpcodeUpdate uint8 = 5
)

// Base (non-extended) response codes (RFC 1035 §4.1.1, RFC 2136).
const (
	RcodeNoError  uint8 = 0
	RcodeFormErr  uint8 = 1
	RcodeServFail uint8 = 2
	RcodeNXDomain uint8 = 3
	RcodeNotImp   uint8 = 4
	RcodeRefused  uint8 = 5
	RcodeYXDomain uint8 = 6
	RcodeYXRRSet  uint8 = 7
	RcodeNXRRSet  uint8 = 8
	RcodeNotAuth  uint8 = 9
	RcodeNotZone  uint8 = 10
)

// Header is the fixed 12-byte DNS message header (RFC 1035 §4.1.1).
type Header struct {
	ID                 uint16
	Response           bool
	Opcode             uint8
	AuthoritativeAns   bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	Z                  bool
	AuthedData         bool
	CheckingDisabled   bool
	Rcode              uint8 // low 4 bits; combine with OPT's extended rcode via GetRcode

	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

func (h *Header) read(r *wire.Reader) error {
	id, err := r.U16()
	if err != nil {
		return err
	}
	flags, err := r.U16()
	if err != nil {
		return err
	}
	hi := uint8(flags >> 8)
	lo := uint8(flags & 0xFF)

	h.ID = id
	h.Response = hi&(1<<7) != 0
	h.Opcode = (hi >> 3) & 0x0F
	h.AuthoritativeAns = hi&(1<<2) != 0
	h.Truncated = hi&(1<<1) != 0
	h.RecursionDesired = hi&(1<<0) != 0
	h.RecursionAvailable = lo&(1<<7) != 0
	h.Z = lo&(1<<6) != 0
	h.AuthedData = lo&(1<<5) != 0
	h.CheckingDisabled = lo&(1<<4) != 0
	h.Rcode = lo & 0x0F

	if h.QDCount, err = r.U16(); err != nil {
		return err
	}
	if h.ANCount, err = r.U16(); err != nil {
		return err
	}
	if h.NSCount, err = r.U16(); err != nil {
		return err
	}
	if h.ARCount, err = r.U16(); err != nil {
		return err
	}
	return nil
}

func (h *Header) write(w *wire.Writer) {
	w.U16(h.ID)
	var hi, lo uint8
	if h.Response {
		hi |= 1 << 7
	}
	hi |= (h.Opcode & 0x0F) << 3
	if h.AuthoritativeAns {
		hi |= 1 << 2
	}
	if h.Truncated {
		hi |= 1 << 1
	}
	if h.RecursionDesired {
		hi |= 1 << 0
	}
	if h.RecursionAvailable {
		lo |= 1 << 7
	}
	if h.Z {
		lo |= 1 << 6
	}
	if h.AuthedData {
		lo |= 1 << 5
	}
	if h.CheckingDisabled {
		lo |= 1 << 4
	}
	lo |= h.Rcode & 0x0F
	w.U16(uint16(hi)<<8 | uint16(lo))
	w.U16(h.QDCount)
	w.U16(h.ANCount)
	w.U16(h.NSCount)
	w.U16(h.ARCount)
}

// Question is one entry in the question section (RFC 1035 §4.1.2).
type Question struct {
	Name  dname.Name
	Type  uint16
	Class uint16
}

// Message is a full DNS message: header plus four sections. TSIGOffset
// and SIG0Offset, when >= 0, mark the wire offset at which a TSIG record
// or a SIG(0) record (a SIG RR with TypeCovered == 0) begins, per §4.D.
type Message struct {
	Header     Header
	Question   []Question
	Answer     []rdata.RR
	Authority  []rdata.RR
	Additional []rdata.RR

	TSIGOffset int
	SIG0Offset int
}

// New returns an empty message with no TSIG/SIG(0) marker.
func New() *Message {
	return &Message{TSIGOffset: -1, SIG0Offset: -1}
}

// GetRcode combines the header's 4-bit rcode with the extended rcode
// carried by an OPT record's TTL high byte, shifted left by 4 (§4.D).
func (m *Message) GetRcode() uint16 {
	rcode := uint16(m.Header.Rcode)
	for _, rr := range m.Additional {
		if rr.Header.Type == rdata.TypeOPT {
			extended := uint8(rr.Header.TTL >> 24)
			rcode |= uint16(extended) << 4
			break
		}
	}
	return rcode
}

// Clone returns a deep-enough copy of m suitable for resolvers to mutate
// (e.g. to add TSIG/OPT) without perturbing the original (§4.D "Message
// supports deep clone").
func (m *Message) Clone() *Message {
	clone := &Message{
		Header:     m.Header,
		Question:   append([]Question(nil), m.Question...),
		Answer:     append([]rdata.RR(nil), m.Answer...),
		Authority:  append([]rdata.RR(nil), m.Authority...),
		Additional: append([]rdata.RR(nil), m.Additional...),
		TSIGOffset: m.TSIGOffset,
		SIG0Offset: m.SIG0Offset,
	}
	return clone
}

// Decode parses a complete wire-format message. If the header's TC bit is
// set, a parse failure partway through a section is tolerated and the
// message decoded so far is returned; without TC, any failure is fatal
// (§4.D).
func Decode(buf []byte) (*Message, error) {
	r := wire.NewReader(buf)
	m := New()
	if err := m.Header.read(r); err != nil {
		return nil, err
	}

	for i := 0; i < int(m.Header.QDCount); i++ {
		q, err := readQuestion(r)
		if err != nil {
			return tolerate(m, err)
		}
		m.Question = append(m.Question, q)
	}
	for i := 0; i < int(m.Header.ANCount); i++ {
		rr, err := rdata.ReadRR(r)
		if err != nil {
			return tolerate(m, err)
		}
		m.Answer = append(m.Answer, rr)
	}
	for i := 0; i < int(m.Header.NSCount); i++ {
		rr, err := rdata.ReadRR(r)
		if err != nil {
			return tolerate(m, err)
		}
		m.Authority = append(m.Authority, rr)
	}
	for i := 0; i < int(m.Header.ARCount); i++ {
		start := r.Position()
		rr, err := rdata.ReadRR(r)
		if err != nil {
			return tolerate(m, err)
		}
		if rr.Header.Type == rdata.TypeTSIG {
			m.TSIGOffset = start
		}
		if rr.Header.Type == rdata.TypeSIG {
			if sig, ok := rr.Rdata.(interface{ CoveredType() uint16 }); ok && sig.CoveredType() == 0 {
				m.SIG0Offset = start
			}
		}
		m.Additional = append(m.Additional, rr)
	}
	return m, nil
}

func tolerate(m *Message, err error) (*Message, error) {
	if m.Header.Truncated {
		return m, nil
	}
	return nil, err
}

func readQuestion(r *wire.Reader) (Question, error) {
	name, err := dname.ParseFrom(r)
	if err != nil {
		return Question{}, err
	}
	qtype, err := r.U16()
	if err != nil {
		return Question{}, err
	}
	class, err := r.U16()
	if err != nil {
		return Question{}, err
	}
	return Question{Name: name, Type: qtype, Class: class}, nil
}

func writeQuestion(w *wire.Writer, q Question, comp dname.CompressionMap) error {
	if err := q.Name.Encode(w, comp, false); err != nil {
		return err
	}
	w.U16(q.Type)
	w.U16(q.Class)
	return nil
}

// tsigRecordLength estimates the wire length of the TSIG record that will
// be appended after rendering, so Render can reserve the space up front
// (§4.D step 1).
func tsigRecordLength(keyName dname.Name, algorithm dname.Name, macLen int) int {
	return keyName.WireLength() + 2 + 2 + 4 + 2 + algorithm.WireLength() + 6 + 2 + 2 + macLen + 2 + 2 + 2
}

// RenderOptions configures Render's size-bounded encoding.
type RenderOptions struct {
	MaxLength int

	// TSIGKeyName/TSIGAlgorithm/TSIGMACLength, when TSIGKeyName is not the
	// zero Name, cause Render to reserve space for a trailing TSIG record
	// (§4.D step 1). Signing itself is the tsig package's job; Render only
	// reserves the room and reports where the signed bytes end.
	TSIGKeyName    dname.Name
	TSIGAlgorithm  dname.Name
	TSIGMACLength  int
	reserveForTSIG bool
}

// WithTSIGReservation requests that Render reserve room for a TSIG record
// of the given key/algorithm/MAC-length without actually appending one.
func (o RenderOptions) WithTSIGReservation(keyName, algorithm dname.Name, macLength int) RenderOptions {
	o.TSIGKeyName, o.TSIGAlgorithm, o.TSIGMACLength = keyName, algorithm, macLength
	o.reserveForTSIG = true
	return o
}

// Render encodes m to wire format, truncating whole RRsets (never a
// partial RRset) once the budget in opts.MaxLength is exceeded (§4.D
// steps 1-3, testable property 6, scenario S4). The returned bytes never
// exceed MaxLength when MaxLength > 0.
func Render(m *Message, opts RenderOptions) ([]byte, error) {
	w := wire.NewWriter(512)
	budget := opts.MaxLength
	if opts.reserveForTSIG {
		budget -= tsigRecordLength(opts.TSIGKeyName, opts.TSIGAlgorithm, opts.TSIGMACLength)
	}
	if opts.MaxLength > 0 && budget <= 0 {
		return nil, fmt.Errorf("message: MaxLength %d leaves no room after the TSIG reservation", opts.MaxLength)
	}

	hdr := m.Header
	headerPos := w.Position()
	hdr.write(w) // placeholder; backpatched once final counts are known

	comp := dname.NewCompressionMap()
	for _, q := range m.Question {
		if err := writeQuestion(w, q, comp); err != nil {
			return nil, err
		}
	}
	hdr.QDCount = uint16(len(m.Question))
	if budget > 0 && w.Position() > budget {
		return nil, fmt.Errorf("message: header and question section exceed MaxLength %d", opts.MaxLength)
	}

	truncated := false
	anCount, truncated := renderSection(w, m.Answer, comp, budget, truncated)
	hdr.ANCount = anCount
	var nsCount, arCount uint16
	if !truncated {
		nsCount, truncated = renderSection(w, m.Authority, comp, budget, truncated)
	}
	hdr.NSCount = nsCount
	if !truncated {
		arCount, truncated = renderSection(w, m.Additional, comp, budget, truncated)
	}
	hdr.ARCount = arCount

	if truncated {
		hdr.Truncated = true
	}

	final := wire.NewWriter(w.Position())
	hdr.write(final)
	out := append(final.Buf, w.Buf[headerPos+12:]...)
	return out, nil
}

// renderSection encodes records one at a time, stopping (and reporting
// truncated=true) at the last complete-RRset boundary before the budget
// is exceeded. budget <= 0 means unlimited.
func renderSection(w *wire.Writer, records []rdata.RR, comp dname.CompressionMap, budget int, alreadyTruncated bool) (uint16, bool) {
	if alreadyTruncated {
		return 0, true
	}
	var count uint16
	lastGoodPos := w.Position()
	lastGoodCount := count
	var lastRec *rdata.RR
	for i := range records {
		rr := records[i]
		if lastRec != nil && !rrset.SameSet(*lastRec, rr) {
			lastGoodPos = w.Position()
			lastGoodCount = count
		}
		if err := rdata.WriteRR(w, rr, comp, false); err != nil {
			w.Truncate(lastGoodPos)
			return lastGoodCount, true
		}
		if budget > 0 && w.Position() > budget {
			w.Truncate(lastGoodPos)
			return lastGoodCount, true
		}
		count++
		lastRec = &records[i]
	}
	return count, false
}

// Equal reports whether two messages carry the same wire-significant
// content: the header flags, opcode and rcode, the questions, and every
// record of the answer, authority and additional sections, compared
// pairwise in order. The IDs and the header's count fields are ignored.
func (m *Message) Equal(other *Message) bool {
	if len(m.Question) != len(other.Question) || len(m.Answer) != len(other.Answer) ||
		len(m.Authority) != len(other.Authority) || len(m.Additional) != len(other.Additional) {
		return false
	}
	mh, oh := m.Header, other.Header
	mh.ID, mh.QDCount, mh.ANCount, mh.NSCount, mh.ARCount = oh.ID, oh.QDCount, oh.ANCount, oh.NSCount, oh.ARCount
	if mh != oh {
		return false
	}
	for i, q := range m.Question {
		o := other.Question[i]
		if !q.Name.Equal(o.Name) || q.Type != o.Type || q.Class != o.Class {
			return false
		}
	}
	for _, s := range [][2][]rdata.RR{{m.Answer, other.Answer}, {m.Authority, other.Authority}, {m.Additional, other.Additional}} {
		for i := range s[0] {
			if !s[0][i].Equal(s[1][i]) {
				return false
			}
		}
	}
	return true
}

func (m *Message) String() string {
	return fmt.Sprintf("id=%d qd=%d an=%d ns=%d ar=%d", m.Header.ID, len(m.Question), len(m.Answer), len(m.Authority), len(m.Additional))
}
