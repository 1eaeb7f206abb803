// Package xfer implements the AXFR/IXFR zone transfer client: a
// multi-message TCP state machine with TSIG stream verification,
// automatic IXFR to AXFR fallback, and delta accumulation (RFC
// 1995/5936).
package xfer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/dnscoremetrics"
	"github.com/haldur/dnscore/message"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/tsig"
)

// State is the transfer client's position in the §4.H state machine.
type State int

const (
	StateInitialSOA State = iota
	StateFirstData
	StateIXFRDelSOA
	StateIXFRDel
	StateIXFRAddSOA
	StateIXFRAdd
	StateAXFR
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateInitialSOA:
		return "INITIALSOA"
	case StateFirstData:
		return "FIRSTDATA"
	case StateIXFRDelSOA:
		return "IXFR_DELSOA"
	case StateIXFRDel:
		return "IXFR_DEL"
	case StateIXFRAddSOA:
		return "IXFR_ADDSOA"
	case StateIXFRAdd:
		return "IXFR_ADD"
	case StateAXFR:
		return "AXFR"
	case StateEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// TransferError reports a zone transfer failure, keeping the transfer id
// for log correlation.
type TransferError struct {
	TransferID string
	Zone       dname.Name
	Msg        string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("xfer[%s]: zone %s: %s", e.TransferID, e.Zone, e.Msg)
}

// Delta is one IXFR increment: the records removed and added to walk the
// zone from Start to End serial (§3 Zone-transfer Delta).
type Delta struct {
	Start   uint32
	End     uint32
	Deletes []rdata.RR
	Adds    []rdata.RR
}

// Result is the outcome of a completed transfer: exactly one of Deltas
// (IXFR) or Records (AXFR) is populated; UpToDate means neither — the
// zone already matched the requested serial.
type Result struct {
	Kind     uint16 // rdata.TypeAXFR or rdata.TypeIXFR
	UpToDate bool
	Records  []rdata.RR
	Deltas   []Delta
}

// Handler receives streaming callbacks as records arrive, mirroring
// §4.H's "Result" description. The default handler (used when Handler is
// nil) accumulates everything into a Result.
type Handler interface {
	StartAXFR()
	StartIXFR()
	StartIXFRDeletes(soa rdata.RR)
	StartIXFRAdds(soa rdata.RR)
	HandleRecord(rr rdata.RR)
}

// Config configures one Client.
type Config struct {
	Server  string // host:port; port defaults to 53 if absent
	Zone    dname.Name
	Class   uint16
	Serial  uint32 // ixfr_serial: the client's current serial, for IXFR
	UseIXFR bool

	// Fallback, when true, retries as AXFR if the server replies NOTIMP to
	// an IXFR request or returns an IXFR response with zero answers (§4.H
	// Fallback). An AXFR-style reply to an IXFR request is consumed as-is
	// by the state machine, with or without Fallback.
	Fallback bool

	TSIGKey *tsig.Key

	DialTimeout time.Duration
	Deadline    time.Duration // overall wall-clock bound for the whole Run

	Logger *slog.Logger
}

// Client runs one zone transfer per Run call.
type Client struct {
	cfg Config
}

// NewClient builds a Client from cfg, filling in defaults for
// DialTimeout/Deadline/Logger.
func NewClient(cfg Config) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.Deadline == 0 {
		cfg.Deadline = 15 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg}
}

// serialGreater implements RFC 1982 serial number arithmetic: reports
// whether s1 is strictly newer than s2.
func serialGreater(s1, s2 uint32) bool {
	if s1 == s2 {
		return false
	}
	return (s1 < s2 && s2-s1 > 0x80000000) || (s1 > s2 && s1-s2 < 0x80000000)
}

func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, "53")
	}
	return addr
}

// accumulator is the default Handler, building a Result.
type accumulator struct {
	kind    uint16
	records []rdata.RR
	deltas  []Delta
	inAdds  bool
	current *Delta
}

func (a *accumulator) StartAXFR() { a.kind = rdata.TypeAXFR }
func (a *accumulator) StartIXFR() { a.kind = rdata.TypeIXFR }
func (a *accumulator) StartIXFRDeletes(soa rdata.RR) {
	a.finishDelta()
	s := soa.Rdata.(*rdata.SOA)
	a.current = &Delta{Start: s.Serial}
}
func (a *accumulator) StartIXFRAdds(soa rdata.RR) {
	s := soa.Rdata.(*rdata.SOA)
	a.current.End = s.Serial
	a.inAdds = true
}
func (a *accumulator) HandleRecord(rr rdata.RR) {
	if a.kind == rdata.TypeAXFR {
		a.records = append(a.records, rr)
		return
	}
	if a.current == nil {
		return
	}
	if a.inAdds {
		a.current.Adds = append(a.current.Adds, rr)
	} else {
		a.current.Deletes = append(a.current.Deletes, rr)
	}
}

func (a *accumulator) finishDelta() {
	if a.current != nil {
		a.deltas = append(a.deltas, *a.current)
		a.current = nil
		a.inAdds = false
	}
}

// Run performs the transfer against a TCP connection to cfg.Server,
// following the §4.H state machine, and returns the accumulated Result.
// If Handler is non-nil it receives the streaming callbacks in place of
// the default accumulator; the returned Result is still populated from
// the accumulator unless a custom Handler was supplied, in which case
// Records/Deltas are left empty and the caller's Handler is authoritative.
func (c *Client) Run(ctx context.Context, h Handler) (Result, error) {
	transferID := uuid.New().String()
	log := c.cfg.Logger.With("transfer_id", transferID, "zone", c.cfg.Zone.String())

	acc := &accumulator{}
	if h == nil {
		h = acc
	}

	startedAt := time.Now()
	ctx, cancel := context.WithDeadline(ctx, startedAt.Add(c.cfg.Deadline))
	defer cancel()

	qtype := rdata.TypeAXFR
	if c.cfg.UseIXFR {
		qtype = rdata.TypeIXFR
	}

	result, err := c.runOnce(ctx, log, transferID, qtype, h)
	if err == nil {
		dnscoremetrics.TransferDuration.WithLabelValues(typeLabel(qtype), "success").Observe(time.Since(startedAt).Seconds())
		return result, nil
	}

	var notImp bool
	var te *TransferError
	if errors.As(err, &te) {
		notImp = te.Msg == "server replied NOTIMP"
	}
	if c.cfg.UseIXFR && c.cfg.Fallback && (notImp || errors.Is(err, errEmptyIXFR)) {
		log.Info("IXFR unavailable, falling back to AXFR")
		result, err = c.runOnce(ctx, log, transferID, rdata.TypeAXFR, h)
		if err == nil {
			dnscoremetrics.TransferDuration.WithLabelValues("AXFR", "success").Observe(time.Since(startedAt).Seconds())
			return result, nil
		}
	}

	dnscoremetrics.TransferDuration.WithLabelValues(typeLabel(qtype), "failure").Observe(time.Since(startedAt).Seconds())
	if c.cfg.UseIXFR && !c.cfg.Fallback && notImp {
		return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: "server doesn't support IXFR"}
	}
	return Result{}, err
}

func typeLabel(qtype uint16) string {
	if qtype == rdata.TypeIXFR {
		return "IXFR"
	}
	return "AXFR"
}

var errEmptyIXFR = errors.New("xfer: IXFR response carried zero answers")

// runOnce drives one connection lifecycle for a single qtype, without
// retrying. The guaranteed socket release is the deferred conn.Close.
func (c *Client) runOnce(ctx context.Context, log *slog.Logger, transferID string, qtype uint16, h Handler) (Result, error) {
	addr := withDefaultPort(c.cfg.Server)
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: "dial: " + err.Error()}
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	req := buildRequest(c.cfg.Zone, c.cfg.Class, qtype, c.cfg.Serial)
	var verifier *tsig.Verifier
	if c.cfg.TSIGKey != nil {
		queryMAC, err := signRequest(req, *c.cfg.TSIGKey)
		if err != nil {
			return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: "tsig sign query: " + err.Error()}
		}
		verifier = tsig.NewVerifierWithPriorMAC(*c.cfg.TSIGKey, queryMAC)
	}

	if err := writeFramedMessage(conn, req, nil); err != nil {
		return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: "write request: " + err.Error()}
	}

	sm := &stateMachine{
		state:      StateInitialSOA,
		qtype:      qtype,
		ixfrSerial: c.cfg.Serial,
		handler:    h,
	}

	for sm.state != StateEnd {
		data, msg, rcode, err := readFramedMessage(conn)
		if err != nil {
			return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: "read response: " + err.Error()}
		}
		if rcode == uint16(message.RcodeNotImp) {
			return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: "server replied NOTIMP"}
		}
		if rcode != uint16(message.RcodeNoError) {
			return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: fmt.Sprintf("server replied rcode %d", rcode)}
		}
		if len(msg.Answer) == 0 && sm.state == StateInitialSOA && qtype == rdata.TypeIXFR {
			return Result{}, errEmptyIXFR
		}

		if verifier != nil {
			signed, tsigRR := extractTSIG(msg)
			final := false // unknown ahead of time; caller enforces on EOF
			var errVerify error
			if signed {
				rr := tsigRR.Rdata.(*rdata.TSIGRdata)
				errVerify = verifier.VerifyMessage(stripTSIG(data, msg), true, rr.TimeSigned, rr.Fudge, rr.MAC, final)
			} else {
				errVerify = verifier.VerifyMessage(data, false, 0, 0, nil, final)
			}
			if errVerify != nil {
				dnscoremetrics.TSIGVerifications.WithLabelValues("failure").Inc()
				return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: "tsig: " + errVerify.Error()}
			}
			dnscoremetrics.TSIGVerifications.WithLabelValues("success").Inc()
		}

		if err := sm.processRecords(msg.Answer); err != nil {
			return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: err.Error()}
		}
	}

	// The transfer's final message must itself carry a valid TSIG (RFC
	// 2845 §4.4): an unsigned last message leaves the verifier in
	// StateIntermediate rather than StateSigned/StateVerified.
	if verifier != nil && verifier.State() == tsig.StateIntermediate {
		return Result{}, &TransferError{TransferID: transferID, Zone: c.cfg.Zone, Msg: "tsig: final message of transfer was not signed"}
	}

	if acc, ok := h.(*accumulator); ok {
		acc.finishDelta()
		kind := acc.kind
		if kind == 0 {
			kind = qtype
		}
		if sm.upToDate {
			return Result{Kind: kind, UpToDate: true}, nil
		}
		dnscoremetrics.TransferRecords.WithLabelValues(typeLabel(kind)).Observe(float64(len(acc.records) + len(acc.deltas)))
		return Result{Kind: kind, Records: acc.records, Deltas: acc.deltas}, nil
	}
	return Result{Kind: qtype, UpToDate: sm.upToDate}, nil
}

func buildRequest(zone dname.Name, class, qtype uint16, serial uint32) *message.Message {
	m := message.New()
	m.Header.ID = uint16(rand.Intn(65536))
	m.Header.RecursionDesired = false
	m.Question = []message.Question{{Name: zone, Type: qtype, Class: class}}
	if qtype == rdata.TypeIXFR {
		m.Authority = append(m.Authority, rdata.RR{
			Header: rdata.Header{Name: zone, Type: rdata.TypeSOA, Class: class, TTL: 0},
			Rdata:  &rdata.SOA{MName: zone, RName: zone, Serial: serial},
		})
	}
	return m
}

// tsigFudge is the clock-skew tolerance this client requests when signing
// its own query (RFC 2845 §4.2).
const tsigFudge = 300

// signRequest renders req, signs it, and appends the resulting TSIG
// record to its additional section in place, returning the computed MAC
// so the caller can seed a streaming Verifier with it.
func signRequest(req *message.Message, key tsig.Key) ([]byte, error) {
	unsigned, err := message.Render(req, message.RenderOptions{})
	if err != nil {
		return nil, err
	}
	mac, timeSigned, err := tsig.Sign(key, unsigned, nil, tsigFudge)
	if err != nil {
		return nil, err
	}
	req.Additional = append(req.Additional, rdata.RR{
		Header: rdata.Header{Name: key.Name, Type: rdata.TypeTSIG, Class: rdata.ClassANY, TTL: 0},
		Rdata: &rdata.TSIGRdata{
			AlgorithmName: key.Algorithm,
			TimeSigned:    timeSigned,
			Fudge:         tsigFudge,
			MAC:           mac,
			OriginalID:    req.Header.ID,
		},
	})
	return mac, nil
}

func writeFramedMessage(conn net.Conn, m *message.Message, opts *message.RenderOptions) error {
	ro := message.RenderOptions{}
	if opts != nil {
		ro = *opts
	}
	buf, err := message.Render(m, ro)
	if err != nil {
		return err
	}
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(buf)))
	if _, err := conn.Write(lenBuf); err != nil {
		return err
	}
	_, err = conn.Write(buf)
	return err
}

func readFramedMessage(conn net.Conn) ([]byte, *message.Message, uint16, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return nil, nil, 0, err
	}
	n := binary.BigEndian.Uint16(lenBuf)
	data := make([]byte, n)
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, nil, 0, err
	}
	msg, err := message.Decode(data)
	if err != nil {
		return nil, nil, 0, err
	}
	return data, msg, msg.GetRcode(), nil
}

func extractTSIG(msg *message.Message) (bool, rdata.RR) {
	if msg.TSIGOffset < 0 {
		return false, rdata.RR{}
	}
	return true, msg.Additional[len(msg.Additional)-1]
}

// stripTSIG returns the wire bytes of msg up to (not including) the TSIG
// record, with ARCOUNT decremented to exclude it: the portion that was
// actually signed (RFC 2845 §3.4.1).
func stripTSIG(data []byte, msg *message.Message) []byte {
	if msg.TSIGOffset < 0 || msg.TSIGOffset > len(data) {
		return data
	}
	out := append([]byte(nil), data[:msg.TSIGOffset]...)
	if len(out) >= 12 {
		binary.BigEndian.PutUint16(out[10:12], binary.BigEndian.Uint16(out[10:12])-1)
	}
	return out
}
