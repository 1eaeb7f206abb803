// Package resolver implements the abstract send/receive surface used by
// higher layers to issue one DNS query and get one response: a
// synchronous Send, an asynchronous SendAsync returning a Future, and a
// concrete UDP-first-with-TCP-retry Resolver (§4.I).
package resolver

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/haldur/dnscore/dnscoremetrics"
	"github.com/haldur/dnscore/edns"
	"github.com/haldur/dnscore/message"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/tsig"
)

// ErrTimeout is returned (wrapped) when a send exceeds its configured
// timeout.
var ErrTimeout = errors.New("resolver: timeout")

// ErrIDMismatch is returned when a response's transaction ID does not
// match the query that was sent.
var ErrIDMismatch = errors.New("resolver: response ID mismatch")

// ErrQuestionMismatch is returned when a response's question section
// does not echo the query's.
var ErrQuestionMismatch = errors.New("resolver: response question mismatch")

// Resolver is the abstract send/receive surface (§4.I): send(query) ->
// response, sendAsync(query, listener) -> handle, plus setters for the
// knobs a concrete transport needs.
type Resolver interface {
	Send(ctx context.Context, query *message.Message) (*message.Message, error)
	SendAsync(ctx context.Context, query *message.Message) *Future

	SetEDNSLevel(level uint8)
	SetPayloadSize(size uint16)
	SetDNSSECOK(ok bool)
	SetTCPOnly(tcpOnly bool)
	SetPort(port int)
	SetTimeout(d time.Duration)
	SetTruncationIgnored(ignored bool)
	SetTSIGKey(key *tsig.Key)
}

// Future is the async handle returned by SendAsync: callers either block
// on Wait or select on Done.
type Future struct {
	done chan struct{}
	once sync.Once

	resp *message.Message
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(resp *message.Message, err error) {
	f.once.Do(func() {
		f.resp, f.err = resp, err
		close(f.done)
	})
}

// Done reports completion: receiving from it never blocks once closed.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the query completes or ctx is done, whichever comes
// first.
func (f *Future) Wait(ctx context.Context) (*message.Message, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// UDPResolver is a concrete Resolver: UDP first, retried over TCP on a
// truncated response unless truncation is explicitly ignored. ID
// mismatch and question mismatch are rejected; TSIG, when configured, is
// applied to the query and verified on the response.
type UDPResolver struct {
	mu sync.RWMutex

	server            string
	ednsLevel         uint8
	payloadSize       uint16
	dnssecOK          bool
	tcpOnly           bool
	port              int
	timeout           time.Duration
	truncationIgnored bool
	tsigKey           *tsig.Key

	logger *slog.Logger
}

// NewUDPResolver builds a resolver targeting server (host, no port — use
// SetPort, default 53).
func NewUDPResolver(server string, logger *slog.Logger) *UDPResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &UDPResolver{
		server:      server,
		payloadSize: 1232,
		port:        53,
		timeout:     5 * time.Second,
		logger:      logger,
	}
}

func (r *UDPResolver) SetEDNSLevel(level uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ednsLevel = level
}

func (r *UDPResolver) SetPayloadSize(size uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloadSize = size
}

func (r *UDPResolver) SetDNSSECOK(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dnssecOK = ok
}

func (r *UDPResolver) SetTCPOnly(tcpOnly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tcpOnly = tcpOnly
}

func (r *UDPResolver) SetPort(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.port = port
}

func (r *UDPResolver) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

func (r *UDPResolver) SetTruncationIgnored(ignored bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.truncationIgnored = ignored
}

func (r *UDPResolver) SetTSIGKey(key *tsig.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tsigKey = key
}

func (r *UDPResolver) snapshot() (addr string, ednsLevel uint8, dnssecOK, tcpOnly bool, payloadSize uint16, timeout time.Duration, truncationIgnored bool, tsigKey *tsig.Key) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return net.JoinHostPort(r.server, fmt.Sprintf("%d", r.port)), r.ednsLevel, r.dnssecOK, r.tcpOnly, r.payloadSize, r.timeout, r.truncationIgnored, r.tsigKey
}

func generateTransactionID() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint16(buf[:])
}

// Send issues query and returns its matching response, retrying over TCP
// when the UDP response is truncated (unless truncation is ignored) or
// when the resolver is configured TCP-only.
func (r *UDPResolver) Send(ctx context.Context, query *message.Message) (*message.Message, error) {
	addr, ednsLevel, dnssecOK, tcpOnly, payloadSize, timeout, truncationIgnored, tsigKey := r.snapshot()

	q := query.Clone()
	q.Header.ID = generateTransactionID()
	if payloadSize > 0 || dnssecOK || ednsLevel > 0 {
		opt := &edns.OPT{UDPPayloadSize: payloadSize, Version: ednsLevel, DNSSECOK: dnssecOK}
		q.Additional = append(q.Additional, opt.NewRecord())
	}

	var queryMAC []byte
	if tsigKey != nil {
		signed, mac, err := signQuery(q, *tsigKey)
		if err != nil {
			return nil, fmt.Errorf("resolver: tsig sign: %w", err)
		}
		q = signed
		queryMAC = mac
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if tcpOnly {
		return r.sendTCP(ctx, addr, q, tsigKey, queryMAC)
	}

	resp, err := r.sendUDP(ctx, addr, q, tsigKey, queryMAC)
	if err != nil {
		return nil, err
	}
	if resp.Header.Truncated && !truncationIgnored {
		dnscoremetrics.LookupOutcomes.WithLabelValues("resolver_tcp_retry").Inc()
		return r.sendTCP(ctx, addr, q, tsigKey, queryMAC)
	}
	return resp, nil
}

// SendAsync runs Send in its own goroutine and returns a Future the
// caller can Wait on or select against.
func (r *UDPResolver) SendAsync(ctx context.Context, query *message.Message) *Future {
	f := newFuture()
	go func() {
		resp, err := r.Send(ctx, query)
		f.complete(resp, err)
	}()
	return f
}

func (r *UDPResolver) sendUDP(ctx context.Context, addr string, q *message.Message, tsigKey *tsig.Key, queryMAC []byte) (*message.Message, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolver: dial udp: %w", err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	buf, err := message.Render(q, message.RenderOptions{MaxLength: 65535})
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(buf); err != nil {
		return nil, wrapTimeout(err)
	}

	reply := make([]byte, 65535)
	n, err := conn.Read(reply)
	if err != nil {
		return nil, wrapTimeout(err)
	}

	return r.finishExchange(q, reply[:n], tsigKey, queryMAC)
}

func (r *UDPResolver) sendTCP(ctx context.Context, addr string, q *message.Message, tsigKey *tsig.Key, queryMAC []byte) (*message.Message, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolver: dial tcp: %w", err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	buf, err := message.Render(q, message.RenderOptions{})
	if err != nil {
		return nil, err
	}
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(buf)))
	if _, err := conn.Write(lenBuf); err != nil {
		return nil, wrapTimeout(err)
	}
	if _, err := conn.Write(buf); err != nil {
		return nil, wrapTimeout(err)
	}

	respLenBuf := make([]byte, 2)
	if _, err := readFull(conn, respLenBuf); err != nil {
		return nil, wrapTimeout(err)
	}
	n := binary.BigEndian.Uint16(respLenBuf)
	data := make([]byte, n)
	if _, err := readFull(conn, data); err != nil {
		return nil, wrapTimeout(err)
	}

	return r.finishExchange(q, data, tsigKey, queryMAC)
}

func (r *UDPResolver) finishExchange(q *message.Message, wire []byte, tsigKey *tsig.Key, queryMAC []byte) (*message.Message, error) {
	resp, err := message.Decode(wire)
	if err != nil {
		return nil, fmt.Errorf("resolver: decode response: %w", err)
	}
	if err := validateResponse(q, resp); err != nil {
		return nil, err
	}
	if err := verifyResponseTSIG(resp, wire, tsigKey, queryMAC); err != nil {
		return nil, err
	}
	return resp, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func wrapTimeout(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func validateResponse(q, resp *message.Message) error {
	if resp.Header.ID != q.Header.ID {
		return ErrIDMismatch
	}
	if len(resp.Question) != len(q.Question) {
		return ErrQuestionMismatch
	}
	for i := range q.Question {
		if resp.Question[i].Type != q.Question[i].Type ||
			resp.Question[i].Class != q.Question[i].Class ||
			!resp.Question[i].Name.Equal(q.Question[i].Name) {
			return ErrQuestionMismatch
		}
	}
	return nil
}

// tsigFudge is the clock-skew tolerance this resolver requests when
// signing its own query (RFC 2845 §4.2).
const tsigFudge = 300

func signQuery(q *message.Message, key tsig.Key) (*message.Message, []byte, error) {
	unsigned, err := message.Render(q, message.RenderOptions{})
	if err != nil {
		return nil, nil, err
	}
	mac, timeSigned, err := tsig.Sign(key, unsigned, nil, tsigFudge)
	if err != nil {
		return nil, nil, err
	}
	signed := q.Clone()
	signed.Additional = append(signed.Additional, rdata.RR{
		Header: rdata.Header{Name: key.Name, Type: rdata.TypeTSIG, Class: rdata.ClassANY, TTL: 0},
		Rdata: &rdata.TSIGRdata{
			AlgorithmName: key.Algorithm,
			TimeSigned:    timeSigned,
			Fudge:         tsigFudge,
			MAC:           mac,
			OriginalID:    q.Header.ID,
		},
	})
	return signed, mac, nil
}

func verifyResponseTSIG(resp *message.Message, wire []byte, key *tsig.Key, queryMAC []byte) error {
	if key == nil {
		return nil
	}
	if resp.TSIGOffset < 0 || len(resp.Additional) == 0 {
		dnscoremetrics.TSIGVerifications.WithLabelValues("failure").Inc()
		return errors.New("resolver: response not TSIG signed")
	}
	rr := resp.Additional[len(resp.Additional)-1]
	tsigRdata, ok := rr.Rdata.(*rdata.TSIGRdata)
	if !ok {
		dnscoremetrics.TSIGVerifications.WithLabelValues("failure").Inc()
		return errors.New("resolver: last additional record is not TSIG")
	}

	signedPortion := wire
	if resp.TSIGOffset <= len(wire) {
		// The MAC covers the message as it was before the TSIG record was
		// added, so ARCOUNT must not count that record (RFC 2845 §3.4.1).
		signedPortion = append([]byte(nil), wire[:resp.TSIGOffset]...)
		if len(signedPortion) >= 12 {
			binary.BigEndian.PutUint16(signedPortion[10:12], binary.BigEndian.Uint16(signedPortion[10:12])-1)
		}
	}
	verifier := tsig.NewVerifierWithPriorMAC(*key, queryMAC)
	if err := verifier.VerifyMessage(signedPortion, true, tsigRdata.TimeSigned, tsigRdata.Fudge, tsigRdata.MAC, true); err != nil {
		dnscoremetrics.TSIGVerifications.WithLabelValues("failure").Inc()
		return fmt.Errorf("resolver: tsig verify: %w", err)
	}
	dnscoremetrics.TSIGVerifications.WithLabelValues("success").Inc()
	return nil
}
