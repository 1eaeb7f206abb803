package resolver

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"testing"
	"time"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/message"
	"github.com/haldur/dnscore/rdata"
	"github.com/stretchr/testify/require"
)

func mustName(t *testing.T, s string) dname.Name {
	t.Helper()
	n, err := dname.Parse(s)
	require.NoError(t, err)
	return n
}

func buildQuery(t *testing.T) *message.Message {
	t.Helper()
	m := message.New()
	m.Header.RecursionDesired = true
	m.Question = []message.Question{{Name: mustName(t, "example.com."), Type: rdata.TypeA, Class: rdata.ClassIN}}
	return m
}

func portOf(t *testing.T, addr net.Addr) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

// udpEchoServer answers every UDP datagram using respond, until closeFn
// is called.
func udpEchoServer(t *testing.T, respond func(req *message.Message) *message.Message) (port int, closeFn func()) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req, err := message.Decode(buf[:n])
			if err != nil {
				continue
			}
			resp := respond(req)
			out, err := message.Render(resp, message.RenderOptions{})
			if err != nil {
				continue
			}
			_, _ = conn.WriteTo(out, addr)
		}
	}()

	return portOf(t, conn.LocalAddr()), func() { conn.Close() }
}

func newResolverFor(t *testing.T, port int) *UDPResolver {
	t.Helper()
	r := NewUDPResolver("127.0.0.1", nil)
	r.SetPort(port)
	r.SetTimeout(2 * time.Second)
	return r
}

func TestSendUDPSuccess(t *testing.T) {
	port, closeFn := udpEchoServer(t, func(req *message.Message) *message.Message {
		resp := message.New()
		resp.Header.ID = req.Header.ID
		resp.Header.Response = true
		resp.Question = req.Question
		resp.Answer = []rdata.RR{{
			Header: rdata.Header{Name: req.Question[0].Name, Type: rdata.TypeA, Class: rdata.ClassIN, TTL: 300},
			Rdata:  &rdata.A{Addr: netip.MustParseAddr("192.0.2.1")},
		}}
		return resp
	})
	defer closeFn()

	resp, err := newResolverFor(t, port).Send(context.Background(), buildQuery(t))
	require.NoError(t, err)
	require.Len(t, resp.Answer, 1)
}

func TestSendRejectsIDMismatch(t *testing.T) {
	port, closeFn := udpEchoServer(t, func(req *message.Message) *message.Message {
		resp := message.New()
		resp.Header.ID = req.Header.ID + 1 // deliberately wrong
		resp.Header.Response = true
		resp.Question = req.Question
		return resp
	})
	defer closeFn()

	_, err := newResolverFor(t, port).Send(context.Background(), buildQuery(t))
	require.ErrorIs(t, err, ErrIDMismatch)
}

func TestSendRejectsQuestionMismatch(t *testing.T) {
	port, closeFn := udpEchoServer(t, func(req *message.Message) *message.Message {
		resp := message.New()
		resp.Header.ID = req.Header.ID
		resp.Header.Response = true
		resp.Question = []message.Question{{Name: mustName(t, "different.example."), Type: rdata.TypeA, Class: rdata.ClassIN}}
		return resp
	})
	defer closeFn()

	_, err := newResolverFor(t, port).Send(context.Background(), buildQuery(t))
	require.ErrorIs(t, err, ErrQuestionMismatch)
}

func TestSendTimesOutAgainstUnresponsiveServer(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	r := newResolverFor(t, portOf(t, conn.LocalAddr()))
	r.SetTimeout(50 * time.Millisecond)

	_, err = r.Send(context.Background(), buildQuery(t))
	require.Error(t, err)
}

func TestSendAsyncCompletes(t *testing.T) {
	port, closeFn := udpEchoServer(t, func(req *message.Message) *message.Message {
		resp := message.New()
		resp.Header.ID = req.Header.ID
		resp.Header.Response = true
		resp.Question = req.Question
		return resp
	})
	defer closeFn()

	future := newResolverFor(t, port).SendAsync(context.Background(), buildQuery(t))
	resp, err := future.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)
}

// tcpEchoServer listens for TCP on 127.0.0.1:listenPort (0 picks a free
// port) and answers one length-prefixed query per accepted connection
// using respond, until closeFn is called.
func tcpEchoServer(t *testing.T, listenPort int, respond func(req *message.Message) *message.Message) (port int, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(listenPort)))
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				lenBuf := make([]byte, 2)
				if _, err := readFull(conn, lenBuf); err != nil {
					return
				}
				n := int(lenBuf[0])<<8 | int(lenBuf[1])
				reqBuf := make([]byte, n)
				if _, err := readFull(conn, reqBuf); err != nil {
					return
				}
				req, err := message.Decode(reqBuf)
				if err != nil {
					return
				}
				resp := respond(req)
				out, err := message.Render(resp, message.RenderOptions{})
				if err != nil {
					return
				}
				outLen := []byte{byte(len(out) >> 8), byte(len(out))}
				if _, err := conn.Write(outLen); err != nil {
					return
				}
				_, _ = conn.Write(out)
			}()
		}
	}()

	return portOf(t, ln.Addr()), func() { ln.Close() }
}

// TestUDPRetriesOverTCPOnTruncation drives Send end-to-end against a
// resolver whose UDP and TCP legs are both live on the same port (as a
// real nameserver's would be), confirming the truncated UDP reply causes
// a transparent TCP retry that returns the full answer.
func TestUDPRetriesOverTCPOnTruncation(t *testing.T) {
	fullAnswer := []rdata.RR{{
		Header: rdata.Header{Name: mustName(t, "example.com."), Type: rdata.TypeA, Class: rdata.ClassIN, TTL: 300},
		Rdata:  &rdata.A{Addr: netip.MustParseAddr("192.0.2.1")},
	}}

	udpPort, closeUDP := udpEchoServer(t, func(req *message.Message) *message.Message {
		resp := message.New()
		resp.Header.ID = req.Header.ID
		resp.Header.Response = true
		resp.Header.Truncated = true
		resp.Question = req.Question
		return resp
	})
	defer closeUDP()

	tcpPort, closeTCP := tcpEchoServer(t, udpPort, func(req *message.Message) *message.Message {
		resp := message.New()
		resp.Header.ID = req.Header.ID
		resp.Header.Response = true
		resp.Question = req.Question
		resp.Answer = fullAnswer
		return resp
	})
	defer closeTCP()

	r := newResolverFor(t, udpPort)
	resp, err := r.Send(context.Background(), buildQuery(t))
	require.NoError(t, err)
	require.False(t, resp.Header.Truncated)
	require.Len(t, resp.Answer, 1)

	// The TCP leg on its own returns the same untruncated answer.
	tcpResp, err := r.sendTCP(context.Background(), net.JoinHostPort("127.0.0.1", strconv.Itoa(tcpPort)), buildQuery(t), nil, nil)
	require.NoError(t, err)
	require.Len(t, tcpResp.Answer, 1)
}

func TestSetTruncationIgnoredSkipsRetry(t *testing.T) {
	port, closeFn := udpEchoServer(t, func(req *message.Message) *message.Message {
		resp := message.New()
		resp.Header.ID = req.Header.ID
		resp.Header.Response = true
		resp.Header.Truncated = true
		resp.Question = req.Question
		return resp
	})
	defer closeFn()

	r := newResolverFor(t, port)
	r.SetTruncationIgnored(true)

	resp, err := r.Send(context.Background(), buildQuery(t))
	require.NoError(t, err)
	require.True(t, resp.Header.Truncated)
}
