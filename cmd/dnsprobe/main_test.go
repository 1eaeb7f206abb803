package main

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/haldur/dnscore/message"
	"github.com/haldur/dnscore/rdata"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func TestRunRejectsUnknownSubcommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"dnsprobe", "bogus"}, &out, discardLogger())
	if err == nil {
		t.Fatal("expected an error for an unknown subcommand")
	}
}

func TestRunRequiresSubcommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"dnsprobe"}, &out, discardLogger())
	if err == nil {
		t.Fatal("expected an error when no subcommand is given")
	}
}

func TestRunQueryRequiresName(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"dnsprobe", "query"}, &out, discardLogger())
	if err == nil {
		t.Fatal("expected an error when -name is omitted")
	}
}

func TestRunXferRequiresZone(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"dnsprobe", "xfer"}, &out, discardLogger())
	if err == nil {
		t.Fatal("expected an error when -zone is omitted")
	}
}

func TestRunQueryEndToEnd(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	go func() {
		buf := make([]byte, 4096)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		req, err := message.Decode(buf[:n])
		if err != nil {
			return
		}
		resp := message.New()
		resp.Header.ID = req.Header.ID
		resp.Header.Response = true
		resp.Question = req.Question
		resp.Answer = []rdata.RR{{
			Header: rdata.Header{Name: req.Question[0].Name, Type: rdata.TypeA, Class: rdata.ClassIN, TTL: 300},
			Rdata:  &rdata.A{Addr: netip.MustParseAddr("192.0.2.1")},
		}}
		out, err := message.Render(resp, message.RenderOptions{})
		if err != nil {
			return
		}
		_, _ = conn.WriteTo(out, addr)
	}()

	_, portStr, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = run(ctx, []string{"dnsprobe", "query", "-server", "127.0.0.1", "-port", portStr, "-name", "example.com.", "-type", "A"}, &out, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected query output, got none")
	}
}
