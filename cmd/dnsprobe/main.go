// Command dnsprobe is a thin CLI over the resolver and xfer packages: a
// one-shot query ("dnsprobe query") and a zone-transfer dump ("dnsprobe
// xfer"), not a server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/message"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/resolver"
	"github.com/haldur/dnscore/xfer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(ctx, os.Args, os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "dnsprobe: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) error {
	if len(args) < 2 {
		return fmt.Errorf("expected 'query' or 'xfer' subcommand")
	}

	switch args[1] {
	case "query":
		return runQuery(ctx, args[2:], out, logger)
	case "xfer":
		return runXfer(ctx, args[2:], out, logger)
	default:
		return fmt.Errorf("unknown subcommand %q (want 'query' or 'xfer')", args[1])
	}
}

func runQuery(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	server := fs.String("server", "127.0.0.1", "nameserver address")
	port := fs.Int("port", 53, "nameserver port")
	name := fs.String("name", "", "query name")
	typ := fs.String("type", "A", "query type")
	tcp := fs.Bool("tcp", false, "use TCP only")
	timeout := fs.Duration("timeout", 5*time.Second, "query timeout")
	dnssec := fs.Bool("dnssec", false, "set the DNSSEC OK bit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("query: -name is required")
	}

	qname, err := dname.Parse(*name)
	if err != nil {
		return fmt.Errorf("query: bad name: %w", err)
	}
	info, ok := rdata.LookupByName(*typ)
	if !ok {
		return fmt.Errorf("query: unknown type %q", *typ)
	}

	r := resolver.NewUDPResolver(*server, logger)
	r.SetPort(*port)
	r.SetTCPOnly(*tcp)
	r.SetTimeout(*timeout)
	r.SetDNSSECOK(*dnssec)

	q := message.New()
	q.Header.RecursionDesired = true
	q.Question = []message.Question{{Name: qname, Type: info.Code, Class: rdata.ClassIN}}

	resp, err := r.Send(ctx, q)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	fmt.Fprintf(out, ";; rcode: %d, answer: %d, authority: %d, additional: %d\n",
		resp.GetRcode(), len(resp.Answer), len(resp.Authority), len(resp.Additional))
	for _, rr := range resp.Answer {
		fmt.Fprintln(out, rr.String())
	}
	return nil
}

func runXfer(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("xfer", flag.ContinueOnError)
	server := fs.String("server", "127.0.0.1:53", "nameserver host:port")
	zoneName := fs.String("zone", "", "zone name")
	ixfr := fs.Bool("ixfr", false, "request IXFR instead of AXFR")
	serial := fs.Uint("serial", 0, "client's current serial, for IXFR")
	fallback := fs.Bool("fallback", true, "fall back to AXFR when IXFR is refused")
	deadline := fs.Duration("deadline", 60*time.Second, "overall transfer deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *zoneName == "" {
		return fmt.Errorf("xfer: -zone is required")
	}

	zone, err := dname.Parse(*zoneName)
	if err != nil {
		return fmt.Errorf("xfer: bad zone name: %w", err)
	}

	client := xfer.NewClient(xfer.Config{
		Server:   *server,
		Zone:     zone,
		Class:    rdata.ClassIN,
		Serial:   uint32(*serial),
		UseIXFR:  *ixfr,
		Fallback: *fallback,
		Deadline: *deadline,
		Logger:   logger,
	})

	result, err := client.Run(ctx, nil)
	if err != nil {
		return fmt.Errorf("xfer: %w", err)
	}

	if result.UpToDate {
		fmt.Fprintln(out, ";; zone already up to date")
		return nil
	}
	if result.Kind == rdata.TypeIXFR {
		for _, d := range result.Deltas {
			fmt.Fprintf(out, ";; delta %d -> %d: %d deletes, %d adds\n", d.Start, d.End, len(d.Deletes), len(d.Adds))
			for _, rr := range d.Deletes {
				fmt.Fprintln(out, "-", rr.String())
			}
			for _, rr := range d.Adds {
				fmt.Fprintln(out, "+", rr.String())
			}
		}
		return nil
	}
	for _, rr := range result.Records {
		fmt.Fprintln(out, rr.String())
	}
	return nil
}
