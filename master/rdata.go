package master

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
)

// parseRdata builds a typed rdata.Rdata from a record's presentation-form
// token list. The common zone-file types are built directly from their
// known field layout (mirroring what the teacher's parser.go does inline
// for A/CNAME/MX/TXT/SOA rather than through a per-type strategy
// registry); every other registered type falls back to the RFC 3597
// generic encoding ("\# length hexdata").
func parseRdata(p *Parser, typeCode uint16, typeName string, toks []string) (rdata.Rdata, error) {
	if len(toks) > 0 && toks[0] == `\#` {
		return parseGenericRdata(typeCode, toks)
	}

	switch typeName {
	case "A":
		if len(toks) != 1 {
			return nil, fmt.Errorf("master: A: want 1 field, got %d", len(toks))
		}
		addr, err := netip.ParseAddr(toks[0])
		if err != nil {
			return nil, fmt.Errorf("master: A: %w", err)
		}
		return &rdata.A{Addr: addr}, nil

	case "AAAA":
		if len(toks) != 1 {
			return nil, fmt.Errorf("master: AAAA: want 1 field, got %d", len(toks))
		}
		addr, err := netip.ParseAddr(toks[0])
		if err != nil {
			return nil, fmt.Errorf("master: AAAA: %w", err)
		}
		return &rdata.AAAA{Addr: addr}, nil

	case "NS", "CNAME", "PTR", "DNAME", "MD", "MF", "MB", "MG":
		if len(toks) != 1 {
			return nil, fmt.Errorf("master: %s: want 1 field, got %d", typeName, len(toks))
		}
		target, err := p.resolveName(toks[0])
		if err != nil {
			return nil, fmt.Errorf("master: %s: %w", typeName, err)
		}
		return &rdata.NameRdata{TypeCode: typeCode, Target: target, Compresses: typeName != "DNAME"}, nil

	case "MX", "AFSDB", "RT", "KX":
		if len(toks) != 2 {
			return nil, fmt.Errorf("master: %s: want 2 fields, got %d", typeName, len(toks))
		}
		pref, err := strconv.ParseUint(toks[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("master: %s: preference: %w", typeName, err)
		}
		target, err := p.resolveName(toks[1])
		if err != nil {
			return nil, fmt.Errorf("master: %s: %w", typeName, err)
		}
		return &rdata.PreferenceNameRdata{TypeCode: typeCode, Preference: uint16(pref), Exchange: target, Compresses: typeName == "MX"}, nil

	case "TXT", "SPF":
		if len(toks) == 0 {
			return nil, fmt.Errorf("master: %s: at least one string required", typeName)
		}
		strs, err := parseCharacterStrings(toks)
		if err != nil {
			return nil, fmt.Errorf("master: %s: %w", typeName, err)
		}
		return &rdata.TXTRdata{TypeCode: typeCode, Strings: strs}, nil

	case "HINFO":
		strs, err := parseCharacterStrings(toks)
		if err != nil || len(strs) != 2 {
			return nil, fmt.Errorf("master: HINFO: want 2 quoted strings")
		}
		return &rdata.HINFO{CPU: strs[0], OS: strs[1]}, nil

	case "SOA":
		if len(toks) != 7 {
			return nil, fmt.Errorf("master: SOA: want 7 fields, got %d", len(toks))
		}
		mname, err := p.resolveName(toks[0])
		if err != nil {
			return nil, fmt.Errorf("master: SOA: mname: %w", err)
		}
		rname, err := p.resolveName(toks[1])
		if err != nil {
			return nil, fmt.Errorf("master: SOA: rname: %w", err)
		}
		nums := make([]uint32, 5)
		for i, tok := range toks[2:] {
			v, err := parseTTLLike(tok)
			if err != nil {
				return nil, fmt.Errorf("master: SOA: field %d: %w", i+3, err)
			}
			nums[i] = v
		}
		return &rdata.SOA{
			MName: mname, RName: rname,
			Serial: nums[0], Refresh: nums[1], Retry: nums[2], Expire: nums[3], Minimum: nums[4],
		}, nil

	case "SRV":
		if len(toks) != 4 {
			return nil, fmt.Errorf("master: SRV: want 4 fields, got %d", len(toks))
		}
		priority, err := strconv.ParseUint(toks[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("master: SRV: priority: %w", err)
		}
		weight, err := strconv.ParseUint(toks[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("master: SRV: weight: %w", err)
		}
		port, err := strconv.ParseUint(toks[2], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("master: SRV: port: %w", err)
		}
		target, err := p.resolveName(toks[3])
		if err != nil {
			return nil, fmt.Errorf("master: SRV: target: %w", err)
		}
		return &rdata.SRV{Priority: uint16(priority), Weight: uint16(weight), Port: uint16(port), Target: target}, nil

	default:
		return nil, fmt.Errorf("master: no presentation parser for type %s; use \\# generic encoding", typeName)
	}
}

// parseTTLLike accepts a plain integer or a BIND time-unit suffixed value
// (1h, 2d, 1w) for SOA timer fields.
func parseTTLLike(tok string) (uint32, error) {
	if v, err := strconv.ParseUint(tok, 10, 32); err == nil {
		return uint32(v), nil
	}
	if len(tok) < 2 {
		return 0, fmt.Errorf("bad value %q", tok)
	}
	unit := tok[len(tok)-1]
	var mult uint64
	switch unit {
	case 's', 'S':
		mult = 1
	case 'm', 'M':
		mult = 60
	case 'h', 'H':
		mult = 3600
	case 'd', 'D':
		mult = 86400
	case 'w', 'W':
		mult = 604800
	default:
		return 0, fmt.Errorf("bad value %q", tok)
	}
	n, err := strconv.ParseUint(tok[:len(tok)-1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", tok)
	}
	return uint32(n * mult), nil
}

// parseCharacterStrings joins quoted-or-bare tokens back into the original
// <character-string> list; the tokenizer already split on whitespace, so a
// quoted string containing spaces needs re-assembly here.
func parseCharacterStrings(toks []string) ([]string, error) {
	joined := strings.Join(toks, " ")
	var out []string
	i := 0
	for i < len(joined) {
		for i < len(joined) && joined[i] == ' ' {
			i++
		}
		if i >= len(joined) {
			break
		}
		if joined[i] == '"' {
			j := i + 1
			var b strings.Builder
			for j < len(joined) && joined[j] != '"' {
				if joined[j] == '\\' && j+1 < len(joined) {
					b.WriteByte(joined[j+1])
					j += 2
					continue
				}
				b.WriteByte(joined[j])
				j++
			}
			if j >= len(joined) {
				return nil, fmt.Errorf("unterminated quoted string")
			}
			out = append(out, b.String())
			i = j + 1
			continue
		}
		j := i
		for j < len(joined) && joined[j] != ' ' {
			j++
		}
		out = append(out, joined[i:j])
		i = j
	}
	return out, nil
}

// parseGenericRdata implements RFC 3597 §5's unknown-type presentation
// format: "\# <length> <hex>...".
func parseGenericRdata(typeCode uint16, toks []string) (rdata.Rdata, error) {
	if len(toks) < 2 {
		return nil, fmt.Errorf("master: \\#: want length and hex data")
	}
	length, err := strconv.Atoi(toks[1])
	if err != nil {
		return nil, fmt.Errorf("master: \\#: bad length: %w", err)
	}
	hexStr := strings.Join(toks[2:], "")
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("master: \\#: bad hex data: %w", err)
	}
	if len(data) != length {
		return nil, fmt.Errorf("master: \\#: length %d does not match %d decoded bytes", length, len(data))
	}
	return &rdata.Generic{TypeCode: typeCode, Data: data}, nil
}

// resolveName turns a presentation-form owner/target token into an
// absolute dname.Name: "@" means the current origin, a trailing "."
// means already-absolute, anything else is relative and gets the
// origin appended — dname.Parse itself has no origin concept, matching
// the teacher's own string-concatenation approach in parser.go.
func (p *Parser) resolveName(tok string) (dname.Name, error) {
	if tok == "@" {
		return p.Origin, nil
	}
	if strings.HasSuffix(tok, ".") {
		return dname.Parse(tok)
	}
	rel, err := dname.Parse(tok)
	if err != nil {
		return dname.Name{}, err
	}
	return rel.Concat(p.Origin)
}
