package master

import (
	"fmt"
	"io"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/zone"
)

// Parser holds the mutable state $ORIGIN/$TTL directives update while
// reading a master file, plus the last owner name seen (for
// leading-whitespace "same as previous" lines).
type Parser struct {
	Origin     dname.Name
	DefaultTTL uint32
	Class      uint16

	lastName dname.Name
	haveLast bool
}

// NewParser returns a Parser seeded with an initial $ORIGIN and class;
// DefaultTTL starts at 0 and a $TTL directive replaces it. A record with
// no explicit TTL takes DefaultTTL, so a record that appears before any
// $TTL and has no TTL of its own gets TTL 0; it is not rejected.
func NewParser(origin dname.Name, class uint16) *Parser {
	return &Parser{Origin: origin, Class: class}
}

// Parse reads a master file from r and returns every resource record it
// defines, in file order. $INCLUDE directives are returned to the
// caller rather than followed (the parser has no filesystem access);
// the caller is expected to recurse by constructing a nested Parser
// over the included file's contents with the given origin and
// concatenating results.
func (p *Parser) Parse(r io.Reader) ([]rdata.RR, []IncludeDirective, error) {
	var records []rdata.RR
	var includes []IncludeDirective

	err := scanLogicalLines(r, func(rl rawLine) error {
		e, err := classify(rl)
		if err != nil {
			return err
		}

		if e.directive != "" {
			switch e.directive {
			case "$ORIGIN":
				return p.applyOrigin(e.directiveArgs, e.lineNumber)
			case "$TTL":
				return p.applyTTL(e.directiveArgs, e.lineNumber)
			case "$INCLUDE":
				inc, err := parseInclude(e.directiveArgs, e.lineNumber)
				if err != nil {
					return err
				}
				includes = append(includes, inc)
				return nil
			case "$GENERATE":
				gen, err := parseGenerate(e.directiveArgs, e.lineNumber)
				if err != nil {
					return err
				}
				lines, err := gen.Expand()
				if err != nil {
					return fmt.Errorf("master: line %d: $GENERATE: %w", e.lineNumber, err)
				}
				for _, line := range lines {
					ge, err := classify(rawLine{text: line, leadingSpace: false, lineNumber: e.lineNumber})
					if err != nil {
						return err
					}
					rr, err := p.buildRR(ge)
					if err != nil {
						return err
					}
					records = append(records, rr)
				}
				return nil
			default:
				return fmt.Errorf("master: line %d: unknown directive %s", e.lineNumber, e.directive)
			}
		}

		rr, err := p.buildRR(e)
		if err != nil {
			return err
		}
		records = append(records, rr)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return records, includes, nil
}

// ParseZone is a convenience wrapper around Parse that loads every
// record directly into a zone.Zone rooted at origin. $INCLUDE is
// rejected outright since a Zone load is expected to be self-contained;
// callers needing $INCLUDE should use Parse directly.
func ParseZone(r io.Reader, origin dname.Name, class uint16) (*zone.Zone, error) {
	p := NewParser(origin, class)
	records, includes, err := p.Parse(r)
	if err != nil {
		return nil, err
	}
	if len(includes) > 0 {
		return nil, fmt.Errorf("master: $INCLUDE not supported by ParseZone (found %d)", len(includes))
	}
	z := zone.New(origin, class)
	for _, rr := range records {
		z.Add(rr)
	}
	if err := z.Validate(); err != nil {
		return nil, fmt.Errorf("master: %w", err)
	}
	return z, nil
}

func (p *Parser) buildRR(e entry) (rdata.RR, error) {
	var name dname.Name
	var err error
	if e.useLastName {
		if !p.haveLast {
			return rdata.RR{}, fmt.Errorf("master: line %d: no previous owner name to reuse", e.lineNumber)
		}
		name = p.lastName
	} else {
		name, err = p.resolveName(e.name)
		if err != nil {
			return rdata.RR{}, fmt.Errorf("master: line %d: owner name: %w", e.lineNumber, err)
		}
	}
	p.lastName = name
	p.haveLast = true

	info, ok := rdata.LookupByName(e.typ)
	if !ok {
		return rdata.RR{}, fmt.Errorf("master: line %d: unknown record type %s", e.lineNumber, e.typ)
	}
	typeCode := info.Code

	class := p.Class
	if e.class != "" {
		switch e.class {
		case "IN":
			class = rdata.ClassIN
		case "CH":
			class = rdata.ClassCH
		case "HS":
			class = rdata.ClassHS
		}
	}

	ttl := p.DefaultTTL
	if e.ttl != nil {
		ttl = *e.ttl
	}

	rd, err := parseRdata(p, typeCode, e.typ, e.rdataToks)
	if err != nil {
		return rdata.RR{}, fmt.Errorf("master: line %d: %w", e.lineNumber, err)
	}

	return rdata.RR{
		Header: rdata.Header{Name: name, Type: typeCode, Class: class, TTL: ttl},
		Rdata:  rd,
	}, nil
}
