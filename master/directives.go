package master

import (
	"fmt"
	"strconv"
	"strings"
)

// IncludeDirective is a parsed $INCLUDE line. File recursion is left to
// the caller — the tokenizer has no filesystem access (§6: "zone master
// files are read from the file system but parsed through the tokenizer
// abstraction").
type IncludeDirective struct {
	Path   string
	Origin string // optional relative origin argument; "" means inherit
}

// GenerateDirective is a parsed $GENERATE line (BIND extension): a
// numeric range, an optional step, and an owner/rdata template using
// "$" substitution.
type GenerateDirective struct {
	Start, Stop, Step int
	Template          string // raw remainder of the line, "$" unexpanded
}

func (p *Parser) applyOrigin(args []string, lineNumber int) error {
	if len(args) < 1 {
		return fmt.Errorf("master: line %d: $ORIGIN requires an argument", lineNumber)
	}
	origin, err := p.resolveName(args[0])
	if err != nil {
		return fmt.Errorf("master: line %d: $ORIGIN: %w", lineNumber, err)
	}
	p.Origin = origin
	return nil
}

func (p *Parser) applyTTL(args []string, lineNumber int) error {
	if len(args) < 1 {
		return fmt.Errorf("master: line %d: $TTL requires an argument", lineNumber)
	}
	ttl, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("master: line %d: $TTL: %w", lineNumber, err)
	}
	p.DefaultTTL = uint32(ttl)
	return nil
}

func parseInclude(args []string, lineNumber int) (IncludeDirective, error) {
	if len(args) < 1 {
		return IncludeDirective{}, fmt.Errorf("master: line %d: $INCLUDE requires a path", lineNumber)
	}
	inc := IncludeDirective{Path: args[0]}
	if len(args) > 1 {
		inc.Origin = args[1]
	}
	return inc, nil
}

// parseGenerate parses a $GENERATE range/step spec ("1-254" or
// "1-254/2") and keeps the rest of the line as an unexpanded template;
// expansion into per-iteration rdata tokens is the caller's job via
// Expand, since "$" substitution interacts with per-record-type token
// splitting that happens later in the pipeline.
func parseGenerate(args []string, lineNumber int) (GenerateDirective, error) {
	if len(args) < 2 {
		return GenerateDirective{}, fmt.Errorf("master: line %d: $GENERATE requires a range and a template", lineNumber)
	}
	rangeSpec := args[0]
	step := 1
	if idx := strings.IndexByte(rangeSpec, '/'); idx >= 0 {
		s, err := strconv.Atoi(rangeSpec[idx+1:])
		if err != nil {
			return GenerateDirective{}, fmt.Errorf("master: line %d: $GENERATE: bad step: %w", lineNumber, err)
		}
		step = s
		rangeSpec = rangeSpec[:idx]
	}
	parts := strings.SplitN(rangeSpec, "-", 2)
	if len(parts) != 2 {
		return GenerateDirective{}, fmt.Errorf("master: line %d: $GENERATE: bad range %q", lineNumber, rangeSpec)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return GenerateDirective{}, fmt.Errorf("master: line %d: $GENERATE: bad start: %w", lineNumber, err)
	}
	stop, err := strconv.Atoi(parts[1])
	if err != nil {
		return GenerateDirective{}, fmt.Errorf("master: line %d: $GENERATE: bad stop: %w", lineNumber, err)
	}
	return GenerateDirective{Start: start, Stop: stop, Step: step, Template: strings.Join(args[1:], " ")}, nil
}

// Expand substitutes "$" in g.Template with each iteration value (BIND's
// $GENERATE semantics; "$$" is a literal dollar sign) and returns the
// resulting lines, ready to feed back through classify/buildRR.
func (g GenerateDirective) Expand() ([]string, error) {
	if g.Step == 0 {
		return nil, fmt.Errorf("master: $GENERATE step cannot be zero")
	}
	var out []string
	if g.Step > 0 {
		for i := g.Start; i <= g.Stop; i += g.Step {
			out = append(out, substituteDollar(g.Template, i))
		}
	} else {
		for i := g.Start; i >= g.Stop; i += g.Step {
			out = append(out, substituteDollar(g.Template, i))
		}
	}
	return out, nil
}

func substituteDollar(template string, value int) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(template) && template[i+1] == '$' {
			b.WriteByte('$')
			i++
			continue
		}
		b.WriteString(strconv.Itoa(value))
	}
	return b.String()
}
