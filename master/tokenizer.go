// Package master implements a DNS master (zone) file reader: a
// directive/paren/comment-aware line tokenizer (RFC 1035 §5) feeding this
// package's own per-type presentation parsers (rdata.go), which build
// typed rdata.RR values rather than a flat record-content string.
package master

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// rawLine is one logical master-file line after comment stripping and
// parenthesized-continuation joining, before field classification.
type rawLine struct {
	text          string
	leadingSpace  bool
	lineNumber    int
}

// scanLogicalLines reads r and yields one rawLine per logical record,
// buffering multi-physical-line records wrapped in "(" ... ")" and
// stripping ";" comments, mirroring the teacher's paren-continuation
// buffering in internal/dns/master/parser.go.
func scanLogicalLines(r io.Reader, emit func(rawLine) error) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	var inParen bool
	var parenLines []string
	var firstLineLeadingWS bool
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())

		if !inParen {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			firstLineLeadingWS = len(line) > 0 && (line[0] == ' ' || line[0] == '\t')

			if strings.Contains(line, "(") {
				inParen = true
				parenLines = append(parenLines, strings.Replace(line, "(", " ", 1))
				if !strings.Contains(line, ")") {
					continue
				}
				inParen = false
			}
		} else {
			parenLines = append(parenLines, line)
			if !strings.Contains(line, ")") {
				continue
			}
			inParen = false
		}

		var fullLine string
		if len(parenLines) > 0 {
			fullLine = strings.ReplaceAll(strings.Join(parenLines, " "), ")", " ")
			parenLines = nil
		} else {
			fullLine = line
		}

		trimmedFull := strings.TrimSpace(fullLine)
		if trimmedFull == "" {
			continue
		}
		if err := emit(rawLine{text: trimmedFull, leadingSpace: firstLineLeadingWS, lineNumber: lineNo}); err != nil {
			return err
		}
	}
	if inParen {
		return fmt.Errorf("master: unterminated parenthesized record starting before line %d", lineNo)
	}
	return scanner.Err()
}

func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// entry is one classified logical line: either a directive ($ORIGIN,
// $TTL, $INCLUDE, $GENERATE) or a resource record's raw fields.
type entry struct {
	directive     string // "" for a record
	directiveArgs []string

	name       string // "" means "use the previous owner name" (leadingSpace)
	useLastName bool
	ttl        *uint32
	class      string
	typ        string
	rdataToks  []string

	lineNumber int
}

func classify(rl rawLine) (entry, error) {
	if strings.HasPrefix(rl.text, "$") {
		fields := strings.Fields(rl.text)
		if len(fields) < 1 {
			return entry{}, fmt.Errorf("master: line %d: empty directive", rl.lineNumber)
		}
		return entry{
			directive:     strings.ToUpper(fields[0]),
			directiveArgs: fields[1:],
			lineNumber:    rl.lineNumber,
		}, nil
	}

	fields := strings.Fields(rl.text)
	if len(fields) == 0 {
		return entry{}, fmt.Errorf("master: line %d: empty record", rl.lineNumber)
	}

	e := entry{lineNumber: rl.lineNumber}
	if rl.leadingSpace {
		e.useLastName = true
	} else {
		e.name = fields[0]
		fields = fields[1:]
	}

	for i := 0; i < len(fields); i++ {
		f := fields[i]
		upper := strings.ToUpper(f)
		if ttl, err := strconv.ParseUint(f, 10, 32); err == nil {
			v := uint32(ttl)
			e.ttl = &v
			continue
		}
		if upper == "IN" || upper == "CH" || upper == "HS" {
			e.class = upper
			continue
		}
		e.typ = upper
		e.rdataToks = fields[i+1:]
		break
	}
	if e.typ == "" {
		return entry{}, fmt.Errorf("master: line %d: missing record type", rl.lineNumber)
	}
	return e, nil
}
