package seed

import (
	"fmt"
	"strings"
)

// tokenKind classifies the inert-text spans the parser must not interpret
// as directives while scanning (spec.md §4.5): quoted strings, bracketed
// identifiers, and block comments are all opaque, multi-line, EOF-tolerant
// tokens, and a "--#"-looking line inside one of them is not a directive.
type tokenKind int

const (
	tokenNone tokenKind = iota
	tokenQuotedString
	tokenBracketedIdent
	tokenBlockComment
)

// Parse tokenizes a seed file's text and partitions it into modules,
// following the rules in spec.md §4.5. Parsing never fails on unterminated
// strings/brackets/comments ("tolerant of EOF"); it only fails with a
// FormatException-equivalent error for malformed directives.
func Parse(text string) ([]*Module, error) {
	p := &parser{text: text}
	return p.run()
}

type parser struct {
	text    string
	modules []*Module
	current *Module
	batch   strings.Builder
	state   tokenKind // carried across lines, since any of the three token kinds can span multiple lines
}

func (p *parser) run() ([]*Module, error) {
	p.current = newModule(InitModuleName)
	p.modules = append(p.modules, p.current)

	for _, line := range splitKeepEnds(p.text) {
		if p.state == tokenNone {
			trimmed := strings.TrimSpace(trimTrailingNewline(line))
			if strings.HasPrefix(trimmed, "--#") {
				if err := p.handleDirective(trimmed); err != nil {
					return nil, err
				}
				continue
			}
		}
		p.scanLine(line)
	}

	p.flushBatch()
	return p.modules, nil
}

// scanLine consumes one physical line under whatever token state was left
// over from the previous line, switching state as quotes, brackets, and
// block comments open and close. A token left open at end of line simply
// carries into the next line's scan.
func (p *parser) scanLine(line string) {
	i := 0
	for i < len(line) {
		switch p.state {
		case tokenNone:
			rest := line[i:]
			idx, kind := earliestTokenStart(rest)
			if idx < 0 {
				p.batch.WriteString(rest)
				return
			}
			p.batch.WriteString(rest[:idx])
			i += idx
			switch kind {
			case tokenQuotedString:
				p.batch.WriteByte('\'')
				i++
			case tokenBracketedIdent:
				p.batch.WriteByte('[')
				i++
			case tokenBlockComment:
				p.batch.WriteString("/*")
				i += 2
			}
			p.state = kind

		case tokenQuotedString:
			i = p.consumeDelimited(line, i, '\'')

		case tokenBracketedIdent:
			i = p.consumeDelimited(line, i, ']')

		case tokenBlockComment:
			rest := line[i:]
			idx := strings.Index(rest, "*/")
			if idx < 0 {
				p.batch.WriteString(rest)
				return
			}
			p.batch.WriteString(rest[:idx+2])
			i += idx + 2
			p.state = tokenNone
		}
	}
}

// consumeDelimited advances past a quoted string or bracketed identifier
// body, handling the doubled-delimiter escape both use ('' inside a
// string, ]] inside a bracketed identifier) to mean a literal delimiter
// character rather than the close. Returns the new scan position; p.state
// is reset to tokenNone once an unescaped close is found.
func (p *parser) consumeDelimited(line string, i int, closeChar byte) int {
	rest := line[i:]
	for {
		idx := strings.IndexByte(rest, closeChar)
		if idx < 0 {
			p.batch.WriteString(rest)
			return i + len(rest)
		}
		p.batch.WriteString(rest[:idx+1])
		i += idx + 1
		rest = line[i:]
		if len(rest) > 0 && rest[0] == closeChar {
			p.batch.WriteByte(closeChar)
			i++
			rest = line[i:]
			continue
		}
		p.state = tokenNone
		return i
	}
}

// earliestTokenStart finds whichever of a quote, an open bracket, or a
// block comment opener occurs first in s, since whichever starts first is
// the one that governs how the rest of the line is read.
func earliestTokenStart(s string) (idx int, kind tokenKind) {
	idx, kind = -1, tokenNone
	if q := strings.IndexByte(s, '\''); q >= 0 {
		idx, kind = q, tokenQuotedString
	}
	if b := strings.IndexByte(s, '['); b >= 0 && (idx < 0 || b < idx) {
		idx, kind = b, tokenBracketedIdent
	}
	if c := strings.Index(s, "/*"); c >= 0 && (idx < 0 || c < idx) {
		idx, kind = c, tokenBlockComment
	}
	return idx, kind
}

func (p *parser) handleDirective(line string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "--#"))
	keyword, arg := splitKeyword(rest)

	switch strings.ToUpper(keyword) {
	case "MODULE":
		args := strings.Fields(arg)
		if len(args) != 1 {
			return fmt.Errorf("--# MODULE requires exactly one argument, got %q", arg)
		}
		p.flushBatch()
		p.current = newModule(args[0])
		p.modules = append(p.modules, p.current)

	case "PROVIDES":
		args := strings.Fields(arg)
		if len(args) == 0 {
			return fmt.Errorf("--# PROVIDES requires at least one argument")
		}
		p.current.addProvides(args)

	case "REQUIRES":
		args := strings.Fields(arg)
		if len(args) == 0 {
			return fmt.Errorf("--# REQUIRES requires at least one argument")
		}
		p.current.addRequires(args)

	case "WORKER":
		args := strings.Fields(arg)
		if len(args) != 1 {
			return fmt.Errorf("--# WORKER requires exactly one argument, got %q", arg)
		}
		switch strings.ToLower(args[0]) {
		case "all":
			p.current.WorkerID = AllWorkers
		case "any":
			p.current.WorkerID = AnyWorker
		default:
			return fmt.Errorf("--# WORKER argument must be 'all' or 'any', got %q", args[0])
		}

	default:
		// Unrecognized --# directives are inert text, like any other
		// comment, since the grammar only reserves these four keywords.
		p.batch.WriteString(line)
		p.batch.WriteString("\n")
	}
	return nil
}

func splitKeyword(s string) (keyword, rest string) {
	s = strings.TrimPrefix(s, ":")
	idx := strings.IndexAny(s, " \t:")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(strings.TrimPrefix(s[idx:], ":"))
}

func (p *parser) flushBatch() {
	body := strings.TrimSpace(p.batch.String())
	if body != "" {
		p.current.Batches = append(p.current.Batches, body)
	}
	p.batch.Reset()
}

func splitKeepEnds(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func trimTrailingNewline(s string) string {
	return strings.TrimRight(s, "\r\n")
}
