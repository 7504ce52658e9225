// Package extract turns loosely structured text (CSV exports, pasted JSON,
// AI responses) into record sequences.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/chartloom-cli/internal/record"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// CSVResult is the detailed outcome of ParseCSVDetailed.
type CSVResult struct {
	Records   record.Sequence
	Header    []string
	Delimiter rune
	// Skipped counts body rows dropped for having too few fields.
	Skipped int
}

// ParseCSV parses CSV text into records. Text with fewer than two non-blank
// lines yields an empty sequence; malformed rows are dropped silently.
func ParseCSV(text string) record.Sequence {
	return ParseCSVDetailed(text).Records
}

// ParseCSVDetailed is ParseCSV plus diagnostics about dropped rows.
func ParseCSVDetailed(text string) CSVResult {
	var lines []string
	for _, l := range lineBreak.Split(text, -1) {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return CSVResult{Records: record.Sequence{}}
	}
	// Delimiter comes from the header line only.
	delim := ','
	if strings.Contains(lines[0], ";") {
		delim = ';'
	}
	header := splitRow(lines[0], delim)
	res := CSVResult{Records: record.Sequence{}, Header: header, Delimiter: delim}
	for _, line := range lines[1:] {
		cells := splitRow(line, delim)
		if len(cells) < len(header)-1 {
			res.Skipped++
			continue
		}
		var r record.Record
		for i, h := range header {
			if i >= len(cells) {
				// short row: the trailing field stays absent
				break
			}
			r.Set(h, coerceCell(cells[i]))
		}
		res.Records = append(res.Records, r)
	}
	return res
}

// splitRow tokenizes one line. A field that opens with a quote ends at its
// closing quote, with doubled quotes read as one; anything between the closing
// quote and the next delimiter is discarded. An unterminated quote makes the
// field plain text. Tokens are whitespace-trimmed.
func splitRow(line string, delim rune) []string {
	var out []string
	rest := line
	for {
		tok, next, more := scanField(rest, delim)
		out = append(out, strings.TrimSpace(tok))
		if !more {
			break
		}
		rest = next
	}
	if len(out) == 0 {
		return strings.Split(line, string(delim))
	}
	return out
}

// scanField reads one field from s. It returns the field, the text after the
// delimiter that ended it and whether such a delimiter was found.
func scanField(s string, delim rune) (field, rest string, more bool) {
	trimmed := strings.TrimLeft(s, " \t")
	if strings.HasPrefix(trimmed, `"`) {
		var b strings.Builder
		body := trimmed[1:]
		for i := 0; i < len(body); i++ {
			if body[i] != '"' {
				b.WriteByte(body[i])
				continue
			}
			if i+1 < len(body) && body[i+1] == '"' {
				b.WriteByte('"')
				i++
				continue
			}
			// closing quote: skip to the next delimiter
			after := body[i+1:]
			if j := strings.IndexRune(after, delim); j >= 0 {
				return b.String(), after[j+utf8.RuneLen(delim):], true
			}
			return b.String(), "", false
		}
	}
	if j := strings.IndexRune(s, delim); j >= 0 {
		return unquote(s[:j]), s[j+utf8.RuneLen(delim):], true
	}
	return unquote(s), "", false
}

// unquote strips one stray quote from each end of a plain field and folds
// doubled quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.ReplaceAll(s, `""`, `"`)
}

// coerceCell stores numeric tokens as numbers and everything else as the
// trimmed string. Empty tokens stay empty strings.
func coerceCell(tok string) record.Value {
	if f, ok := parseNumber(tok); ok {
		return record.Num(f)
	}
	return record.Str(tok)
}

// parseNumber accepts decimal and exponent forms plus 0x/0o/0b integer
// literals. Non-finite spellings (Inf, NaN) are treated as text.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			if n, err := strconv.ParseUint(s[2:], base, 64); err == nil {
				return float64(n), true
			}
		}
	}
	return 0, false
}
