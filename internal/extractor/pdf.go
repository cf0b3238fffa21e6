package extractor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF reads every page content stream of the PDF at path and decodes
// its text. Validation runs in relaxed mode so the slightly out-of-spec PDFs
// common in vendor manuals still load.
func extractPDF(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	result := &Result{TotalPages: pdfCtx.PageCount}
	for n := 1; n <= pdfCtx.PageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := pdfcpu.ExtractPageContent(pdfCtx, n)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", n, err)
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read page %d content: %w", n, err)
		}

		text := decodePageText(content)
		if strings.TrimSpace(text) == "" {
			continue
		}
		result.Pages = append(result.Pages, Page{Number: n, Text: text})
	}
	return result, nil
}

// decodePageText pulls the text shown by a decoded PDF content stream. It
// walks the stream tokens and concatenates the string operands of the
// text-showing operators (Tj, TJ, ', "), inserting line breaks at the
// text-positioning operators (Td, TD, T*). Kerning numbers inside TJ arrays
// and all non-text operators are ignored. This covers content streams with
// simple byte-oriented encodings; glyphs from subset fonts with custom CMaps
// may decode as raw bytes, which downstream treats as any other page text.
func decodePageText(content []byte) string {
	var out strings.Builder
	var pending []string
	var sep byte // separator owed before the next emitted segment

	emit := func() {
		seg := strings.Join(pending, "")
		pending = pending[:0]
		if seg == "" {
			return
		}
		if out.Len() > 0 {
			if sep == 0 {
				sep = ' '
			}
			out.WriteByte(sep)
		}
		out.WriteString(seg)
		sep = 0
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '(':
			s, next := parseLiteralString(content, i)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(content) && content[i+1] != '<':
			s, next := parseHexString(content, i)
			pending = append(pending, s)
			i = next
		case c == '<': // dictionary start
			i += 2
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '/':
			i++
			for i < len(content) && !isDelimiter(content[i]) && !isWhitespace(content[i]) {
				i++
			}
		case isDelimiter(c):
			i++
		case isWhitespace(c):
			i++
		default:
			start := i
			for i < len(content) && !isDelimiter(content[i]) && !isWhitespace(content[i]) {
				i++
			}
			switch tok := string(content[start:i]); tok {
			case "Tj", "TJ":
				emit()
			case "'", "\"":
				sep = '\n'
				emit()
			case "Td", "TD", "T*":
				pending = pending[:0]
				sep = '\n'
			default:
				// numeric operands (TJ kerning, positioning args) carry no
				// text effect; any other operator discards accumulated strings
				if !isNumeric(tok) {
					pending = pending[:0]
				}
			}
		}
	}
	emit()
	return out.String()
}

func isNumeric(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

// parseLiteralString decodes a PDF literal string starting at the '(' at
// content[start]. It returns the decoded text and the index just past the
// closing ')'. Balanced nested parentheses and backslash escapes per the PDF
// string grammar are handled.
func parseLiteralString(content []byte, start int) (string, int) {
	var b strings.Builder
	depth := 1
	i := start + 1
	for i < len(content) && depth > 0 {
		c := content[i]
		switch c {
		case '\\':
			if i+1 >= len(content) {
				i++
				continue
			}
			i++
			switch e := content[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '(', ')', '\\':
				b.WriteByte(e)
			case '\n': // line continuation
			case '\r':
				if i+1 < len(content) && content[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && i+1 < len(content) && content[i+1] >= '0' && content[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(content[i]-'0')
					}
					b.WriteByte(byte(v))
				} else {
					b.WriteByte(e)
				}
			}
			i++
		case '(':
			depth++
			b.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				b.WriteByte(c)
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

// parseHexString decodes a PDF hex string starting at the '<' at
// content[start] and returns the decoded text and the index just past '>'.
// An odd trailing digit is padded with zero per the PDF grammar.
func parseHexString(content []byte, start int) (string, int) {
	var b strings.Builder
	var hi, n byte
	i := start + 1
	for i < len(content) && content[i] != '>' {
		c := content[i]
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			i++
			continue
		}
		if n == 0 {
			hi = v
			n = 1
		} else {
			b.WriteByte(hi<<4 | v)
			n = 0
		}
		i++
	}
	if n == 1 {
		b.WriteByte(hi << 4)
	}
	if i < len(content) {
		i++ // consume '>'
	}
	return b.String(), i
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
