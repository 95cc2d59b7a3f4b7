package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// extractPDF pulls text-showing operators out of each page's decoded
// content stream. Glyph runs that rely on embedded font encodings may
// come out lossy; that is acceptable for retrieval purposes.
func extractPDF(data []byte) (string, int, error) {
	conf := api.LoadConfiguration()

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", 0, fmt.Errorf("read pdf: %w", err)
	}

	pageCount := ctx.PageCount
	var pages []string

	for pageNr := 1; pageNr <= pageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			return "", 0, fmt.Errorf("extract page %d content: %w", pageNr, err)
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return "", 0, fmt.Errorf("read page %d content: %w", pageNr, err)
		}
		if text := textFromContent(content); text != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, "\n\n"), pageCount, nil
}

// textFromContent collects the string operands of Tj/TJ/'/" operators
// from one decoded content stream.
func textFromContent(content []byte) string {
	var sb strings.Builder
	i := 0
	n := len(content)

	for i < n {
		switch content[i] {
		case '(':
			s, next := readLiteralString(content, i)
			if s != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(s)
			}
			i = next
		case '%':
			// comment runs to end of line
			for i < n && content[i] != '\n' {
				i++
			}
		case '<':
			// skip hex strings and dictionaries; their glyph codes are
			// not recoverable without font decoding
			i = skipAngle(content, i)
		default:
			i++
		}
	}
	return strings.TrimSpace(sb.String())
}

// readLiteralString parses a PDF literal string starting at the '(' in
// content[start]. Returns the unescaped text and the index after the
// closing parenthesis.
func readLiteralString(content []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := start
	n := len(content)

	for i < n {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < n {
				switch content[i+1] {
				case 'n':
					sb.WriteByte('\n')
				case 'r':
					sb.WriteByte('\r')
				case 't':
					sb.WriteByte('\t')
				case '(', ')', '\\':
					sb.WriteByte(content[i+1])
				}
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				sb.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

func skipAngle(content []byte, start int) int {
	i := start + 1
	for i < len(content) && content[i] != '>' {
		i++
	}
	return i + 1
}
