package extract

import (
	"bytes"
	"encoding/hex"
	"io"
	"strings"
	"unicode/utf16"
)

// pdfScanWindow is how much of the head and tail of a PDF is searched for
// the document information dictionary.
const pdfScanWindow = 1 << 20

// PDF finds literal entries of the document information dictionary. Files
// that keep it inside compressed object streams yield nothing.
type PDF struct{}

func (PDF) Name() string         { return "pdf" }
func (PDF) Extensions() []string { return []string{"pdf"} }

var pdfKeys = map[string]string{
	"/Title":        FieldTitle,
	"/Author":       FieldAuthor,
	"/Subject":      FieldDescription,
	"/CreationDate": FieldDate,
}

// Parse implements Extractor.
func (PDF) Parse(r io.ReaderAt, size int64) (*Metadata, error) {
	// The trailer usually points at an Info object near the end, so search
	// the tail before the head.
	var chunks [][]byte
	if size > pdfScanWindow {
		tail := make([]byte, pdfScanWindow)
		if _, err := r.ReadAt(tail, size-pdfScanWindow); err != nil && err != io.EOF {
			return nil, err
		}
		chunks = append(chunks, tail)
	}
	headLen := min(size, pdfScanWindow)
	head := make([]byte, headLen)
	if _, err := r.ReadAt(head, 0); err != nil && err != io.EOF {
		return nil, err
	}
	chunks = append(chunks, head)

	md := NewMetadata()
	for _, chunk := range chunks {
		for key, field := range pdfKeys {
			if v, ok := findPDFString(chunk, key); ok {
				if field == FieldDate {
					v = strings.TrimPrefix(v, "D:")
				}
				md.Set(field, v)
			}
		}
	}
	return md, nil
}

// findPDFString returns the string value following the last occurrence of
// key, which is most likely the newest revision.
func findPDFString(data []byte, key string) (string, bool) {
	idx := bytes.LastIndex(data, []byte(key))
	for idx >= 0 {
		rest := bytes.TrimLeft(data[idx+len(key):], " \t\r\n")
		if len(rest) > 0 {
			switch rest[0] {
			case '(':
				if s, ok := parsePDFLiteral(rest); ok {
					return s, true
				}
			case '<':
				if s, ok := parsePDFHex(rest); ok {
					return s, true
				}
			}
		}
		idx = bytes.LastIndex(data[:idx], []byte(key))
	}
	return "", false
}

func parsePDFLiteral(b []byte) (string, bool) {
	var out []byte
	depth := 0
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == '\\' && i+1 < len(b):
			i++
			switch b[i] {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case '\r', '\n':
			default:
				if b[i] >= '0' && b[i] <= '7' {
					v, n := 0, 0
					for n < 3 && i < len(b) && b[i] >= '0' && b[i] <= '7' {
						v = v*8 + int(b[i]-'0')
						i++
						n++
					}
					i--
					out = append(out, byte(v))
				} else {
					out = append(out, b[i])
				}
			}
		case c == '(':
			if depth > 0 {
				out = append(out, c)
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return decodePDFText(out), true
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return "", false
}

func parsePDFHex(b []byte) (string, bool) {
	end := bytes.IndexByte(b, '>')
	if end < 0 || (len(b) > 1 && b[1] == '<') {
		return "", false
	}
	digits := bytes.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, b[1:end])
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, hex.DecodedLen(len(digits)))
	if _, err := hex.Decode(raw, digits); err != nil {
		return "", false
	}
	return decodePDFText(raw), true
}

// decodePDFText handles UTF-16BE strings marked with a byte order mark;
// anything else is treated as Latin-1 compatible text.
func decodePDFText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
