package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

// PNG encodes a w×h image filled with a deterministic noise pattern so the
// encoded size grows with the dimensions.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(2463534242)
	for y := range h {
		for x := range w {
			seed ^= seed << 13
			seed ^= seed >> 17
			seed ^= seed << 5
			img.Set(x, y, color.RGBA{R: uint8(seed), G: uint8(seed >> 8), B: uint8(seed >> 16), A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// BookFixture describes the metadata written into generated e-book files.
type BookFixture struct {
	Title       string
	Authors     []string
	Language    string
	Date        string
	Description string
	Genre       string
	Series      string
	SeriesIndex string
	Cover       []byte
}

// EPUB builds a minimal EPUB 2 container with an OPF package document.
func EPUB(t *testing.T, f BookFixture) []byte {
	t.Helper()

	var meta strings.Builder
	if f.Title != "" {
		fmt.Fprintf(&meta, "<dc:title>%s</dc:title>\n", html.EscapeString(f.Title))
	}
	for _, a := range f.Authors {
		fmt.Fprintf(&meta, "<dc:creator opf:role=\"aut\">%s</dc:creator>\n", html.EscapeString(a))
	}
	if f.Language != "" {
		fmt.Fprintf(&meta, "<dc:language>%s</dc:language>\n", f.Language)
	}
	if f.Date != "" {
		fmt.Fprintf(&meta, "<dc:date>%s</dc:date>\n", f.Date)
	}
	if f.Description != "" {
		fmt.Fprintf(&meta, "<dc:description>%s</dc:description>\n", html.EscapeString(f.Description))
	}
	if f.Genre != "" {
		fmt.Fprintf(&meta, "<dc:subject>%s</dc:subject>\n", html.EscapeString(f.Genre))
	}
	if f.Series != "" {
		fmt.Fprintf(&meta, "<meta name=\"calibre:series\" content=\"%s\"/>\n", html.EscapeString(f.Series))
	}
	if f.SeriesIndex != "" {
		fmt.Fprintf(&meta, "<meta name=\"calibre:series_index\" content=\"%s\"/>\n", f.SeriesIndex)
	}

	manifest := `<item id="text" href="text.xhtml" media-type="application/xhtml+xml"/>`
	if len(f.Cover) > 0 {
		meta.WriteString(`<meta name="cover" content="cover-img"/>` + "\n")
		manifest += "\n" + `<item id="cover-img" href="images/cover%20art.png" media-type="image/png"/>`
	}

	opf := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="id">
<metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
` + meta.String() + `</metadata>
<manifest>
` + manifest + `
</manifest>
</package>`

	container := `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
<rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name string, data []byte, method uint16) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	write("mimetype", []byte("application/epub+zip"), zip.Store)
	write("META-INF/container.xml", []byte(container), zip.Deflate)
	write("OEBPS/content.opf", []byte(opf), zip.Deflate)
	write("OEBPS/text.xhtml", []byte("<html><body><p>text</p></body></html>"), zip.Deflate)
	if len(f.Cover) > 0 {
		write("OEBPS/images/cover art.png", f.Cover, zip.Store)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish epub: %v", err)
	}
	return buf.Bytes()
}

// FB2 builds a FictionBook 2 document. Authors are split into first and
// last names on the final space.
func FB2(t *testing.T, f BookFixture) []byte {
	t.Helper()

	var info strings.Builder
	if f.Genre != "" {
		fmt.Fprintf(&info, "<genre>%s</genre>\n", f.Genre)
	}
	for _, a := range f.Authors {
		first, last := "", a
		if i := strings.LastIndex(a, " "); i > 0 {
			first, last = a[:i], a[i+1:]
		}
		fmt.Fprintf(&info, "<author><first-name>%s</first-name><last-name>%s</last-name></author>\n",
			html.EscapeString(first), html.EscapeString(last))
	}
	if f.Title != "" {
		fmt.Fprintf(&info, "<book-title>%s</book-title>\n", html.EscapeString(f.Title))
	}
	if f.Description != "" {
		fmt.Fprintf(&info, "<annotation><p>%s</p></annotation>\n", html.EscapeString(f.Description))
	}
	if f.Date != "" {
		fmt.Fprintf(&info, "<date>%s</date>\n", f.Date)
	}
	if len(f.Cover) > 0 {
		info.WriteString(`<coverpage><image l:href="#cover.png"/></coverpage>` + "\n")
	}
	if f.Language != "" {
		fmt.Fprintf(&info, "<lang>%s</lang>\n", f.Language)
	}
	if f.Series != "" {
		fmt.Fprintf(&info, "<sequence name=\"%s\" number=\"%s\"/>\n", html.EscapeString(f.Series), f.SeriesIndex)
	}

	var binaries string
	if len(f.Cover) > 0 {
		binaries = `<binary id="cover.png" content-type="image/png">` +
			wrap(base64.StdEncoding.EncodeToString(f.Cover), 76) + `</binary>`
	}

	doc := `<?xml version="1.0" encoding="UTF-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0" xmlns:l="http://www.w3.org/1999/xlink">
<description><title-info>
` + info.String() + `</title-info></description>
<body><section><p>text</p></section></body>
` + binaries + `
</FictionBook>`
	return []byte(doc)
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}

// MOBI builds a Mobipocket file with an EXTH block and, when a cover is
// given, a single image record.
func MOBI(t *testing.T, f BookFixture) []byte {
	t.Helper()

	type exth struct {
		typ  uint32
		data []byte
	}
	var records []exth
	for _, a := range f.Authors {
		records = append(records, exth{100, []byte(a)})
	}
	if f.Title != "" {
		records = append(records, exth{503, []byte(f.Title)})
	}
	if f.Language != "" {
		records = append(records, exth{524, []byte(f.Language)})
	}
	if f.Description != "" {
		records = append(records, exth{103, []byte(f.Description)})
	}
	if f.Date != "" {
		records = append(records, exth{106, []byte(f.Date)})
	}
	if f.Genre != "" {
		records = append(records, exth{105, []byte(f.Genre)})
	}
	if len(f.Cover) > 0 {
		records = append(records, exth{201, binary.BigEndian.AppendUint32(nil, 0)})
	}

	var ex bytes.Buffer
	for _, r := range records {
		_ = binary.Write(&ex, binary.BigEndian, r.typ)
		_ = binary.Write(&ex, binary.BigEndian, uint32(len(r.data)+8))
		ex.Write(r.data)
	}
	exthBlock := append([]byte("EXTH"), binary.BigEndian.AppendUint32(nil, uint32(12+ex.Len()))...)
	exthBlock = binary.BigEndian.AppendUint32(exthBlock, uint32(len(records)))
	exthBlock = append(exthBlock, ex.Bytes()...)

	const mobiLen = 232
	rec0 := make([]byte, 16+mobiLen)
	copy(rec0[16:], "MOBI")
	binary.BigEndian.PutUint32(rec0[20:], mobiLen)
	binary.BigEndian.PutUint32(rec0[28:], 65001)
	binary.BigEndian.PutUint32(rec0[108:], 1)
	binary.BigEndian.PutUint32(rec0[128:], 0x40)
	rec0 = append(rec0, exthBlock...)

	numRecords := 1
	if len(f.Cover) > 0 {
		numRecords = 2
	}
	headerLen := 78 + numRecords*8 + 2
	header := make([]byte, 78)
	copy(header, "fixture")
	copy(header[60:], "BOOKMOBI")
	binary.BigEndian.PutUint16(header[76:], uint16(numRecords))

	var out bytes.Buffer
	out.Write(header)
	_ = binary.Write(&out, binary.BigEndian, uint32(headerLen))
	out.Write([]byte{0, 0, 0, 0})
	if numRecords == 2 {
		_ = binary.Write(&out, binary.BigEndian, uint32(headerLen+len(rec0)))
		out.Write([]byte{0, 0, 0, 1})
	}
	out.Write([]byte{0, 0})
	out.Write(rec0)
	out.Write(f.Cover)
	return out.Bytes()
}
