package extract

import (
	"encoding/xml"
	"io"

	"golang.org/x/net/html/charset"
)

// newXMLDecoder returns a lenient decoder that understands the legacy
// encodings common in FB2 files (windows-1251, koi8-r).
func newXMLDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	return dec
}
