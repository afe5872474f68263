package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// MOBI reads the EXTH metadata records of a Mobipocket file.
type MOBI struct{}

func (MOBI) Name() string         { return "mobi" }
func (MOBI) Extensions() []string { return []string{"mobi"} }

const (
	exthAuthor      = 100
	exthDescription = 103
	exthSubject     = 105
	exthDate        = 106
	exthCoverOffset = 201
	exthTitle       = 503
	exthLanguage    = 524

	encodingCP1252 = 1252

	// maxRecord0Bytes bounds the header record read. Real ones are a few KB.
	maxRecord0Bytes = 1 << 20
)

var errNotMOBI = errors.New("not a mobipocket file")

// Parse implements Extractor.
func (MOBI) Parse(r io.ReaderAt, size int64) (*Metadata, error) {
	header := make([]byte, 78)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(header[60:68]) != "BOOKMOBI" {
		return nil, errNotMOBI
	}

	count := int(binary.BigEndian.Uint16(header[76:78]))
	if count == 0 || int64(78+count*8) > size {
		return nil, errNotMOBI
	}
	table := make([]byte, count*8)
	if _, err := r.ReadAt(table, 78); err != nil {
		return nil, fmt.Errorf("read record table: %w", err)
	}
	offsets := make([]int64, count)
	for i := range offsets {
		offsets[i] = int64(binary.BigEndian.Uint32(table[i*8:]))
	}

	if offsets[0] >= size {
		return nil, errNotMOBI
	}
	rec0Len := size - offsets[0]
	if count > 1 && offsets[1] > offsets[0] && offsets[1] < size {
		rec0Len = offsets[1] - offsets[0]
	}
	rec0Len = min(rec0Len, maxRecord0Bytes)
	if rec0Len < 132 {
		return nil, errNotMOBI
	}
	rec0 := make([]byte, rec0Len)
	if _, err := r.ReadAt(rec0, offsets[0]); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read record 0: %w", err)
	}
	if string(rec0[16:20]) != "MOBI" {
		return nil, errNotMOBI
	}

	mobiLen := int(binary.BigEndian.Uint32(rec0[20:24]))
	encoding := binary.BigEndian.Uint32(rec0[28:32])
	decode := func(b []byte) string {
		if encoding == encodingCP1252 {
			if s, err := charmap.Windows1252.NewDecoder().Bytes(b); err == nil {
				return string(s)
			}
		}
		return string(b)
	}

	md := NewMetadata()
	firstImage := binary.BigEndian.Uint32(rec0[108:112])
	coverOffset := uint32(0xFFFFFFFF)

	exthFlags := binary.BigEndian.Uint32(rec0[128:132])
	exthStart := 16 + mobiLen
	if exthFlags&0x40 != 0 && exthStart+12 <= len(rec0) && string(rec0[exthStart:exthStart+4]) == "EXTH" {
		n := int(binary.BigEndian.Uint32(rec0[exthStart+8:]))
		pos := exthStart + 12
		var authors []string
		for i := 0; i < n && pos+8 <= len(rec0); i++ {
			typ := binary.BigEndian.Uint32(rec0[pos:])
			length := int(binary.BigEndian.Uint32(rec0[pos+4:]))
			if length < 8 || pos+length > len(rec0) {
				break
			}
			data := rec0[pos+8 : pos+length]
			switch typ {
			case exthAuthor:
				authors = append(authors, decode(data))
			case exthTitle:
				md.Set(FieldTitle, decode(data))
			case exthLanguage:
				md.Set(FieldLanguage, decode(data))
			case exthDate:
				md.Set(FieldDate, decode(data))
			case exthDescription:
				md.Set(FieldDescription, decode(data))
			case exthSubject:
				md.Set(FieldGenre, decode(data))
			case exthCoverOffset:
				if len(data) == 4 {
					coverOffset = binary.BigEndian.Uint32(data)
				}
			}
			pos += length
		}
		md.Set(FieldAuthor, strings.Join(authors, ", "))
	}

	nameOffset := int(binary.BigEndian.Uint32(rec0[84:88]))
	nameLen := int(binary.BigEndian.Uint32(rec0[88:92]))
	if nameLen > 0 && nameOffset+nameLen <= len(rec0) {
		md.Set(FieldTitle, decode(bytes.TrimRight(rec0[nameOffset:nameOffset+nameLen], "\x00")))
	}

	if coverOffset != 0xFFFFFFFF {
		idx := int(firstImage) + int(coverOffset)
		if idx > 0 && idx < count && offsets[idx] < size {
			end := size
			if idx+1 < count && offsets[idx+1] < size {
				end = offsets[idx+1]
			}
			if n := end - offsets[idx]; n > 0 && n <= maxCoverBytes {
				img := make([]byte, n)
				if _, err := r.ReadAt(img, offsets[idx]); err == nil || err == io.EOF {
					md.Cover = img
				}
			}
		}
	}

	return md, nil
}
