package extract

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// maxCoverBytes caps images read out of archives.
const maxCoverBytes = 10 << 20

// EPUB reads the OPF package document of an EPUB container.
type EPUB struct{}

func (EPUB) Name() string         { return "epub" }
func (EPUB) Extensions() []string { return []string{"epub"} }

type epubContainer struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles       []string     `xml:"title"`
		Creators     []opfCreator `xml:"creator"`
		Languages    []string     `xml:"language"`
		Dates        []string     `xml:"date"`
		Descriptions []string     `xml:"description"`
		Subjects     []string     `xml:"subject"`
		Metas        []opfMeta    `xml:"meta"`
	} `xml:"metadata"`
	Manifest []opfItem `xml:"manifest>item"`
}

type opfCreator struct {
	Role string `xml:"role,attr"`
	Name string `xml:",chardata"`
}

type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"`
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
	ID       string `xml:"id,attr"`
	Value    string `xml:",chardata"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// Parse implements Extractor.
func (EPUB) Parse(r io.ReaderAt, size int64) (*Metadata, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var container epubContainer
	if err := decodeZipXML(zr, "META-INF/container.xml", &container); err != nil {
		return nil, err
	}
	opfPath := ""
	for _, rf := range container.Rootfiles {
		if rf.FullPath != "" {
			opfPath = rf.FullPath
			break
		}
	}
	if opfPath == "" {
		return nil, errors.New("container.xml names no package document")
	}

	var pkg opfPackage
	if err := decodeZipXML(zr, opfPath, &pkg); err != nil {
		return nil, err
	}

	md := NewMetadata()
	meta := pkg.Metadata
	md.Set(FieldTitle, first(meta.Titles))
	md.Set(FieldAuthor, joinCreators(meta.Creators))
	md.Set(FieldLanguage, first(meta.Languages))
	md.Set(FieldDate, first(meta.Dates))
	md.Set(FieldDescription, first(meta.Descriptions))
	md.Set(FieldGenre, first(meta.Subjects))

	coverID := ""
	collections := make(map[string]string)
	for _, m := range meta.Metas {
		switch {
		case m.Name == "calibre:series":
			md.Set(FieldSeries, m.Content)
		case m.Name == "calibre:series_index":
			md.Set(FieldSeriesIndex, m.Content)
		case m.Name == "cover":
			coverID = m.Content
		case m.Property == "belongs-to-collection":
			collections["#"+m.ID] = m.Value
			md.Set(FieldSeries, m.Value)
		}
	}
	for _, m := range meta.Metas {
		if m.Property == "group-position" && collections[m.Refines] != "" {
			md.Set(FieldSeriesIndex, m.Value)
		}
	}

	if href := coverHref(pkg.Manifest, coverID); href != "" {
		coverPath := resolveHref(opfPath, href)
		if data, err := readZipFile(zr, coverPath, maxCoverBytes); err == nil {
			md.Cover = data
		}
	}

	return md, nil
}

func coverHref(items []opfItem, coverID string) string {
	for _, it := range items {
		if strings.Contains(" "+it.Properties+" ", " cover-image ") {
			return it.Href
		}
	}
	if coverID == "" {
		return ""
	}
	for _, it := range items {
		if it.ID == coverID && strings.HasPrefix(it.MediaType, "image/") {
			return it.Href
		}
	}
	return ""
}

func resolveHref(opfPath, href string) string {
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return path.Join(path.Dir(opfPath), href)
}

func joinCreators(creators []opfCreator) string {
	var authors, others []string
	for _, c := range creators {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		if c.Role == "" || c.Role == "aut" {
			authors = append(authors, name)
		} else {
			others = append(others, name)
		}
	}
	if len(authors) == 0 {
		authors = others
	}
	return strings.Join(authors, ", ")
}

func decodeZipXML(zr *zip.Reader, name string, v any) error {
	data, err := readZipFile(zr, name, maxCoverBytes)
	if err != nil {
		return err
	}
	dec := newXMLDecoder(strings.NewReader(string(data)))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func readZipFile(zr *zip.Reader, name string, limit int64) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer func() { _ = rc.Close() }()
		return io.ReadAll(io.LimitReader(rc, limit))
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
