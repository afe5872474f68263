package extract

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// FB2 reads the title-info block of a FictionBook 2 document.
type FB2 struct{}

func (FB2) Name() string         { return "fb2" }
func (FB2) Extensions() []string { return []string{"fb2"} }

type fb2Book struct {
	TitleInfo struct {
		Genres     []string    `xml:"genre"`
		Authors    []fb2Author `xml:"author"`
		BookTitle  string      `xml:"book-title"`
		Annotation struct {
			Inner string `xml:",innerxml"`
		} `xml:"annotation"`
		Date struct {
			Value string `xml:"value,attr"`
			Text  string `xml:",chardata"`
		} `xml:"date"`
		Cover struct {
			Images []struct {
				Href string `xml:"href,attr"`
			} `xml:"image"`
		} `xml:"coverpage"`
		Lang      string `xml:"lang"`
		Sequences []struct {
			Name   string `xml:"name,attr"`
			Number string `xml:"number,attr"`
		} `xml:"sequence"`
	} `xml:"description>title-info"`
	Binaries []struct {
		ID   string `xml:"id,attr"`
		Data string `xml:",chardata"`
	} `xml:"binary"`
}

type fb2Author struct {
	First    string `xml:"first-name"`
	Middle   string `xml:"middle-name"`
	Last     string `xml:"last-name"`
	Nickname string `xml:"nickname"`
}

func (a fb2Author) String() string {
	var parts []string
	for _, p := range []string{a.First, a.Middle, a.Last} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(a.Nickname)
	}
	return strings.Join(parts, " ")
}

// fb2Genres maps common FictionBook genre codes to readable names.
var fb2Genres = map[string]string{
	"sf":                 "Science Fiction",
	"sf_fantasy":         "Fantasy",
	"sf_horror":          "Horror",
	"sf_space":           "Space Fiction",
	"sf_action":          "Action",
	"sf_social":          "Social Science Fiction",
	"detective":          "Detective",
	"det_classic":        "Classic Detective",
	"det_police":         "Police Procedural",
	"thriller":           "Thriller",
	"prose_classic":      "Classic Prose",
	"prose_contemporary": "Contemporary Prose",
	"love_contemporary":  "Romance",
	"adventure":          "Adventure",
	"adv_history":        "Historical Adventure",
	"child_tale":         "Fairy Tales",
	"poetry":             "Poetry",
	"sci_history":        "History",
	"sci_psychology":     "Psychology",
	"comp_programming":   "Programming",
	"nonf_biography":     "Biography",
	"humor":              "Humor",
	"reference":          "Reference",
}

// Parse implements Extractor.
func (FB2) Parse(r io.ReaderAt, size int64) (*Metadata, error) {
	var doc fb2Book
	dec := newXMLDecoder(io.NewSectionReader(r, 0, size))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	info := doc.TitleInfo
	md := NewMetadata()
	md.Set(FieldTitle, info.BookTitle)

	var authors []string
	for _, a := range info.Authors {
		if name := a.String(); name != "" {
			authors = append(authors, name)
		}
	}
	md.Set(FieldAuthor, strings.Join(authors, ", "))
	md.Set(FieldLanguage, info.Lang)
	md.Set(FieldDescription, info.Annotation.Inner)
	md.Set(FieldDate, info.Date.Text)
	md.Set(FieldDate, info.Date.Value)

	for _, g := range info.Genres {
		g = strings.TrimSpace(g)
		if name, ok := fb2Genres[g]; ok {
			g = name
		}
		md.Set(FieldGenre, g)
	}
	for _, s := range info.Sequences {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		md.Set(FieldSeries, s.Name)
		md.Set(FieldSeriesIndex, s.Number)
		break
	}

	for _, img := range info.Cover.Images {
		id := strings.TrimPrefix(strings.TrimSpace(img.Href), "#")
		if id == "" {
			continue
		}
		for _, bin := range doc.Binaries {
			if bin.ID != id {
				continue
			}
			if data, err := decodeBase64(bin.Data); err == nil && len(data) > 0 {
				md.Cover = data
			}
			break
		}
		if md.Cover != nil {
			break
		}
	}

	return md, nil
}

func decodeBase64(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(clean)
}
