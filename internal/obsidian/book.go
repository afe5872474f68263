package obsidian

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lepinkainen/shelf/internal/library"
)

// BookNote builds the note for one book. coverPath is the vault-relative
// path of an exported cover image, or "" when there is none.
func BookNote(b library.Book, coverPath string) *Note {
	fm := NewFrontmatter()
	fm.Set("title", b.Title())
	fm.Set("author", b.Author())
	fm.Set("genre", b.Genre())
	fm.Set("language", b.Language())
	fm.Set("format", b.Format())
	fm.Set("path", b.FilePath())
	fm.Set("cover", coverPath)
	if b.HasSeries() {
		fm.Set("series", b.Series())
		if idx, ok := b.SeriesIndex(); ok {
			fm.Set("series_index", idx)
		}
	}
	year, hasYear := numericYear(b.Year())
	if hasYear {
		fm.Set("year", year)
	}

	tags := NewTagSet()
	tags.Add("book")
	tags.AddIf(b.Genre() != library.DefaultGenre, "genre/"+b.Genre())
	tags.AddIf(b.Language() != library.UnknownLanguage, "language/"+b.Language())
	tags.AddIf(b.HasSeries(), "series/"+b.Series())
	tags.AddIf(hasYear, decadeTag(year))
	fm.Set("tags", tags.GetSorted())

	var body strings.Builder
	if coverPath != "" {
		fmt.Fprintf(&body, "![[%s|250]]\n\n", coverPath)
	}
	if d := b.Description(); d != "" {
		body.WriteString(d)
		body.WriteString("\n\n")
	}
	fmt.Fprintf(&body, ">[!info]- File\n> %s\n", b.FilePath())

	return &Note{Frontmatter: fm, Body: body.String()}
}

// MergeExisting keeps tags a user added to a previously exported note.
func (n *Note) MergeExisting(existing *Note) {
	if existing == nil {
		return
	}
	merged := MergeTags(existing.Frontmatter.GetStringArray("tags"), n.Frontmatter.GetStringArray("tags"))
	n.Frontmatter.Set("tags", merged)
}

func numericYear(year string) (int, bool) {
	n, err := strconv.Atoi(year)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func decadeTag(year int) string {
	if year < 1900 {
		return "year/pre-1900s"
	}
	return fmt.Sprintf("year/%ds", year/10*10)
}
