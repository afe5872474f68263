package enrichment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// smallWords stay lowercase inside a title.
var smallWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true,
	"и": true, "или": true, "в": true, "на": true, "с": true,
}

var titleSeparators = strings.NewReplacer("-", " ", "_", " ", ".", " ")

// NormalizeTitle turns file-name style titles into title case:
// "the_lord-of.the rings" becomes "The Lord of the Rings".
func NormalizeTitle(title string) string {
	words := strings.Fields(titleSeparators.Replace(title))
	for i, w := range words {
		w = strings.ToLower(w)
		if smallWords[w] && i != 0 && i != len(words)-1 {
			words[i] = w
			continue
		}
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

// NormalizeLanguage reduces a language tag to its primary subtag:
// "en-US" and "EN_gb" both become "en".
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return lang
}

// yearOf returns the leading four-digit year of a date string.
func yearOf(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return date[:4]
}
