package library

import (
	"sort"
	"strings"
)

// KeyFunc extracts a grouping key from a book.
type KeyFunc func(Book) string

// Predefined grouping keys.
var (
	ByLanguage KeyFunc = Book.Language
	ByGenre    KeyFunc = Book.Genre
	BySeries   KeyFunc = Book.Series
	ByAuthor   KeyFunc = Book.Author
	ByYear     KeyFunc = Book.Year
	ByFormat   KeyFunc = Book.Format
)

// ByLanguageGenreSeries is the default collection hierarchy.
var ByLanguageGenreSeries = []KeyFunc{ByLanguage, ByGenre, BySeries}

// KeyFuncByName maps grouping names used on the command line to key functions.
var KeyFuncByName = map[string]KeyFunc{
	"language": ByLanguage,
	"genre":    ByGenre,
	"series":   BySeries,
	"author":   ByAuthor,
	"year":     ByYear,
	"format":   ByFormat,
}

// Node is one level of a grouped collection. Inner nodes have Children,
// leaf nodes have Books.
type Node struct {
	Key      string
	Children []*Node
	Books    []Book
}

// Count returns the number of books below the node.
func (n *Node) Count() int {
	total := len(n.Books)
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Child returns the direct child with the given key, or nil.
func (n *Node) Child(key string) *Node {
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// Group arranges books into an ordered hierarchy with one level per key
// function. Keys are sorted lexicographically at every level and leaf books
// are ordered by title, then file path. With no key functions a single
// unnamed node holding all books is returned.
func Group(books []Book, keys ...KeyFunc) []*Node {
	if len(keys) == 0 {
		return []*Node{{Books: sortedBooks(books)}}
	}
	return group(books, keys)
}

func group(books []Book, keys []KeyFunc) []*Node {
	buckets := make(map[string][]Book)
	for _, b := range books {
		k := keys[0](b)
		buckets[k] = append(buckets[k], b)
	}

	names := make([]string, 0, len(buckets))
	for k := range buckets {
		names = append(names, k)
	}
	sort.Strings(names)

	nodes := make([]*Node, 0, len(names))
	for _, name := range names {
		node := &Node{Key: name}
		if len(keys) == 1 {
			node.Books = sortedBooks(buckets[name])
		} else {
			node.Children = group(buckets[name], keys[1:])
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func sortedBooks(books []Book) []Book {
	out := make([]Book, len(books))
	copy(out, books)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].title != out[j].title {
			return out[i].title < out[j].title
		}
		return out[i].filePath < out[j].filePath
	})
	return out
}

// Walk visits nodes depth-first, passing the nesting depth starting at 0.
func Walk(nodes []*Node, fn func(depth int, n *Node)) {
	var visit func(int, []*Node)
	visit = func(depth int, ns []*Node) {
		for _, n := range ns {
			fn(depth, n)
			visit(depth+1, n.Children)
		}
	}
	visit(0, nodes)
}

// ParseKeyFuncs resolves a comma separated list such as "language,genre".
// Unknown names are returned in the second value.
func ParseKeyFuncs(spec string) ([]KeyFunc, []string) {
	var keys []KeyFunc
	var unknown []string
	for _, name := range strings.Split(spec, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		fn, ok := KeyFuncByName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		keys = append(keys, fn)
	}
	return keys, unknown
}
