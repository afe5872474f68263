package enrichment

// Source is one candidate provider for a field value. Fetch reports
// whether it produced a usable value.
type Source[T any] struct {
	Name  string
	Fetch func() (T, bool)
}

// Chain is an ordered list of sources for one field. Earlier sources take
// precedence; later ones are only consulted when earlier ones come up empty.
type Chain[T any] []Source[T]

// Resolve returns the first available value and the name of the source
// that supplied it. ok is false when every source was empty.
func (c Chain[T]) Resolve() (value T, source string, ok bool) {
	for _, s := range c {
		if s.Fetch == nil {
			continue
		}
		if v, found := s.Fetch(); found {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

// Text wraps a constant string as a source that is present when non-blank.
func Text(name, value string) Source[string] {
	return Source[string]{Name: name, Fetch: func() (string, bool) { return value, value != "" }}
}
