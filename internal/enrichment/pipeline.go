// Package enrichment turns a book file into a finished library.Book by
// combining embedded metadata with remote catalog lookups.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/lepinkainen/shelf/internal/catalog"
	shelferrors "github.com/lepinkainen/shelf/internal/errors"
	"github.com/lepinkainen/shelf/internal/extract"
	"github.com/lepinkainen/shelf/internal/library"
)

const defaultMinImageBytes = 1000

// Remote is the catalog service used to fill gaps in local metadata.
// *catalog.Client implements it.
type Remote interface {
	LookupInfo(ctx context.Context, title, author string) (*catalog.Info, error)
	DownloadAsset(ctx context.Context, url string) ([]byte, error)
	FindAuthorPhoto(ctx context.Context, author string) ([]byte, error)
}

// Pipeline builds Books. It is safe for concurrent use.
type Pipeline struct {
	extractors    *extract.Registry
	remote        Remote
	minImageBytes int
	authorPhotos  bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMinImageBytes sets the size under which remote covers are treated as
// placeholders.
func WithMinImageBytes(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.minImageBytes = n
		}
	}
}

// WithAuthorPhotos toggles author photo lookups. They are on by default.
func WithAuthorPhotos(enabled bool) Option {
	return func(p *Pipeline) {
		p.authorPhotos = enabled
	}
}

// NewPipeline creates a pipeline. A nil registry uses the default
// extractors and a nil remote disables remote enrichment.
func NewPipeline(extractors *extract.Registry, remote Remote, opts ...Option) *Pipeline {
	if extractors == nil {
		extractors = extract.DefaultRegistry()
	}
	p := &Pipeline{
		extractors:    extractors,
		remote:        remote,
		minImageBytes: defaultMinImageBytes,
		authorPhotos:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract reads path and returns its Book. It never fails: unreadable
// files and remote errors leave the affected fields at their sentinels.
func (p *Pipeline) Extract(ctx context.Context, path string) library.Book {
	md, err := p.extractors.ParseFile(path)
	if err != nil {
		slog.Warn("Failed to read embedded metadata", "path", path, "error", err)
		md = extract.NewMetadata()
	}

	title := md.Get(extract.FieldTitle)
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	title = NormalizeTitle(title)
	localAuthor := md.Get(extract.FieldAuthor)

	info := sync.OnceValue(func() *catalog.Info {
		return p.lookup(ctx, path, title, localAuthor)
	})
	fromInfo := func(name string, get func(*catalog.Info) string) Source[string] {
		return Source[string]{Name: name, Fetch: func() (string, bool) {
			if i := info(); i != nil {
				v := strings.TrimSpace(get(i))
				return v, v != ""
			}
			return "", false
		}}
	}

	author, _, _ := Chain[string]{
		Text("local", localAuthor),
		fromInfo("catalog", func(i *catalog.Info) string { return strings.Join(i.Authors, ", ") }),
	}.Resolve()

	language, _, _ := Chain[string]{
		Text("local", NormalizeLanguage(md.Get(extract.FieldLanguage))),
		fromInfo("catalog", func(i *catalog.Info) string { return NormalizeLanguage(i.Language) }),
	}.Resolve()

	genre, _, _ := Chain[string]{
		Text("local", md.Get(extract.FieldGenre)),
		fromInfo("catalog", func(i *catalog.Info) string { return i.Genre }),
	}.Resolve()

	year, _, _ := Chain[string]{
		Text("local", yearOf(md.Get(extract.FieldDate))),
		fromInfo("catalog", func(i *catalog.Info) string { return yearOf(i.Year) }),
	}.Resolve()

	description, _, _ := Chain[string]{
		Text("local", CleanDescription(md.Get(extract.FieldDescription))),
		fromInfo("catalog", func(i *catalog.Info) string { return CleanDescription(i.Description) }),
	}.Resolve()

	cover, coverSource, _ := Chain[[]byte]{
		{Name: "embedded", Fetch: func() ([]byte, bool) { return md.Cover, len(md.Cover) > 0 }},
		{Name: "catalog", Fetch: func() ([]byte, bool) { return p.remoteCover(ctx, path, info()) }},
	}.Resolve()
	if coverSource != "" {
		slog.Debug("Resolved cover", "path", path, "source", coverSource)
	}

	var photo []byte
	if p.remote != nil && p.authorPhotos {
		photo = p.authorPhoto(ctx, author)
	}

	book, err := library.New(library.Fields{
		Title:       title,
		Author:      author,
		Series:      md.Get(extract.FieldSeries),
		SeriesIndex: parseSeriesIndex(md.Get(extract.FieldSeriesIndex)),
		Genre:       genre,
		Language:    language,
		Year:        year,
		FilePath:    path,
		Description: description,
		Cover:       cover,
		AuthorPhoto: photo,
	})
	if err != nil {
		slog.Error("Failed to build book", "path", path, "error", err)
	}
	return book
}

func (p *Pipeline) lookup(ctx context.Context, path, title, author string) *catalog.Info {
	if p.remote == nil {
		return nil
	}
	info, err := p.remote.LookupInfo(ctx, title, author)
	if err != nil {
		logRemoteError("Catalog lookup failed", path, err)
		return nil
	}
	return info
}

func (p *Pipeline) remoteCover(ctx context.Context, path string, info *catalog.Info) ([]byte, bool) {
	if p.remote == nil || info == nil || info.ThumbnailURL == "" {
		return nil, false
	}
	data, err := p.remote.DownloadAsset(ctx, info.ThumbnailURL)
	if err != nil {
		logRemoteError("Cover download failed", path, err)
		return nil, false
	}
	if len(data) < p.minImageBytes {
		slog.Debug("Ignoring placeholder cover", "path", path, "bytes", len(data))
		return nil, false
	}
	return data, true
}

func (p *Pipeline) authorPhoto(ctx context.Context, author string) []byte {
	if author == "" || author == library.UnknownAuthor {
		return nil
	}
	photo, err := p.remote.FindAuthorPhoto(ctx, author)
	if err != nil {
		logRemoteError("Author photo lookup failed", author, err)
		return nil
	}
	return photo
}

// logRemoteError keeps expected misses at debug and everything else at warn.
func logRemoteError(msg, subject string, err error) {
	if errors.Is(err, shelferrors.ErrNotFound) || errors.Is(err, context.Canceled) {
		slog.Debug(msg, "subject", subject, "error", err)
		return
	}
	slog.Warn(msg, "subject", subject, "error", err)
}

// parseSeriesIndex accepts integral numbers including forms like "2.0".
func parseSeriesIndex(s string) *int {
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(f)
	return &n
}
