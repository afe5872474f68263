package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/lepinkainen/shelf/internal/cache"
	shelferrors "github.com/lepinkainen/shelf/internal/errors"
	"github.com/lepinkainen/shelf/internal/library"
)

// Info is the normalized catalog record for a title.
type Info struct {
	Title        string   `json:"title"`
	Authors      []string `json:"authors,omitempty"`
	Genre        string   `json:"genre,omitempty"`
	Year         string   `json:"year,omitempty"`
	Description  string   `json:"description,omitempty"`
	Language     string   `json:"language,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
}

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo volumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

type volumeInfo struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	PublishedDate string   `json:"publishedDate"`
	Description   string   `json:"description"`
	Categories    []string `json:"categories"`
	Language      string   `json:"language"`
	ImageLinks    struct {
		SmallThumbnail string `json:"smallThumbnail"`
		Thumbnail      string `json:"thumbnail"`
	} `json:"imageLinks"`
}

// InfoCacheKey is the case-insensitive cache key for a title/author query.
func InfoCacheKey(title, author string) string {
	return "info:" + strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(usableAuthor(author))
}

// LookupInfo searches the catalog for title, narrowed by author when one is
// known. It returns shelferrors.ErrNotFound when nothing usable comes back.
// Successful results are cached; failures are not.
func (c *Client) LookupInfo(ctx context.Context, title, author string) (*Info, error) {
	title = strings.TrimSpace(title)
	if title == "" || title == library.UnknownTitle {
		return nil, shelferrors.ErrNotFound
	}

	key := InfoCacheKey(title, author)
	v, err, _ := c.group.Do(key, func() (any, error) {
		info, hit, err := cache.GetOrFetch(c.cache, key, func() (*Info, error) {
			return c.fetchInfo(ctx, title, author)
		})
		if hit {
			slog.Debug("Catalog cache hit", "title", title, "author", author)
		}
		return info, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Info), nil
}

func (c *Client) fetchInfo(ctx context.Context, title, author string) (*Info, error) {
	q := "intitle:" + title
	if a := usableAuthor(author); a != "" {
		q += " inauthor:" + a
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", "1")
	params.Set("printType", "books")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	endpoint := c.catalogURL + "/volumes?" + params.Encode()

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed volumesResponse
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		slog.Warn("Malformed catalog response", "title", title, "error", err)
		return nil, fmt.Errorf("%w: decode catalog response: %v", shelferrors.ErrNotFound, err)
	}
	if len(parsed.Items) == 0 {
		return nil, shelferrors.ErrNotFound
	}

	vi := parsed.Items[0].VolumeInfo
	info := &Info{
		Title:        strings.TrimSpace(vi.Title),
		Authors:      vi.Authors,
		Description:  strings.TrimSpace(vi.Description),
		Language:     strings.TrimSpace(vi.Language),
		Year:         yearFrom(vi.PublishedDate),
		ThumbnailURL: thumbnailURL(vi.ImageLinks.Thumbnail, vi.ImageLinks.SmallThumbnail),
	}
	if len(vi.Categories) > 0 {
		info.Genre = strings.TrimSpace(vi.Categories[0])
	}
	return info, nil
}

// yearFrom returns the leading four-digit year of a published date.
func yearFrom(date string) string {
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

func thumbnailURL(thumbnail, small string) string {
	u := strings.TrimSpace(thumbnail)
	if u == "" {
		u = strings.TrimSpace(small)
	}
	if strings.HasPrefix(u, "http://") {
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// usableAuthor returns the author to search by, or "" when it is blank or
// the sentinel. Only the first of several comma separated names is used.
func usableAuthor(author string) string {
	author = strings.TrimSpace(author)
	if author == library.UnknownAuthor {
		return ""
	}
	if first, _, ok := strings.Cut(author, ","); ok {
		author = strings.TrimSpace(first)
	}
	return author
}
