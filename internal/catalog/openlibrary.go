package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/lepinkainen/shelf/internal/cache"
	shelferrors "github.com/lepinkainen/shelf/internal/errors"
)

type authorSearchResponse struct {
	Docs []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"docs"`
}

type bookSearchResponse struct {
	Docs []struct {
		AuthorKey []string `json:"author_key"`
	} `json:"docs"`
}

// FindAuthorPhoto looks the author up with the dedicated author search and
// falls back to the general book search. Only validated images of at least
// the configured minimum size are returned.
func (c *Client) FindAuthorPhoto(ctx context.Context, author string) ([]byte, error) {
	name := usableAuthor(author)
	if name == "" {
		return nil, shelferrors.ErrNotFound
	}

	lookups := []struct {
		source string
		find   func(context.Context, string) (string, error)
	}{
		{"author_search", c.authorKeyFromAuthorSearch},
		{"book_search", c.authorKeyFromBookSearch},
	}

	tried := make(map[string]bool)
	for _, l := range lookups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key, _, err := cache.GetOrFetchWithPolicy(c.cache, "author:"+l.source+":"+strings.ToLower(name),
			func() (string, error) { return l.find(ctx, name) },
			func(k string) bool { return k != "" })
		if err != nil {
			if !errors.Is(err, shelferrors.ErrNotFound) {
				slog.Debug("Author lookup failed", "author", name, "source", l.source, "error", err)
			}
			continue
		}
		if key == "" || tried[key] {
			continue
		}
		tried[key] = true

		photo, err := c.DownloadAsset(ctx, c.authorPhotoURL(key))
		if err != nil {
			continue
		}
		if len(photo) < c.minImageBytes {
			slog.Debug("Author photo looks like a placeholder", "author", name, "bytes", len(photo))
			continue
		}
		return photo, nil
	}
	return nil, shelferrors.ErrNotFound
}

func (c *Client) authorPhotoURL(key string) string {
	return fmt.Sprintf("%s/a/olid/%s-M.jpg?default=false", c.coversURL, url.PathEscape(key))
}

func (c *Client) authorKeyFromAuthorSearch(ctx context.Context, name string) (string, error) {
	endpoint := c.authorsURL + "/search/authors.json?" + url.Values{"q": {name}, "limit": {"1"}}.Encode()
	var parsed authorSearchResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return "", err
	}
	for _, d := range parsed.Docs {
		if k := strings.TrimPrefix(strings.TrimSpace(d.Key), "/authors/"); k != "" {
			return k, nil
		}
	}
	return "", shelferrors.ErrNotFound
}

func (c *Client) authorKeyFromBookSearch(ctx context.Context, name string) (string, error) {
	endpoint := c.authorsURL + "/search.json?" + url.Values{
		"author": {name},
		"limit":  {"1"},
		"fields": {"author_key"},
	}.Encode()
	var parsed bookSearchResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return "", err
	}
	for _, d := range parsed.Docs {
		for _, k := range d.AuthorKey {
			if k = strings.TrimSpace(k); k != "" {
				return k, nil
			}
		}
	}
	return "", shelferrors.ErrNotFound
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, target); err != nil {
		slog.Warn("Malformed response", "url", redactURL(endpoint), "error", err)
		return fmt.Errorf("%w: decode response: %v", shelferrors.ErrNotFound, err)
	}
	return nil
}
