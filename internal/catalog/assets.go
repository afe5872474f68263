package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/disintegration/imaging"
	shelferrors "github.com/lepinkainen/shelf/internal/errors"
	_ "golang.org/x/image/webp"
)

// AssetCacheKey is the cache key for a downloaded asset.
func AssetCacheKey(rawURL string) string {
	return "asset:" + rawURL
}

// DownloadAsset fetches an image. The response must declare an image
// content type and decode to a non-empty image, otherwise ErrNotFound is
// returned and nothing is cached.
func (c *Client) DownloadAsset(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, shelferrors.ErrNotFound
	}

	key := AssetCacheKey(rawURL)
	if data, ok := c.cacheGet(key); ok {
		return data, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if data, ok := c.cacheGet(key); ok {
			return data, nil
		}

		resp, err := c.get(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if err := validateImage(resp.contentType, resp.body); err != nil {
			slog.Debug("Rejected asset", "url", redactURL(rawURL), "error", err)
			return nil, fmt.Errorf("%w: %v", shelferrors.ErrNotFound, err)
		}

		c.cachePut(key, resp.body)
		return resp.body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func validateImage(contentType string, body []byte) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("content type %q is not an image", contentType)
	}

	img, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("image has no pixels (%dx%d)", b.Dx(), b.Dy())
	}
	return nil
}
