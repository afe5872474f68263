package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	shelferrors "github.com/lepinkainen/shelf/internal/errors"
	"github.com/lepinkainen/shelf/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadAssetCachesValidImage(t *testing.T) {
	img := testutil.PNG(t, 8, 8)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, WithCache(memoryCache(t)))

	for range 2 {
		got, err := client.DownloadAsset(context.Background(), server.URL+"/cover.png")
		require.NoError(t, err)
		assert.Equal(t, img, got)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownloadAssetRejectsHTMLAndDoesNotCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>not here</body></html>"))
	}))
	defer server.Close()

	c := memoryCache(t)
	client, _ := newTestClient(t, server, WithCache(c))
	url := server.URL + "/cover.jpg"

	_, err := client.DownloadAsset(context.Background(), url)
	assert.ErrorIs(t, err, shelferrors.ErrNotFound)
	_, ok := c.Get(AssetCacheKey(url))
	assert.False(t, ok)

	_, err = client.DownloadAsset(context.Background(), url)
	assert.ErrorIs(t, err, shelferrors.ErrNotFound)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownloadAssetRejectsUndecodableImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("definitely not a jpeg"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	_, err := client.DownloadAsset(context.Background(), server.URL+"/x.jpg")
	assert.ErrorIs(t, err, shelferrors.ErrNotFound)
}

func TestDownloadAssetBlankURL(t *testing.T) {
	client := NewClient("")
	_, err := client.DownloadAsset(context.Background(), " ")
	assert.ErrorIs(t, err, shelferrors.ErrNotFound)
}
