package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lepinkainen/shelf/internal/cache"
	shelferrors "github.com/lepinkainen/shelf/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// newTestClient points every base URL at server, disables throttling and
// records backoff sleeps instead of waiting.
func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) (*Client, *sleepRecorder) {
	t.Helper()

	base := []Option{
		WithHTTPClient(server.Client()),
		WithBaseURLs(server.URL, server.URL, server.URL),
		WithRateLimiter(nil),
	}
	client := NewClient("test-key", append(base, opts...)...)
	rec := &sleepRecorder{}
	client.sleep = rec.sleep
	return client, rec
}

func memoryCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New("")
	require.NoError(t, err)
	return c
}

const duneResponse = `{
  "totalItems": 1,
  "items": [{
    "volumeInfo": {
      "title": "Dune",
      "authors": ["Frank Herbert"],
      "publishedDate": "1965-08-01",
      "description": "<p>Desert planet.</p>",
      "categories": ["Fiction", "Science Fiction"],
      "language": "en",
      "imageLinks": {"smallThumbnail": "http://books.example/small.jpg", "thumbnail": "http://books.example/thumb.jpg"}
    }
  }]
}`

func TestLookupInfoParsesFirstVolume(t *testing.T) {
	var gotQuery, gotKey, gotMax, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("key")
		gotMax = r.URL.Query().Get("maxResults")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(duneResponse))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	info, err := client.LookupInfo(context.Background(), "Dune", "Frank Herbert")
	require.NoError(t, err)

	assert.Equal(t, "intitle:Dune inauthor:Frank Herbert", gotQuery)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "1", gotMax)
	assert.Equal(t, defaultUserAgent, gotUA)

	assert.Equal(t, "Dune", info.Title)
	assert.Equal(t, []string{"Frank Herbert"}, info.Authors)
	assert.Equal(t, "Fiction", info.Genre)
	assert.Equal(t, "1965", info.Year)
	assert.Equal(t, "en", info.Language)
	assert.Equal(t, "https://books.example/thumb.jpg", info.ThumbnailURL)
}

func TestLookupInfoOmitsUnknownAuthor(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(duneResponse))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	_, err := client.LookupInfo(context.Background(), "Dune", "Unknown Author")
	require.NoError(t, err)
	assert.Equal(t, "intitle:Dune", gotQuery)
}

func TestLookupInfoWithoutTitleMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	for _, title := range []string{"", "  ", "Unknown Title"} {
		_, err := client.LookupInfo(context.Background(), title, "Someone")
		assert.ErrorIs(t, err, shelferrors.ErrNotFound)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestLookupInfoWarmCacheSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(duneResponse))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, WithCache(memoryCache(t)))

	first, err := client.LookupInfo(context.Background(), "Dune", "Frank Herbert")
	require.NoError(t, err)
	second, err := client.LookupInfo(context.Background(), "DUNE", "frank herbert")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, first, second)
}

func TestLookupInfoRetriesAfterTooManyRequests(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(duneResponse))
	}))
	defer server.Close()

	client, rec := newTestClient(t, server)
	info, err := client.LookupInfo(context.Background(), "Dune", "")
	require.NoError(t, err)

	assert.Equal(t, "Dune", info.Title)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, []time.Duration{time.Second}, rec.recorded())
}

func TestLookupInfoExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, rec := newTestClient(t, server, WithCache(memoryCache(t)))
	_, err := client.LookupInfo(context.Background(), "Dune", "")
	require.Error(t, err)

	var exhausted *shelferrors.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.True(t, shelferrors.IsRateLimitError(err))
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.recorded())

	// failures are not cached
	_, err = client.LookupInfo(context.Background(), "Dune", "")
	require.Error(t, err)
	assert.Equal(t, int32(6), hits.Load())
}

func TestLookupInfoRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(duneResponse))
	}))
	defer server.Close()

	client, rec := newTestClient(t, server)
	_, err := client.LookupInfo(context.Background(), "Dune", "")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.recorded())
}

func TestLookupInfoPermanentStatusIsNotFound(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, rec := newTestClient(t, server)
	_, err := client.LookupInfo(context.Background(), "Dune", "")
	assert.ErrorIs(t, err, shelferrors.ErrNotFound)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, rec.recorded())
}

func TestLookupInfoMalformedAndEmptyResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"items": [`},
		{name: "no items", body: `{"totalItems": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := newTestClient(t, server)
			_, err := client.LookupInfo(context.Background(), "Dune", "")
			assert.ErrorIs(t, err, shelferrors.ErrNotFound)
		})
	}
}

func TestCancellationDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server)
	ctx, cancel := context.WithCancel(context.Background())
	client.sleep = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := client.LookupInfo(ctx, "Dune", "")
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(time.Second, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(time.Second, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(time.Second, 3))
	assert.Equal(t, defaultMaxDelay, backoffDelay(time.Second, 10))
	assert.Equal(t, time.Duration(0), backoffDelay(0, 3))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
}

func TestRetryDelayHonoursRetryAfter(t *testing.T) {
	client := NewClient("")
	err := &shelferrors.StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 10 * time.Second}
	assert.Equal(t, 10*time.Second, client.retryDelay(1, err))

	err.RetryAfter = time.Hour
	assert.Equal(t, defaultMaxDelay, client.retryDelay(1, err))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://x.test/v?key=REDACTED&q=dune", redactURL("https://x.test/v?q=dune&key=secret"))
	assert.Equal(t, "https://x.test/v?q=dune", redactURL("https://x.test/v?q=dune"))
}

func TestOptions(t *testing.T) {
	client := NewClient(" abc ",
		WithBaseURLs("https://a.test/", "", "https://c.test"),
		WithRetry(5, 10*time.Millisecond),
		WithUserAgent("ua/1"),
		WithMinImageBytes(10),
	)
	assert.Equal(t, "abc", client.apiKey)
	assert.Equal(t, "https://a.test", client.catalogURL)
	assert.Equal(t, defaultAuthorsURL, client.authorsURL)
	assert.Equal(t, "https://c.test", client.coversURL)
	assert.Equal(t, 5, client.maxAttempts)
	assert.Equal(t, 10*time.Millisecond, client.baseDelay)
	assert.Equal(t, "ua/1", client.userAgent)
	assert.Equal(t, 10, client.minImageBytes)
}
