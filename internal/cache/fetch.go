package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func() (T, error)

// GetOrFetch returns the JSON-decoded value stored under key, or calls
// fetch and stores its result. The boolean reports a cache hit.
// A nil cache always fetches.
func GetOrFetch[T any](c *Cache, key string, fetch FetchFunc[T]) (T, bool, error) {
	return GetOrFetchWithPolicy(c, key, fetch, nil)
}

// GetOrFetchWithPolicy is GetOrFetch with control over whether a fetched
// value is stored. If shouldCache is nil, every fetched value is stored.
func GetOrFetchWithPolicy[T any](c *Cache, key string, fetch FetchFunc[T], shouldCache func(T) bool) (T, bool, error) {
	var zero T

	if c != nil {
		if raw, ok := c.Get(key); ok {
			var result T
			err := json.Unmarshal(raw, &result)
			if err == nil {
				return result, true, nil
			}
			slog.Warn("Failed to unmarshal cached data, will refetch", "key", key, "error", err)
		}
	}

	slog.Debug("Cache miss, fetching data", "key", key)
	data, err := fetch()
	if err != nil {
		return zero, false, fmt.Errorf("failed to fetch data: %w", err)
	}

	if c == nil {
		return data, false, nil
	}
	if shouldCache != nil && !shouldCache(data) {
		slog.Debug("Skipping cache store per policy", "key", key)
		return data, false, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "key", key, "error", err)
		return data, false, nil
	}
	c.Put(key, raw)
	return data, false, nil
}
