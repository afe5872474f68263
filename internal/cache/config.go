package cache

import (
	"fmt"

	"github.com/spf13/viper"
)

// NewFromConfig opens the cache described by the cache.* viper keys:
// cache.enabled, cache.dir and cache.policy.
func NewFromConfig() (*Cache, error) {
	policy, err := ParsePolicy(viper.GetString("cache.policy"))
	if err != nil {
		return nil, err
	}

	if viper.IsSet("cache.enabled") && !viper.GetBool("cache.enabled") {
		return New("", WithPolicy(policy))
	}

	dir := viper.GetString("cache.dir")
	if dir == "" {
		dir, err = DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
		}
	}
	return New(dir, WithPolicy(policy))
}
