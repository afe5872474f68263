package testutil

import (
	"testing"

	"github.com/spf13/viper"
)

// ResetConfig resets viper now and again when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

// SetViperValues applies values on top of a reset configuration.
func SetViperValues(t *testing.T, values map[string]any) {
	t.Helper()
	ResetConfig(t)
	for k, v := range values {
		viper.Set(k, v)
	}
}
