// Package config holds the typed view of shelf's viper configuration.
package config

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings is a snapshot of the configuration after defaults, the config
// file and the environment have been applied.
type Settings struct {
	Catalog CatalogSettings
	Scan    ScanSettings
	Export  ExportSettings

	// SearchIndex is the directory of the full-text index.
	SearchIndex string
}

// CatalogSettings configures the remote catalog client.
type CatalogSettings struct {
	APIKey        string
	MaxAttempts   int
	BaseDelay     time.Duration
	MinImageBytes int
	RatePerSecond float64
	AuthorPhotos  bool
	Offline       bool
}

// ScanSettings configures the scanner.
type ScanSettings struct {
	Workers    int
	Extensions []string
}

// ExportSettings holds connection details for the database exporters.
type ExportSettings struct {
	Database       string
	DatasetteURL   string
	DatasetteToken string
	PostgresDSN    string
	ImageWidth     int
}

// SetDefaults registers the default value of every key shelf reads.
func SetDefaults() {
	viper.SetDefault("catalog.apikey", "")
	viper.SetDefault("catalog.max_attempts", 3)
	viper.SetDefault("catalog.base_delay", "1s")
	viper.SetDefault("catalog.min_image_bytes", 1000)
	viper.SetDefault("catalog.rate_per_second", 1.0)
	viper.SetDefault("catalog.author_photos", true)
	viper.SetDefault("catalog.offline", false)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.policy", "unbounded")

	viper.SetDefault("scan.workers", runtime.NumCPU())
	viper.SetDefault("scan.extensions", []string{".epub", ".pdf", ".fb2", ".mobi"})

	viper.SetDefault("export.database", "shelf")
	viper.SetDefault("export.datasette_url", "")
	viper.SetDefault("export.datasette_token", "")
	viper.SetDefault("export.postgres_dsn", "")
	viper.SetDefault("export.image_width", 250)

	viper.SetDefault("search.index", "./shelf.bleve")
}

// LoadEnvFiles reads .env and .env.local from the working directory.
// Variables already present in the environment are not overridden.
func LoadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if err := godotenv.Load(name); err == nil {
			slog.Debug("Loaded environment file", "file", name)
		}
	}
}

// Load returns the current configuration.
func Load() Settings {
	baseDelay := viper.GetDuration("catalog.base_delay")
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	workers := viper.GetInt("scan.workers")
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	return Settings{
		Catalog: CatalogSettings{
			APIKey:        viper.GetString("catalog.apikey"),
			MaxAttempts:   viper.GetInt("catalog.max_attempts"),
			BaseDelay:     baseDelay,
			MinImageBytes: viper.GetInt("catalog.min_image_bytes"),
			RatePerSecond: viper.GetFloat64("catalog.rate_per_second"),
			AuthorPhotos:  viper.GetBool("catalog.author_photos"),
			Offline:       viper.GetBool("catalog.offline"),
		},
		Scan: ScanSettings{
			Workers:    workers,
			Extensions: viper.GetStringSlice("scan.extensions"),
		},
		Export: ExportSettings{
			Database:       viper.GetString("export.database"),
			DatasetteURL:   viper.GetString("export.datasette_url"),
			DatasetteToken: viper.GetString("export.datasette_token"),
			PostgresDSN:    viper.GetString("export.postgres_dsn"),
			ImageWidth:     viper.GetInt("export.image_width"),
		},
		SearchIndex: viper.GetString("search.index"),
	}
}
