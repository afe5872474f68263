package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/shelf/internal/cache"
	"github.com/lepinkainen/shelf/internal/config"
	shelferrors "github.com/lepinkainen/shelf/internal/errors"
)

// stdout receives command output and logOutput receives log lines.
var (
	stdout    io.Writer = os.Stdout
	logOutput io.Writer = os.Stderr
)

// CLI represents the complete command structure for the shelf application
type CLI struct {
	// Global flags
	Verbose bool   `short:"v" help:"Enable debug logging"`
	Config  string `help:"Path to the config file" default:"config.yaml" type:"path"`

	// Cache flags
	CacheDir    string `help:"Directory of the response cache (defaults to the user cache dir)"`
	CachePolicy string `help:"Cache eviction policy: unbounded, max-entries=N or max-age=DURATION"`
	NoCache     bool   `help:"Keep cached responses in memory only"`

	Scan       ScanCmd       `cmd:"" help:"Scan paths and print the grouped collection"`
	Organize   OrganizeCmd   `cmd:"" help:"Scan paths and copy books into a grouped collection directory"`
	Stats      StatsCmd      `cmd:"" help:"Show collection statistics"`
	Duplicates DuplicatesCmd `cmd:"" help:"List books that appear more than once"`
	Export     ExportCmd     `cmd:"" help:"Export scanned books to files or databases"`
	Search     SearchCmd     `cmd:"" help:"Full-text search over scanned books"`
	Cache      cache.Cmd     `cmd:"" help:"Manage the response cache"`
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("shelf"),
		kong.Description("Scan, enrich and organize an e-book library."),
		kong.UsageOnError(),
	}
	return kong.New(cli, append(base, options...)...)
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)

	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		slog.Error("Failed to build command line parser", "error", err)
		os.Exit(1)
	}

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	initLogging(cli.Verbose)
	if err := initConfig(cli.Config); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	updateGlobalConfig(&cli)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(); err != nil {
		if shelferrors.IsStopProcessingError(err) {
			slog.Warn("Stopped", "reason", err)
			return
		}
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func initConfig(path string) error {
	config.LoadEnvFiles()
	config.SetDefaults()

	viper.AutomaticEnv()
	if err := viper.BindEnv("catalog.apikey", "GOOGLE_BOOKS_API_KEY"); err != nil {
		return fmt.Errorf("failed to bind environment variable: %w", err)
	}
	if err := viper.BindEnv("export.postgres_dsn", "DATABASE_URL"); err != nil {
		return fmt.Errorf("failed to bind environment variable: %w", err)
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("Config file not found, writing defaults", "file", path)
		if err := viper.SafeWriteConfigAs(path); err != nil {
			slog.Warn("Failed to write config file", "file", path, "error", err)
		}
	}
	return nil
}

func updateGlobalConfig(cli *CLI) {
	if cli.CacheDir != "" {
		viper.Set("cache.dir", cli.CacheDir)
	}
	if cli.CachePolicy != "" {
		viper.Set("cache.policy", cli.CachePolicy)
	}
	if cli.NoCache {
		viper.Set("cache.enabled", false)
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(logOutput, &humanlog.Options{
		Level: level,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}
