package cache

import (
	"fmt"
	"log/slog"
)

// Cmd groups the cache maintenance subcommands.
type Cmd struct {
	Clear ClearCmd `cmd:"" help:"Remove every cached response and image"`
	Prune PruneCmd `cmd:"" help:"Apply the configured eviction policy to the disk cache"`
	Stats StatsCmd `cmd:"" help:"Show cache location and size"`
}

// ClearCmd represents the cache clear subcommand
type ClearCmd struct{}

func (c *ClearCmd) Run() error {
	store, err := NewFromConfig()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if err := store.Clear(); err != nil {
		return err
	}
	slog.Info("Cache cleared", "dir", store.Dir())
	return nil
}

// PruneCmd represents the cache prune subcommand
type PruneCmd struct{}

func (p *PruneCmd) Run() error {
	store, err := NewFromConfig()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	removed, err := store.Prune()
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	slog.Info("Cache pruned", "policy", store.policy.String(), "removed", removed)
	return nil
}

// StatsCmd represents the cache stats subcommand
type StatsCmd struct{}

func (s *StatsCmd) Run() error {
	store, err := NewFromConfig()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	stats, err := store.Stats()
	if err != nil {
		return err
	}
	slog.Info("Cache stats",
		"dir", stats.Dir,
		"policy", stats.Policy.String(),
		"entries", stats.DiskEntries,
		"bytes", stats.DiskBytes,
	)
	return nil
}
