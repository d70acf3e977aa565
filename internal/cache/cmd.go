package cache

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/rats/internal/config"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Table string `arg:"" help:"Cache table to invalidate: search_cache, match_mapping_cache" required:""`
}

func (i *InvalidateCacheCmd) Run(cfg *config.Config) error {
	if !ValidCacheTableNames[i.Table] {
		return fmt.Errorf("invalid cache table '%s'; valid tables are: %s", i.Table, strings.Join(TableNames(), ", "))
	}

	slog.Info("Invalidating cache", "table", i.Table, "database", cfg.Cache.DBFile)

	cacheDB, err := Open(cfg.Cache.DBFile)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer func() { _ = cacheDB.Close() }()

	rowsDeleted, err := cacheDB.InvalidateSource(i.Table)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "table", i.Table, "rows_deleted", rowsDeleted)
	return nil
}
