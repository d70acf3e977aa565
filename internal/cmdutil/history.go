package cmdutil

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/rats/internal/config"
	"github.com/lepinkainen/rats/internal/datastore"
	"github.com/lepinkainen/rats/internal/transfer"
)

// newStores builds the configured history stores: the local SQLite file and,
// when a URL is set, a Datasette instance.
var newStores = func(cfg config.HistoryConfig) []datastore.Store {
	stores := []datastore.Store{datastore.NewSQLiteStore(cfg.DBFile)}
	if cfg.DatasetteURL != "" {
		stores = append(stores, datastore.NewDatasetteClient(cfg.DatasetteURL, cfg.DatasetteToken))
	}
	return stores
}

// WriteHistory records report in every configured history store. It is a
// no-op when history is disabled.
func WriteHistory(cfg config.HistoryConfig, report *transfer.Report) error {
	if !cfg.Enabled || report == nil {
		return nil
	}

	var errs []error
	for _, store := range newStores(cfg) {
		if err := writeStore(store, report); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to record run history: %w", err)
	}

	slog.Info("Recorded run history", "run_id", report.RunID, "database", cfg.DBFile)
	return nil
}

func writeStore(store datastore.Store, report *transfer.Report) error {
	if err := store.Connect(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return datastore.RecordReport(store, report)
}
