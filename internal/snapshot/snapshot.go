// Package snapshot writes extracted ratings to JSON files in the exports
// directory and reads them back for replay.
package snapshot

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lepinkainen/rats/internal/fileutil"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/transfer"
)

// TimestampLayout is the timestamp prefix of snapshot file names.
const TimestampLayout = "20060102150405"

// FileName returns the snapshot file name for a source extracted at t.
func FileName(source string, t time.Time) string {
	return fmt.Sprintf("%s_%s.json", t.Format(TimestampLayout), fileutil.SanitizeFilename(source))
}

// Save writes records to dir and returns the file path.
func Save(dir, source string, records []rating.Record, now time.Time) (string, error) {
	if records == nil {
		records = []rating.Record{}
	}
	path := filepath.Join(dir, FileName(source, now))
	if _, err := fileutil.WriteJSONFile(records, path, true); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	slog.Info("Saved snapshot", "source", source, "path", path, "records", len(records))
	return path, nil
}

// Load reads a snapshot file and validates its records.
func Load(path string) ([]rating.Record, error) {
	records, err := fileutil.ReadJSONFile[[]rating.Record](path)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		switch {
		case rec.SourceID == "":
			return nil, fmt.Errorf("load snapshot %s: record %d has no sourceId", path, i)
		case rec.Title == "":
			return nil, fmt.Errorf("load snapshot %s: record %s has no title", path, rec.SourceID)
		case rec.Rating < rating.MinRating || rec.Rating > rating.MaxRating:
			return nil, fmt.Errorf("load snapshot %s: record %s has rating %d outside 1-10", path, rec.SourceID, rec.Rating)
		}
		if _, dup := seen[rec.SourceID]; dup {
			return nil, fmt.Errorf("load snapshot %s: duplicate sourceId %s", path, rec.SourceID)
		}
		seen[rec.SourceID] = struct{}{}
	}
	return records, nil
}

// SourceFromPath returns the source name encoded in a snapshot file name,
// or "" when the name does not follow the snapshot pattern.
func SourceFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".json")
	stamp, source, ok := strings.Cut(base, "_")
	if !ok || source == "" {
		return ""
	}
	if _, err := time.Parse(TimestampLayout, stamp); err != nil {
		return ""
	}
	return source
}

// Checkpoint returns a pipeline checkpoint that saves each extraction to dir.
// The written path is reported through saved when it is not nil.
func Checkpoint(dir string, now func() time.Time, saved func(path string)) transfer.Checkpoint {
	return func(source string, records []rating.Record) error {
		path, err := Save(dir, source, records, now())
		if err != nil {
			return err
		}
		if saved != nil {
			saved(path)
		}
		return nil
	}
}
