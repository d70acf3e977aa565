package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/retry"
	"github.com/lepinkainen/rats/internal/site"
)

// DefaultMaxPages bounds pagination when no limit is configured.
const DefaultMaxPages = 200

// Extraction is the result of walking a source's rating listing.
type Extraction struct {
	Records   []rating.Record
	Pages     int   // Pages fetched successfully
	Skipped   int   // Entries dropped as malformed
	Truncated bool  // Listing was not walked to its end
	Err       error // Why extraction stopped early, nil when it completed or hit the page bound
}

// Extractor pages through a source and normalizes its entries.
type Extractor struct {
	maxPages int
	retry    retry.Policy
}

// NewExtractor returns an extractor that fetches at most maxPages pages.
func NewExtractor(maxPages int, policy retry.Policy) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{maxPages: maxPages, retry: policy}
}

// Extract walks pages from index 0 until a page is empty, a page adds no new
// source IDs, or the page bound is reached. A non-empty page with no readable
// entry truncates the extraction. Records keep first-seen order; a
// repeated source ID replaces the earlier record's values in place.
func (e *Extractor) Extract(ctx context.Context, src site.Source) Extraction {
	var res Extraction
	index := make(map[string]int)
	scale := src.Scale()

	for page := 0; ; page++ {
		if page >= e.maxPages {
			res.Truncated = true
			slog.Warn("Page limit reached, listing may be incomplete", "source", src.Name(), "max_pages", e.maxPages)
			break
		}
		if err := ctx.Err(); err != nil {
			res.Truncated = true
			res.Err = err
			break
		}

		entries, attempts, err := retry.Value(ctx, e.retry, fmt.Sprintf("%s page %d", src.Name(), page),
			func(ctx context.Context) ([]site.RawEntry, error) {
				return src.ListPage(ctx, page)
			})
		if err != nil {
			res.Truncated = true
			res.Err = pageError(page, attempts, err)
			slog.Error("Extraction stopped", "source", src.Name(), "page", page, "records", len(res.Records), "error", err)
			break
		}
		res.Pages++

		if len(entries) == 0 {
			slog.Debug("Empty page, listing complete", "source", src.Name(), "page", page)
			break
		}

		added, rejected := 0, 0
		for _, entry := range entries {
			rec, err := normalizeEntry(entry, scale)
			if err != nil {
				res.Skipped++
				rejected++
				slog.Warn("Skipping malformed entry", "source", src.Name(), "page", page, "error", err)
				continue
			}
			if i, seen := index[rec.SourceID]; seen {
				res.Records[i] = rec
				continue
			}
			index[rec.SourceID] = len(res.Records)
			res.Records = append(res.Records, rec)
			added++
		}

		slog.Debug("Fetched page", "source", src.Name(), "page", page, "entries", len(entries), "new", added)
		if rejected == len(entries) {
			res.Truncated = true
			res.Err = ratserrors.NewFatalError(fmt.Sprintf("unrecognized entries on page %d", page), nil)
			slog.Error("Extraction stopped, no entry on the page could be read", "source", src.Name(), "page", page, "entries", len(entries))
			break
		}
		if added == 0 {
			break
		}
	}

	slog.Info("Extraction finished", "source", src.Name(), "records", len(res.Records), "pages", res.Pages, "skipped", res.Skipped, "truncated", res.Truncated)
	return res
}

func pageError(page, attempts int, err error) error {
	if ratserrors.IsTransient(err) {
		return ratserrors.NewFatalError(fmt.Sprintf("page %d failed after %d attempts", page, attempts), err)
	}
	return fmt.Errorf("page %d: %w", page, err)
}

func normalizeEntry(entry site.RawEntry, scale rating.Scale) (rating.Record, error) {
	sourceID := strings.TrimSpace(entry.SourceID)
	title := strings.TrimSpace(entry.Title)
	if sourceID == "" {
		return rating.Record{}, fmt.Errorf("entry %q has no source id", title)
	}
	if title == "" {
		return rating.Record{}, fmt.Errorf("entry %s has no title", sourceID)
	}
	if entry.Year < 0 {
		return rating.Record{}, fmt.Errorf("entry %s has invalid year %d", sourceID, entry.Year)
	}
	value, err := scale.ToCanonical(entry.Rating)
	if err != nil {
		return rating.Record{}, fmt.Errorf("entry %s: %w", sourceID, err)
	}

	rec := rating.Record{
		Title:    title,
		Year:     entry.Year,
		Rating:   value,
		SourceID: sourceID,
		RatedAt:  entry.RatedAt,
	}
	if orig := strings.TrimSpace(entry.OriginalTitle); orig != "" && orig != title {
		rec.OriginalTitle = orig
	}
	if len(entry.ExternalIDs) > 0 {
		rec.ExternalIDs = make(map[string]string, len(entry.ExternalIDs))
		for k, v := range entry.ExternalIDs {
			if v != "" {
				rec.ExternalIDs[k] = v
			}
		}
	}
	return rec, nil
}
