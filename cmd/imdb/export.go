package imdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lepinkainen/rats/internal/config"
	"github.com/lepinkainen/rats/internal/csvutil"
	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/site"
)

// ExportName is the registry name of the ratings export source.
const ExportName = "imdb-export"

// exportKinds are the "Title Type" values kept from an export, lowercased.
var exportKinds = map[string]bool{
	"movie":          true,
	"tv movie":       true,
	"tv series":      true,
	"tv mini series": true,
	"tv special":     true,
	"short":          true,
	"video":          true,
}

// ExportSource reads the CSV that IMDb offers for download on the ratings
// page. The whole file is one listing page.
type ExportSource struct {
	path string
}

// NewExportSource returns a source for cfg.ExportFile.
func NewExportSource(cfg config.IMDbConfig) (*ExportSource, error) {
	if cfg.ExportFile == "" {
		return nil, fmt.Errorf("imdb.export_file is required")
	}
	return &ExportSource{path: cfg.ExportFile}, nil
}

func (s *ExportSource) Name() string        { return ExportName }
func (s *ExportSource) Scale() rating.Scale { return rating.TenPoint }

// ListPage returns every rated title on page 0 and nothing after it.
func (s *ExportSource) ListPage(_ context.Context, page int) ([]site.RawEntry, error) {
	if page > 0 {
		return nil, nil
	}
	entries, err := csvutil.ProcessCSV(s.path, parseExportRow, csvutil.ProcessorOptions{
		Required:    []string{"Const", "Your Rating", "Title"},
		SkipInvalid: true,
	})
	if err != nil {
		return nil, ratserrors.NewFatalError("imdb: cannot read ratings export "+s.path, err)
	}
	return entries, nil
}

func parseExportRow(row csvutil.Row) (site.RawEntry, error) {
	if kind := strings.ToLower(row.Get("Title Type")); kind != "" && !exportKinds[kind] {
		return site.RawEntry{}, csvutil.ErrSkip
	}

	value, err := row.Float("Your Rating")
	if err != nil {
		return site.RawEntry{}, err
	}
	year, err := row.Int("Year")
	if err != nil {
		return site.RawEntry{}, err
	}

	entry := site.RawEntry{
		SourceID: row.Get("Const"),
		Title:    row.Get("Title"),
		Year:     year,
		Rating:   value,
	}
	if original := row.Get("Original Title"); original != "" && original != entry.Title {
		entry.OriginalTitle = original
	}
	if ratedAt, err := time.Parse(time.DateOnly, row.Get("Date Rated")); err == nil {
		entry.RatedAt = &ratedAt
	}
	if titleIDOnly.MatchString(entry.SourceID) {
		entry.ExternalIDs = map[string]string{"imdb": entry.SourceID}
	}
	return entry, nil
}
