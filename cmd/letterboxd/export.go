package letterboxd

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lepinkainen/rats/internal/automation"
	"github.com/lepinkainen/rats/internal/config"
	"github.com/lepinkainen/rats/internal/csvutil"
	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/site"
)

const (
	// ExportName is the registry name of the data export source.
	ExportName = "letterboxd-export"

	exportPath      = "/data/export/"
	ratingsFile     = "ratings.csv"
	downloadTimeout = 5 * time.Minute
)

// ExportOption configures an ExportSource.
type ExportOption func(*ExportSource)

// WithExportRunner sets the chromedp runner used to download the export.
func WithExportRunner(r automation.CDPRunner) ExportOption {
	return func(s *ExportSource) { s.runner = r }
}

// WithDownloadDir keeps downloaded exports in dir instead of a temporary
// directory.
func WithDownloadDir(dir string) ExportOption {
	return func(s *ExportSource) { s.downloadDir = dir }
}

// ExportSource reads ratings.csv from a Letterboxd data export
// (Settings > Data > Export your data). With no file configured the export
// is downloaded through a signed-in browser during Authenticate.
type ExportSource struct {
	cfg         config.LetterboxdConfig
	path        string
	runner      automation.CDPRunner
	downloadDir string
	cleanup     func()
}

// NewExportSource returns a source for cfg.ExportFile, or for the account
// of cfg.Username when no file is set.
func NewExportSource(cfg config.LetterboxdConfig, opts ...ExportOption) (*ExportSource, error) {
	if cfg.ExportFile == "" && (cfg.Username == "" || cfg.Password == "") {
		return nil, fmt.Errorf("letterboxd.export_file, or letterboxd.username and letterboxd.password, are required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	s := &ExportSource{cfg: cfg, path: cfg.ExportFile, runner: automation.DefaultCDPRunner{}}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *ExportSource) Name() string        { return ExportName }
func (s *ExportSource) Scale() rating.Scale { return rating.FiveStar }

// Authenticate downloads the export when no file is configured.
func (s *ExportSource) Authenticate(ctx context.Context) error {
	if s.path != "" {
		return nil
	}
	path, err := s.download(ctx)
	if err != nil {
		return ratserrors.NewFatalError("letterboxd: export download failed", err)
	}
	s.path = path
	return nil
}

// Close removes a temporary download directory.
func (s *ExportSource) Close() error {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
	return nil
}

func (s *ExportSource) download(ctx context.Context) (string, error) {
	dir := s.downloadDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "rats-letterboxd-*")
		if err != nil {
			return "", fmt.Errorf("failed to create download directory: %w", err)
		}
		s.cleanup = func() { _ = os.RemoveAll(tmp) }
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	session := automation.NewBrowser(ctx, s.runner, automation.AutomationOptions{Headless: s.cfg.Headless})
	defer session.Close()

	if err := session.AllowDownloads(ctx, dir); err != nil {
		return "", err
	}
	if err := login(ctx, session, s.cfg.BaseURL, s.cfg.Username, s.cfg.Password); err != nil {
		return "", err
	}

	since := time.Now()
	slog.Info("Requesting Letterboxd data export", "username", s.cfg.Username)
	if err := session.TriggerDownload(ctx, s.cfg.BaseURL+exportPath); err != nil {
		return "", err
	}
	zipPath, err := automation.WaitForDownload(ctx, dir, isExportZip, since, downloadTimeout)
	if err != nil {
		return "", err
	}
	slog.Info("Letterboxd export downloaded", "path", zipPath)

	return extractRatings(zipPath, dir)
}

func isExportZip(name string) bool {
	return strings.HasPrefix(name, "letterboxd-") && strings.HasSuffix(name, ".zip")
}

// extractRatings copies ratings.csv from the top level of the export
// archive into dir.
func extractRatings(zipPath, dir string) (string, error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to open export archive: %w", err)
	}
	defer func() { _ = archive.Close() }()

	for _, f := range archive.File {
		if f.Name != ratingsFile {
			continue
		}
		in, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		defer func() { _ = in.Close() }()

		target := filepath.Join(dir, ratingsFile)
		out, err := os.Create(target)
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", target, err)
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return "", fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		return target, out.Close()
	}
	return "", fmt.Errorf("%s not found in %s", ratingsFile, filepath.Base(zipPath))
}

// ListPage returns the whole file on page 0 and nothing after it.
func (s *ExportSource) ListPage(_ context.Context, page int) ([]site.RawEntry, error) {
	if page > 0 {
		return nil, nil
	}
	if s.path == "" {
		return nil, ratserrors.NewFatalError("letterboxd: export not downloaded", nil)
	}
	entries, err := csvutil.ProcessCSV(s.path, parseExportRow, csvutil.ProcessorOptions{
		Required:    []string{"Name", "Letterboxd URI", "Rating"},
		SkipInvalid: true,
	})
	if err != nil {
		return nil, ratserrors.NewFatalError("letterboxd: cannot read export "+s.path, err)
	}
	return entries, nil
}

func parseExportRow(row csvutil.Row) (site.RawEntry, error) {
	stars, err := row.Float("Rating")
	if err != nil {
		return site.RawEntry{}, err
	}
	year, err := row.Int("Year")
	if err != nil {
		return site.RawEntry{}, err
	}

	entry := site.RawEntry{
		SourceID: row.Get("Letterboxd URI"),
		Title:    row.Get("Name"),
		Year:     year,
		Rating:   stars,
	}
	if ratedAt, err := time.Parse(time.DateOnly, row.Get("Date")); err == nil {
		entry.RatedAt = &ratedAt
	}
	return entry, nil
}
