package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

const downloadPollInterval = 2 * time.Second

// AllowDownloads makes the browser save downloads into dir without asking.
func (s *BrowserSession) AllowDownloads(ctx context.Context, dir string) error {
	action := browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(dir).
		WithEventsEnabled(true)
	slog.Debug("Configuring download directory", "path", dir)
	if err := s.Run(ctx, action); err != nil {
		return fmt.Errorf("failed to configure download directory: %w", err)
	}
	return nil
}

// TriggerDownload navigates to a URL that answers with a file. Chrome
// aborts such navigations, which is not an error here.
func (s *BrowserSession) TriggerDownload(ctx context.Context, url string) error {
	err := s.Run(ctx, chromedp.Navigate(url))
	if err != nil && !strings.Contains(err.Error(), "ERR_ABORTED") {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

// WaitForDownload polls dir until a finished file accepted by match and
// modified after since appears, and returns its path.
func WaitForDownload(ctx context.Context, dir string, match func(name string) bool, since time.Time, timeout time.Duration) (string, error) {
	return PollWithTimeout(ctx, downloadPollInterval, timeout, "download", func() (string, bool, error) {
		path, err := findDownload(dir, match, since)
		if err != nil {
			return "", false, err
		}
		return path, path != "", nil
	})
}

func findDownload(dir string, match func(name string) bool, since time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read download directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".crdownload") || !match(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Debug("Failed to get file info", "name", name, "error", err)
			continue
		}
		if info.ModTime().Before(since) {
			slog.Debug("Skipping stale download", "name", name, "mod_time", info.ModTime())
			continue
		}
		return filepath.Join(dir, name), nil
	}
	return "", nil
}
