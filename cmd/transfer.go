package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/rats/internal/cache"
	"github.com/lepinkainen/rats/internal/cmdutil"
	"github.com/lepinkainen/rats/internal/report"
	"github.com/lepinkainen/rats/internal/site"
	"github.com/lepinkainen/rats/internal/snapshot"
	"github.com/lepinkainen/rats/internal/transfer"
	"github.com/lepinkainen/rats/internal/tui"
)

// TransferCmd copies ratings from one site to another.
type TransferCmd struct {
	Source      string `arg:"" help:"Site to read ratings from"`
	Destination string `arg:"" help:"Site to write ratings to"`

	Interactive bool `help:"Ask which candidate to use when a match is ambiguous (overrides transfer.interactive)"`
	NoSnapshot  bool `help:"Do not save the extracted ratings to the exports directory"`
	All         bool `help:"List every outcome in the report, not only failures"`
}

// Run executes the transfer command
func (c *TransferCmd) Run(env *Env) error {
	src, dst, err := resolveSites(env.Registry, c.Source, c.Destination)
	if err != nil {
		return err
	}
	defer closeDriver(src)
	defer closeDriver(dst)

	unlock, err := cmdutil.LockExportsDir(env.Config.ExportsDir)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	var opts []transfer.Option
	dst, closeCache, cacheOpts := withCache(env, dst)
	defer closeCache()
	opts = append(opts, cacheOpts...)

	if !c.NoSnapshot {
		opts = append(opts, transfer.WithCheckpoint(snapshot.Checkpoint(env.Config.ExportsDir, time.Now, func(path string) {
			fmt.Fprintf(env.Out, "Snapshot: %s\n", path)
		})))
	}
	if c.Interactive || env.Config.Transfer.Interactive {
		opts = append(opts, transfer.WithResolver(tui.Resolver{}))
	}

	pipeline := transfer.New(env.Config.TransferOptions(), opts...)
	rep, err := pipeline.Run(env.Ctx, src, dst)
	if err != nil {
		return err
	}
	return finishRun(env, rep, c.All)
}

// ExportCmd saves a source's ratings without touching any destination.
type ExportCmd struct {
	Source string `arg:"" help:"Site to read ratings from"`
}

// Run executes the export command
func (c *ExportCmd) Run(env *Env) error {
	src, err := env.Registry.Source(c.Source)
	if err != nil {
		return err
	}
	defer closeDriver(src)

	unlock, err := cmdutil.LockExportsDir(env.Config.ExportsDir)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	if err := authenticate(env.Ctx, src); err != nil {
		return err
	}

	opts := env.Config.TransferOptions()
	ext := transfer.NewExtractor(opts.MaxPages, opts.Retry).Extract(env.Ctx, src)
	if ext.Err != nil {
		slog.Warn("Extraction stopped early", "source", src.Name(), "pages", ext.Pages, "error", ext.Err)
	}

	path, err := snapshot.Save(env.Config.ExportsDir, src.Name(), ext.Records, time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Out, "Exported %d ratings from %s (%d pages", len(ext.Records), src.Name(), ext.Pages)
	if ext.Skipped > 0 {
		fmt.Fprintf(env.Out, ", %d entries skipped", ext.Skipped)
	}
	fmt.Fprintf(env.Out, ") to %s\n", path)
	if ext.Truncated {
		fmt.Fprintln(env.Out, "WARNING: listing was not read to its end; the snapshot is partial")
	}
	return nil
}

// ReplayCmd submits the ratings of a snapshot file to a destination.
type ReplayCmd struct {
	Snapshot    string `arg:"" help:"Snapshot file written by transfer or export" type:"existingfile"`
	Destination string `arg:"" help:"Site to write ratings to"`

	Source string `help:"Source site name for mappings and history (default: taken from the file name)"`
	All    bool   `help:"List every outcome in the report, not only failures"`
}

// Run executes the replay command
func (c *ReplayCmd) Run(env *Env) error {
	source := c.Source
	if source == "" {
		source = snapshot.SourceFromPath(c.Snapshot)
	}
	if source == "" {
		return fmt.Errorf("cannot tell the source site from %s; pass --source", c.Snapshot)
	}

	records, err := snapshot.Load(c.Snapshot)
	if err != nil {
		return err
	}

	dst, err := env.Registry.Destination(c.Destination)
	if err != nil {
		return err
	}
	defer closeDriver(dst)

	unlock, err := cmdutil.LockExportsDir(env.Config.ExportsDir)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	dst, closeCache, opts := withCache(env, dst)
	defer closeCache()
	if env.Config.Transfer.Interactive {
		opts = append(opts, transfer.WithResolver(tui.Resolver{}))
	}

	rep, err := transfer.New(env.Config.TransferOptions(), opts...).Replay(env.Ctx, source, records, dst)
	if err != nil {
		return err
	}
	return finishRun(env, rep, c.All)
}

// SitesCmd lists the registered drivers.
type SitesCmd struct{}

// Run executes the sites command
func (c *SitesCmd) Run(env *Env) error {
	fmt.Fprintf(env.Out, "Sources:      %s\n", strings.Join(env.Registry.SourceNames(), ", "))
	fmt.Fprintf(env.Out, "Destinations: %s\n", strings.Join(env.Registry.DestinationNames(), ", "))
	return nil
}

// resolveSites builds both drivers, reporting an unknown name before any
// driver is constructed.
func resolveSites(reg *site.Registry, source, destination string) (site.Source, site.Destination, error) {
	if !reg.HasSource(source) {
		_, err := reg.Source(source)
		return nil, nil, err
	}
	if !reg.HasDestination(destination) {
		_, err := reg.Destination(destination)
		return nil, nil, err
	}

	src, err := reg.Source(source)
	if err != nil {
		return nil, nil, err
	}
	dst, err := reg.Destination(destination)
	if err != nil {
		closeDriver(src)
		return nil, nil, err
	}
	return src, dst, nil
}

// withCache wraps dst with the search cache and returns the mapping option
// when caching is enabled. The returned function closes the database.
func withCache(env *Env, dst site.Destination) (site.Destination, func(), []transfer.Option) {
	cfg := env.Config.Cache
	if !cfg.Enabled {
		return dst, func() {}, nil
	}

	db, err := cache.Open(cfg.DBFile)
	if err != nil {
		slog.Warn("Cache unavailable, continuing without it", "database", cfg.DBFile, "error", err)
		return dst, func() {}, nil
	}
	slog.Debug("Using cache", "database", db.Path(), "ttl", cfg.TTL)
	if _, err := db.ClearExpired(cache.SearchTable); err != nil {
		slog.Warn("Failed to clear expired search results", "error", err)
	}

	var opts []transfer.Option
	if env.Config.Transfer.UseMappings {
		opts = append(opts, transfer.WithMappings(cache.NewMappings(db)))
	}
	return cache.WrapDestination(dst, db, cfg.TTL), func() { _ = db.Close() }, opts
}

func finishRun(env *Env, rep *transfer.Report, all bool) error {
	if err := report.Write(env.Out, rep, report.Options{AllOutcomes: all}); err != nil {
		return err
	}
	if err := cmdutil.WriteHistory(env.Config.History, rep); err != nil {
		slog.Warn("Run history not saved", "error", err)
	}
	return nil
}

func authenticate(ctx context.Context, d site.Driver) error {
	auth, ok := d.(site.Authenticator)
	if !ok {
		return nil
	}
	if err := auth.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate %s: %w", d.Name(), err)
	}
	return nil
}

func closeDriver(d site.Driver) {
	c, ok := d.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("Failed to close driver", "site", d.Name(), "error", err)
	}
}
