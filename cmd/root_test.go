package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/kong"

	"github.com/lepinkainen/rats/internal/config"
	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/site"
	"github.com/lepinkainen/rats/internal/snapshot"
	"github.com/lepinkainen/rats/internal/testutil"
)

type fakeSource struct {
	pages [][]site.RawEntry
}

func (s *fakeSource) Name() string        { return "fakesrc" }
func (s *fakeSource) Scale() rating.Scale { return rating.TenPoint }

func (s *fakeSource) ListPage(_ context.Context, page int) ([]site.RawEntry, error) {
	if page >= len(s.pages) {
		return nil, nil
	}
	return s.pages[page], nil
}

type fakeDestination struct {
	catalog   []site.RawCandidate
	submitted map[string]int
	searches  int
	closed    bool
}

func (d *fakeDestination) Name() string { return "fakedst" }

func (d *fakeDestination) Search(_ context.Context, title string, _ int) ([]site.RawCandidate, error) {
	d.searches++
	var hits []site.RawCandidate
	for _, c := range d.catalog {
		if strings.EqualFold(c.Title, title) {
			hits = append(hits, c)
		}
	}
	return hits, nil
}

func (d *fakeDestination) Submit(_ context.Context, targetID string, value int) error {
	if d.submitted == nil {
		d.submitted = make(map[string]int)
	}
	d.submitted[targetID] = value
	return nil
}

func (d *fakeDestination) Close() error {
	d.closed = true
	return nil
}

func newFakes() (*fakeSource, *fakeDestination) {
	src := &fakeSource{pages: [][]site.RawEntry{
		{
			{SourceID: "s1", Title: "Inception", Year: 2010, Rating: 8},
			{SourceID: "s2", Title: "Heat", Year: 1995, Rating: 9},
		},
		{
			{SourceID: "s3", Title: "Unknown Film", Year: 2001, Rating: 4},
		},
	}}
	dst := &fakeDestination{catalog: []site.RawCandidate{
		{TargetID: "tt1375666", Title: "Inception", Year: 2010},
		{TargetID: "tt0113277", Title: "Heat", Year: 1995},
	}}
	return src, dst
}

// useFakes swaps the driver registry and stdout for the duration of a test.
func useFakes(t *testing.T, src *fakeSource, dst *fakeDestination) *bytes.Buffer {
	t.Helper()

	origRegistry, origStdout := newRegistry, stdout
	t.Cleanup(func() {
		newRegistry = origRegistry
		stdout = origStdout
	})

	newRegistry = func(*config.Config) *site.Registry {
		reg := site.NewRegistry()
		_ = reg.RegisterSource(src.Name(), func() (site.Source, error) { return src, nil })
		_ = reg.RegisterDestination(dst.Name(), func() (site.Destination, error) { return dst, nil })
		return reg
	}

	var out bytes.Buffer
	stdout = &out
	return &out
}

// globalArgs points every file the CLI touches into env.
func globalArgs(env *testutil.TestEnv) []string {
	return []string{
		"--config", env.Path("config.yaml"),
		"--exports-dir", env.Path("exports"),
		"--cache-db", env.Path("cache.db"),
		"--history-db", env.Path("rats.db"),
	}
}

// jsonFiles lists the snapshot files in dir, ignoring the run lock.
func jsonFiles(env *testutil.TestEnv, dir string) []string {
	var files []string
	for _, name := range env.ListFiles(dir) {
		if strings.HasSuffix(name, ".json") {
			files = append(files, name)
		}
	}
	return files
}

func parseCLI(t *testing.T, args ...string) (*CLI, error) {
	t.Helper()

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name(appName),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)
	assert.NoError(t, err)

	_, err = parser.Parse(args)
	return cli, err
}

func TestTransferCommandParsing(t *testing.T) {
	cli, err := parseCLI(t, "transfer", "letterboxd", "imdb", "--interactive", "--no-snapshot", "--all")
	assert.NoError(t, err)

	assert.Equal(t, "letterboxd", cli.Transfer.Source)
	assert.Equal(t, "imdb", cli.Transfer.Destination)
	assert.True(t, cli.Transfer.Interactive)
	assert.True(t, cli.Transfer.NoSnapshot)
	assert.True(t, cli.Transfer.All)
}

func TestGlobalFlagParsing(t *testing.T) {
	cli, err := parseCLI(t, "--debug", "--exports-dir", "/tmp/exports", "--cache-db", "/tmp/c.db", "--history-db", "/tmp/h.db", "sites")
	assert.NoError(t, err)

	assert.True(t, cli.Debug)
	assert.Equal(t, "/tmp/exports", cli.ExportsDir)
	assert.Equal(t, "/tmp/c.db", cli.CacheDB)
	assert.Equal(t, "/tmp/h.db", cli.HistoryDB)
}

func TestCacheInvalidateParsing(t *testing.T) {
	cli, err := parseCLI(t, "cache", "invalidate", "search_cache")
	assert.NoError(t, err)
	assert.Equal(t, "search_cache", cli.Cache.Invalidate.Table)
}

func TestParsingRejectsMissingArguments(t *testing.T) {
	tests := [][]string{
		{"transfer", "trakt"},
		{"export"},
		{"replay", "only-one-arg"},
		{"cache", "invalidate"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := parseCLI(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestInitConfigWritesMissingConfigFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Chdir(".")

	cfg, err := initConfig(&CLI{Config: env.Path("config.yaml")})
	assert.NoError(t, err)

	assert.True(t, env.FileExists("config.yaml"))
	assert.Equal(t, "./exports", cfg.ExportsDir)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Transfer.Interactive)
	assert.Contains(t, env.ReadFileString("config.yaml"), "exports_dir")
}

func TestInitConfigPrecedence(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Chdir(".")
	env.WriteFileString("config.yaml", "exports_dir: from-file\ntransfer:\n  max_pages: 5\n  year_tolerance: 2\n")
	env.WriteFileString(".env", "RATS_TRAKT_USERNAME=dotenv-user\n")
	t.Cleanup(func() { _ = os.Unsetenv("RATS_TRAKT_USERNAME") })
	t.Setenv("RATS_TRANSFER_MAX_PAGES", "7")

	cfg, err := initConfig(&CLI{
		Config:     env.Path("config.yaml"),
		ExportsDir: env.Path("flag-exports"),
		CacheDB:    env.Path("flag-cache.db"),
	})
	assert.NoError(t, err)

	assert.Equal(t, env.Path("flag-exports"), cfg.ExportsDir)
	assert.Equal(t, env.Path("flag-cache.db"), cfg.Cache.DBFile)
	assert.Equal(t, 7, cfg.Transfer.MaxPages)
	assert.Equal(t, 2, cfg.Transfer.YearTolerance)
	assert.Equal(t, "dotenv-user", cfg.Trakt.Username)
}

func TestInitConfigRejectsBrokenFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Chdir(".")
	env.WriteFileString("config.yaml", "transfer: [unterminated\n")

	_, err := initConfig(&CLI{Config: env.Path("config.yaml")})
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	reg := defaultRegistry(&config.Config{})

	assert.Equal(t, []string{"imdb", "imdb-export", "letterboxd", "letterboxd-export", "trakt"}, reg.SourceNames())
	assert.Equal(t, []string{"imdb", "movielens", "tmdb", "trakt"}, reg.DestinationNames())

	// Drivers validate their settings when built
	_, err := reg.Source("trakt")
	assert.Error(t, err)
}

func TestSitesCommand(t *testing.T) {
	env := testutil.NewTestEnv(t)
	src, dst := newFakes()
	out := useFakes(t, src, dst)

	assert.NoError(t, run(append(globalArgs(env), "sites")))

	assert.Contains(t, out.String(), "Sources:      fakesrc")
	assert.Contains(t, out.String(), "Destinations: fakedst")
}

func TestTransferUnknownSite(t *testing.T) {
	env := testutil.NewTestEnv(t)
	src, dst := newFakes()
	useFakes(t, src, dst)

	err := run(append(globalArgs(env), "transfer", "nosuch", "fakedst"))

	var unknown *site.UnknownSiteError
	assert.True(t, errors.As(err, &unknown))
	assert.Equal(t, "source", unknown.Role)
	assert.Equal(t, []string{"fakesrc"}, unknown.Available)
	assert.Contains(t, err.Error(), "fakesrc")
}

func TestTransferCommand(t *testing.T) {
	env := testutil.NewTestEnv(t)
	src, dst := newFakes()
	out := useFakes(t, src, dst)

	assert.NoError(t, run(append(globalArgs(env), "transfer", "fakesrc", "fakedst")))

	assert.Equal(t, map[string]int{"tt1375666": 8, "tt0113277": 9}, dst.submitted)
	assert.True(t, dst.closed)
	assert.Contains(t, out.String(), "fakesrc -> fakedst, 3 records")
	assert.Contains(t, out.String(), "Unknown Film")
	assert.Contains(t, out.String(), "Snapshot: ")

	saved := jsonFiles(env, "exports")
	assert.Equal(t, 1, len(saved))
	assert.True(t, strings.HasSuffix(saved[0], "_fakesrc.json"))
	assert.True(t, env.FileExists("rats.db"))
	assert.True(t, env.FileExists("cache.db"))
}

func TestTransferReusesMappings(t *testing.T) {
	env := testutil.NewTestEnv(t)
	src, dst := newFakes()
	useFakes(t, src, dst)
	args := append(globalArgs(env), "transfer", "fakesrc", "fakedst", "--no-snapshot")

	assert.NoError(t, run(args))
	firstSearches := dst.searches

	assert.NoError(t, run(args))

	// Matched titles come from the mapping cache, the unmatched one from
	// the search cache
	assert.Equal(t, firstSearches, dst.searches)
	assert.Equal(t, 0, len(jsonFiles(env, "exports")))
}

func TestExportCommand(t *testing.T) {
	env := testutil.NewTestEnv(t)
	src, dst := newFakes()
	out := useFakes(t, src, dst)

	assert.NoError(t, run(append(globalArgs(env), "export", "fakesrc")))

	assert.Contains(t, out.String(), "Exported 3 ratings from fakesrc (2 pages)")
	assert.Equal(t, 0, len(dst.submitted))

	saved := jsonFiles(env, "exports")
	assert.Equal(t, 1, len(saved))
	records, err := snapshot.Load(filepath.Join(env.Path("exports"), saved[0]))
	assert.NoError(t, err)
	assert.Equal(t, 3, len(records))
	assert.Equal(t, "Inception", records[0].Title)
}

func TestReplayCommand(t *testing.T) {
	env := testutil.NewTestEnv(t)
	src, dst := newFakes()
	out := useFakes(t, src, dst)

	records := []rating.Record{
		{SourceID: "s1", Title: "Inception", Year: 2010, Rating: 10},
	}
	path, err := snapshot.Save(env.Path("snapshots"), "letterboxd", records, time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC))
	assert.NoError(t, err)

	assert.NoError(t, run(append(globalArgs(env), "replay", path, "fakedst", "--all")))

	assert.Equal(t, map[string]int{"tt1375666": 10}, dst.submitted)
	assert.Contains(t, out.String(), "letterboxd -> fakedst, 1 records")
	assert.Contains(t, out.String(), "tt1375666")
}

func TestReplayNeedsSourceName(t *testing.T) {
	env := testutil.NewTestEnv(t)
	src, dst := newFakes()
	useFakes(t, src, dst)
	env.WriteFileString("ratings.json", `[{"title":"Heat","year":1995,"rating":9,"sourceId":"s2"}]`)

	err := run(append(globalArgs(env), "replay", env.Path("ratings.json"), "fakedst"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "--source")

	assert.NoError(t, run(append(globalArgs(env), "replay", env.Path("ratings.json"), "fakedst", "--source", "trakt")))
}
