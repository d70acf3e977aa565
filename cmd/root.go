package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/rats/internal/cache"
	"github.com/lepinkainen/rats/internal/config"
	"github.com/lepinkainen/rats/internal/site"
)

const (
	appName        = "rats"
	appDescription = "Transfer movie ratings between rating sites."
)

// CLI represents the complete command structure for the rats application
type CLI struct {
	// Global flags
	Config     string `help:"Path to the YAML config file" default:"config.yaml" type:"path"`
	ExportsDir string `help:"Directory for snapshot files (overrides exports_dir)" type:"path"`
	CacheDB    string `name:"cache-db" help:"Path to cache SQLite database file (overrides cache.dbfile)" type:"path"`
	HistoryDB  string `name:"history-db" help:"Path to run history SQLite database file (overrides history.dbfile)" type:"path"`
	Debug      bool   `help:"Enable debug logging"`

	Transfer TransferCmd `cmd:"" help:"Copy ratings from a source site to a destination site"`
	Export   ExportCmd   `cmd:"" help:"Save the ratings of a source site to a snapshot file"`
	Replay   ReplayCmd   `cmd:"" help:"Submit the ratings of a snapshot file to a destination site"`
	Sites    SitesCmd    `cmd:"" help:"List the available sources and destinations"`
	Cache    CacheCmd    `cmd:"" help:"Manage the search and mapping cache"`
}

// CacheCmd groups the cache subcommands
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Remove every row of a cache table"`
}

// Env carries what commands need at run time.
type Env struct {
	Ctx      context.Context
	Config   *config.Config
	Registry *site.Registry
	Out      io.Writer
}

var (
	exit                  = os.Exit
	stdout      io.Writer = os.Stdout
	newRegistry           = defaultRegistry
)

// Execute runs the Kong-based CLI
func Execute() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("Command failed", "error", err)
		exit(1)
	}
}

func run(args []string) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name(appName),
		kong.Description(appDescription),
		kong.UsageOnError(),
		kong.Exit(exit),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
		return err
	}

	initLogging(cli.Debug)

	cfg, err := initConfig(&cli)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &Env{Ctx: ctx, Config: cfg, Registry: newRegistry(cfg), Out: stdout}
	return kctx.Run(env, cfg)
}

func initLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// initConfig layers defaults, the config file, .env, RATS_ environment
// variables and global flags, in increasing priority.
func initConfig(cli *CLI) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}
	v.SetEnvPrefix("RATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(cli.Config)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", cli.Config, err)
		}
		slog.Info("Config file not found, writing default config file", "path", cli.Config)
		if err := v.SafeWriteConfigAs(cli.Config); err != nil {
			slog.Warn("Error writing config file", "error", err)
		}
	}

	applyFlagOverrides(v, cli)
	return config.Load(v)
}

func applyFlagOverrides(v *viper.Viper, cli *CLI) {
	if cli.ExportsDir != "" {
		v.Set("exports_dir", cli.ExportsDir)
	}
	if cli.CacheDB != "" {
		v.Set("cache.dbfile", cli.CacheDB)
	}
	if cli.HistoryDB != "" {
		v.Set("history.dbfile", cli.HistoryDB)
	}
}
