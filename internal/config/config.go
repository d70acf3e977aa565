// Package config turns viper settings into the explicit configuration that
// commands pass to the pipeline and site drivers.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/rats/internal/retry"
	"github.com/lepinkainen/rats/internal/transfer"
)

// Config is the resolved configuration for one invocation.
type Config struct {
	ExportsDir string

	Cache      CacheConfig
	History    HistoryConfig
	Transfer   TransferConfig
	Trakt      TraktConfig
	IMDb       IMDbConfig
	MovieLens  MovieLensConfig
	Letterboxd LetterboxdConfig
	TMDB       TMDBConfig
}

type CacheConfig struct {
	DBFile  string
	TTL     time.Duration
	Enabled bool
}

type HistoryConfig struct {
	DBFile  string
	Enabled bool
	// Optional Datasette instance that also receives history rows
	DatasetteURL   string
	DatasetteToken string
}

// TransferConfig tunes extraction, matching and retries.
type TransferConfig struct {
	MaxPages           int
	AcceptThreshold    float64
	AmbiguityThreshold float64
	YearTolerance      int
	Retry              retry.Policy
	RequestTimeout     time.Duration
	Interactive        bool
	UseMappings        bool
}

type TraktConfig struct {
	BaseURL       string
	ClientID      string
	Username      string
	AccessToken   string
	RatePerSecond float64
}

type IMDbConfig struct {
	BaseURL       string
	SuggestURL    string
	GraphQLURL    string
	Cookie        string
	UserID        string
	ExportFile    string // Ratings CSV downloaded from the IMDb ratings page
	RatePerSecond float64
}

type MovieLensConfig struct {
	BaseURL       string
	Username      string
	Password      string
	RatePerSecond float64
}

type TMDBConfig struct {
	BaseURL       string
	APIKey        string
	SessionID     string
	RatePerSecond float64
}

type LetterboxdConfig struct {
	BaseURL    string
	Username   string
	Password   string
	Headless   bool
	ExportFile string // ratings.csv from the Letterboxd data export
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	def := retry.DefaultPolicy()
	match := transfer.DefaultMatchConfig()

	v.SetDefault("exports_dir", "./exports")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dbfile", "./cache.db")
	v.SetDefault("cache.ttl", "720h") // 30 days

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dbfile", "./rats.db")
	v.SetDefault("history.datasette_url", "")
	v.SetDefault("history.datasette_token", "")

	v.SetDefault("transfer.max_pages", transfer.DefaultMaxPages)
	v.SetDefault("transfer.accept_threshold", match.AcceptThreshold)
	v.SetDefault("transfer.ambiguity_threshold", match.AmbiguityThreshold)
	v.SetDefault("transfer.year_tolerance", match.YearTolerance)
	v.SetDefault("transfer.retry_attempts", def.Attempts)
	v.SetDefault("transfer.retry_base_delay", def.BaseDelay.String())
	v.SetDefault("transfer.retry_factor", def.Factor)
	v.SetDefault("transfer.retry_max_delay", def.MaxDelay.String())
	v.SetDefault("transfer.request_timeout", "30s")
	v.SetDefault("transfer.interactive", false)
	v.SetDefault("transfer.use_mappings", true)

	v.SetDefault("trakt.base_url", "https://api.trakt.tv")
	v.SetDefault("trakt.client_id", "")
	v.SetDefault("trakt.username", "")
	v.SetDefault("trakt.access_token", "")
	v.SetDefault("trakt.rate_per_second", 3.0)

	v.SetDefault("imdb.base_url", "https://www.imdb.com")
	v.SetDefault("imdb.suggest_url", "https://v3.sg.media-imdb.com")
	v.SetDefault("imdb.graphql_url", "https://api.graphql.imdb.com")
	v.SetDefault("imdb.cookie", "")
	v.SetDefault("imdb.user_id", "")
	v.SetDefault("imdb.export_file", "")
	v.SetDefault("imdb.rate_per_second", 1.0)

	v.SetDefault("movielens.base_url", "https://movielens.org")
	v.SetDefault("movielens.username", "")
	v.SetDefault("movielens.password", "")
	v.SetDefault("movielens.rate_per_second", 2.0)

	v.SetDefault("letterboxd.base_url", "https://letterboxd.com")
	v.SetDefault("letterboxd.username", "")
	v.SetDefault("letterboxd.password", "")
	v.SetDefault("letterboxd.headless", true)
	v.SetDefault("letterboxd.export_file", "")

	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.session_id", "")
	v.SetDefault("tmdb.rate_per_second", 4.0)
}

// Load reads and validates the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ExportsDir: v.GetString("exports_dir"),
		Cache: CacheConfig{
			Enabled: v.GetBool("cache.enabled"),
			DBFile:  v.GetString("cache.dbfile"),
			TTL:     v.GetDuration("cache.ttl"),
		},
		History: HistoryConfig{
			Enabled:        v.GetBool("history.enabled"),
			DBFile:         v.GetString("history.dbfile"),
			DatasetteURL:   v.GetString("history.datasette_url"),
			DatasetteToken: v.GetString("history.datasette_token"),
		},
		Transfer: TransferConfig{
			MaxPages:           v.GetInt("transfer.max_pages"),
			AcceptThreshold:    v.GetFloat64("transfer.accept_threshold"),
			AmbiguityThreshold: v.GetFloat64("transfer.ambiguity_threshold"),
			YearTolerance:      v.GetInt("transfer.year_tolerance"),
			Retry: retry.Policy{
				Attempts:  v.GetInt("transfer.retry_attempts"),
				BaseDelay: v.GetDuration("transfer.retry_base_delay"),
				Factor:    v.GetFloat64("transfer.retry_factor"),
				MaxDelay:  v.GetDuration("transfer.retry_max_delay"),
			},
			RequestTimeout: v.GetDuration("transfer.request_timeout"),
			Interactive:    v.GetBool("transfer.interactive"),
			UseMappings:    v.GetBool("transfer.use_mappings"),
		},
		Trakt: TraktConfig{
			BaseURL:       v.GetString("trakt.base_url"),
			ClientID:      v.GetString("trakt.client_id"),
			Username:      v.GetString("trakt.username"),
			AccessToken:   v.GetString("trakt.access_token"),
			RatePerSecond: v.GetFloat64("trakt.rate_per_second"),
		},
		IMDb: IMDbConfig{
			BaseURL:       v.GetString("imdb.base_url"),
			SuggestURL:    v.GetString("imdb.suggest_url"),
			GraphQLURL:    v.GetString("imdb.graphql_url"),
			Cookie:        v.GetString("imdb.cookie"),
			UserID:        v.GetString("imdb.user_id"),
			ExportFile:    v.GetString("imdb.export_file"),
			RatePerSecond: v.GetFloat64("imdb.rate_per_second"),
		},
		MovieLens: MovieLensConfig{
			BaseURL:       v.GetString("movielens.base_url"),
			Username:      v.GetString("movielens.username"),
			Password:      v.GetString("movielens.password"),
			RatePerSecond: v.GetFloat64("movielens.rate_per_second"),
		},
		Letterboxd: LetterboxdConfig{
			BaseURL:    v.GetString("letterboxd.base_url"),
			Username:   v.GetString("letterboxd.username"),
			Password:   v.GetString("letterboxd.password"),
			Headless:   v.GetBool("letterboxd.headless"),
			ExportFile: v.GetString("letterboxd.export_file"),
		},
		TMDB: TMDBConfig{
			BaseURL:       v.GetString("tmdb.base_url"),
			APIKey:        v.GetString("tmdb.api_key"),
			SessionID:     v.GetString("tmdb.session_id"),
			RatePerSecond: v.GetFloat64("tmdb.rate_per_second"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot work with.
func (c *Config) Validate() error {
	t := c.Transfer
	if t.MaxPages <= 0 {
		return fmt.Errorf("transfer.max_pages must be positive, got %d", t.MaxPages)
	}
	if t.AcceptThreshold < 0 || t.AcceptThreshold > 1 {
		return fmt.Errorf("transfer.accept_threshold must be within [0,1], got %g", t.AcceptThreshold)
	}
	if t.AmbiguityThreshold < 0 || t.AmbiguityThreshold > 1 {
		return fmt.Errorf("transfer.ambiguity_threshold must be within [0,1], got %g", t.AmbiguityThreshold)
	}
	if t.YearTolerance < 0 {
		return fmt.Errorf("transfer.year_tolerance must not be negative, got %d", t.YearTolerance)
	}
	if t.Retry.Attempts <= 0 {
		return fmt.Errorf("transfer.retry_attempts must be positive, got %d", t.Retry.Attempts)
	}
	if c.ExportsDir == "" {
		return fmt.Errorf("exports_dir must be set")
	}
	return nil
}

// TransferOptions returns the pipeline options for this configuration.
func (c *Config) TransferOptions() transfer.Options {
	return transfer.Options{
		MaxPages: c.Transfer.MaxPages,
		Retry:    c.Transfer.Retry,
		Match: transfer.MatchConfig{
			AcceptThreshold:    c.Transfer.AcceptThreshold,
			AmbiguityThreshold: c.Transfer.AmbiguityThreshold,
			YearTolerance:      c.Transfer.YearTolerance,
		},
	}
}
