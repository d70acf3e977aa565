package cmd

import (
	"log/slog"

	"github.com/lepinkainen/rats/cmd/imdb"
	"github.com/lepinkainen/rats/cmd/letterboxd"
	"github.com/lepinkainen/rats/cmd/movielens"
	"github.com/lepinkainen/rats/cmd/tmdb"
	"github.com/lepinkainen/rats/cmd/trakt"
	"github.com/lepinkainen/rats/internal/config"
	"github.com/lepinkainen/rats/internal/site"
)

// defaultRegistry registers every built-in driver, configured from cfg.
func defaultRegistry(cfg *config.Config) *site.Registry {
	reg := site.NewRegistry()
	timeout := cfg.Transfer.RequestTimeout

	sources := map[string]site.SourceFactory{
		trakt.Name: sourceFactory(func() (*trakt.Source, error) {
			return trakt.NewSource(cfg.Trakt, timeout)
		}),
		imdb.Name: sourceFactory(func() (*imdb.Source, error) {
			return imdb.NewSource(cfg.IMDb, timeout)
		}),
		imdb.ExportName: sourceFactory(func() (*imdb.ExportSource, error) {
			return imdb.NewExportSource(cfg.IMDb)
		}),
		letterboxd.Name: sourceFactory(func() (*letterboxd.Source, error) {
			return letterboxd.NewSource(cfg.Letterboxd)
		}),
		letterboxd.ExportName: sourceFactory(func() (*letterboxd.ExportSource, error) {
			return letterboxd.NewExportSource(cfg.Letterboxd)
		}),
	}
	destinations := map[string]site.DestinationFactory{
		trakt.Name: destinationFactory(func() (*trakt.Destination, error) {
			return trakt.NewDestination(cfg.Trakt, timeout)
		}),
		imdb.Name: destinationFactory(func() (*imdb.Destination, error) {
			return imdb.NewDestination(cfg.IMDb, timeout)
		}),
		movielens.Name: destinationFactory(func() (*movielens.Destination, error) {
			return movielens.NewDestination(cfg.MovieLens, timeout)
		}),
		tmdb.Name: destinationFactory(func() (*tmdb.Destination, error) {
			return tmdb.NewDestination(cfg.TMDB, timeout)
		}),
	}

	for name, f := range sources {
		if err := reg.RegisterSource(name, f); err != nil {
			slog.Error("Driver registration failed", "error", err)
		}
	}
	for name, f := range destinations {
		if err := reg.RegisterDestination(name, f); err != nil {
			slog.Error("Driver registration failed", "error", err)
		}
	}
	return reg
}

// sourceFactory adapts a concrete constructor so a failed build yields a
// nil interface rather than a typed nil.
func sourceFactory[T site.Source](build func() (T, error)) site.SourceFactory {
	return func() (site.Source, error) {
		s, err := build()
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func destinationFactory[T site.Destination](build func() (T, error)) site.DestinationFactory {
	return func() (site.Destination, error) {
		d, err := build()
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
