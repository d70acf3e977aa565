package letterboxd

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/site"
)

var (
	// rated-N counts half stars: rated-7 is three and a half stars
	ratedClass   = regexp.MustCompile(`\brated-(\d{1,2})\b`)
	nameWithYear = regexp.MustCompile(`^(.*\S)\s+\((\d{4})\)$`)
)

const (
	itemSelector    = "li.poster-container, li.griditem"
	posterSelector  = "[data-film-id]"
	contentSelector = "#content"
)

// pageSelectors mark a loaded ratings page, with or without films.
var pageSelectors = []string{itemSelector, contentSelector}

// parseRatingsPage reads the films of one ratings grid page.
func parseRatingsPage(r io.Reader) ([]site.RawEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, ratserrors.NewFatalError("letterboxd: failed to parse ratings page", err)
	}

	items := doc.Find(itemSelector)
	if items.Length() == 0 {
		if doc.Find(contentSelector).Length() > 0 {
			return nil, nil
		}
		return nil, ratserrors.NewFatalError("letterboxd: unrecognized ratings page structure", nil)
	}

	entries := make([]site.RawEntry, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		entries = append(entries, parseItem(item))
	})
	return entries, nil
}

func parseItem(item *goquery.Selection) site.RawEntry {
	var entry site.RawEntry

	poster := item.Find(posterSelector).First()
	entry.SourceID = attr(poster, "data-film-id")

	name := attr(poster, "data-item-name")
	if name == "" {
		name = attr(poster, "data-film-name")
	}
	if name == "" {
		name = attr(item.Find("img").First(), "alt")
	}
	if m := nameWithYear.FindStringSubmatch(name); m != nil {
		name = m[1]
		entry.Year, _ = strconv.Atoi(m[2])
	}
	entry.Title = name

	if year, err := strconv.Atoi(attr(poster, "data-film-release-year")); err == nil {
		entry.Year = year
	}

	if class, ok := item.Find("span.rating").First().Attr("class"); ok {
		if m := ratedClass.FindStringSubmatch(class); m != nil {
			halfStars, _ := strconv.Atoi(m[1])
			entry.Rating = float64(halfStars) / 2
		}
	}

	if slug := attr(poster, "data-film-slug"); slug != "" {
		entry.ExternalIDs = map[string]string{"letterboxd": slug}
	}
	return entry
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}
