package imdb

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/site"
)

var (
	titleIDPattern = regexp.MustCompile(`/title/(tt\d+)`)
	yearPattern    = regexp.MustCompile(`(\d{4})`)
	// The newer layout prefixes titles with their list position
	positionPrefix = regexp.MustCompile(`^\d+\.\s+`)
	ratedOnPattern = regexp.MustCompile(`Rated on (\d{1,2} \w{3} \d{4})`)
)

const (
	itemSelector    = ".lister-item, li.ipc-metadata-list-summary-item"
	listingSelector = "#ratings-container, .lister-list, ul.ipc-metadata-list, [data-testid='list-page-mc-list-content']"
)

// parseRatingsPage reads one page of a user's ratings list. Both the
// classic lister layout and the newer ipc layout are understood. A page
// with the listing container but no items ends the listing.
func parseRatingsPage(r io.Reader) ([]site.RawEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, ratserrors.NewFatalError("imdb: failed to parse ratings page", err)
	}

	items := doc.Find(itemSelector)
	if items.Length() == 0 {
		if doc.Find(listingSelector).Length() > 0 {
			return nil, nil
		}
		return nil, ratserrors.NewFatalError("imdb: unrecognized ratings page structure", nil)
	}

	var entries []site.RawEntry
	items.Each(func(_ int, item *goquery.Selection) {
		entries = append(entries, parseItem(item))
	})
	return entries, nil
}

func parseItem(item *goquery.Selection) site.RawEntry {
	var entry site.RawEntry

	link := item.Find("a[href*='/title/tt']").First()
	if href, ok := link.Attr("href"); ok {
		if m := titleIDPattern.FindStringSubmatch(href); m != nil {
			entry.SourceID = m[1]
		}
	}

	title := firstText(item, ".lister-item-header a", "h3.ipc-title__text")
	entry.Title = positionPrefix.ReplaceAllString(title, "")

	yearText := firstText(item, ".lister-item-year", ".dli-title-metadata-item", "span.cli-title-metadata-item")
	if m := yearPattern.FindStringSubmatch(yearText); m != nil {
		entry.Year, _ = strconv.Atoi(m[1])
	}

	ratingText := firstText(item,
		".ipl-rating-star--other-user .ipl-rating-star__rating",
		"[data-testid='ratingGroup--other-user-rating'] .ipc-rating-star--rating",
		"span.ipc-rating-star--otherUserAlt")
	if v, err := strconv.ParseFloat(strings.TrimSpace(ratingText), 64); err == nil {
		entry.Rating = v
	}

	if m := ratedOnPattern.FindStringSubmatch(item.Text()); m != nil {
		if at, err := time.Parse("2 Jan 2006", m[1]); err == nil {
			entry.RatedAt = &at
		}
	}

	if entry.SourceID != "" {
		entry.ExternalIDs = map[string]string{"imdb": entry.SourceID}
	}
	return entry
}

func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(s.Find(sel).First().Text()); text != "" {
			return strings.Join(strings.Fields(text), " ")
		}
	}
	return ""
}

func ratingsPath(userID string, page int) string {
	return fmt.Sprintf("/user/%s/ratings?sort=date_added,desc&mode=detail&page=%d", userID, page+1)
}
