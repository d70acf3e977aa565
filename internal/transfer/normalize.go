package transfer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Leading articles dropped before comparing titles ("The Matrix" ~ "Matrix").
var leadingArticles = map[string]bool{"the": true, "a": true, "an": true}

// Catalog-style trailing article: "Matrix, The".
var trailingArticle = regexp.MustCompile(`(?i),\s*(the|a|an)\s*$`)

// NormalizeTitle folds case, strips diacritics and punctuation, collapses
// whitespace and drops a leading article.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if m := trailingArticle.FindStringSubmatch(title); m != nil {
		title = m[1] + " " + strings.TrimSpace(title[:len(title)-len(m[0])])
	}

	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripMarks, title); err == nil {
		title = stripped
	}
	title = cases.Fold().String(title)
	title = strings.ReplaceAll(title, "&", " and ")

	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// apostrophes join words: "Schindler's" -> "schindlers"
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	if len(words) > 1 && leadingArticles[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// TitleSimilarity scores two titles in [0,1]. Normalized equality is 1;
// otherwise the score is the Levenshtein distance scaled by the longer title.
func TitleSimilarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	maxLen := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n > maxLen {
		maxLen = n
	}
	dist := matchr.Levenshtein(na, nb)
	if dist >= maxLen {
		return 0
	}
	return float64(maxLen-dist) / float64(maxLen)
}
