package adapter

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/intel"
	"github.com/signalfold/signalfold/internal/normalize"
)

// Deps are the collaborators every live adapter shares.
type Deps struct {
	Fetcher    intel.Fetcher
	Clock      intel.Clock
	Logger     *zap.Logger
	Exclusions *normalize.Exclusions
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// reject adapts the exclusion list into the extraction reject predicate.
func (d Deps) reject() RejectFunc {
	if d.Exclusions == nil {
		return neverReject
	}
	return d.Exclusions.Match
}

func parseHTML(doc intel.Document) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
}

// searchResult is one organic result from a rendered search page. The
// selector sets also match the shapes the fallback search strategy
// returns, so blocked-origin adapters keep producing observations.
type searchResult struct {
	Title   string
	Link    string
	Snippet string
}

var (
	resultSelectors  = "div.g, div[data-hveid], div.SoaBEf"
	titleSelectors   = "h3, [role='heading']"
	snippetSelectors = "div.VwiC3b, span.st, div[data-sncf]"
)

func parseSearchResults(doc *goquery.Document, limit int) []searchResult {
	var results []searchResult
	doc.Find(resultSelectors).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find(titleSelectors).First().Text())
		if title == "" {
			return true
		}
		link, _ := sel.Find("a[href]").First().Attr("href")
		snippet := strings.TrimSpace(sel.Find(snippetSelectors).First().Text())
		results = append(results, searchResult{Title: title, Link: link, Snippet: snippet})
		return len(results) < limit
	})
	return results
}

// excerpt bounds free text to the observation excerpt limit.
func excerpt(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > intel.MaxExcerptRunes {
		return string(runes[:intel.MaxExcerptRunes])
	}
	return s
}

func containsFold(text, term string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(term))
}
