package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/intel"
)

// JobBoard is one directly scraped job listing site.
type JobBoard struct {
	Label  string
	URL    string
	Region string
}

// RegionQueries groups search queries under the region they target.
type RegionQueries struct {
	Region  string
	Queries []string
}

// JobsConfig drives the hiring-signal adapter.
type JobsConfig struct {
	// SearchURL is a template with one %s verb for the escaped query.
	SearchURL string
	Boards    []JobBoard
	Queries   []RegionQueries
	// Vendor gates board listings: a posting without this term is not a
	// hiring signal for the tracked ecosystem.
	Vendor string
	// Roles map role keywords in job text to attribute tags.
	Roles []RoleTag
	// FallbackTag is attached when no role keyword matches.
	FallbackTag string
}

// JobsAdapter finds organizations hiring in-house staff for the tracked
// ecosystem. Employers are inferred from titles, so everything here is
// Medium confidence.
type JobsAdapter struct {
	cfg  JobsConfig
	deps Deps
}

// NewJobsAdapter builds the adapter.
func NewJobsAdapter(cfg JobsConfig, deps Deps) *JobsAdapter {
	return &JobsAdapter{cfg: cfg, deps: deps}
}

// Name implements intel.SourceAdapter.
func (a *JobsAdapter) Name() string { return "jobs" }

// Collect runs the hiring search queries first, then the direct boards.
// Boards that block are rerouted through the fetcher's fallback chain, and
// the board selectors also match fallback search result shapes.
func (a *JobsAdapter) Collect(ctx context.Context) ([]intel.Observation, error) {
	var observations []intel.Observation
	for _, group := range a.cfg.Queries {
		for _, query := range group.Queries {
			observations = append(observations, a.search(ctx, query, group.Region)...)
		}
	}
	for _, board := range a.cfg.Boards {
		observations = append(observations, a.scrapeBoard(ctx, board)...)
	}
	a.deps.logger().Info("jobs adapter collected",
		zap.Int("observations", len(observations)),
	)
	return observations, nil
}

func (a *JobsAdapter) search(ctx context.Context, query, region string) []intel.Observation {
	target := fmt.Sprintf(a.cfg.SearchURL, url.QueryEscape(query))
	doc, err := a.deps.Fetcher.Fetch(ctx, target)
	if err != nil {
		a.deps.logger().Warn("jobs search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	page, err := parseHTML(doc)
	if err != nil {
		a.deps.logger().Warn("jobs parse failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	var results []intel.Observation
	for _, item := range parseSearchResults(page, 15) {
		name := ExtractHiringEntity(item.Title, item.Snippet, a.deps.reject())
		if a.deps.reject()(name) {
			continue
		}
		results = append(results, intel.Observation{
			EntityName:   name,
			Region:       region,
			Attributes:   DetectRoleTags(item.Title+" "+item.Snippet, a.cfg.Roles, a.cfg.FallbackTag),
			Kind:         intel.KindHiringSignal,
			Confidence:   intel.ConfidenceMedium,
			SourceLabel:  "Job Posting",
			ReferenceURL: item.Link,
			Excerpt:      excerpt("Hiring: " + item.Title),
			ObservedAt:   a.deps.Clock.Now(),
		})
	}
	return results
}

func (a *JobsAdapter) scrapeBoard(ctx context.Context, board JobBoard) []intel.Observation {
	doc, err := a.deps.Fetcher.Fetch(ctx, board.URL)
	if err != nil {
		a.deps.logger().Warn("job board fetch failed", zap.String("board", board.Label), zap.Error(err))
		return nil
	}
	page, err := parseHTML(doc)
	if err != nil {
		a.deps.logger().Warn("job board parse failed", zap.String("board", board.Label), zap.Error(err))
		return nil
	}

	var results []intel.Observation
	page.Find("div.g, div[data-hveid], .job-item, [data-job-id], article, [class*='job']").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		titleEl := item.Find("h3, h2 a, a[class*='title'], a.job-title").First()
		title := strings.TrimSpace(titleEl.Text())
		if title == "" || !containsFold(title, a.cfg.Vendor) {
			return true
		}
		name := strings.TrimSpace(item.Find("[class*='company'], .employer, .org").First().Text())
		if name == "" {
			name = ExtractHiringEntity(title, "", a.deps.reject())
		}
		if name == "" || a.deps.reject()(name) {
			return true
		}
		link, _ := titleEl.Attr("href")
		results = append(results, intel.Observation{
			EntityName:   name,
			Region:       board.Region,
			Attributes:   DetectRoleTags(title, a.cfg.Roles, a.cfg.FallbackTag),
			Kind:         intel.KindHiringSignal,
			Confidence:   intel.ConfidenceMedium,
			SourceLabel:  board.Label,
			ReferenceURL: link,
			Excerpt:      excerpt("Hiring: " + title),
			ObservedAt:   a.deps.Clock.Now(),
		})
		return len(results) < 12
	})
	return results
}
