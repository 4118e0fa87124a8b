package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/intel"
)

// PressConfig drives the press-release search adapter.
type PressConfig struct {
	// SearchURL is a template with one %s verb for the escaped query.
	SearchURL string
	// QueryPatterns contain a {region} placeholder, e.g.
	// `"goes live with Vendor" {region}`.
	QueryPatterns []string
	Regions       []string
	Vendor        string
	Vocabulary    []string
	RegionHints   []RegionHint
}

// PressAdapter searches news for adoption announcements. A press release
// naming the adopter is direct evidence, so hits emit High confidence.
type PressAdapter struct {
	cfg  PressConfig
	deps Deps
}

// NewPressAdapter builds the adapter.
func NewPressAdapter(cfg PressConfig, deps Deps) *PressAdapter {
	return &PressAdapter{cfg: cfg, deps: deps}
}

// Name implements intel.SourceAdapter.
func (a *PressAdapter) Name() string { return "press" }

// Collect runs every query pattern against every configured region.
func (a *PressAdapter) Collect(ctx context.Context) ([]intel.Observation, error) {
	var observations []intel.Observation
	for _, region := range a.cfg.Regions {
		for _, pattern := range a.cfg.QueryPatterns {
			query := strings.ReplaceAll(pattern, "{region}", region)
			observations = append(observations, a.search(ctx, query, region)...)
		}
	}
	a.deps.logger().Info("press adapter collected",
		zap.Int("observations", len(observations)),
	)
	return observations, nil
}

func (a *PressAdapter) search(ctx context.Context, query, defaultRegion string) []intel.Observation {
	target := fmt.Sprintf(a.cfg.SearchURL, url.QueryEscape(query))
	doc, err := a.deps.Fetcher.Fetch(ctx, target)
	if err != nil {
		a.deps.logger().Warn("press search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	page, err := parseHTML(doc)
	if err != nil {
		a.deps.logger().Warn("press parse failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	var results []intel.Observation
	for _, item := range parseSearchResults(page, 10) {
		combined := item.Title + " " + item.Snippet
		name := ExtractEntityName(combined, a.cfg.Vendor, a.deps.reject())
		if a.deps.reject()(name) {
			continue
		}
		tags := DetectTags(combined, a.cfg.Vocabulary)
		if len(tags) == 0 && !containsFold(combined, a.cfg.Vendor) {
			continue
		}
		results = append(results, intel.Observation{
			EntityName:   name,
			Region:       InferRegion(combined, a.cfg.RegionHints, defaultRegion),
			Attributes:   tags,
			Kind:         intel.KindAnnouncement,
			Confidence:   intel.ConfidenceHigh,
			SourceLabel:  "Press Release",
			ReferenceURL: item.Link,
			Excerpt:      excerpt(item.Title),
			ObservedAt:   a.deps.Clock.Now(),
		})
	}
	return results
}
