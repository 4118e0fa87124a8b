package adapter

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/intel"
)

// EventsConfig drives the conference-agenda adapter.
type EventsConfig struct {
	// SearchURL is a template with one %s verb for the escaped query.
	SearchURL string
	Queries   []string
	// Vendor gates results: an agenda line without this term is noise.
	Vendor        string
	Vocabulary    []string
	RegionHints   []RegionHint
	DefaultRegion string
}

// EventsAdapter searches conference agendas for speakers from tracked
// organizations. Speaker affiliations are indirect, so hits emit Medium
// confidence.
type EventsAdapter struct {
	cfg  EventsConfig
	deps Deps
}

// NewEventsAdapter builds the adapter.
func NewEventsAdapter(cfg EventsConfig, deps Deps) *EventsAdapter {
	return &EventsAdapter{cfg: cfg, deps: deps}
}

// Name implements intel.SourceAdapter.
func (a *EventsAdapter) Name() string { return "events" }

// Collect runs every configured agenda query.
func (a *EventsAdapter) Collect(ctx context.Context) ([]intel.Observation, error) {
	var observations []intel.Observation
	for _, query := range a.cfg.Queries {
		observations = append(observations, a.search(ctx, query)...)
	}
	a.deps.logger().Info("events adapter collected",
		zap.Int("observations", len(observations)),
	)
	return observations, nil
}

func (a *EventsAdapter) search(ctx context.Context, query string) []intel.Observation {
	target := fmt.Sprintf(a.cfg.SearchURL, url.QueryEscape(query))
	doc, err := a.deps.Fetcher.Fetch(ctx, target)
	if err != nil {
		a.deps.logger().Warn("events search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	page, err := parseHTML(doc)
	if err != nil {
		a.deps.logger().Warn("events parse failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	var results []intel.Observation
	for _, item := range parseSearchResults(page, 10) {
		combined := item.Title + " " + item.Snippet
		if a.cfg.Vendor != "" && !containsFold(combined, a.cfg.Vendor) {
			continue
		}
		name := ExtractSpeakerOrg(combined, a.deps.reject())
		if a.deps.reject()(name) {
			continue
		}
		results = append(results, intel.Observation{
			EntityName:   name,
			Region:       InferRegion(combined, a.cfg.RegionHints, a.cfg.DefaultRegion),
			Attributes:   DetectTags(combined, a.cfg.Vocabulary),
			Kind:         intel.KindEventMention,
			Confidence:   intel.ConfidenceMedium,
			SourceLabel:  "Conference",
			ReferenceURL: item.Link,
			Excerpt:      excerpt(item.Title),
			ObservedAt:   a.deps.Clock.Now(),
		})
	}
	return results
}
