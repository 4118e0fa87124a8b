package adapter

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/intel"
)

// ProcurementConfig drives the tender-search adapter.
type ProcurementConfig struct {
	// SearchURL is a template with one %s verb for the escaped query.
	SearchURL string
	Queries   []RegionQueries
	// RequireTerms keeps only titles mentioning at least one of these.
	RequireTerms []string
	Vocabulary   []string
	// Category stamps every observation; tenders come from public bodies.
	Category string
}

// ProcurementAdapter searches for public tenders that name the issuing
// organization. Titles are noisy, so hits emit Medium confidence.
type ProcurementAdapter struct {
	cfg  ProcurementConfig
	deps Deps
}

// NewProcurementAdapter builds the adapter.
func NewProcurementAdapter(cfg ProcurementConfig, deps Deps) *ProcurementAdapter {
	return &ProcurementAdapter{cfg: cfg, deps: deps}
}

// Name implements intel.SourceAdapter.
func (a *ProcurementAdapter) Name() string { return "procurement" }

// Collect runs every configured tender query.
func (a *ProcurementAdapter) Collect(ctx context.Context) ([]intel.Observation, error) {
	var observations []intel.Observation
	for _, group := range a.cfg.Queries {
		for _, query := range group.Queries {
			observations = append(observations, a.search(ctx, query, group.Region)...)
		}
	}
	a.deps.logger().Info("procurement adapter collected",
		zap.Int("observations", len(observations)),
	)
	return observations, nil
}

func (a *ProcurementAdapter) search(ctx context.Context, query, region string) []intel.Observation {
	target := fmt.Sprintf(a.cfg.SearchURL, url.QueryEscape(query))
	doc, err := a.deps.Fetcher.Fetch(ctx, target)
	if err != nil {
		a.deps.logger().Warn("procurement search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	page, err := parseHTML(doc)
	if err != nil {
		a.deps.logger().Warn("procurement parse failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	var results []intel.Observation
	for _, item := range parseSearchResults(page, 10) {
		if !a.relevant(item.Title) {
			continue
		}
		name := ExtractTenderOrg(item.Title)
		if a.deps.reject()(name) {
			continue
		}
		results = append(results, intel.Observation{
			EntityName:   name,
			Region:       region,
			Attributes:   DetectTags(item.Title, a.cfg.Vocabulary),
			Category:     a.cfg.Category,
			Kind:         intel.KindProcurement,
			Confidence:   intel.ConfidenceMedium,
			SourceLabel:  "Procurement",
			ReferenceURL: item.Link,
			Excerpt:      excerpt(item.Title),
			ObservedAt:   a.deps.Clock.Now(),
		})
	}
	return results
}

func (a *ProcurementAdapter) relevant(title string) bool {
	if len(a.cfg.RequireTerms) == 0 {
		return true
	}
	for _, term := range a.cfg.RequireTerms {
		if containsFold(title, term) {
			return true
		}
	}
	return false
}
