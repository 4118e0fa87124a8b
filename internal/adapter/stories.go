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

// StoriesConfig drives the vendor customer-stories adapter.
type StoriesConfig struct {
	// StoriesURL is a template with one %s verb for the escaped region
	// query, pointing at the vendor's customer-stories index.
	StoriesURL string
	// NewsURL is a template with one %s verb for the escaped query,
	// pointing at the vendor's newsroom search.
	NewsURL string
	// Origin resolves relative story links, e.g. "https://www.vendor.com".
	Origin        string
	RegionQueries []string
	NewsQueries   []string
	Vendor        string
	Vocabulary    []string
	RegionHints   []RegionHint
	DefaultRegion string
}

// StoriesAdapter harvests the vendor's own customer stories and newsroom.
// Stories name the customer directly, so both streams emit High
// confidence.
type StoriesAdapter struct {
	cfg  StoriesConfig
	deps Deps
}

// NewStoriesAdapter builds the adapter.
func NewStoriesAdapter(cfg StoriesConfig, deps Deps) *StoriesAdapter {
	return &StoriesAdapter{cfg: cfg, deps: deps}
}

// Name implements intel.SourceAdapter.
func (a *StoriesAdapter) Name() string { return "stories" }

// Collect walks the configured region and newsroom queries. Individual
// fetch failures are logged and skipped; the adapter always returns
// whatever it managed to gather.
func (a *StoriesAdapter) Collect(ctx context.Context) ([]intel.Observation, error) {
	var observations []intel.Observation
	for _, region := range a.cfg.RegionQueries {
		observations = append(observations, a.collectStories(ctx, region)...)
	}
	for _, query := range a.cfg.NewsQueries {
		observations = append(observations, a.collectNews(ctx, query)...)
	}
	a.deps.logger().Info("stories adapter collected",
		zap.Int("observations", len(observations)),
	)
	return observations, nil
}

func (a *StoriesAdapter) collectStories(ctx context.Context, region string) []intel.Observation {
	if a.cfg.StoriesURL == "" {
		return nil
	}
	target := fmt.Sprintf(a.cfg.StoriesURL, url.QueryEscape(region))
	doc, err := a.deps.Fetcher.Fetch(ctx, target)
	if err != nil {
		a.deps.logger().Warn("stories fetch failed", zap.String("url", target), zap.Error(err))
		return nil
	}
	page, err := parseHTML(doc)
	if err != nil {
		a.deps.logger().Warn("stories parse failed", zap.String("url", target), zap.Error(err))
		return nil
	}

	var results []intel.Observation
	page.Find("[class*='card'], [class*='story'], article, .customer-story").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		title := strings.TrimSpace(card.Find("h2, h3, h4, [class*='title']").First().Text())
		if title == "" {
			return true
		}
		name := ExtractEntityName(title, a.cfg.Vendor, a.deps.reject())
		if a.deps.reject()(name) {
			return true
		}
		inferred := InferRegion(title+" "+card.Text(), a.cfg.RegionHints, "")
		if inferred == "" {
			return true
		}
		link, _ := card.Find("a[href]").First().Attr("href")
		if link != "" && !strings.HasPrefix(link, "http") {
			link = a.cfg.Origin + link
		}
		results = append(results, intel.Observation{
			EntityName:   name,
			Region:       inferred,
			Attributes:   DetectTags(title, a.cfg.Vocabulary),
			Kind:         intel.KindCaseStudy,
			Confidence:   intel.ConfidenceHigh,
			SourceLabel:  "Customer Stories",
			ReferenceURL: link,
			Excerpt:      excerpt(title),
			ObservedAt:   a.deps.Clock.Now(),
		})
		return len(results) < 20
	})
	return results
}

func (a *StoriesAdapter) collectNews(ctx context.Context, query string) []intel.Observation {
	if a.cfg.NewsURL == "" {
		return nil
	}
	target := fmt.Sprintf(a.cfg.NewsURL, url.QueryEscape(query))
	doc, err := a.deps.Fetcher.Fetch(ctx, target)
	if err != nil {
		a.deps.logger().Warn("newsroom fetch failed", zap.String("url", target), zap.Error(err))
		return nil
	}
	page, err := parseHTML(doc)
	if err != nil {
		a.deps.logger().Warn("newsroom parse failed", zap.String("url", target), zap.Error(err))
		return nil
	}

	var results []intel.Observation
	page.Find("article, .post-item, .search-result-item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		titleEl := item.Find("h2 a, h3 a, .entry-title a").First()
		title := strings.TrimSpace(titleEl.Text())
		if title == "" {
			return true
		}
		name := ExtractEntityName(title, a.cfg.Vendor, a.deps.reject())
		if a.deps.reject()(name) {
			return true
		}
		link, _ := titleEl.Attr("href")
		results = append(results, intel.Observation{
			EntityName:   name,
			Region:       InferRegion(title, a.cfg.RegionHints, a.cfg.DefaultRegion),
			Attributes:   DetectTags(title, a.cfg.Vocabulary),
			Kind:         intel.KindAnnouncement,
			Confidence:   intel.ConfidenceHigh,
			SourceLabel:  "Vendor Newsroom",
			ReferenceURL: link,
			Excerpt:      excerpt(title),
			ObservedAt:   a.deps.Clock.Now(),
		})
		return len(results) < 10
	})
	return results
}
