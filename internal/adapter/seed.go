package adapter

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/signalfold/signalfold/internal/intel"
)

// SeedEntry is one curated record in the seed file.
type SeedEntry struct {
	Name       string   `yaml:"name"`
	Region     string   `yaml:"region"`
	Attributes []string `yaml:"attributes"`
	Category   string   `yaml:"category"`
}

type seedFile struct {
	Entities []SeedEntry `yaml:"entities"`
}

// SeedAdapter injects a curated seed list as high-confidence baseline
// observations. It does no network work.
type SeedAdapter struct {
	path   string
	clock  intel.Clock
	logger *zap.Logger
}

// NewSeedAdapter builds the adapter for the given YAML seed file.
func NewSeedAdapter(path string, clk intel.Clock, logger *zap.Logger) *SeedAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedAdapter{path: path, clock: clk, logger: logger}
}

// Name implements intel.SourceAdapter.
func (a *SeedAdapter) Name() string { return "seed" }

// Collect loads the seed file and emits one reference observation per
// entry. Entries without a name are skipped.
func (a *SeedAdapter) Collect(_ context.Context) ([]intel.Observation, error) {
	raw, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	observations := make([]intel.Observation, 0, len(file.Entities))
	for _, entry := range file.Entities {
		if entry.Name == "" {
			continue
		}
		observations = append(observations, intel.Observation{
			EntityName:  entry.Name,
			Region:      entry.Region,
			Attributes:  entry.Attributes,
			Category:    entry.Category,
			Kind:        intel.KindReference,
			Confidence:  intel.ConfidenceHigh,
			SourceLabel: "Curated Seed List",
			Excerpt:     excerpt(fmt.Sprintf("Known entity - %s", orUnknown(entry.Category))),
			ObservedAt:  a.clock.Now(),
		})
	}
	a.logger.Info("seed adapter collected",
		zap.Int("observations", len(observations)),
	)
	return observations, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "uncategorized"
	}
	return s
}
