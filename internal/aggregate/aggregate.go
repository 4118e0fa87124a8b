// Package aggregate folds raw observations into ranked entity records,
// tracking which distinct kinds of evidence corroborate each entity.
package aggregate

import (
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/intel"
	"github.com/signalfold/signalfold/internal/normalize"
)

// minKeyLength drops canonical keys too short to be meaningful.
const minKeyLength = 3

// maxDisplaySources caps the first-seen source list on each record.
const maxDisplaySources = 6

// Config controls the fold.
type Config struct {
	// GenericRegions are broad multi-country labels (for example an
	// economic bloc) that a specific region may overwrite during merge.
	GenericRegions []string
}

// Aggregator performs the eager fold. It is not safe for concurrent use;
// collect observations first, then fold once.
type Aggregator struct {
	norm    *normalize.Normalizer
	excl    *normalize.Exclusions
	generic map[string]struct{}
	logger  *zap.Logger
}

// New constructs an Aggregator.
func New(norm *normalize.Normalizer, excl *normalize.Exclusions, cfg Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	generic := make(map[string]struct{}, len(cfg.GenericRegions))
	for _, r := range cfg.GenericRegions {
		generic[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return &Aggregator{
		norm:    norm,
		excl:    excl,
		generic: generic,
		logger:  logger,
	}
}

// accumulator is the mutable merge state for one canonical key.
type accumulator struct {
	displayName string
	region      string
	attributes  map[string]struct{}
	categories  map[string]struct{}
	kinds       map[intel.EvidenceKind]struct{}
	sources     []string
	count       int
	best        intel.Confidence
	firstSeen   int
}

// Fold consumes the whole observation stream and produces ranked entity
// records. Excluded and too-short names are dropped silently; they are
// expected noise, not failures. The exclusion predicate runs again on each
// merged canonical key because a key assembled from fragments can match an
// exclusion pattern even though no single input did.
func (a *Aggregator) Fold(observations []intel.Observation) []intel.EntityRecord {
	accs := make(map[string]*accumulator)
	order := 0

	for _, obs := range observations {
		if !obs.Kind.Valid() {
			continue
		}
		if a.excl.Match(obs.EntityName) {
			continue
		}
		key := a.norm.Key(obs.EntityName)
		if utf8.RuneCountInString(key) < minKeyLength {
			continue
		}
		acc, ok := accs[key]
		if !ok {
			acc = &accumulator{
				attributes: make(map[string]struct{}),
				categories: make(map[string]struct{}),
				kinds:      make(map[intel.EvidenceKind]struct{}),
				firstSeen:  order,
			}
			accs[key] = acc
			order++
		}
		a.merge(acc, obs)
	}

	records := make([]intel.EntityRecord, 0, len(accs))
	for key, acc := range accs {
		if a.excl.Match(key) {
			a.logger.Debug("entity dropped by final exclusion pass", zap.String("key", key))
			continue
		}
		records = append(records, a.seal(key, acc))
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		if records[i].ObservationCount != records[j].ObservationCount {
			return records[i].ObservationCount > records[j].ObservationCount
		}
		return accs[records[i].CanonicalKey].firstSeen < accs[records[j].CanonicalKey].firstSeen
	})

	a.logger.Info("fold complete",
		zap.Int("observations", len(observations)),
		zap.Int("entities", len(records)),
	)
	return records
}

func (a *Aggregator) merge(acc *accumulator, obs intel.Observation) {
	if utf8.RuneCountInString(obs.EntityName) > utf8.RuneCountInString(acc.displayName) {
		acc.displayName = strings.TrimSpace(obs.EntityName)
	}
	acc.region = a.mergeRegion(acc.region, obs.Region)
	for _, attr := range obs.Attributes {
		if attr = strings.TrimSpace(attr); attr != "" {
			acc.attributes[attr] = struct{}{}
		}
	}
	if cat := strings.TrimSpace(obs.Category); cat != "" {
		acc.categories[cat] = struct{}{}
	}
	acc.kinds[obs.Kind] = struct{}{}
	if obs.SourceLabel != "" && !containsString(acc.sources, obs.SourceLabel) {
		acc.sources = append(acc.sources, obs.SourceLabel)
	}
	acc.count++
	if obs.Confidence.Rank() > acc.best.Rank() {
		acc.best = obs.Confidence
	}
}

// mergeRegion sets the region if empty, or upgrades a generic placeholder
// to a specific label. A specific region is never downgraded.
func (a *Aggregator) mergeRegion(current, incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return current
	}
	if current == "" {
		return incoming
	}
	if a.isGeneric(current) && !a.isGeneric(incoming) {
		return incoming
	}
	return current
}

func (a *Aggregator) isGeneric(region string) bool {
	_, ok := a.generic[strings.ToLower(region)]
	return ok
}

func (a *Aggregator) seal(key string, acc *accumulator) intel.EntityRecord {
	sources := acc.sources
	if len(sources) > maxDisplaySources {
		sources = sources[:maxDisplaySources]
	}
	return intel.EntityRecord{
		CanonicalKey:     key,
		DisplayName:      acc.displayName,
		Region:           acc.region,
		Attributes:       sortedSet(acc.attributes),
		Categories:       sortedSet(acc.categories),
		EvidenceKinds:    sortedKinds(acc.kinds),
		Sources:          append([]string(nil), sources...),
		ObservationCount: acc.count,
		BestConfidence:   acc.best,
		Score:            len(acc.kinds),
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortedKinds(set map[intel.EvidenceKind]struct{}) []intel.EvidenceKind {
	out := make([]intel.EvidenceKind, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
