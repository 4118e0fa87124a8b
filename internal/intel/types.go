package intel

import (
	"net/http"
	"time"
)

// EvidenceKind identifies what kind of proof an observation carries,
// independent of which adapter produced it. The set is closed: adapters
// map their findings onto one of these kinds.
type EvidenceKind string

// Evidence kinds recognized by the aggregator.
const (
	KindReference    EvidenceKind = "reference"
	KindAnnouncement EvidenceKind = "announcement"
	KindCaseStudy    EvidenceKind = "case-study"
	KindHiringSignal EvidenceKind = "hiring-signal"
	KindProcurement  EvidenceKind = "procurement"
	KindEventMention EvidenceKind = "event-mention"
)

// Valid reports whether the kind is one of the closed set.
func (k EvidenceKind) Valid() bool {
	switch k {
	case KindReference, KindAnnouncement, KindCaseStudy,
		KindHiringSignal, KindProcurement, KindEventMention:
		return true
	}
	return false
}

// Confidence is the ordinal quality of a single observation.
type Confidence string

// Confidence levels, ordered High > Medium > Low > unset.
const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Rank maps the confidence to an ordinal for comparisons. Unknown values
// rank below Low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// MaxExcerptRunes bounds Observation.Excerpt for human review.
const MaxExcerptRunes = 280

// Observation is one raw, unverified mention of an entity from one source
// event. It is immutable once created and consumed exactly once by the
// aggregator.
type Observation struct {
	EntityName   string       `json:"entity_name"`
	Region       string       `json:"region,omitempty"`
	Attributes   []string     `json:"attributes,omitempty"`
	Category     string       `json:"category,omitempty"`
	Kind         EvidenceKind `json:"evidence_kind"`
	Confidence   Confidence   `json:"confidence,omitempty"`
	SourceLabel  string       `json:"source_label"`
	ReferenceURL string       `json:"reference_url,omitempty"`
	Excerpt      string       `json:"excerpt,omitempty"`
	ObservedAt   time.Time    `json:"observed_at"`
}

// EntityRecord is the deduplicated, merged view of all observations
// sharing a canonical key. It is owned exclusively by the aggregator
// during the fold and exposed read-only afterward.
type EntityRecord struct {
	CanonicalKey     string         `json:"canonical_key"`
	DisplayName      string         `json:"display_name"`
	Region           string         `json:"region,omitempty"`
	Attributes       []string       `json:"attributes,omitempty"`
	Categories       []string       `json:"categories,omitempty"`
	EvidenceKinds    []EvidenceKind `json:"evidence_kinds"`
	Sources          []string       `json:"sources"`
	ObservationCount int            `json:"observation_count"`
	BestConfidence   Confidence     `json:"best_confidence,omitempty"`
	Score            int            `json:"corroboration_score"`
}

// FetchVia records which retrieval path produced a document.
type FetchVia string

// Retrieval paths.
const (
	ViaDirect   FetchVia = "direct"
	ViaHeadless FetchVia = "headless"
	ViaCache    FetchVia = "cache"
	ViaSearch   FetchVia = "search"
)

// Document is the result of a successful fetch.
type Document struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Retrieved  time.Time
	Via        FetchVia
}

// RunSummary describes one completed pipeline run.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	Started       time.Time `json:"started_at"`
	Finished      time.Time `json:"finished_at"`
	Sources       []string  `json:"sources"`
	RawCount      int       `json:"raw_observation_count"`
	EntityCount   int       `json:"entity_count"`
	FailedSources []string  `json:"failed_sources,omitempty"`
}
