package intel

import (
	"context"
	"time"
)

// Fetcher retrieves a remote document. Implementations absorb network-class
// failures (retries, blocking, fallbacks) internally; an error return means
// the target could not be retrieved by any strategy and the caller should
// treat it as zero observations, never as fatal.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (Document, error)
}

// SourceAdapter turns fetched documents from one information source into
// zero or more raw observations. Adapters hold no relationship to the
// fetcher beyond the injected capability interface.
type SourceAdapter interface {
	Name() string
	Collect(ctx context.Context) ([]Observation, error)
}

// BlobStore archives raw fetched documents and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// EntityStore persists a run summary and its ranked entity records.
type EntityStore interface {
	StoreRun(ctx context.Context, summary RunSummary, entities []EntityRecord) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for archive keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}
