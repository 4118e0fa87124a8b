// Package memory contains an in-memory publisher for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalfold/signalfold/internal/intel"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Summaries returns just the run summaries among the recorded payloads,
// in publish order. The pipeline publishes one per run, so tests usually
// reach for this instead of unwrapping Messages themselves.
func (p *Publisher) Summaries() []intel.RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []intel.RunSummary
	for _, msg := range p.messages {
		if summary, ok := msg.Payload.(intel.RunSummary); ok {
			out = append(out, summary)
		}
	}
	return out
}
