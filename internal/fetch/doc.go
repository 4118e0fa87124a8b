// Package fetch implements the resilient retrieval layer: a throttled,
// identity-rotating HTTP fetcher with retry-with-backoff, a process-wide
// blocked-origin circuit breaker, cache/search fallback strategies, and an
// optional headless escalation for pages that ship only a JS shell.
package fetch
