// Package intel defines the core types and capability interfaces shared
// across the signalfold pipeline: observations, entity records, documents,
// and the contracts between fetchers, source adapters, and the aggregator.
package intel
