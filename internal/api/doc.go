// Package api exposes the HTTP interface for the scan service: health
// probes, Prometheus metrics and read-only access to the latest entity
// inventory.
package api
