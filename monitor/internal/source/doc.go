// Package source fetches point-in-time metric snapshots for the monitor.
// Each Source returns a compute.Snapshot that has not been validated yet;
// validation belongs to compute.Analyze.
//
// Implemented sources: backend (backend.go) reads the system status and
// endpoint performance JSON documents of an application backend,
// prometheus (prometheus.go) maps a text exposition onto a snapshot, and
// file (file.go) reads a snapshot document from disk. Factory:
// New(config.Source) returns the correct Source.
//
// Authentication (API key, bearer token, basic) is handled by the shared
// authRoundTripper in source.go; HTTP sources receive a pre-configured
// *http.Client from New().
package source
