// Package phases holds the reference phase functions the orchestrator runs:
// search turns a restaurant into candidate URLs, validate registers them in
// the frontier, extract fetches the frontier head, transform shapes a record
// and load persists it.
package phases
