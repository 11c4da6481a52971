// Package main hosts the restaurant pipeline command.
//
// A run loads the next batch of restaurants from the bootstrap file and
// drives it through five phases in strict sequence: search turns each
// restaurant into candidate URLs, validate registers them in the frontier
// store with a priority, extract fetches the frontier head until the queue is
// empty, transform shapes a record per page and load writes the records to
// blob storage and optionally announces them on Pub/Sub.
//
// The frontier (domain, source, url and priority_queue tables) lives in
// Postgres or SQLite and survives between runs; the phase queues are in
// memory and do not. Configuration comes from an optional YAML file and
// PIPELINE_* environment variables, e.g. PIPELINE_DATABASE_DRIVER=postgres
// and PIPELINE_DATABASE_DSN.
//
// Usage:
//
//	pipeline run [--config f] [--interactive] [--batch-size n]
//	pipeline migrate
//	pipeline frontier status|peek|reprioritize URL P|drop URL
package main
