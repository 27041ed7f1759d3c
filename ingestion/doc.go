// Package ingestion provides pipeline orchestration for source ingestion.
//
// The Pipeline type manages the ingestion workflow for one source document:
//   - Parsing the raw text into a section tree
//   - Resolving each extraction record's char interval to a section
//   - Canonicalizing surface forms of normalizable categories
//   - Building the lexical posting list
//   - Atomically replacing the source's previous version in storage
//
// Per-record failures (unknown category, bad interval, referential integrity)
// are collected into a Report and never abort the batch. Re-ingesting a
// source key fully supersedes its previous records, including its alias
// usage counts.
//
// IngestAll runs distinct sources concurrently on a worker pool; the same
// source key always serializes behind a per-source lock.
package ingestion
