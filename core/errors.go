// Copyright 2026 Corvid Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Error taxonomy. Per-record errors are recoverable and collected into the
// ingestion report; only ErrEmptySourceText is fatal to a source ingestion.
var (
	// ErrIndexing indicates malformed or ambiguous heading numbering. The
	// indexer falls back to placeholder sections and records a warning.
	ErrIndexing = errors.New("section indexing anomaly")

	// ErrResolution indicates a char interval falling outside all known
	// section ranges for the source. The record is attached to the synthetic
	// unsectioned root and flagged.
	ErrResolution = errors.New("char interval outside known section ranges")

	// ErrReferentialIntegrity indicates a relationship pointing at a
	// nonexistent entity, or at a foreign entity for a same-source-only
	// category. The single relationship is rejected.
	ErrReferentialIntegrity = errors.New("relationship referential integrity violation")

	// ErrEmbeddingMismatch indicates a vector whose dimension differs from
	// the store's. The single vector is rejected and the record stays on
	// lexical-only indexing.
	ErrEmbeddingMismatch = errors.New("embedding dimension mismatch")

	// ErrAliasMergeConflict indicates a concurrent cluster mutation race.
	// It is retried internally and never surfaced to callers.
	ErrAliasMergeConflict = errors.New("concurrent alias cluster mutation")

	// ErrEmptySourceText indicates zero-length raw text. Source-fatal.
	ErrEmptySourceText = errors.New("source text is empty")

	// ErrInvalidEntity indicates an entity record failed validation.
	ErrInvalidEntity = errors.New("invalid entity record")

	// ErrInvalidRelationship indicates a relationship record failed validation.
	ErrInvalidRelationship = errors.New("invalid relationship record")

	// ErrUnknownCategory indicates a category name absent from the
	// configured taxonomy.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInvalidInterval indicates a char interval with end <= start or
	// negative offsets.
	ErrInvalidInterval = errors.New("invalid char interval")
)
