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

package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/corvid-labs/sectra/ai"
	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/ingestion"
	"github.com/corvid-labs/sectra/storage"
)

// Config holds configuration for the embedding backfill.
type Config struct {
	// BatchSize is the number of records sent to the embedder per call
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedder call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Attacher persists vectors onto existing records with per-record dimension
// checking. *ingestion.Pipeline satisfies it.
type Attacher interface {
	AttachEmbeddings(ctx context.Context, refs []ingestion.EmbeddingRef) (*ingestion.Report, error)
}

// Reembedder walks every stored entity and relationship, computes vectors
// through an ai.Embedder, and attaches them to the store.
type Reembedder struct {
	sources       storage.SourceRepository
	entities      storage.EntityRepository
	relationships storage.RelationshipRepository
	attacher      Attacher
	embedder      ai.Embedder
	config        *Config
	progress      io.Writer
}

// NewReembedder creates a reembedder over the given repositories.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(
	sources storage.SourceRepository,
	entities storage.EntityRepository,
	relationships storage.RelationshipRepository,
	attacher Attacher,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) (*Reembedder, error) {
	if sources == nil || entities == nil || relationships == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if attacher == nil {
		return nil, ErrAttacherRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reembedder{
		sources:       sources,
		entities:      entities,
		relationships: relationships,
		attacher:      attacher,
		embedder:      embedder,
		config:        config,
		progress:      progress,
	}, nil
}

// item is one record awaiting a vector.
type item struct {
	kind core.ResultKind
	id   core.ID
	text string
}

// Run embeds every stored record and attaches the vectors. Records the store
// rejects are counted, reported and skipped; only embedder or storage
// failures abort the run.
func (r *Reembedder) Run(ctx context.Context) error {
	items, err := r.collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect records: %w", err)
	}

	total := len(items)
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in store (0 records)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting embedding of %d records (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	rejected := 0
	for start := 0; start < total; start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > total {
			end = total
		}
		batch := items[start:end]

		n, err := r.processBatch(ctx, batch)
		if err != nil {
			return err
		}
		rejected += n

		processed += len(batch)
		tracker.Update(processed)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Embedding complete. Processed %d records in %v (%.1f records/sec), %d rejected\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds(), rejected)
	return nil
}

// collect lists every record of every source, entities before relationships,
// in batch order.
func (r *Reembedder) collect(ctx context.Context) ([]item, error) {
	sources, err := r.sources.GetSources(ctx)
	if err != nil {
		return nil, err
	}

	var items []item
	for _, src := range sources {
		ents, err := r.entities.GetEntitiesBySource(ctx, src.Id)
		if err != nil {
			return nil, err
		}
		for _, ent := range ents {
			items = append(items, item{kind: core.KindEntity, id: ent.Id, text: ent.SearchText()})
		}

		rels, err := r.relationships.GetRelationshipsBySource(ctx, src.Id)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			items = append(items, item{kind: core.KindRelationship, id: rel.Id, text: rel.SearchText()})
		}
	}
	return items, nil
}

// processBatch embeds one batch with retry and attaches the vectors.
// Returns the number of records the store rejected.
func (r *Reembedder) processBatch(ctx context.Context, batch []item) (int, error) {
	texts := make([]string, len(batch))
	for i, it := range batch {
		texts[i] = it.text
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
	}

	refs := make([]ingestion.EmbeddingRef, len(batch))
	for i, it := range batch {
		refs[i] = ingestion.EmbeddingRef{Kind: it.kind, Id: it.id, Vector: vectors[i]}
	}
	report, err := r.attacher.AttachEmbeddings(ctx, refs)
	if err != nil {
		return 0, fmt.Errorf("failed to attach embeddings: %w", err)
	}
	return len(report.Rejected), nil
}
