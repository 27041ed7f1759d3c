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

// Package sectra assembles the sectioned-corpus knowledge store: badger-backed
// repositories, the in-memory alias resolver seeded from storage, the
// ingestion pipeline and the hybrid searcher, behind one Store handle.
package sectra

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/corvid-labs/sectra/ai"
	"github.com/corvid-labs/sectra/alias"
	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/ingestion"
	"github.com/corvid-labs/sectra/search"
	"github.com/corvid-labs/sectra/sectionindex"
	"github.com/corvid-labs/sectra/storage"
	"github.com/corvid-labs/sectra/storage/badger"
)

// Store is the assembled knowledge store. Writes go through the ingestion
// pipeline, reads through the repositories and the per-source section tree
// cache. A Store is safe for concurrent use.
type Store struct {
	backend    *badger.Backend
	repos      *badger.Repositories
	resolver   *alias.Resolver
	pipeline   *ingestion.Pipeline
	searcher   *search.Searcher
	categories *core.CategoryConfig
	logger     *slog.Logger

	mu    sync.RWMutex
	trees map[core.ID]*sectionindex.Tree
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	inMemory     bool
	logger       *slog.Logger
	categories   *core.CategoryConfig
	aliasOpts    []alias.Option
	pipelineOpts []ingestion.Option
	searchOpts   []search.Option
}

// WithInMemory opens the backend in memory, for tests and tooling. The path
// argument to Open is ignored.
func WithInMemory() StoreOption {
	return func(o *storeOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// WithCategoryConfig replaces the default category taxonomy.
func WithCategoryConfig(cfg *core.CategoryConfig) StoreOption {
	return func(o *storeOptions) {
		if cfg != nil {
			o.categories = cfg
		}
	}
}

// WithAliasOptions forwards options to the alias resolver.
func WithAliasOptions(opts ...alias.Option) StoreOption {
	return func(o *storeOptions) {
		o.aliasOpts = append(o.aliasOpts, opts...)
	}
}

// WithPipelineOptions forwards options to the ingestion pipeline.
func WithPipelineOptions(opts ...ingestion.Option) StoreOption {
	return func(o *storeOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// WithSearchOptions forwards options to the searcher.
func WithSearchOptions(opts ...search.Option) StoreOption {
	return func(o *storeOptions) {
		o.searchOpts = append(o.searchOpts, opts...)
	}
}

// Open opens (or creates) a store at the given path, seeds the alias
// resolver from persisted clusters, and wires the pipeline and searcher.
func Open(filePath string, opts ...StoreOption) (*Store, error) {
	options := &storeOptions{
		logger:     slog.Default(),
		categories: core.DefaultCategoryConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	repos, err := badger.NewRepositories(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	resolver := alias.NewResolver(append(
		[]alias.Option{alias.WithLogger(options.logger)}, options.aliasOpts...)...)
	clusters, err := repos.Aliases.GetAllAliasClusters(context.Background())
	if err != nil {
		backend.Close()
		return nil, err
	}
	resolver.Load(clusters)

	pipeline, err := ingestion.NewPipeline(
		repos.Sources, repos.Entities, repos.Relationships, repos.Search, resolver,
		append([]ingestion.Option{
			ingestion.WithLogger(options.logger),
			ingestion.WithCategoryConfig(options.categories),
		}, options.pipelineOpts...)...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(
		repos.Entities, repos.Relationships, repos.Search,
		append([]search.Option{search.WithLogger(options.logger)}, options.searchOpts...)...)
	if err != nil {
		pipeline.Release()
		backend.Close()
		return nil, err
	}

	return &Store{
		backend:    backend,
		repos:      repos,
		resolver:   resolver,
		pipeline:   pipeline,
		searcher:   searcher,
		categories: options.categories,
		logger:     options.logger.With("component", "store"),
		trees:      make(map[core.ID]*sectionindex.Tree),
	}, nil
}

// Close releases the pipeline's worker pool and closes the backend.
func (s *Store) Close() error {
	s.pipeline.Release()
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Repositories exposes the underlying repository set for direct reads.
func (s *Store) Repositories() *badger.Repositories {
	return s.repos
}

// Resolver exposes the alias resolver for query-time canonicalization.
func (s *Store) Resolver() *alias.Resolver {
	return s.resolver
}

// IngestSource indexes, enriches and persists one source, replacing any
// previous version of it. See ingestion.Pipeline.IngestSource.
func (s *Store) IngestSource(ctx context.Context, desc ingestion.SourceDescriptor, text string, records *ai.ExtractionBatch) (*ingestion.Report, error) {
	report, err := s.pipeline.IngestSource(ctx, desc, text, records)
	s.invalidateTree(core.SourceIDFromKey(desc.Key))
	return report, err
}

// IngestAll runs jobs for distinct sources concurrently over the pipeline's
// worker pool.
func (s *Store) IngestAll(ctx context.Context, jobs []ingestion.Job) ([]*ingestion.Report, error) {
	reports, err := s.pipeline.IngestAll(ctx, jobs)
	for _, job := range jobs {
		s.invalidateTree(core.SourceIDFromKey(job.Descriptor.Key))
	}
	return reports, err
}

// RemoveSource deletes a source and every record derived from it, retracting
// its alias usage.
func (s *Store) RemoveSource(ctx context.Context, key string) error {
	if err := s.pipeline.RemoveSource(ctx, key); err != nil {
		return err
	}
	s.invalidateTree(core.SourceIDFromKey(key))
	return nil
}

// AttachEmbeddings stores externally computed vectors on existing records.
// See ingestion.Pipeline.AttachEmbeddings.
func (s *Store) AttachEmbeddings(ctx context.Context, refs []ingestion.EmbeddingRef) (*ingestion.Report, error) {
	return s.pipeline.AttachEmbeddings(ctx, refs)
}

// Search returns up to k records ranked by fused lexical and vector scores.
func (s *Store) Search(ctx context.Context, query string, queryVector []float32, k int) ([]*core.SearchResult, error) {
	return s.searcher.Search(ctx, query, queryVector, k)
}

// SearchWithMonitor is Search with stage callbacks for observability.
func (s *Store) SearchWithMonitor(ctx context.Context, query string, queryVector []float32, k int, monitor search.RetrievalMonitor) ([]*core.SearchResult, error) {
	return s.searcher.SearchWithMonitor(ctx, query, queryVector, k, monitor)
}

// SectionTree returns the section tree of a source, rebuilt from storage on
// first access and cached until the source changes.
func (s *Store) SectionTree(ctx context.Context, sourceID core.ID) (*sectionindex.Tree, error) {
	s.mu.RLock()
	tree := s.trees[sourceID]
	s.mu.RUnlock()
	if tree != nil {
		return tree, nil
	}

	sections, err := s.repos.Sources.GetSections(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: source %d has no sections", storage.ErrNotFound, sourceID)
	}
	tree, err = sectionindex.NewTree(sections)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if cached := s.trees[sourceID]; cached != nil {
		tree = cached
	} else {
		s.trees[sourceID] = tree
	}
	s.mu.Unlock()
	return tree, nil
}

// ResolveContext maps a char interval of a source to its enclosing section
// path, root to leaf. The path is flagged when the interval crosses the leaf
// boundary or starts outside all known ranges.
func (s *Store) ResolveContext(ctx context.Context, sourceID core.ID, start, end int) (*core.SectionPath, error) {
	tree, err := s.SectionTree(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return tree.Resolve(start, end)
}

// EntitiesInSection returns the entities resolved to the section with the
// given path, in batch order. It does not descend into subsections.
func (s *Store) EntitiesInSection(ctx context.Context, sourceID core.ID, sectionPath string) ([]*core.Entity, error) {
	tree, err := s.SectionTree(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	for _, sec := range tree.Sections() {
		if sec.Path == sectionPath {
			return s.repos.Entities.GetEntitiesBySection(ctx, sourceID, sec.Id)
		}
	}
	return nil, fmt.Errorf("%w: no section %q in source %d", storage.ErrNotFound, sectionPath, sourceID)
}

// SectionRange is the record set scoped to a section subtree.
type SectionRange struct {
	Sections      []*core.Section
	Entities      []*core.Entity
	Relationships []*core.Relationship
}

// QueryBySectionRange returns the sections whose path extends the given
// prefix, with their entities and relationships. An empty prefix selects the
// whole source. The prefix matches whole path segments: "4 Division I"
// selects that section and its subtree, never "4 Division II".
func (s *Store) QueryBySectionRange(ctx context.Context, sourceID core.ID, pathPrefix string) (*SectionRange, error) {
	tree, err := s.SectionTree(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	out := &SectionRange{}
	matched := make(map[core.ID]bool)
	for _, sec := range tree.Sections() {
		if !pathMatches(sec.Path, pathPrefix) {
			continue
		}
		matched[sec.Id] = true
		out.Sections = append(out.Sections, sec)
		ents, err := s.repos.Entities.GetEntitiesBySection(ctx, sourceID, sec.Id)
		if err != nil {
			return nil, err
		}
		out.Entities = append(out.Entities, ents...)
	}

	if len(matched) > 0 {
		rels, err := s.repos.Relationships.GetRelationshipsBySource(ctx, sourceID)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			if matched[rel.SectionId] {
				out.Relationships = append(out.Relationships, rel)
			}
		}
	}
	return out, nil
}

// pathMatches reports whether path equals the prefix or lies in its subtree.
func pathMatches(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+" > ")
}

// Sources returns all sources, ordered by key.
func (s *Store) Sources(ctx context.Context) ([]*core.Source, error) {
	return s.repos.Sources.GetSources(ctx)
}

// RecentSources returns the N most recently ingested sources, most recent
// first.
func (s *Store) RecentSources(ctx context.Context, limit int) ([]*core.Source, error) {
	return s.repos.Sources.GetRecentSources(ctx, limit)
}

// FindSourceByKey retrieves a source by its caller-supplied key.
func (s *Store) FindSourceByKey(ctx context.Context, key string) (*core.Source, error) {
	return s.repos.Sources.FindSourceByKey(ctx, key)
}

// SourceStats summarizes one source's record counts.
type SourceStats struct {
	Source        *core.Source
	Sections      int
	Entities      int
	Relationships int
}

// Stats returns the record counts of the source with the given key.
func (s *Store) Stats(ctx context.Context, key string) (*SourceStats, error) {
	src, err := s.repos.Sources.FindSourceByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	sections, err := s.repos.Sources.GetSections(ctx, src.Id)
	if err != nil {
		return nil, err
	}
	ents, err := s.repos.Entities.GetEntitiesBySource(ctx, src.Id)
	if err != nil {
		return nil, err
	}
	rels, err := s.repos.Relationships.GetRelationshipsBySource(ctx, src.Id)
	if err != nil {
		return nil, err
	}
	return &SourceStats{
		Source:        src,
		Sections:      len(sections),
		Entities:      len(ents),
		Relationships: len(rels),
	}, nil
}

// RenormalizeAliases rebuilds every alias cluster under the resolver's
// current normalization settings and rewrites entity canonical ids and
// per-source usage lists to match. This is the one operation allowed to
// reassign canonical ids; cluster growth during ingestion never does.
func (s *Store) RenormalizeAliases(ctx context.Context) error {
	clusters, removed := s.resolver.Renormalize()
	if err := s.repos.Aliases.ReplaceAllAliasClusters(ctx, clusters); err != nil {
		return err
	}
	s.logger.Info("alias clusters rewritten", "clusters", len(clusters), "removed", len(removed))

	sources, err := s.repos.Sources.GetSources(ctx)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if err := s.renormalizeSource(ctx, src.Id); err != nil {
			return fmt.Errorf("renormalizing source %q: %w", src.Key, err)
		}
	}
	return nil
}

// renormalizeSource re-resolves one source's normalizable entities against
// the rebuilt cluster set and rewrites its persisted usage list.
func (s *Store) renormalizeSource(ctx context.Context, sourceID core.ID) error {
	ents, err := s.repos.Entities.GetEntitiesBySource(ctx, sourceID)
	if err != nil {
		return err
	}

	var changed []*core.Entity
	counts := make(map[core.ID]map[string]int)
	for _, ent := range ents {
		if !s.categories.Normalizable(ent.Category) {
			continue
		}
		id, ok := s.resolver.Lookup(ent.Category, ent.Text)
		if !ok {
			id = 0
		}
		if id != ent.CanonicalId {
			ent.CanonicalId = id
			changed = append(changed, ent)
		}
		if id != 0 {
			bySurface := counts[id]
			if bySurface == nil {
				bySurface = make(map[string]int)
				counts[id] = bySurface
			}
			bySurface[ent.Text]++
		}
	}

	if len(changed) > 0 {
		if _, err := s.repos.Entities.UpdateEntities(ctx, changed...); err != nil {
			return err
		}
	}

	var usage []core.AliasUsage
	for id, bySurface := range counts {
		for surface, count := range bySurface {
			usage = append(usage, core.AliasUsage{ClusterId: id, Surface: surface, Count: count})
		}
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].ClusterId != usage[j].ClusterId {
			return usage[i].ClusterId < usage[j].ClusterId
		}
		return usage[i].Surface < usage[j].Surface
	})
	return s.repos.Sources.PutAliasUsage(ctx, sourceID, usage)
}

func (s *Store) invalidateTree(sourceID core.ID) {
	s.mu.Lock()
	delete(s.trees, sourceID)
	s.mu.Unlock()
}
