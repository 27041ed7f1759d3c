package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/corvid-labs/sectra/ai"
	"github.com/corvid-labs/sectra/alias"
	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/search"
	"github.com/corvid-labs/sectra/sectionindex"
	"github.com/corvid-labs/sectra/storage"
	"github.com/panjf2000/ants/v2"
)

// maxAliasRetries bounds the optimistic retry loop around alias cluster
// commits. Conflicts only arise from concurrent ingestion of sources sharing
// a surface form, so contention is low and a handful of retries suffices.
const maxAliasRetries = 5

// Pipeline orchestrates source ingestion: section indexing, context
// resolution, alias canonicalization and the atomic replace write. One
// Pipeline serves all sources; ingestion of the same source id serializes,
// distinct sources proceed concurrently.
type Pipeline struct {
	sources       storage.SourceRepository
	entities      storage.EntityRepository
	relationships storage.RelationshipRepository
	searchRepo    storage.SearchRepository
	resolver      *alias.Resolver
	indexer       *sectionindex.Indexer
	categories    *core.CategoryConfig
	pool          *ants.Pool
	logger        *slog.Logger

	mu    sync.Mutex
	locks map[core.ID]*sync.Mutex // per-source writer locks
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for IngestAll.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithIndexer replaces the section indexer, e.g. to configure heading
// patterns for a corpus with unusual numbering.
func WithIndexer(indexer *sectionindex.Indexer) Option {
	return func(p *Pipeline) error {
		if indexer != nil {
			p.indexer = indexer
		}
		return nil
	}
}

// WithCategoryConfig replaces the category taxonomy.
func WithCategoryConfig(cfg *core.CategoryConfig) Option {
	return func(p *Pipeline) error {
		if cfg != nil {
			p.categories = cfg
		}
		return nil
	}
}

// NewPipeline creates an ingestion pipeline over the given repositories and
// alias resolver.
func NewPipeline(
	sources storage.SourceRepository,
	entities storage.EntityRepository,
	relationships storage.RelationshipRepository,
	searchRepo storage.SearchRepository,
	resolver *alias.Resolver,
	opts ...Option,
) (*Pipeline, error) {
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if relationships == nil {
		return nil, ErrRelationshipRepositoryRequired
	}
	if searchRepo == nil {
		return nil, ErrSearchRepositoryRequired
	}
	if resolver == nil {
		return nil, ErrAliasResolverRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		sources:       sources,
		entities:      entities,
		relationships: relationships,
		searchRepo:    searchRepo,
		resolver:      resolver,
		indexer:       sectionindex.NewIndexer(),
		categories:    core.DefaultCategoryConfig(),
		pool:          pool,
		logger:        slog.Default().With("component", "ingestion"),
		locks:         make(map[core.ID]*sync.Mutex),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// SourceDescriptor identifies a source document for ingestion. Key is the
// caller's stable identifier; re-ingesting the same key replaces the source.
type SourceDescriptor struct {
	Key    string
	Name   string
	Domain string
}

// IngestSource indexes the raw text into a section tree, resolves every
// extraction record against it, canonicalizes normalizable surface forms and
// atomically replaces the source's previous version in storage.
//
// Per-record failures are collected into the returned Report and never abort
// the batch; the error return covers source-fatal conditions only (empty
// text, storage failure). Concurrent calls for the same source key serialize.
func (p *Pipeline) IngestSource(ctx context.Context, desc SourceDescriptor, text string, records *ai.ExtractionBatch) (*Report, error) {
	if desc.Key == "" {
		return nil, fmt.Errorf("source key required")
	}
	if records == nil {
		records = &ai.ExtractionBatch{}
	}
	sourceID := core.SourceIDFromKey(desc.Key)

	lock := p.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	tree, warnings, err := p.indexer.BuildTree(text)
	if err != nil {
		return nil, err
	}

	var report *Report
	for attempt := 0; ; attempt++ {
		report, err = p.ingestAttempt(ctx, sourceID, desc, text, tree, records)
		if !errors.Is(err, core.ErrAliasMergeConflict) {
			break
		}
		if attempt+1 >= maxAliasRetries {
			return nil, fmt.Errorf("alias commit retries exhausted: %w", err)
		}
		p.logger.Debug("alias merge conflict, retrying ingestion", "source", desc.Key, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}

	report.Warnings = warnings
	p.logger.Info("source ingested",
		"source", desc.Key,
		"sections", report.Sections,
		"entities", report.Entities,
		"relationships", report.Relationships,
		"rejected", len(report.Rejected))
	return report, nil
}

// ingestAttempt runs one full assemble-and-commit pass. A fresh alias
// transaction is taken per attempt so a conflicting commit can be replayed
// against the winner's state.
func (p *Pipeline) ingestAttempt(ctx context.Context, sourceID core.ID, desc SourceDescriptor, text string, tree *sectionindex.Tree, records *ai.ExtractionBatch) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := &Report{SourceId: sourceID}

	priorUsage, err := p.sources.GetAliasUsage(ctx, sourceID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	txn := p.resolver.Begin()
	txn.Retract(priorUsage)

	sections := make([]*core.Section, tree.Len())
	copy(sections, tree.Sections())
	for _, sec := range sections {
		sec.SourceId = sourceID
	}

	// The unsectioned root is synthesized lazily, zero-width at the end of
	// the text, so sources with fully covered records carry no extra section.
	var unsectioned *core.Section
	unsectionedID := func() core.ID {
		if unsectioned == nil {
			unsectioned = &core.Section{
				Id:        core.ID(len(sections) + 1),
				SourceId:  sourceID,
				Ordinal:   len(tree.Children(0)),
				Title:     "unsectioned",
				Start:     len(text),
				End:       len(text),
				Path:      "unsectioned",
				Synthetic: true,
			}
		}
		return unsectioned.Id
	}

	// bySeq keeps the positional slots of rejected entities so relationship
	// subject/object indices keep their meaning.
	bySeq := make([]*core.Entity, len(records.Entities))
	for seq, rec := range records.Entities {
		cat, ok := p.categories.EntityCategoryByName(rec.Category)
		if !ok {
			report.reject(core.KindEntity, seq, fmt.Errorf("%w: %q", core.ErrUnknownCategory, rec.Category))
			continue
		}
		ent := &core.Entity{
			Id:       core.EntityIDFor(desc.Key, seq),
			SourceId: sourceID,
			Category: cat,
			Start:    rec.Start,
			End:      rec.End,
			Attrs:    attrPairs(rec.Attrs),
			Seq:      seq,
		}
		if err := core.ValidateEntity(ent, len(text), p.categories); err != nil {
			report.reject(core.KindEntity, seq, err)
			continue
		}
		ent.Text = text[ent.Start:min(ent.End, len(text))]

		path, rerr := tree.Resolve(ent.Start, ent.End)
		if rerr != nil {
			ent.Unsectioned = true
			ent.SectionId = unsectionedID()
			report.Unsectioned++
			p.logger.Warn("record outside section ranges, attached to unsectioned root",
				"source", desc.Key, "seq", seq, "start", ent.Start)
		} else {
			ent.SectionId = path.Leaf().Id
			ent.Crossing = path.Crossing
		}

		if p.categories.Normalizable(cat) {
			ent.CanonicalId = txn.Resolve(cat, ent.Text)
		}
		bySeq[seq] = ent
	}

	var rels []*core.Relationship
	for seq, rec := range records.Relationships {
		rel, err := p.buildRelationship(ctx, sourceID, desc.Key, seq, rec, bySeq)
		if err != nil {
			report.reject(core.KindRelationship, seq, err)
			continue
		}
		rels = append(rels, rel)
	}

	ents := make([]*core.Entity, 0, len(bySeq))
	for _, ent := range bySeq {
		if ent != nil {
			ents = append(ents, ent)
		}
	}
	if unsectioned != nil {
		sections = append(sections, unsectioned)
	}

	batch := &storage.IngestBatch{
		Source: &core.Source{
			Id:         sourceID,
			Key:        desc.Key,
			Name:       desc.Name,
			Domain:     desc.Domain,
			TextLen:    len(text),
			IngestedAt: time.Now().UTC(),
		},
		Sections:      sections,
		Entities:      ents,
		Relationships: rels,
		Postings:      buildPostings(ents, rels),
		AliasUsage:    txn.Usage(),
	}

	err = txn.Commit(func(dirty []*core.AliasCluster, deleted []core.ID) error {
		return p.sources.ReplaceSource(ctx, batch, dirty, deleted)
	})
	if err != nil {
		return nil, err
	}

	report.Sections = len(sections)
	report.Entities = len(ents)
	report.Relationships = len(rels)
	return report, nil
}

// buildRelationship resolves one relationship record's endpoints and section.
func (p *Pipeline) buildRelationship(ctx context.Context, sourceID core.ID, sourceKey string, seq int, rec ai.RelationshipRecord, bySeq []*core.Entity) (*core.Relationship, error) {
	cat, ok := p.categories.RelationshipCategoryByName(rec.Category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownCategory, rec.Category)
	}

	subject := entityAt(bySeq, rec.Subject)
	if subject == nil {
		return nil, fmt.Errorf("%w: subject index %d not ingested", core.ErrReferentialIntegrity, rec.Subject)
	}

	rel := &core.Relationship{
		Id:          core.RelationshipIDFor(sourceKey, seq),
		SourceId:    sourceID,
		Category:    cat,
		SubjectId:   subject.Id,
		Predicate:   rec.Predicate,
		ObjectRef:   rec.ObjectRef,
		Condition:   rec.Condition,
		SectionId:   subject.SectionId,
		Unsectioned: subject.Unsectioned,
		Seq:         seq,
	}

	switch {
	case rec.Object != nil:
		object := entityAt(bySeq, *rec.Object)
		if object == nil {
			return nil, fmt.Errorf("%w: object index %d not ingested", core.ErrReferentialIntegrity, *rec.Object)
		}
		rel.ObjectId = object.Id
		rel.ObjectRef = ""
	case rec.ObjectEntityId != 0:
		object, err := p.entities.GetEntity(ctx, core.ID(rec.ObjectEntityId))
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: object entity %d does not exist", core.ErrReferentialIntegrity, rec.ObjectEntityId)
		}
		if err != nil {
			return nil, err
		}
		// Only cross-source-reference may point outside its own source.
		if object.SourceId != sourceID && cat != core.RelCrossSourceRef {
			return nil, fmt.Errorf("%w: %s object belongs to a different source", core.ErrReferentialIntegrity, cat)
		}
		rel.ObjectId = object.Id
		rel.ObjectRef = ""
	}

	if err := core.ValidateRelationship(rel, p.categories); err != nil {
		return nil, err
	}
	return rel, nil
}

// RemoveSource deletes a source and retracts its alias usage, leaving
// clusters other sources still feed intact.
func (p *Pipeline) RemoveSource(ctx context.Context, key string) error {
	sourceID := core.SourceIDFromKey(key)
	lock := p.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	usage, err := p.sources.GetAliasUsage(ctx, sourceID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	for attempt := 0; ; attempt++ {
		txn := p.resolver.Begin()
		txn.Retract(usage)
		err = txn.Commit(func(dirty []*core.AliasCluster, deleted []core.ID) error {
			return p.sources.DeleteSource(ctx, sourceID, dirty, deleted)
		})
		if !errors.Is(err, core.ErrAliasMergeConflict) {
			return err
		}
		if attempt+1 >= maxAliasRetries {
			return fmt.Errorf("alias commit retries exhausted: %w", err)
		}
	}
}

// Job is one source ingestion for IngestAll.
type Job struct {
	Descriptor SourceDescriptor
	Text       string
	Records    *ai.ExtractionBatch
}

// IngestAll ingests multiple sources concurrently on the worker pool.
// Reports are returned in job order; the error aggregates per-job failures.
func (p *Pipeline) IngestAll(ctx context.Context, jobs []Job) ([]*Report, error) {
	reports := make([]*Report, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		i, job := i, job
		if submitErr := p.pool.Submit(func() {
			defer wg.Done()
			reports[i], errs[i] = p.IngestSource(ctx, job.Descriptor, job.Text, job.Records)
		}); submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	return reports, errors.Join(errs...)
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func (p *Pipeline) sourceLock(id core.ID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[id] = lock
	}
	return lock
}

func entityAt(bySeq []*core.Entity, idx int) *core.Entity {
	if idx < 0 || idx >= len(bySeq) {
		return nil
	}
	return bySeq[idx]
}

// attrPairs flattens an attribute map into ordered pairs. Names sort
// lexicographically so serialized entities are deterministic.
func attrPairs(attrs map[string]string) []core.AttrPair {
	if len(attrs) == 0 {
		return nil
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]core.AttrPair, len(names))
	for i, name := range names {
		pairs[i] = core.AttrPair{Name: name, Value: attrs[name]}
	}
	return pairs
}

// buildPostings tokenizes the batch's searchable text into a sorted posting
// list for the lexical index.
func buildPostings(ents []*core.Entity, rels []*core.Relationship) []storage.Posting {
	var postings []storage.Posting
	for _, ent := range ents {
		for term, tf := range search.Tokenize(ent.SearchText()) {
			postings = append(postings, storage.Posting{Term: term, Kind: core.KindEntity, Id: ent.Id, TF: tf})
		}
	}
	for _, rel := range rels {
		for term, tf := range search.Tokenize(rel.SearchText()) {
			postings = append(postings, storage.Posting{Term: term, Kind: core.KindRelationship, Id: rel.Id, TF: tf})
		}
	}
	sort.Slice(postings, func(i, j int) bool {
		a, b := postings[i], postings[j]
		if a.Term != b.Term {
			return a.Term < b.Term
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Id < b.Id
	})
	return postings
}
