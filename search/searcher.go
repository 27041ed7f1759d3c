package search

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

const defaultMinSimilarity = 0.60

// Searcher provides hybrid lexical and vector retrieval over stored entities
// and relationships. Both scorers run over one candidate pool; their scores
// are min-max normalized to [0,1] and fused by a weighted sum.
type Searcher struct {
	entities      storage.EntityRepository
	relationships storage.RelationshipRepository
	searchRepo    storage.SearchRepository
	lexWeight     float32
	vecWeight     float32
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithWeights sets the lexical/vector fusion weights. Weights are relative
// and normalized internally; the default is equal weighting.
func WithWeights(lexical, vector float32) Option {
	return func(s *Searcher) error {
		total := lexical + vector
		if lexical < 0 || vector < 0 || total == 0 {
			return storage.ErrInvalidQuery
		}
		s.lexWeight = lexical / total
		s.vecWeight = vector / total
		return nil
	}
}

// WithMinSimilarity sets the cosine similarity floor for vector candidates.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = min
		return nil
	}
}

// NewSearcher creates a new searcher over the given repositories.
func NewSearcher(
	entities storage.EntityRepository,
	relationships storage.RelationshipRepository,
	searchRepo storage.SearchRepository,
	opts ...Option,
) (*Searcher, error) {
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if relationships == nil {
		return nil, ErrRelationshipRepositoryRequired
	}
	if searchRepo == nil {
		return nil, ErrSearchRepositoryRequired
	}

	s := &Searcher{
		entities:      entities,
		relationships: relationships,
		searchRepo:    searchRepo,
		lexWeight:     0.5,
		vecWeight:     0.5,
		minSimilarity: defaultMinSimilarity,
		logger:        slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// refKey identifies one candidate record across both scorers.
type refKey struct {
	kind core.ResultKind
	id   core.ID
}

// candidate accumulates the raw scorer outputs for one record. order is the
// position the record first entered the pool, the final tie-break.
type candidate struct {
	key    refKey
	order  int
	rawLex float32
	rawVec float32
	hasVec bool
	result *core.SearchResult
}

// Search returns up to k records ranked by the fused lexical and vector
// scores. A nil queryVector, or a pool with no stored embeddings, degrades to
// pure lexical ranking with output identical to a lexical-only run. Ties
// break by lexical score, then by the order candidates entered the pool.
func (s *Searcher) Search(ctx context.Context, query string, queryVector []float32, k int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, queryVector, k, nil)
}

// SearchWithMonitor is Search with stage callbacks for observability.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, queryVector []float32, k int, monitor RetrievalMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if k <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	monitor.Start(query)

	pool := make(map[refKey]*candidate)
	var ordered []*candidate
	admit := func(key refKey) *candidate {
		c, ok := pool[key]
		if !ok {
			c = &candidate{key: key, order: len(ordered)}
			pool[key] = c
			ordered = append(ordered, c)
		}
		return c
	}

	terms, err := s.scoreLexical(ctx, query, admit)
	if err != nil {
		return nil, err
	}
	monitor.AfterLexicalScan(terms, len(ordered))

	vectorHits := 0
	if len(queryVector) > 0 {
		vectorHits, err = s.scoreVector(ctx, queryVector, k, admit)
		if err != nil {
			return nil, err
		}
	}
	monitor.AfterVectorSearch(vectorHits)

	if len(ordered) == 0 {
		monitor.Finish(nil)
		return []*core.SearchResult{}, nil
	}

	if err := s.loadRecords(ctx, ordered); err != nil {
		return nil, err
	}

	// Records deleted between the index scan and retrieval drop out here.
	live := ordered[:0]
	for _, c := range ordered {
		if c.result != nil {
			live = append(live, c)
		}
	}
	ordered = live

	s.fuse(ordered, vectorHits > 0, monitor)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.result.Score != b.result.Score {
			return a.result.Score > b.result.Score
		}
		if a.result.Lexical != b.result.Lexical {
			return a.result.Lexical > b.result.Lexical
		}
		return a.order < b.order
	})

	if len(ordered) > k {
		ordered = ordered[:k]
	}
	results := make([]*core.SearchResult, len(ordered))
	for i, c := range ordered {
		results[i] = c.result
	}
	monitor.Finish(results)
	return results, nil
}

// scoreLexical scans the posting lists of the query terms and accumulates a
// TF-IDF style relevance per candidate.
func (s *Searcher) scoreLexical(ctx context.Context, query string, admit func(refKey) *candidate) ([]string, error) {
	terms := tokenizeAndFilter(query)
	if len(terms) == 0 {
		return terms, nil
	}

	total, err := s.searchRepo.RecordCount(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true

		postings, err := s.searchRepo.GetPostings(ctx, term)
		if err != nil {
			return nil, err
		}
		if len(postings) == 0 {
			continue
		}

		idf := float32(math.Log(1 + float64(total+1)/float64(len(postings)+1)))
		for _, posting := range postings {
			c := admit(refKey{kind: posting.Kind, id: posting.Id})
			c.rawLex += float32(posting.TF) * idf
		}
	}
	return terms, nil
}

// scoreVector runs the similarity scan and folds the hits into the pool.
func (s *Searcher) scoreVector(ctx context.Context, queryVector []float32, k int, admit func(refKey) *candidate) (int, error) {
	// Over-fetch so vector-only hits survive fusion against a large lexical
	// pool.
	limit := k*4 + 16
	matches, err := s.entities.FindSimilar(ctx, queryVector, s.minSimilarity, limit)
	if err != nil {
		return 0, err
	}
	for _, match := range matches {
		c := admit(refKey{kind: match.Kind, id: match.Id()})
		c.rawVec = match.Score
		c.hasVec = true
		// FindSimilar already carries the full record.
		c.result = match
	}
	return len(matches), nil
}

// loadRecords fetches the backing records for candidates that entered the
// pool through the lexical index only.
func (s *Searcher) loadRecords(ctx context.Context, ordered []*candidate) error {
	for _, c := range ordered {
		if c.result != nil {
			continue
		}
		switch c.key.kind {
		case core.KindEntity:
			ent, err := s.entities.GetEntity(ctx, c.key.id)
			if err == nil {
				c.result = &core.SearchResult{Kind: core.KindEntity, Entity: ent}
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		case core.KindRelationship:
			rel, err := s.relationships.GetRelationship(ctx, c.key.id)
			if err == nil {
				c.result = &core.SearchResult{Kind: core.KindRelationship, Relationship: rel}
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}
	}
	return nil
}

// fuse normalizes both scorers over the candidate pool and combines them.
// Without any vector signal the fused score is exactly the normalized lexical
// score, so lexical-only runs and vectorless hybrid runs rank identically.
func (s *Searcher) fuse(ordered []*candidate, hasVectorSignal bool, monitor RetrievalMonitor) {
	normLex := normalize(ordered, func(c *candidate) float32 { return c.rawLex })
	normVec := normalize(ordered, func(c *candidate) float32 { return c.rawVec })

	for i, c := range ordered {
		c.result.Lexical = normLex[i]
		c.result.Vector = normVec[i]
		if hasVectorSignal {
			c.result.Score = s.lexWeight*normLex[i] + s.vecWeight*normVec[i]
		} else {
			c.result.Score = normLex[i]
		}

		switch {
		case c.rawLex > 0 && c.hasVec:
			monitor.HybridHit(c.result)
		case c.hasVec:
			monitor.VectorHit(c.result)
		default:
			monitor.LexicalHit(c.result)
		}
	}
}

// normalize min-max scales one scorer's raw values over the pool. A pool
// where every value is equal maps nonzero values to 1 and zeros to 0, keeping
// single-candidate and all-tied pools stable.
func normalize(ordered []*candidate, raw func(*candidate) float32) []float32 {
	min := float32(math.MaxFloat32)
	max := float32(-math.MaxFloat32)
	for _, c := range ordered {
		v := raw(c)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float32, len(ordered))
	for i, c := range ordered {
		v := raw(c)
		switch {
		case max > min:
			out[i] = (v - min) / (max - min)
		case v > 0:
			out[i] = 1
		}
	}
	return out
}
