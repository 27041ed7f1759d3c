package search

import (
	"context"
	"testing"
	"time"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
	"github.com/corvid-labs/sectra/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSearcher(t *testing.T) (*Searcher, *badger.Repositories) {
	t.Helper()

	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	s, err := NewSearcher(repos.Entities, repos.Relationships, repos.Search)
	require.NoError(t, err)
	return s, repos
}

// seedCorpus stores a small source with three entities and one relationship,
// postings built with the same tokenizer queries use.
func seedCorpus(t *testing.T, repos *badger.Repositories, withVectors bool) (e1, e2, e3, r1 core.ID) {
	t.Helper()

	sourceID := core.SourceIDFromKey("bia-1985")
	section := &core.Section{Id: 1, SourceId: sourceID, Title: "General", Start: 0, End: 500, Path: "General"}

	ents := []*core.Entity{
		{Id: core.EntityIDFor("bia-1985", 0), SourceId: sourceID, Category: core.EntityActor,
			Start: 0, End: 10, Text: "the trustee administers the estate", SectionId: 1, Seq: 0},
		{Id: core.EntityIDFor("bia-1985", 1), SourceId: sourceID, Category: core.EntityActor,
			Start: 20, End: 30, Text: "a creditor files a proof of claim", SectionId: 1, Seq: 1},
		{Id: core.EntityIDFor("bia-1985", 2), SourceId: sourceID, Category: core.EntityDocumentRef,
			Start: 40, End: 50, Text: "notice of intention sent to the creditor", SectionId: 1, Seq: 2},
	}
	if withVectors {
		ents[0].Vector = []float32{1, 0, 0}
		ents[1].Vector = []float32{0, 1, 0}
	}

	rel := &core.Relationship{
		Id: core.RelationshipIDFor("bia-1985", 0), SourceId: sourceID,
		Category: core.RelDeonticObligation, SubjectId: ents[0].Id, ObjectId: ents[2].Id,
		Predicate: "sends", Condition: "if the debtor defaults", SectionId: 1, Seq: 0,
	}

	var postings []storage.Posting
	for _, ent := range ents {
		for term, tf := range Tokenize(ent.Text) {
			postings = append(postings, storage.Posting{Term: term, Kind: core.KindEntity, Id: ent.Id, TF: tf})
		}
	}
	for term, tf := range Tokenize(rel.SearchText()) {
		postings = append(postings, storage.Posting{Term: term, Kind: core.KindRelationship, Id: rel.Id, TF: tf})
	}

	batch := &storage.IngestBatch{
		Source:        &core.Source{Id: sourceID, Key: "bia-1985", TextLen: 500, IngestedAt: time.Now().UTC()},
		Sections:      []*core.Section{section},
		Entities:      ents,
		Relationships: []*core.Relationship{rel},
		Postings:      postings,
	}
	require.NoError(t, repos.Sources.ReplaceSource(context.Background(), batch, nil, nil))
	return ents[0].Id, ents[1].Id, ents[2].Id, rel.Id
}

func resultIDs(results []*core.SearchResult) []core.ID {
	ids := make([]core.ID, len(results))
	for i, r := range results {
		ids[i] = r.Id()
	}
	return ids
}

func TestSearch_LexicalRanking(t *testing.T) {
	s, repos := setupSearcher(t)
	_, e2, e3, _ := seedCorpus(t, repos, false)

	results, err := s.Search(context.Background(), "creditor claim", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Both query terms hit e2; only "creditor" hits e3.
	assert.Equal(t, e2, results[0].Id())
	assert.Equal(t, e3, results[1].Id())
	assert.Equal(t, float32(1), results[0].Score)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Zero(t, results[0].Vector)
}

func TestSearch_RelationshipHits(t *testing.T) {
	s, repos := setupSearcher(t)
	_, _, _, r1 := seedCorpus(t, repos, false)

	results, err := s.Search(context.Background(), "debtor defaults", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.KindRelationship, results[0].Kind)
	assert.Equal(t, r1, results[0].Id())
	assert.Equal(t, "sends", results[0].Relationship.Predicate)
}

func TestSearch_LexicalOnlyEquivalence(t *testing.T) {
	s, repos := setupSearcher(t)
	seedCorpus(t, repos, false) // no stored embeddings
	ctx := context.Background()

	plain, err := s.Search(ctx, "creditor claim", nil, 10)
	require.NoError(t, err)
	withVector, err := s.Search(ctx, "creditor claim", []float32{1, 0, 0}, 10)
	require.NoError(t, err)

	require.Len(t, withVector, len(plain))
	for i := range plain {
		assert.Equal(t, plain[i].Id(), withVector[i].Id())
		assert.Equal(t, plain[i].Score, withVector[i].Score)
		assert.Equal(t, plain[i].Lexical, withVector[i].Lexical)
	}
}

func TestSearch_HybridFusion(t *testing.T) {
	s, repos := setupSearcher(t)
	e1, e2, e3, _ := seedCorpus(t, repos, true)

	// Lexically the query hits e2 (twice) and e3; the vector matches e1 only.
	results, err := s.Search(context.Background(), "creditor claim", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// e2 and e1 both fuse to 0.5; the lexical tie-break puts e2 first.
	assert.Equal(t, []core.ID{e2, e1, e3}, resultIDs(results))
	assert.Equal(t, float32(0.5), results[0].Score)
	assert.Equal(t, float32(0.5), results[1].Score)
	assert.Equal(t, float32(1), results[0].Lexical)
	assert.Equal(t, float32(1), results[1].Vector)
	assert.Less(t, results[2].Score, float32(0.5))
}

func TestSearch_WeightsShiftRanking(t *testing.T) {
	_, repos := setupSearcher(t)
	e1, _, _, _ := seedCorpus(t, repos, true)

	s, err := NewSearcher(repos.Entities, repos.Relationships, repos.Search, WithWeights(1, 3))
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "creditor claim", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, e1, results[0].Id())
}

func TestSearch_KBoundsResults(t *testing.T) {
	s, repos := setupSearcher(t)
	_, e2, _, _ := seedCorpus(t, repos, false)
	ctx := context.Background()

	one, err := s.Search(ctx, "creditor", nil, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, e2, one[0].Id())

	// Fewer candidates than k is not an error.
	all, err := s.Search(ctx, "creditor", nil, 100)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.Search(ctx, "creditor", nil, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestSearch_NoMatches(t *testing.T) {
	s, repos := setupSearcher(t)
	seedCorpus(t, repos, false)

	results, err := s.Search(context.Background(), "zebra quantum", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_StopwordOnlyQuery(t *testing.T) {
	s, repos := setupSearcher(t)
	seedCorpus(t, repos, false)

	results, err := s.Search(context.Background(), "the of and", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_Deterministic(t *testing.T) {
	s, repos := setupSearcher(t)
	seedCorpus(t, repos, true)
	ctx := context.Background()

	first, err := s.Search(ctx, "creditor trustee notice", []float32{0.7, 0.7, 0}, 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Search(ctx, "creditor trustee notice", []float32{0.7, 0.7, 0}, 10)
		require.NoError(t, err)
		assert.Equal(t, resultIDs(first), resultIDs(again))
	}
}

// recordingMonitor captures stage callbacks.
type recordingMonitor struct {
	started     bool
	terms       []string
	lexicalHits int
	vectorHits  int
	hybridHits  int
	finished    int
}

func (m *recordingMonitor) Start(_ string)                     { m.started = true }
func (m *recordingMonitor) AfterLexicalScan(terms []string, _ int) { m.terms = terms }
func (m *recordingMonitor) AfterVectorSearch(_ int)            {}
func (m *recordingMonitor) LexicalHit(_ *core.SearchResult)    { m.lexicalHits++ }
func (m *recordingMonitor) VectorHit(_ *core.SearchResult)     { m.vectorHits++ }
func (m *recordingMonitor) HybridHit(_ *core.SearchResult)     { m.hybridHits++ }
func (m *recordingMonitor) Finish(results []*core.SearchResult) { m.finished = len(results) }

func TestSearchWithMonitor(t *testing.T) {
	s, repos := setupSearcher(t)
	seedCorpus(t, repos, true)

	monitor := &recordingMonitor{}
	results, err := s.SearchWithMonitor(context.Background(), "creditor claim", []float32{1, 0, 0}, 10, monitor)
	require.NoError(t, err)

	assert.True(t, monitor.started)
	assert.Equal(t, []string{"creditor", "claim"}, monitor.terms)
	assert.Equal(t, 2, monitor.lexicalHits)
	assert.Equal(t, 1, monitor.vectorHits)
	assert.Equal(t, len(results), monitor.finished)
}

func TestTokenize(t *testing.T) {
	terms := Tokenize("The Trustee shall send the notice, the NOTICE!")
	assert.Equal(t, map[string]int{"trustee": 1, "send": 1, "notice": 2}, terms)
}

func TestTokenize_InnerPunctuation(t *testing.T) {
	// Punctuation inside a word splits it; terms never carry punctuation.
	terms := Tokenize("filed at 9:00 under s.43(1) via e-mail")
	assert.Equal(t, map[string]int{
		"filed": 1, "9": 1, "00": 1, "under": 1, "s": 1, "43": 1, "1": 1,
		"via": 1, "e": 1, "mail": 1,
	}, terms)
}

func TestSearch_TermsWithInnerPunctuation(t *testing.T) {
	s, repos := setupSearcher(t)

	sourceID := core.SourceIDFromKey("bia-1985")
	ent := &core.Entity{
		Id: core.EntityIDFor("bia-1985", 0), SourceId: sourceID, Category: core.EntityDeadline,
		Start: 0, End: 30, Text: "the hearing begins at 9:00 sharp", SectionId: 1, Seq: 0,
	}

	var postings []storage.Posting
	for term, tf := range Tokenize(ent.Text) {
		postings = append(postings, storage.Posting{Term: term, Kind: core.KindEntity, Id: ent.Id, TF: tf})
	}

	batch := &storage.IngestBatch{
		Source:   &core.Source{Id: sourceID, Key: "bia-1985", TextLen: 100, IngestedAt: time.Now().UTC()},
		Sections: []*core.Section{{Id: 1, SourceId: sourceID, Title: "General", Start: 0, End: 100, Path: "General"}},
		Entities: []*core.Entity{ent},
		Postings: postings,
	}
	require.NoError(t, repos.Sources.ReplaceSource(context.Background(), batch, nil, nil))

	// A single-digit query must not collide with longer terms sharing the
	// prefix in the posting keyspace.
	results, err := s.Search(context.Background(), "9", nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ent.Id, results[0].Id())

	results, err = s.Search(context.Background(), "9:00", nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ent.Id, results[0].Id())
}

func TestNewSearcher_Validation(t *testing.T) {
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	t.Run("nil entity repository", func(t *testing.T) {
		_, err := NewSearcher(nil, repos.Relationships, repos.Search)
		assert.Equal(t, ErrEntityRepositoryRequired, err)
	})

	t.Run("nil relationship repository", func(t *testing.T) {
		_, err := NewSearcher(repos.Entities, nil, repos.Search)
		assert.Equal(t, ErrRelationshipRepositoryRequired, err)
	})

	t.Run("nil search repository", func(t *testing.T) {
		_, err := NewSearcher(repos.Entities, repos.Relationships, nil)
		assert.Equal(t, ErrSearchRepositoryRequired, err)
	})

	t.Run("invalid weights", func(t *testing.T) {
		_, err := NewSearcher(repos.Entities, repos.Relationships, repos.Search, WithWeights(0, 0))
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}
