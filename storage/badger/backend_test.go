package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.False(t, backend.IsClosed())

	err = backend.Close()
	require.NoError(t, err)

	assert.True(t, backend.IsClosed())
}

func TestFindSimilar_NoRecords(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	vector := []float32{0.1, 0.2, 0.3}

	results, err := backend.FindSimilar(ctx, vector, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_MixedRecords(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	src := testSource("bia-1985", 400)

	entities := []*core.Entity{
		testEntity(src, 0, 0, 20, "the trustee shall send"),
		testEntity(src, 1, 30, 55, "notice to every creditor"),
		testEntity(src, 2, 60, 80, "unrelated provision"),
	}
	entities[0].Vector = []float32{1.0, 0.0, 0.0}
	entities[1].Vector = []float32{0.9, 0.1, 0.0}
	// entities[2] has no vector and must be skipped.

	rels := []*core.Relationship{testRelationship(src, 0, entities[0].Id, entities[1].Id)}
	rels[0].Vector = []float32{0.0, 0.0, 1.0}

	require.NoError(t, repos.Sources.ReplaceSource(ctx, &storage.IngestBatch{
		Source:        src,
		Sections:      testSections(src),
		Entities:      entities,
		Relationships: rels,
	}, nil, nil))

	results, err := backend.FindSimilar(ctx, []float32{1.0, 0.0, 0.0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, core.KindEntity, results[0].Kind)
	assert.Equal(t, entities[0].Id, results[0].Id())
	for i := 0; i < len(results)-1; i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
	}

	relHits, err := backend.FindSimilar(ctx, []float32{0.0, 0.0, 1.0}, 0.9, 10)
	require.NoError(t, err)
	require.Len(t, relHits, 1)
	assert.Equal(t, core.KindRelationship, relHits[0].Kind)
}

func TestFindSimilar_LimitResults(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	src := testSource("bia-1985", 1000)

	var entities []*core.Entity
	for i := 0; i < 10; i++ {
		e := testEntity(src, i, i*10, i*10+5, "provision")
		e.Vector = []float32{0.9, 0.1, 0.0}
		entities = append(entities, e)
	}
	require.NoError(t, repos.Sources.ReplaceSource(ctx, &storage.IngestBatch{
		Source:   src,
		Sections: testSections(src),
		Entities: entities,
	}, nil, nil))

	results, err := backend.FindSimilar(ctx, []float32{1.0, 0.0, 0.0}, 0.5, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestDotProduct(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{"identical vectors", []float32{1.0, 0.0, 0.0}, []float32{1.0, 0.0, 0.0}, 1.0},
		{"orthogonal vectors", []float32{1.0, 0.0, 0.0}, []float32{0.0, 1.0, 0.0}, 0.0},
		{"opposite vectors", []float32{1.0, 0.0, 0.0}, []float32{-1.0, 0.0, 0.0}, -1.0},
		{"general case", []float32{0.6, 0.8}, []float32{0.8, 0.6}, 0.96},
		{"different lengths - use min", []float32{1.0, 2.0, 3.0}, []float32{1.0, 2.0}, 5.0},
		{"empty vectors", []float32{}, []float32{}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, dotProduct(tt.a, tt.b), 0.0001)
		})
	}
}

func TestWithTransaction(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	t.Run("successful transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed transaction", func(t *testing.T) {
		testErr := assert.AnError
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return testErr
		})
		assert.Equal(t, testErr, err)
	})
}
