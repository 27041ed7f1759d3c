package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

func testSource(key string, textLen int) *core.Source {
	return &core.Source{
		Id:         core.SourceIDFromKey(key),
		Key:        key,
		Name:       key,
		Domain:     "statute",
		TextLen:    textLen,
		IngestedAt: time.Now().UTC(),
	}
}

func testSections(src *core.Source) []*core.Section {
	return []*core.Section{
		{Id: 1, SourceId: src.Id, Depth: 0, Number: "1", Title: "General", Start: 0, End: src.TextLen, Path: "1 General"},
		{Id: 2, SourceId: src.Id, ParentId: 1, Depth: 1, Number: "1.1", Title: "Scope", Start: 10, End: src.TextLen, Path: "1 General > 1.1 Scope"},
	}
}

func testEntity(src *core.Source, seq, start, end int, text string) *core.Entity {
	return &core.Entity{
		Id:        core.EntityIDFor(src.Key, seq),
		SourceId:  src.Id,
		Category:  core.EntityConcept,
		Start:     start,
		End:       end,
		Text:      text,
		SectionId: 1,
		Seq:       seq,
	}
}

func testRelationship(src *core.Source, seq int, subject, object core.ID) *core.Relationship {
	return &core.Relationship{
		Id:        core.RelationshipIDFor(src.Key, seq),
		SourceId:  src.Id,
		Category:  core.RelDeonticObligation,
		SubjectId: subject,
		Predicate: "must-send",
		ObjectId:  object,
		SectionId: 1,
		Seq:       seq,
	}
}

func testBatch(src *core.Source, entities []*core.Entity, rels []*core.Relationship) *storage.IngestBatch {
	return &storage.IngestBatch{
		Source:        src,
		Sections:      testSections(src),
		Entities:      entities,
		Relationships: rels,
	}
}

func TestReplaceSource_RoundTrip(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	src := testSource("bia-1985", 200)
	entities := []*core.Entity{
		testEntity(src, 0, 0, 20, "the trustee"),
		testEntity(src, 1, 30, 55, "every creditor"),
	}
	rels := []*core.Relationship{testRelationship(src, 0, entities[0].Id, entities[1].Id)}

	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(src, entities, rels), nil, nil))

	got, err := repos.Sources.GetSource(ctx, src.Id)
	require.NoError(t, err)
	assert.Equal(t, src.Key, got.Key)

	byKey, err := repos.Sources.FindSourceByKey(ctx, "bia-1985")
	require.NoError(t, err)
	assert.Equal(t, src.Id, byKey.Id)

	sections, err := repos.Sources.GetSections(ctx, src.Id)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, core.ID(1), sections[0].Id)
	assert.Equal(t, core.ID(2), sections[1].Id)

	stored, err := repos.Entities.GetEntitiesBySource(ctx, src.Id)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "the trustee", stored[0].Text)

	storedRels, err := repos.Relationships.GetRelationshipsBySource(ctx, src.Id)
	require.NoError(t, err)
	require.Len(t, storedRels, 1)
	assert.Equal(t, entities[0].Id, storedRels[0].SubjectId)

	count, err := repos.Search.RecordCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestReplaceSource_SwapsPreviousVersion(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	src := testSource("bia-1985", 200)
	first := []*core.Entity{
		testEntity(src, 0, 0, 20, "old entity one"),
		testEntity(src, 1, 30, 55, "old entity two"),
		testEntity(src, 2, 60, 80, "old entity three"),
	}
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(src, first, nil), nil, nil))

	// Re-ingest with a smaller batch; nothing of the old version may survive.
	again := testSource("bia-1985", 180)
	second := []*core.Entity{testEntity(again, 0, 0, 15, "new entity")}
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(again, second, nil), nil, nil))

	stored, err := repos.Entities.GetEntitiesBySource(ctx, again.Id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "new entity", stored[0].Text)

	for _, old := range first[1:] {
		_, err := repos.Entities.GetEntity(ctx, old.Id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}

	count, err := repos.Search.RecordCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repos.Sources.GetSource(ctx, again.Id)
	require.NoError(t, err)
	assert.Equal(t, 180, got.TextLen)
}

func TestReplaceSource_RetractsPostings(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	src := testSource("bia-1985", 200)
	entity := testEntity(src, 0, 0, 20, "trustee notice")
	batch := testBatch(src, []*core.Entity{entity}, nil)
	batch.Postings = []storage.Posting{
		{Term: "trustee", Kind: core.KindEntity, Id: entity.Id, TF: 1},
		{Term: "notice", Kind: core.KindEntity, Id: entity.Id, TF: 1},
	}
	require.NoError(t, repos.Sources.ReplaceSource(ctx, batch, nil, nil))

	postings, err := repos.Search.GetPostings(ctx, "trustee")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, entity.Id, postings[0].Id)

	// The replacement drops the term "notice" entirely.
	again := testSource("bia-1985", 200)
	entity2 := testEntity(again, 0, 0, 20, "trustee report")
	batch2 := testBatch(again, []*core.Entity{entity2}, nil)
	batch2.Postings = []storage.Posting{
		{Term: "trustee", Kind: core.KindEntity, Id: entity2.Id, TF: 2},
		{Term: "report", Kind: core.KindEntity, Id: entity2.Id, TF: 1},
	}
	require.NoError(t, repos.Sources.ReplaceSource(ctx, batch2, nil, nil))

	gone, err := repos.Search.GetPostings(ctx, "notice")
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := repos.Search.GetPostings(ctx, "trustee")
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, 2, kept[0].TF)
}

func TestReplaceSource_PersistsAliasState(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	src := testSource("bia-1985", 200)
	entity := testEntity(src, 0, 0, 20, "the Trustee")
	entity.Category = core.EntityActor
	clusterID := core.AliasClusterIDFor(core.EntityActor, "trustee")
	entity.CanonicalId = clusterID

	cluster := &core.AliasCluster{
		Id:       clusterID,
		Category: core.EntityActor,
		Label:    "Trustee",
		Members:  []core.AliasMember{{Surface: "Trustee", Norm: "trustee", Count: 1}},
	}
	batch := testBatch(src, []*core.Entity{entity}, nil)
	batch.AliasUsage = []core.AliasUsage{{ClusterId: clusterID, Surface: "the Trustee", Count: 1}}

	require.NoError(t, repos.Sources.ReplaceSource(ctx, batch, []*core.AliasCluster{cluster}, nil))

	stored, err := repos.Aliases.GetAliasCluster(ctx, clusterID)
	require.NoError(t, err)
	assert.Equal(t, "Trustee", stored.Label)

	usage, err := repos.Sources.GetAliasUsage(ctx, src.Id)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, clusterID, usage[0].ClusterId)

	linked, err := repos.Entities.GetEntitiesByCanonical(ctx, clusterID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, entity.Id, linked[0].Id)

	all, err := repos.Aliases.GetAllAliasClusters(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetRecentSources(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, key := range []string{"first", "second", "third"} {
		src := testSource(key, 100)
		src.IngestedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(src, nil, nil), nil, nil))
	}

	recent, err := repos.Sources.GetRecentSources(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Key)
	assert.Equal(t, "second", recent[1].Key)

	all, err := repos.Sources.GetSources(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Key)
}

func TestDeleteSource(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	src := testSource("bia-1985", 200)
	entity := testEntity(src, 0, 0, 20, "the trustee")
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(src, []*core.Entity{entity}, nil), nil, nil))

	require.NoError(t, repos.Sources.DeleteSource(ctx, src.Id, nil, nil))

	_, err = repos.Sources.GetSource(ctx, src.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repos.Sources.FindSourceByKey(ctx, "bia-1985")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repos.Entities.GetEntity(ctx, entity.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	count, err := repos.Search.RecordCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = repos.Sources.DeleteSource(ctx, src.Id, nil, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteSource_DetachesInboundCrossSourceLinks(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	target := testSource("bia-1985", 200)
	targetEntity := testEntity(target, 0, 0, 20, "division I proposal")
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(target, []*core.Entity{targetEntity}, nil), nil, nil))

	other := testSource("ccaa-1985", 200)
	otherEntity := testEntity(other, 0, 0, 15, "the monitor")
	crossRef := testRelationship(other, 0, otherEntity.Id, targetEntity.Id)
	crossRef.Category = core.RelCrossSourceRef
	crossRef.Predicate = "refers to"
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(other, []*core.Entity{otherEntity}, []*core.Relationship{crossRef}), nil, nil))

	require.NoError(t, repos.Sources.DeleteSource(ctx, target.Id, nil, nil))

	_, err = repos.Entities.GetEntity(ctx, targetEntity.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The other source's link survives as an external reference instead of
	// pointing at a deleted entity.
	kept, err := repos.Relationships.GetRelationship(ctx, crossRef.Id)
	require.NoError(t, err)
	assert.Zero(t, kept.ObjectId)
	assert.Equal(t, "division I proposal", kept.ObjectRef)

	byObject, err := repos.Relationships.GetRelationshipsByObject(ctx, targetEntity.Id)
	require.NoError(t, err)
	assert.Empty(t, byObject)
}

func TestReplaceSource_DetachesInboundCrossSourceLinks(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	target := testSource("bia-1985", 200)
	targetEntity := testEntity(target, 0, 0, 20, "notice of intention")
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(target, []*core.Entity{targetEntity}, nil), nil, nil))

	other := testSource("ccaa-1985", 200)
	otherEntity := testEntity(other, 0, 0, 15, "the monitor")
	crossRef := testRelationship(other, 0, otherEntity.Id, targetEntity.Id)
	crossRef.Category = core.RelCrossSourceRef
	crossRef.Predicate = "refers to"
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(other, []*core.Entity{otherEntity}, []*core.Relationship{crossRef}), nil, nil))

	// A re-ingest keeping the referenced entity leaves the link resolved.
	same := testSource("bia-1985", 200)
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(same, []*core.Entity{testEntity(same, 0, 0, 20, "notice of intention")}, nil), nil, nil))

	resolved, err := repos.Relationships.GetRelationship(ctx, crossRef.Id)
	require.NoError(t, err)
	assert.Equal(t, targetEntity.Id, resolved.ObjectId)

	// Re-ingesting without the referenced entity must not leave the other
	// source's link dangling.
	again := testSource("bia-1985", 180)
	replacement := testEntity(again, 1, 0, 15, "different entity")
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(again, []*core.Entity{replacement}, nil), nil, nil))

	kept, err := repos.Relationships.GetRelationship(ctx, crossRef.Id)
	require.NoError(t, err)
	assert.Zero(t, kept.ObjectId)
	assert.Equal(t, "notice of intention", kept.ObjectRef)

	byObject, err := repos.Relationships.GetRelationshipsByObject(ctx, targetEntity.Id)
	require.NoError(t, err)
	assert.Empty(t, byObject)
}

func TestReplaceSource_CancelledContext(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := testSource("bia-1985", 200)
	entity := testEntity(src, 0, 0, 20, "the trustee")
	err = repos.Sources.ReplaceSource(ctx, testBatch(src, []*core.Entity{entity}, nil), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)

	// Nothing may be committed.
	_, err = repos.Sources.FindSourceByKey(context.Background(), "bia-1985")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetEntitiesBySection(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	src := testSource("bia-1985", 200)
	inRoot := testEntity(src, 0, 0, 5, "root entity")
	inChild := testEntity(src, 1, 20, 30, "child entity")
	inChild.SectionId = 2
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(src, []*core.Entity{inRoot, inChild}, nil), nil, nil))

	rootOnly, err := repos.Entities.GetEntitiesBySection(ctx, src.Id, 1)
	require.NoError(t, err)
	require.Len(t, rootOnly, 1)
	assert.Equal(t, inRoot.Id, rootOnly[0].Id)

	childOnly, err := repos.Entities.GetEntitiesBySection(ctx, src.Id, 2)
	require.NoError(t, err)
	require.Len(t, childOnly, 1)
	assert.Equal(t, inChild.Id, childOnly[0].Id)
}

func TestUpdateEntities_MaintainsCanonicalIndex(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	src := testSource("bia-1985", 200)
	entity := testEntity(src, 0, 0, 20, "the trustee")
	entity.CanonicalId = core.AliasClusterIDFor(core.EntityActor, "trustee")
	require.NoError(t, repos.Sources.ReplaceSource(ctx, testBatch(src, []*core.Entity{entity}, nil), nil, nil))

	moved := *entity
	moved.CanonicalId = core.AliasClusterIDFor(core.EntityActor, "licensed insolvency trustee")
	moved.Vector = []float32{0.1, 0.2}
	_, err = repos.Entities.UpdateEntities(ctx, &moved)
	require.NoError(t, err)

	oldLinks, err := repos.Entities.GetEntitiesByCanonical(ctx, entity.CanonicalId)
	require.NoError(t, err)
	assert.Empty(t, oldLinks)

	newLinks, err := repos.Entities.GetEntitiesByCanonical(ctx, moved.CanonicalId)
	require.NoError(t, err)
	require.Len(t, newLinks, 1)
	assert.Equal(t, []float32{0.1, 0.2}, newLinks[0].Vector)

	_, err = repos.Entities.UpdateEntities(ctx, testEntity(src, 99, 0, 5, "ghost"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRelationshipIndexes(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	src := testSource("bia-1985", 200)
	subject := testEntity(src, 0, 0, 10, "trustee")
	object := testEntity(src, 1, 20, 30, "creditor")
	rel := testRelationship(src, 0, subject.Id, object.Id)
	external := testRelationship(src, 1, subject.Id, 0)
	external.ObjectId = 0
	external.ObjectRef = "Companies' Creditors Arrangement Act"

	require.NoError(t, repos.Sources.ReplaceSource(ctx,
		testBatch(src, []*core.Entity{subject, object}, []*core.Relationship{rel, external}), nil, nil))

	bySubject, err := repos.Relationships.GetRelationshipsBySubject(ctx, subject.Id)
	require.NoError(t, err)
	assert.Len(t, bySubject, 2)

	byObject, err := repos.Relationships.GetRelationshipsByObject(ctx, object.Id)
	require.NoError(t, err)
	require.Len(t, byObject, 1)
	assert.Equal(t, rel.Id, byObject[0].Id)
}
