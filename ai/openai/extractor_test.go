package openai

import (
	"log/slog"
	"testing"

	"github.com/corvid-labs/sectra/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExtractor() *RecordExtractor {
	return &RecordExtractor{logger: slog.Default()}
}

func TestGroundBatch_LocatesQuotes(t *testing.T) {
	e := testExtractor()
	text := "The trustee shall send the notice to each creditor."

	obj := 1
	batch := e.groundBatch(text, &llmBatch{
		Entities: []llmEntity{
			{Text: "trustee", Category: "actor"},
			{Text: "notice", Category: "document-reference"},
		},
		Relationships: []llmRelationship{
			{Category: "deontic-obligation", Predicate: "shall send", Subject: 0, Object: &obj},
		},
	})

	require.Len(t, batch.Entities, 2)
	assert.Equal(t, 4, batch.Entities[0].Start)
	assert.Equal(t, 11, batch.Entities[0].End)
	assert.Equal(t, "trustee", text[batch.Entities[0].Start:batch.Entities[0].End])
	assert.Equal(t, "notice", text[batch.Entities[1].Start:batch.Entities[1].End])

	require.Len(t, batch.Relationships, 1)
	assert.Equal(t, 0, batch.Relationships[0].Subject)
	require.NotNil(t, batch.Relationships[0].Object)
	assert.Equal(t, 1, *batch.Relationships[0].Object)
}

func TestGroundBatch_RepeatedMentionsAdvance(t *testing.T) {
	e := testExtractor()
	text := "the creditor notifies the creditor"

	batch := e.groundBatch(text, &llmBatch{
		Entities: []llmEntity{
			{Text: "creditor", Category: "actor"},
			{Text: "creditor", Category: "actor"},
		},
	})

	require.Len(t, batch.Entities, 2)
	assert.Less(t, batch.Entities[0].Start, batch.Entities[1].Start)
}

func TestGroundBatch_DropsUnfoundQuoteAndRemapsIndices(t *testing.T) {
	e := testExtractor()
	text := "An objection must be filed before the hearing."

	obj := 2
	batch := e.groundBatch(text, &llmBatch{
		Entities: []llmEntity{
			{Text: "objection", Category: "procedure"},
			{Text: "not in the text", Category: "concept"},
			{Text: "before the hearing", Category: "deadline"},
		},
		Relationships: []llmRelationship{
			// References the dropped entity; must be dropped too.
			{Category: "generic", Predicate: "mentions", Subject: 1},
			{Category: "constraint", Predicate: "must be filed", Subject: 0, Object: &obj},
		},
	})

	require.Len(t, batch.Entities, 2)
	require.Len(t, batch.Relationships, 1)
	assert.Equal(t, 0, batch.Relationships[0].Subject)
	require.NotNil(t, batch.Relationships[0].Object)
	// Index 2 remapped to 1 after the drop.
	assert.Equal(t, 1, *batch.Relationships[0].Object)
}

func TestGroundBatch_RelationshipClauseInterval(t *testing.T) {
	e := testExtractor()
	text := "The trustee shall send the notice. The claim is barred."

	batch := e.groundBatch(text, &llmBatch{
		Entities: []llmEntity{
			{Text: "trustee", Category: "actor"},
		},
		Relationships: []llmRelationship{
			{Category: "legal-effect", Predicate: "is barred", Subject: 0, ObjectRef: "claim", Text: "The claim is barred"},
		},
	})

	require.Len(t, batch.Relationships, 1)
	rel := batch.Relationships[0]
	assert.Equal(t, "The claim is barred", text[rel.Start:rel.End])
	assert.Equal(t, "claim", rel.ObjectRef)
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "statutory-reference", normalizeCategory("Statutory Reference"))
	assert.Equal(t, "deontic-obligation", normalizeCategory("deontic_obligation"))
	assert.Equal(t, "actor", normalizeCategory("  actor "))
}

func TestIndexFrom_FallsBackToFullScan(t *testing.T) {
	text := "alpha beta gamma"
	assert.Equal(t, 0, indexFrom(text, "alpha", 10))
	assert.Equal(t, 11, indexFrom(text, "gamma", 5))
	assert.Equal(t, -1, indexFrom(text, "delta", 0))
}

var _ ai.RecordExtractor = (*RecordExtractor)(nil)
