package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCategoryConfig(t *testing.T) {
	cfg := DefaultCategoryConfig()

	actor, ok := cfg.EntityCategoryByName("actor")
	require.True(t, ok)
	assert.Equal(t, EntityActor, actor)

	obligation, ok := cfg.RelationshipCategoryByName("deontic-obligation")
	require.True(t, ok)
	assert.Equal(t, RelDeonticObligation, obligation)

	_, ok = cfg.EntityCategoryByName("nonexistent")
	assert.False(t, ok)

	assert.True(t, cfg.Normalizable(EntityActor))
	assert.False(t, cfg.Normalizable(EntityConcept))

	assert.True(t, cfg.AllowedAttr(EntityActor, "role"))
	assert.False(t, cfg.AllowedAttr(EntityActor, "citation"))

	// Unrestricted categories accept any predicate.
	assert.True(t, cfg.AllowedPredicate(RelDeonticObligation, "shall file"))
}

func TestRegisterEntityCategory(t *testing.T) {
	cfg := DefaultCategoryConfig()

	citation := cfg.RegisterEntityCategory("case-citation", false, "reporter", "year")
	assert.GreaterOrEqual(t, citation, EntityCategoryExtensionBase)
	assert.Equal(t, "case-citation", cfg.EntityCategoryName(citation))

	resolved, ok := cfg.EntityCategoryByName("case-citation")
	require.True(t, ok)
	assert.Equal(t, citation, resolved)

	assert.True(t, cfg.AllowedAttr(citation, "reporter"))
	assert.False(t, cfg.AllowedAttr(citation, "role"))
	assert.False(t, cfg.Normalizable(citation))

	// Re-registration is idempotent.
	assert.Equal(t, citation, cfg.RegisterEntityCategory("case-citation", false))

	court := cfg.RegisterEntityCategory("court", true)
	assert.NotEqual(t, citation, court)
	assert.True(t, cfg.Normalizable(court))
}

func TestRegisterRelationshipCategory(t *testing.T) {
	cfg := DefaultCategoryConfig()

	cites := cfg.RegisterRelationshipCategory("cites", "follows", "distinguishes")
	assert.GreaterOrEqual(t, cites, RelationshipCategoryExtensionBase)

	assert.True(t, cfg.AllowedPredicate(cites, "follows"))
	assert.False(t, cfg.AllowedPredicate(cites, "shall file"))

	// Registered without predicates means unrestricted until bounded.
	refers := cfg.RegisterRelationshipCategory("refers-to")
	assert.True(t, cfg.AllowedPredicate(refers, "anything"))
	cfg.RestrictPredicates(refers, "mentions")
	assert.True(t, cfg.AllowedPredicate(refers, "mentions"))
	assert.False(t, cfg.AllowedPredicate(refers, "anything"))
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "actor", EntityActor.String())
	assert.Equal(t, "deontic-obligation", RelDeonticObligation.String())
	assert.Contains(t, EntityCategory(999).String(), "999")
}

func TestValidateEntity(t *testing.T) {
	cfg := DefaultCategoryConfig()

	valid := &Entity{Category: EntityActor, Start: 0, End: 7, Text: "trustee"}
	assert.NoError(t, ValidateEntity(valid, 100, cfg))

	assert.ErrorIs(t, ValidateEntity(nil, 100, cfg), ErrInvalidEntity)

	inverted := &Entity{Category: EntityActor, Start: 7, End: 7}
	assert.ErrorIs(t, ValidateEntity(inverted, 100, cfg), ErrInvalidEntity)

	beyond := &Entity{Category: EntityActor, Start: 100, End: 105}
	assert.ErrorIs(t, ValidateEntity(beyond, 100, cfg), ErrInvalidEntity)

	badAttr := &Entity{Category: EntityActor, Start: 0, End: 7, Attrs: []AttrPair{{Name: "citation", Value: "x"}}}
	assert.ErrorIs(t, ValidateEntity(badAttr, 100, cfg), ErrInvalidEntity)

	unnamed := &Entity{Category: EntityActor, Start: 0, End: 7, Attrs: []AttrPair{{Value: "x"}}}
	assert.ErrorIs(t, ValidateEntity(unnamed, 100, cfg), ErrInvalidEntity)
}

func TestValidateRelationship(t *testing.T) {
	cfg := DefaultCategoryConfig()

	valid := &Relationship{Category: RelDeonticObligation, Predicate: "shall file", SubjectId: 1, ObjectId: 2}
	assert.NoError(t, ValidateRelationship(valid, cfg))

	external := &Relationship{Category: RelCrossSourceRef, Predicate: "refers to", SubjectId: 1, ObjectRef: "s. 50.4"}
	assert.NoError(t, ValidateRelationship(external, cfg))

	assert.ErrorIs(t, ValidateRelationship(nil, cfg), ErrInvalidRelationship)

	noPredicate := &Relationship{Category: RelGeneric, SubjectId: 1, ObjectId: 2}
	assert.ErrorIs(t, ValidateRelationship(noPredicate, cfg), ErrInvalidRelationship)

	noSubject := &Relationship{Category: RelGeneric, Predicate: "links", ObjectId: 2}
	assert.ErrorIs(t, ValidateRelationship(noSubject, cfg), ErrInvalidRelationship)

	noObject := &Relationship{Category: RelGeneric, Predicate: "links", SubjectId: 1}
	assert.ErrorIs(t, ValidateRelationship(noObject, cfg), ErrInvalidRelationship)

	bothObjects := &Relationship{Category: RelGeneric, Predicate: "links", SubjectId: 1, ObjectId: 2, ObjectRef: "x"}
	assert.ErrorIs(t, ValidateRelationship(bothObjects, cfg), ErrInvalidRelationship)
}

func TestValidateInterval(t *testing.T) {
	assert.NoError(t, ValidateInterval(0, 5, 10))
	assert.ErrorIs(t, ValidateInterval(-1, 5, 10), ErrInvalidInterval)
	assert.ErrorIs(t, ValidateInterval(5, 5, 10), ErrInvalidInterval)
	assert.ErrorIs(t, ValidateInterval(6, 5, 10), ErrInvalidInterval)
	assert.ErrorIs(t, ValidateInterval(10, 12, 10), ErrInvalidInterval)
}
