package sectionindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sectra/core"
)

func TestResolve_DeepestEnclosingSection(t *testing.T) {
	tree := buildFixture(t)

	start := strings.Index(statuteFixture, "The act applies")
	path, err := tree.Resolve(start, start+len("The act"))
	require.NoError(t, err)
	require.Len(t, path.Sections, 2)
	assert.Equal(t, "1 Introduction > 1.1 Scope", path.String())
	assert.False(t, path.Crossing)
	assert.False(t, path.Unsectioned)
	assert.Equal(t, "1.1", path.Leaf().Number)
}

func TestResolve_HeadingOffsetBelongsToItsSection(t *testing.T) {
	tree := buildFixture(t)

	start := strings.Index(statuteFixture, "1.2 Definitions")
	path, err := tree.Resolve(start, start+3)
	require.NoError(t, err)
	assert.Equal(t, "1 Introduction > 1.2 Definitions", path.String())
}

func TestResolve_CrossingInterval(t *testing.T) {
	tree := buildFixture(t)

	// Anchored in 1.1 but running into 1.2: the leaf stays 1.1 and the path
	// is flagged, never truncated.
	start := strings.Index(statuteFixture, "The act applies")
	end := strings.Index(statuteFixture, "trustee means")
	path, err := tree.Resolve(start, end)
	require.NoError(t, err)
	assert.True(t, path.Crossing)
	assert.Equal(t, "1.1", path.Leaf().Number)
}

func TestResolve_OutsideAllRanges(t *testing.T) {
	tree := buildFixture(t)

	path, err := tree.Resolve(len(statuteFixture), len(statuteFixture)+5)
	assert.ErrorIs(t, err, core.ErrResolution)
	assert.True(t, path.Unsectioned)
	assert.Empty(t, path.Sections)
}

func TestResolve_Deterministic(t *testing.T) {
	tree := buildFixture(t)

	start := strings.Index(statuteFixture, "trustee shall")
	first, err := tree.Resolve(start, start+7)
	require.NoError(t, err)
	second, err := tree.Resolve(start, start+7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNewTree_RejectsGappedIds(t *testing.T) {
	_, err := NewTree([]*core.Section{
		{Id: 1, Start: 0, End: 10},
		{Id: 3, Start: 10, End: 20},
	})
	assert.Error(t, err)
}

func TestSection_OutOfRange(t *testing.T) {
	tree := buildFixture(t)
	assert.Nil(t, tree.Section(0))
	assert.Nil(t, tree.Section(core.ID(tree.Len()+1)))
}

func TestValidate_SiblingOverlap(t *testing.T) {
	tree, err := NewTree([]*core.Section{
		{Id: 1, Number: "1", Start: 0, End: 10},
		{Id: 2, Number: "2", Start: 5, End: 15},
	})
	require.NoError(t, err)
	err = tree.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestValidate_ChildEscapesParent(t *testing.T) {
	tree, err := NewTree([]*core.Section{
		{Id: 1, Number: "1", Start: 0, End: 10},
		{Id: 2, ParentId: 1, Number: "1.1", Start: 5, End: 20},
	})
	require.NoError(t, err)
	err = tree.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes parent")
}

func TestValidate_ZeroWidthSyntheticExempt(t *testing.T) {
	tree, err := NewTree([]*core.Section{
		{Id: 1, Number: "1", Start: 0, End: 10},
		{Id: 2, Synthetic: true, Start: 10, End: 10},
	})
	require.NoError(t, err)
	assert.NoError(t, tree.Validate())
}
