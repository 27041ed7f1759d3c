package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sectra/core"
)

func TestEntityRoundTrip(t *testing.T) {
	entity := &core.Entity{
		Id:          core.EntityIDFor("bia-1985", 3),
		SourceId:    core.SourceIDFromKey("bia-1985"),
		Category:    core.EntityActor,
		Start:       120,
		End:         152,
		Text:        "licensed insolvency trustee",
		Attrs:       []core.AttrPair{{Name: "role", Value: "administrator"}},
		SectionId:   7,
		CanonicalId: core.AliasClusterIDFor(core.EntityActor, "trustee"),
		Crossing:    true,
		Seq:         3,
		Vector:      []float32{0.25, -0.5, 0.125},
	}

	got, err := UnmarshalEntity(MarshalEntity(entity))
	require.NoError(t, err)
	assert.Equal(t, entity, got)
}

func TestSectionRoundTrip(t *testing.T) {
	sec := &core.Section{
		Id:       4,
		SourceId: core.SourceIDFromKey("bia-1985"),
		ParentId: 2,
		Depth:    2,
		Ordinal:  1,
		Number:   "4.3.18",
		Title:    "Notice",
		Start:    1024,
		End:      2048,
		Path:     "4 Division I > 4.3 Proposals > 4.3.18 Notice",
	}

	got, err := UnmarshalSection(MarshalSection(sec))
	require.NoError(t, err)
	assert.Equal(t, sec, got)
}

func TestSourceRoundTripNormalizesTime(t *testing.T) {
	src := &core.Source{
		Id:         core.SourceIDFromKey("bia-1985"),
		Key:        "bia-1985",
		Name:       "Bankruptcy and Insolvency Act",
		Domain:     "statute",
		TextLen:    98765,
		IngestedAt: time.Now(),
	}

	got, err := UnmarshalSource(MarshalSource(src))
	require.NoError(t, err)
	// Timestamps are stored at microsecond precision in UTC.
	assert.Equal(t, src.IngestedAt.UnixMicro(), got.IngestedAt.UnixMicro())
	assert.Equal(t, time.UTC, got.IngestedAt.Location())
	assert.Equal(t, src.Key, got.Key)
}

func TestAliasClusterRoundTrip(t *testing.T) {
	cluster := &core.AliasCluster{
		Id:       core.AliasClusterIDFor(core.EntityActor, "trustee"),
		Category: core.EntityActor,
		Label:    "Trustee",
		Members: []core.AliasMember{
			{Surface: "Trustee", Norm: "trustee", Count: 12},
			{Surface: "trustees", Norm: "trustees", Count: 2},
		},
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	got, err := UnmarshalAliasCluster(MarshalAliasCluster(cluster))
	require.NoError(t, err)
	assert.Equal(t, cluster, got)
}

func TestPostingsRoundTrip(t *testing.T) {
	postings := []Posting{
		{Term: "trustee", Kind: core.KindEntity, Id: 42, TF: 3},
		{Term: "notice", Kind: core.KindRelationship, Id: 7, TF: 1},
	}

	got, err := UnmarshalPostings(MarshalPostings(postings))
	require.NoError(t, err)
	assert.Equal(t, postings, got)
}

func TestUnmarshalTruncatedData(t *testing.T) {
	data := MarshalEntity(&core.Entity{
		Id:   1,
		Text: "truncate me",
	})
	_, err := UnmarshalEntity(data[:len(data)-4])
	assert.Error(t, err)
}
