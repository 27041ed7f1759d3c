package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for all persisted record types. Written by hand against
// the mus-go primitive serializers; timestamps are stored as Unix
// microseconds.
var (
	IDMUS           = idMUS{}
	SourceMUS       = sourceMUS{}
	SectionMUS      = sectionMUS{}
	EntityMUS       = entityMUS{}
	RelationshipMUS = relationshipMUS{}
	AliasClusterMUS = aliasClusterMUS{}

	// AliasUsageListMUS serializes a source's full alias usage list.
	AliasUsageListMUS = ord.NewSliceSer[AliasUsage](aliasUsageMUS{})

	vectorMUS  = ord.NewSliceSer[float32](raw.Float32)
	attrsMUS   = ord.NewSliceSer[AttrPair](attrPairMUS{})
	membersMUS = ord.NewSliceSer[AliasMember](aliasMemberMUS{})
)

type idMUS struct{}

var _ mus.Serializer[ID] = idMUS{}

func (idMUS) Marshal(id ID, bs []byte) int { return varint.Uint64.Marshal(uint64(id), bs) }

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int { return varint.Uint64.Size(uint64(id)) }

func (idMUS) Skip(bs []byte) (int, error) { return varint.Uint64.Skip(bs) }

// timeMUS encodes time as Unix microseconds.
type timeMUS struct{}

var _ mus.Serializer[time.Time] = timeMUS{}

func (timeMUS) Marshal(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func (timeMUS) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func (timeMUS) Size(t time.Time) int { return varint.Int64.Size(t.UnixMicro()) }

func (timeMUS) Skip(bs []byte) (int, error) { return varint.Int64.Skip(bs) }

type sourceMUS struct{}

var _ mus.Serializer[Source] = sourceMUS{}

func (sourceMUS) Marshal(s Source, bs []byte) (n int) {
	n = IDMUS.Marshal(s.Id, bs)
	n += ord.String.Marshal(s.Key, bs[n:])
	n += ord.String.Marshal(s.Name, bs[n:])
	n += ord.String.Marshal(s.Domain, bs[n:])
	n += varint.Int.Marshal(s.TextLen, bs[n:])
	n += timeMUS{}.Marshal(s.IngestedAt, bs[n:])
	return
}

func (sourceMUS) Unmarshal(bs []byte) (s Source, n int, err error) {
	var m int
	if s.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if s.Key, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Domain, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.TextLen, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	s.IngestedAt, m, err = timeMUS{}.Unmarshal(bs[n:])
	n += m
	return
}

func (sourceMUS) Size(s Source) (size int) {
	size = IDMUS.Size(s.Id)
	size += ord.String.Size(s.Key)
	size += ord.String.Size(s.Name)
	size += ord.String.Size(s.Domain)
	size += varint.Int.Size(s.TextLen)
	size += timeMUS{}.Size(s.IngestedAt)
	return
}

func (m sourceMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

type sectionMUS struct{}

var _ mus.Serializer[Section] = sectionMUS{}

func (sectionMUS) Marshal(s Section, bs []byte) (n int) {
	n = IDMUS.Marshal(s.Id, bs)
	n += IDMUS.Marshal(s.SourceId, bs[n:])
	n += IDMUS.Marshal(s.ParentId, bs[n:])
	n += varint.Int.Marshal(s.Depth, bs[n:])
	n += varint.Int.Marshal(s.Ordinal, bs[n:])
	n += ord.String.Marshal(s.Number, bs[n:])
	n += ord.String.Marshal(s.Title, bs[n:])
	n += varint.Int.Marshal(s.Start, bs[n:])
	n += varint.Int.Marshal(s.End, bs[n:])
	n += ord.String.Marshal(s.Path, bs[n:])
	n += ord.Bool.Marshal(s.Synthetic, bs[n:])
	return
}

func (sectionMUS) Unmarshal(bs []byte) (s Section, n int, err error) {
	var m int
	if s.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if s.SourceId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.ParentId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Depth, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Ordinal, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Number, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Title, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Start, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.End, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Path, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	s.Synthetic, m, err = ord.Bool.Unmarshal(bs[n:])
	n += m
	return
}

func (sectionMUS) Size(s Section) (size int) {
	size = IDMUS.Size(s.Id)
	size += IDMUS.Size(s.SourceId)
	size += IDMUS.Size(s.ParentId)
	size += varint.Int.Size(s.Depth)
	size += varint.Int.Size(s.Ordinal)
	size += ord.String.Size(s.Number)
	size += ord.String.Size(s.Title)
	size += varint.Int.Size(s.Start)
	size += varint.Int.Size(s.End)
	size += ord.String.Size(s.Path)
	size += ord.Bool.Size(s.Synthetic)
	return
}

func (m sectionMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

type attrPairMUS struct{}

var _ mus.Serializer[AttrPair] = attrPairMUS{}

func (attrPairMUS) Marshal(a AttrPair, bs []byte) (n int) {
	n = ord.String.Marshal(a.Name, bs)
	n += ord.String.Marshal(a.Value, bs[n:])
	return
}

func (attrPairMUS) Unmarshal(bs []byte) (a AttrPair, n int, err error) {
	var m int
	if a.Name, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	a.Value, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	return
}

func (attrPairMUS) Size(a AttrPair) int {
	return ord.String.Size(a.Name) + ord.String.Size(a.Value)
}

func (m attrPairMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

type entityMUS struct{}

var _ mus.Serializer[Entity] = entityMUS{}

func (entityMUS) Marshal(e Entity, bs []byte) (n int) {
	n = IDMUS.Marshal(e.Id, bs)
	n += IDMUS.Marshal(e.SourceId, bs[n:])
	n += varint.Int.Marshal(int(e.Category), bs[n:])
	n += varint.Int.Marshal(e.Start, bs[n:])
	n += varint.Int.Marshal(e.End, bs[n:])
	n += ord.String.Marshal(e.Text, bs[n:])
	n += attrsMUS.Marshal(e.Attrs, bs[n:])
	n += IDMUS.Marshal(e.SectionId, bs[n:])
	n += IDMUS.Marshal(e.CanonicalId, bs[n:])
	n += ord.Bool.Marshal(e.Crossing, bs[n:])
	n += ord.Bool.Marshal(e.Unsectioned, bs[n:])
	n += varint.Int.Marshal(e.Seq, bs[n:])
	n += vectorMUS.Marshal(e.Vector, bs[n:])
	return
}

func (entityMUS) Unmarshal(bs []byte) (e Entity, n int, err error) {
	var (
		m int
		c int
	)
	if e.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if e.SourceId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if c, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	e.Category = EntityCategory(c)
	n += m
	if e.Start, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if e.End, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if e.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if e.Attrs, m, err = attrsMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if e.SectionId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if e.CanonicalId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if e.Crossing, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if e.Unsectioned, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	if e.Seq, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + m, err
	}
	n += m
	e.Vector, m, err = vectorMUS.Unmarshal(bs[n:])
	n += m
	return
}

func (entityMUS) Size(e Entity) (size int) {
	size = IDMUS.Size(e.Id)
	size += IDMUS.Size(e.SourceId)
	size += varint.Int.Size(int(e.Category))
	size += varint.Int.Size(e.Start)
	size += varint.Int.Size(e.End)
	size += ord.String.Size(e.Text)
	size += attrsMUS.Size(e.Attrs)
	size += IDMUS.Size(e.SectionId)
	size += IDMUS.Size(e.CanonicalId)
	size += ord.Bool.Size(e.Crossing)
	size += ord.Bool.Size(e.Unsectioned)
	size += varint.Int.Size(e.Seq)
	size += vectorMUS.Size(e.Vector)
	return
}

func (m entityMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

type relationshipMUS struct{}

var _ mus.Serializer[Relationship] = relationshipMUS{}

func (relationshipMUS) Marshal(r Relationship, bs []byte) (n int) {
	n = IDMUS.Marshal(r.Id, bs)
	n += IDMUS.Marshal(r.SourceId, bs[n:])
	n += varint.Int.Marshal(int(r.Category), bs[n:])
	n += IDMUS.Marshal(r.SubjectId, bs[n:])
	n += ord.String.Marshal(r.Predicate, bs[n:])
	n += IDMUS.Marshal(r.ObjectId, bs[n:])
	n += ord.String.Marshal(r.ObjectRef, bs[n:])
	n += ord.String.Marshal(r.Condition, bs[n:])
	n += IDMUS.Marshal(r.SectionId, bs[n:])
	n += ord.Bool.Marshal(r.Unsectioned, bs[n:])
	n += varint.Int.Marshal(r.Seq, bs[n:])
	n += vectorMUS.Marshal(r.Vector, bs[n:])
	return
}

func (relationshipMUS) Unmarshal(bs []byte) (r Relationship, n int, err error) {
	var (
		m int
		c int
	)
	if r.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if r.SourceId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if c, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	r.Category = RelationshipCategory(c)
	n += m
	if r.SubjectId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Predicate, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.ObjectId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.ObjectRef, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Condition, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.SectionId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Unsectioned, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Seq, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	r.Vector, m, err = vectorMUS.Unmarshal(bs[n:])
	n += m
	return
}

func (relationshipMUS) Size(r Relationship) (size int) {
	size = IDMUS.Size(r.Id)
	size += IDMUS.Size(r.SourceId)
	size += varint.Int.Size(int(r.Category))
	size += IDMUS.Size(r.SubjectId)
	size += ord.String.Size(r.Predicate)
	size += IDMUS.Size(r.ObjectId)
	size += ord.String.Size(r.ObjectRef)
	size += ord.String.Size(r.Condition)
	size += IDMUS.Size(r.SectionId)
	size += ord.Bool.Size(r.Unsectioned)
	size += varint.Int.Size(r.Seq)
	size += vectorMUS.Size(r.Vector)
	return
}

func (m relationshipMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

type aliasMemberMUS struct{}

var _ mus.Serializer[AliasMember] = aliasMemberMUS{}

func (aliasMemberMUS) Marshal(a AliasMember, bs []byte) (n int) {
	n = ord.String.Marshal(a.Surface, bs)
	n += ord.String.Marshal(a.Norm, bs[n:])
	n += varint.Int.Marshal(a.Count, bs[n:])
	return
}

func (aliasMemberMUS) Unmarshal(bs []byte) (a AliasMember, n int, err error) {
	var m int
	if a.Surface, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if a.Norm, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + m, err
	}
	n += m
	a.Count, m, err = varint.Int.Unmarshal(bs[n:])
	n += m
	return
}

func (aliasMemberMUS) Size(a AliasMember) int {
	return ord.String.Size(a.Surface) + ord.String.Size(a.Norm) + varint.Int.Size(a.Count)
}

func (m aliasMemberMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

type aliasUsageMUS struct{}

var _ mus.Serializer[AliasUsage] = aliasUsageMUS{}

func (aliasUsageMUS) Marshal(u AliasUsage, bs []byte) (n int) {
	n = IDMUS.Marshal(u.ClusterId, bs)
	n += ord.String.Marshal(u.Surface, bs[n:])
	n += varint.Int.Marshal(u.Count, bs[n:])
	return
}

func (aliasUsageMUS) Unmarshal(bs []byte) (u AliasUsage, n int, err error) {
	var m int
	if u.ClusterId, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if u.Surface, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return u, n + m, err
	}
	n += m
	u.Count, m, err = varint.Int.Unmarshal(bs[n:])
	n += m
	return
}

func (aliasUsageMUS) Size(u AliasUsage) int {
	return IDMUS.Size(u.ClusterId) + ord.String.Size(u.Surface) + varint.Int.Size(u.Count)
}

func (m aliasUsageMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

type aliasClusterMUS struct{}

var _ mus.Serializer[AliasCluster] = aliasClusterMUS{}

func (aliasClusterMUS) Marshal(a AliasCluster, bs []byte) (n int) {
	n = IDMUS.Marshal(a.Id, bs)
	n += varint.Int.Marshal(int(a.Category), bs[n:])
	n += ord.String.Marshal(a.Label, bs[n:])
	n += membersMUS.Marshal(a.Members, bs[n:])
	n += timeMUS{}.Marshal(a.UpdatedAt, bs[n:])
	return
}

func (aliasClusterMUS) Unmarshal(bs []byte) (a AliasCluster, n int, err error) {
	var (
		m int
		c int
	)
	if a.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if c, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return a, n + m, err
	}
	a.Category = EntityCategory(c)
	n += m
	if a.Label, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return a, n + m, err
	}
	n += m
	if a.Members, m, err = membersMUS.Unmarshal(bs[n:]); err != nil {
		return a, n + m, err
	}
	n += m
	a.UpdatedAt, m, err = timeMUS{}.Unmarshal(bs[n:])
	n += m
	return
}

func (aliasClusterMUS) Size(a AliasCluster) (size int) {
	size = IDMUS.Size(a.Id)
	size += varint.Int.Size(int(a.Category))
	size += ord.String.Size(a.Label)
	size += membersMUS.Size(a.Members)
	size += timeMUS{}.Size(a.UpdatedAt)
	return
}

func (m aliasClusterMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}
