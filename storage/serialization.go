// Copyright 2026 Corvid Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/corvid-labs/sectra/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalSource serializes a Source to bytes.
func MarshalSource(src *core.Source) []byte {
	buf := make([]byte, core.SourceMUS.Size(*src))
	core.SourceMUS.Marshal(*src, buf)
	return buf
}

// UnmarshalSource deserializes a Source from bytes.
func UnmarshalSource(data []byte) (*core.Source, error) {
	src, _, err := core.SourceMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// MarshalSection serializes a Section to bytes.
func MarshalSection(sec *core.Section) []byte {
	buf := make([]byte, core.SectionMUS.Size(*sec))
	core.SectionMUS.Marshal(*sec, buf)
	return buf
}

// UnmarshalSection deserializes a Section from bytes.
func UnmarshalSection(data []byte) (*core.Section, error) {
	sec, _, err := core.SectionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// MarshalEntity serializes an Entity to bytes.
func MarshalEntity(entity *core.Entity) []byte {
	buf := make([]byte, core.EntityMUS.Size(*entity))
	core.EntityMUS.Marshal(*entity, buf)
	return buf
}

// UnmarshalEntity deserializes an Entity from bytes.
func UnmarshalEntity(data []byte) (*core.Entity, error) {
	entity, _, err := core.EntityMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// MarshalRelationship serializes a Relationship to bytes.
func MarshalRelationship(rel *core.Relationship) []byte {
	buf := make([]byte, core.RelationshipMUS.Size(*rel))
	core.RelationshipMUS.Marshal(*rel, buf)
	return buf
}

// UnmarshalRelationship deserializes a Relationship from bytes.
func UnmarshalRelationship(data []byte) (*core.Relationship, error) {
	rel, _, err := core.RelationshipMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// MarshalAliasCluster serializes an AliasCluster to bytes.
func MarshalAliasCluster(cluster *core.AliasCluster) []byte {
	buf := make([]byte, core.AliasClusterMUS.Size(*cluster))
	core.AliasClusterMUS.Marshal(*cluster, buf)
	return buf
}

// UnmarshalAliasCluster deserializes an AliasCluster from bytes.
func UnmarshalAliasCluster(data []byte) (*core.AliasCluster, error) {
	cluster, _, err := core.AliasClusterMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &cluster, nil
}

// MarshalAliasUsage serializes a source's alias usage list to bytes.
func MarshalAliasUsage(usage []core.AliasUsage) []byte {
	buf := make([]byte, core.AliasUsageListMUS.Size(usage))
	core.AliasUsageListMUS.Marshal(usage, buf)
	return buf
}

// UnmarshalAliasUsage deserializes a source's alias usage list from bytes.
func UnmarshalAliasUsage(data []byte) ([]core.AliasUsage, error) {
	usage, _, err := core.AliasUsageListMUS.Unmarshal(data)
	return usage, err
}

// postingMUS serializes one lexical posting.
type postingMUS struct{}

func (postingMUS) Marshal(p Posting, bs []byte) (n int) {
	n = ord.String.Marshal(p.Term, bs)
	n += varint.Int.Marshal(int(p.Kind), bs[n:])
	n += core.IDMUS.Marshal(p.Id, bs[n:])
	n += varint.Int.Marshal(p.TF, bs[n:])
	return
}

func (postingMUS) Unmarshal(bs []byte) (p Posting, n int, err error) {
	var (
		m int
		k int
	)
	if p.Term, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if k, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return p, n + m, err
	}
	p.Kind = core.ResultKind(k)
	n += m
	if p.Id, m, err = core.IDMUS.Unmarshal(bs[n:]); err != nil {
		return p, n + m, err
	}
	n += m
	p.TF, m, err = varint.Int.Unmarshal(bs[n:])
	n += m
	return
}

func (postingMUS) Size(p Posting) int {
	return ord.String.Size(p.Term) + varint.Int.Size(int(p.Kind)) +
		core.IDMUS.Size(p.Id) + varint.Int.Size(p.TF)
}

func (m postingMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

var postingsMUS = ord.NewSliceSer[Posting](postingMUS{})

// MarshalPostings serializes a source's posting list to bytes.
func MarshalPostings(postings []Posting) []byte {
	buf := make([]byte, postingsMUS.Size(postings))
	postingsMUS.Marshal(postings, buf)
	return buf
}

// UnmarshalPostings deserializes a source's posting list from bytes.
func UnmarshalPostings(data []byte) ([]Posting, error) {
	postings, _, err := postingsMUS.Unmarshal(data)
	return postings, err
}
