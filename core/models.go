package core

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain records.
// It is generated using content-based hashing so that identical inputs
// always map to identical identifiers.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Source is one ingested document. Sources are isolated from each other
// except via explicit cross-source relationships.
type Source struct {
	Id         ID
	Key        string // caller-supplied stable identifier, e.g. "bia-1985"
	Name       string // display name
	Domain     string // domain tag, e.g. "statute", "educational"
	TextLen    int    // length of the raw text in bytes
	IngestedAt time.Time
}

// SourceIDFromKey derives the Source ID for a caller-supplied key.
func SourceIDFromKey(key string) ID {
	return IDFromContent("src|" + key)
}

// Section is one node of a document's hierarchical structure. Section
// intervals within a source are half-open [Start, End), strictly nested,
// and siblings never overlap.
type Section struct {
	Id        ID // document-order ordinal within the source, 1-based
	SourceId  ID
	ParentId  ID // 0 for roots
	Depth     int
	Ordinal   int    // position among siblings, 0-based
	Number    string // numbering prefix, e.g. "4.3.18"; empty for unnumbered headings
	Title     string
	Start     int
	End       int
	Path      string // full path, e.g. "4 Division I > 4.3 Proposals > 4.3.18 Notice"
	Synthetic bool   // placeholder inserted for a skipped depth, or the unsectioned root
}

// Label returns the section's heading as it appears in the path string.
func (s *Section) Label() string {
	if s.Number == "" {
		return s.Title
	}
	if s.Title == "" {
		return s.Number
	}
	return s.Number + " " + s.Title
}

// Contains reports whether the char offset falls inside the section's interval.
func (s *Section) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// AttrPair is one named attribute value on an entity. Attribute order is
// preserved from the extraction record.
type AttrPair struct {
	Name  string
	Value string
}

// Entity is one atomic extracted fact, grounded in a char interval of its
// source. Entities are immutable after ingestion and replaced wholesale on
// source re-ingestion.
type Entity struct {
	Id          ID
	SourceId    ID
	Category    EntityCategory
	Start       int
	End         int
	Text        string // raw text of the char interval, kept for retrieval
	Attrs       []AttrPair
	SectionId   ID // resolved by ingestion, never 0 after successful ingestion
	CanonicalId ID // alias cluster id for normalizable categories, else 0
	Crossing    bool // interval runs past the resolved section's end
	Unsectioned bool // Start fell outside all known section ranges
	Seq         int  // position within the source's ingestion batch
	Vector      []float32
}

// EntityIDFor derives the deterministic entity ID for a record position
// within a source's extraction batch.
func EntityIDFor(sourceKey string, seq int) ID {
	return IDFromContent("ent|" + sourceKey + "|" + strconv.Itoa(seq))
}

// SearchText returns the searchable text of the entity: its raw span plus
// attribute values.
func (e *Entity) SearchText() string {
	if len(e.Attrs) == 0 {
		return e.Text
	}
	parts := make([]string, 0, len(e.Attrs)+1)
	parts = append(parts, e.Text)
	for _, attr := range e.Attrs {
		parts = append(parts, attr.Value)
	}
	return strings.Join(parts, " ")
}

// Relationship is a typed link between two entities, or between an entity
// and an external reference string.
type Relationship struct {
	Id          ID
	SourceId    ID
	Category    RelationshipCategory
	SubjectId   ID
	Predicate   string
	ObjectId    ID     // 0 when the object is an external reference
	ObjectRef   string // external reference string, exclusive with ObjectId
	Condition   string
	SectionId   ID
	Unsectioned bool
	Seq         int
	Vector      []float32
}

// RelationshipIDFor derives the deterministic relationship ID for a record
// position within a source's extraction batch.
func RelationshipIDFor(sourceKey string, seq int) ID {
	return IDFromContent("rel|" + sourceKey + "|" + strconv.Itoa(seq))
}

// Text returns the searchable text of the relationship.
func (r *Relationship) SearchText() string {
	text := r.Predicate
	if r.Condition != "" {
		text += " " + r.Condition
	}
	if r.ObjectRef != "" {
		text += " " + r.ObjectRef
	}
	return text
}

// AliasMember is one surface form inside an alias cluster, with its
// normalized key and observation count.
type AliasMember struct {
	Surface string
	Norm    string
	Count   int
}

// AliasCluster groups surface forms considered the same real-world actor or
// role. The cluster Id is stable for the cluster's lifetime; the Label is
// recomputed as member frequencies change.
type AliasCluster struct {
	Id        ID
	Category  EntityCategory
	Label     string
	Members   []AliasMember
	UpdatedAt time.Time
}

// AliasClusterIDFor derives the stable cluster ID from the founding member's
// normalized key. Later label promotions never change it.
func AliasClusterIDFor(category EntityCategory, norm string) ID {
	return IDFromContent("alias|" + strconv.Itoa(int(category)) + "|" + norm)
}

// AliasUsage records how often one surface form of a source mapped into an
// alias cluster. The per-source usage list lets re-ingestion retract exactly
// the counts the previous version of the source contributed.
type AliasUsage struct {
	ClusterId ID
	Surface   string
	Count     int
}

// ResultKind discriminates the record type behind a search result.
type ResultKind int

const (
	// KindEntity marks a result backed by an Entity.
	KindEntity ResultKind = iota + 1
	// KindRelationship marks a result backed by a Relationship.
	KindRelationship
)

// SearchResult is a ranked retrieval hit. Exactly one of Entity and
// Relationship is set, per Kind.
type SearchResult struct {
	Kind         ResultKind
	Entity       *Entity
	Relationship *Relationship
	Score        float32
	Lexical      float32 // normalized lexical component
	Vector       float32 // normalized vector component, 0 when unavailable
}

// Id returns the identifier of the underlying record.
func (r *SearchResult) Id() ID {
	if r.Kind == KindEntity {
		return r.Entity.Id
	}
	return r.Relationship.Id
}

// SectionPath is the root-to-leaf sequence of sections enclosing a char
// interval, plus resolution diagnostics.
type SectionPath struct {
	Sections    []*Section
	Crossing    bool // the interval's end runs past the leaf section
	Unsectioned bool // the interval's start was outside all known ranges
}

// Leaf returns the deepest section of the path, or nil for an empty path.
func (p *SectionPath) Leaf() *Section {
	if len(p.Sections) == 0 {
		return nil
	}
	return p.Sections[len(p.Sections)-1]
}

// String renders the path in display form.
func (p *SectionPath) String() string {
	if leaf := p.Leaf(); leaf != nil {
		return leaf.Path
	}
	return ""
}
