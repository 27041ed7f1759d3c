package ai

// EntityRecord is one extracted entity as supplied to ingestion, grounded in
// a half-open char interval of the source text. Category names use the wire
// form, e.g. "actor" or "statutory-reference".
type EntityRecord struct {
	Category string            `json:"category"`
	Start    int               `json:"start"`
	End      int               `json:"end"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// RelationshipRecord is one extracted relationship. Subject and Object are
// indices into the batch's entity list; exactly one of Object,
// ObjectEntityId and ObjectRef identifies the object. ObjectEntityId points
// at an already-ingested entity, possibly in another source; ObjectRef is an
// opaque external reference for targets outside the store.
type RelationshipRecord struct {
	Category       string `json:"category"`
	Predicate      string `json:"predicate"`
	Subject        int    `json:"subject"`
	Object         *int   `json:"object,omitempty"`
	ObjectEntityId uint64 `json:"object_entity_id,omitempty"`
	ObjectRef      string `json:"object_ref,omitempty"`
	Condition      string `json:"condition,omitempty"`
	Start          int    `json:"start,omitempty"`
	End            int    `json:"end,omitempty"`
}

// ExtractionBatch is the full record set extracted from one source text.
type ExtractionBatch struct {
	Entities      []EntityRecord       `json:"entities"`
	Relationships []RelationshipRecord `json:"relationships"`
}

// EntityCategories lists the wire names of the built-in entity taxonomy.
// Extractors must classify into one of these.
var EntityCategories = []string{
	"concept",
	"procedure",
	"deadline",
	"document-reference",
	"statutory-reference",
	"actor",
	"consequence",
}

// RelationshipCategories lists the wire names of the built-in relationship
// taxonomy.
var RelationshipCategories = []string{
	"deontic-obligation",
	"deontic-permission",
	"deontic-prohibition",
	"legal-effect",
	"entitlement",
	"constraint",
	"workflow-sequence",
	"cross-source-reference",
	"generic",
}
