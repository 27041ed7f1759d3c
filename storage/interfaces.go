package storage

import (
	"context"

	"github.com/corvid-labs/sectra/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// FindSimilar finds entities and relationships similar to the given vector.
	// Returns records with cosine similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// Posting is one lexical index entry: a term observed in a record, with its
// in-record frequency. The per-source posting list is stored alongside the
// source so re-ingestion can retract it exactly.
type Posting struct {
	Term string
	Kind core.ResultKind
	Id   core.ID
	TF   int
}

// IngestBatch is the complete output of one source ingestion, persisted
// atomically by ReplaceSource.
type IngestBatch struct {
	Source        *core.Source
	Sections      []*core.Section
	Entities      []*core.Entity
	Relationships []*core.Relationship
	Postings      []Posting
	AliasUsage    []core.AliasUsage
}

// SourceRepository provides operations for managing sources and their
// per-source records.
type SourceRepository interface {
	Repository
	// ReplaceSource atomically replaces all records of a source: the previous
	// version's sections, entities, relationships, postings and alias usage
	// are removed and the batch written in their place, together with the
	// alias clusters changed or emptied by this ingestion. Either everything
	// lands or nothing does.
	ReplaceSource(ctx context.Context, batch *IngestBatch, clusters []*core.AliasCluster, removedClusters []core.ID) error

	// GetSource retrieves a source by ID.
	// Returns ErrNotFound if the source doesn't exist.
	GetSource(ctx context.Context, id core.ID) (*core.Source, error)

	// FindSourceByKey retrieves a source by its caller-supplied key.
	// Returns ErrNotFound if no source with that key exists.
	FindSourceByKey(ctx context.Context, key string) (*core.Source, error)

	// GetSources retrieves all sources, ordered by key.
	GetSources(ctx context.Context) ([]*core.Source, error)

	// GetRecentSources retrieves the N most recently ingested sources,
	// most recent first.
	GetRecentSources(ctx context.Context, limit int) ([]*core.Source, error)

	// DeleteSource removes a source and every record derived from it, in one
	// transaction. clusters and removedClusters carry the alias cluster
	// adjustments from retracting the source's usage; pass nil to leave
	// clusters untouched. Returns ErrNotFound if the source doesn't exist.
	DeleteSource(ctx context.Context, id core.ID, clusters []*core.AliasCluster, removedClusters []core.ID) error

	// GetSections retrieves a source's sections in document order.
	GetSections(ctx context.Context, sourceID core.ID) ([]*core.Section, error)

	// GetAliasUsage retrieves the alias usage list persisted with a source.
	// Returns an empty list when the source has none.
	GetAliasUsage(ctx context.Context, sourceID core.ID) ([]core.AliasUsage, error)

	// PutAliasUsage overwrites the usage list persisted with a source. An
	// empty list removes the record. Used by renormalization; ingestion
	// writes usage through ReplaceSource.
	PutAliasUsage(ctx context.Context, sourceID core.ID, usage []core.AliasUsage) error
}

// EntityRepository provides operations for reading and updating entities.
// Entities are created only through SourceRepository.ReplaceSource.
type EntityRepository interface {
	Repository
	// GetEntity retrieves a single entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id core.ID) (*core.Entity, error)

	// GetEntities retrieves multiple entities by their IDs.
	// Returns only the entities that exist (no error for missing entities).
	GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error)

	// GetEntitiesBySource retrieves all entities of a source in batch order.
	GetEntitiesBySource(ctx context.Context, sourceID core.ID) ([]*core.Entity, error)

	// GetEntitiesBySection retrieves the entities resolved to one section of
	// a source, in batch order. It does not descend into subsections.
	GetEntitiesBySection(ctx context.Context, sourceID, sectionID core.ID) ([]*core.Entity, error)

	// GetEntitiesByCanonical retrieves all entities across sources that map
	// to one alias cluster.
	GetEntitiesByCanonical(ctx context.Context, canonicalID core.ID) ([]*core.Entity, error)

	// UpdateEntities rewrites existing entities, maintaining the canonical
	// index when CanonicalId changed. Returns ErrNotFound if any entity
	// doesn't exist.
	UpdateEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error)
}

// RelationshipRepository provides operations for reading and updating
// relationships. Relationships are created only through
// SourceRepository.ReplaceSource.
type RelationshipRepository interface {
	Repository
	// GetRelationship retrieves a single relationship by ID.
	// Returns ErrNotFound if the relationship doesn't exist.
	GetRelationship(ctx context.Context, id core.ID) (*core.Relationship, error)

	// GetRelationships retrieves multiple relationships by their IDs.
	// Returns only the relationships that exist.
	GetRelationships(ctx context.Context, ids ...core.ID) ([]*core.Relationship, error)

	// GetRelationshipsBySource retrieves all relationships of a source in
	// batch order.
	GetRelationshipsBySource(ctx context.Context, sourceID core.ID) ([]*core.Relationship, error)

	// GetRelationshipsBySubject retrieves the relationships whose subject is
	// the given entity.
	GetRelationshipsBySubject(ctx context.Context, entityID core.ID) ([]*core.Relationship, error)

	// GetRelationshipsByObject retrieves the relationships whose object is
	// the given entity, including cross-source links into it.
	GetRelationshipsByObject(ctx context.Context, entityID core.ID) ([]*core.Relationship, error)

	// UpdateRelationships rewrites existing relationships.
	// Returns ErrNotFound if any relationship doesn't exist.
	UpdateRelationships(ctx context.Context, rels ...*core.Relationship) ([]*core.Relationship, error)
}

// AliasRepository provides read access to persisted alias clusters. Cluster
// writes ride along with ReplaceSource.
type AliasRepository interface {
	Repository
	// GetAliasCluster retrieves a cluster by ID.
	// Returns ErrNotFound if the cluster doesn't exist.
	GetAliasCluster(ctx context.Context, id core.ID) (*core.AliasCluster, error)

	// GetAllAliasClusters retrieves every persisted cluster, for seeding the
	// in-memory resolver at open.
	GetAllAliasClusters(ctx context.Context) ([]*core.AliasCluster, error)

	// ReplaceAllAliasClusters rewrites the full cluster table in one
	// transaction. Used by renormalization; routine cluster maintenance
	// rides along with ReplaceSource.
	ReplaceAllAliasClusters(ctx context.Context, clusters []*core.AliasCluster) error
}

// SearchRepository provides the lexical index and embedding metadata used by
// retrieval.
type SearchRepository interface {
	Repository
	// GetPostings retrieves the posting list of a term across all sources.
	// Returns an empty list for unknown terms.
	GetPostings(ctx context.Context, term string) ([]Posting, error)

	// RecordCount returns the number of searchable records (entities plus
	// relationships) in the store.
	RecordCount(ctx context.Context) (int, error)

	// EmbeddingDimension returns the vector dimension persisted records use,
	// or 0 when no vectors have been stored yet.
	EmbeddingDimension(ctx context.Context) (int, error)

	// SetEmbeddingDimension pins the store's vector dimension. Returns
	// core.ErrEmbeddingMismatch when a different dimension is already pinned.
	SetEmbeddingDimension(ctx context.Context, dim int) error
}
