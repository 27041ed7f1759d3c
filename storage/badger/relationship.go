package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

// RelationshipRepository implements storage.RelationshipRepository for BadgerDB.
type RelationshipRepository struct {
	backend *Backend
}

var _ storage.RelationshipRepository = (*RelationshipRepository)(nil)

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository(backend *Backend) (storage.RelationshipRepository, error) {
	return &RelationshipRepository{backend: backend}, nil
}

// Close releases resources. RelationshipRepository has no resources to release.
func (r *RelationshipRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *RelationshipRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *RelationshipRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// GetRelationship retrieves a single relationship by ID.
func (r *RelationshipRepository) GetRelationship(ctx context.Context, id core.ID) (*core.Relationship, error) {
	var result *core.Relationship
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRelationship(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetRelationships retrieves multiple relationships by their IDs.
func (r *RelationshipRepository) GetRelationships(ctx context.Context, ids ...core.ID) ([]*core.Relationship, error) {
	var results []*core.Relationship
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			rel, err := readRelationship(tx, id)
			if err != nil {
				return err
			}
			if rel != nil {
				results = append(results, rel)
			}
		}
		return nil
	}, false)
	return results, err
}

// GetRelationshipsBySource retrieves all relationships of a source in batch order.
func (r *RelationshipRepository) GetRelationshipsBySource(ctx context.Context, sourceID core.ID) ([]*core.Relationship, error) {
	return r.collectByIndex(makeRelationshipSourceScanPrefix(sourceID))
}

// GetRelationshipsBySubject retrieves the relationships whose subject is the
// given entity.
func (r *RelationshipRepository) GetRelationshipsBySubject(ctx context.Context, entityID core.ID) ([]*core.Relationship, error) {
	return r.collectByIndex(makeRelationshipSubjectScanPrefix(entityID))
}

// GetRelationshipsByObject retrieves the relationships whose object is the
// given entity, including cross-source links into it.
func (r *RelationshipRepository) GetRelationshipsByObject(ctx context.Context, entityID core.ID) ([]*core.Relationship, error) {
	return r.collectByIndex(makeRelationshipObjectScanPrefix(entityID))
}

// UpdateRelationships rewrites existing relationships. Subject, object and
// section never change after ingestion, so no index maintenance is needed.
func (r *RelationshipRepository) UpdateRelationships(ctx context.Context, rels ...*core.Relationship) ([]*core.Relationship, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, rel := range rels {
			old, err := readRelationship(tx, rel.Id)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}
			if err := tx.Set(makeRelationshipKey(rel.Id), storage.MarshalRelationship(rel)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return rels, err
}

func (r *RelationshipRepository) collectByIndex(prefix []byte) ([]*core.Relationship, error) {
	var results []*core.Relationship
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := scanIndexIDs(tx, prefix)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rel, err := readRelationship(tx, id)
			if err != nil {
				return err
			}
			if rel != nil {
				results = append(results, rel)
			}
		}
		return nil
	}, false)
	return results, err
}

// readRelationship reads a relationship inside a transaction. Returns nil,
// nil when the relationship does not exist.
func readRelationship(tx *badger.Txn, id core.ID) (*core.Relationship, error) {
	item, err := tx.Get(makeRelationshipKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var rel *core.Relationship
	err = item.Value(func(val []byte) error {
		var err error
		rel, err = storage.UnmarshalRelationship(val)
		return err
	})
	return rel, err
}

// writeRelationship stores a relationship and all its index entries.
func writeRelationship(tx *badger.Txn, rel *core.Relationship) error {
	if err := tx.Set(makeRelationshipKey(rel.Id), storage.MarshalRelationship(rel)); err != nil {
		return err
	}
	idVal := storage.MarshalID(rel.Id)
	if err := tx.Set(makeRelationshipSourceKey(rel.SourceId, rel.Seq), idVal); err != nil {
		return err
	}
	if err := tx.Set(makeRelationshipSubjectKey(rel.SubjectId, rel.Id), idVal); err != nil {
		return err
	}
	if rel.ObjectId != 0 {
		if err := tx.Set(makeRelationshipObjectKey(rel.ObjectId, rel.Id), idVal); err != nil {
			return err
		}
	}
	return nil
}

// deleteRelationship removes a relationship and all its index entries.
func deleteRelationship(tx *badger.Txn, rel *core.Relationship) error {
	if err := tx.Delete(makeRelationshipKey(rel.Id)); err != nil {
		return err
	}
	if err := tx.Delete(makeRelationshipSourceKey(rel.SourceId, rel.Seq)); err != nil {
		return err
	}
	if err := tx.Delete(makeRelationshipSubjectKey(rel.SubjectId, rel.Id)); err != nil {
		return err
	}
	if rel.ObjectId != 0 {
		if err := tx.Delete(makeRelationshipObjectKey(rel.ObjectId, rel.Id)); err != nil {
			return err
		}
	}
	return nil
}
