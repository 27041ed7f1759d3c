package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

// EntityRepository implements storage.EntityRepository for BadgerDB.
type EntityRepository struct {
	backend *Backend
}

var _ storage.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(backend *Backend) (storage.EntityRepository, error) {
	return &EntityRepository{backend: backend}, nil
}

// Close releases resources. EntityRepository has no resources to release.
func (r *EntityRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *EntityRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *EntityRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// GetEntity retrieves a single entity by ID.
func (r *EntityRepository) GetEntity(ctx context.Context, id core.ID) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEntity(tx, id)
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

// GetEntities retrieves multiple entities by their IDs.
func (r *EntityRepository) GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error) {
	var results []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := readEntity(tx, id)
			if err != nil {
				return err
			}
			if entity != nil {
				results = append(results, entity)
			}
		}
		return nil
	}, false)
	return results, err
}

// GetEntitiesBySource retrieves all entities of a source in batch order.
func (r *EntityRepository) GetEntitiesBySource(ctx context.Context, sourceID core.ID) ([]*core.Entity, error) {
	return r.collectByIndex(makeEntitySourceScanPrefix(sourceID))
}

// GetEntitiesBySection retrieves the entities resolved to one section of a
// source, in batch order.
func (r *EntityRepository) GetEntitiesBySection(ctx context.Context, sourceID, sectionID core.ID) ([]*core.Entity, error) {
	return r.collectByIndex(makeEntitySectionScanPrefix(sourceID, sectionID))
}

// GetEntitiesByCanonical retrieves all entities that map to one alias cluster.
func (r *EntityRepository) GetEntitiesByCanonical(ctx context.Context, canonicalID core.ID) ([]*core.Entity, error) {
	return r.collectByIndex(makeEntityCanonicalScanPrefix(canonicalID))
}

// UpdateEntities rewrites existing entities. The span, section and source of
// an entity never change after ingestion; only vectors and canonical mapping
// do, so index maintenance is limited to the canonical index.
func (r *EntityRepository) UpdateEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entity := range entities {
			old, err := readEntity(tx, entity.Id)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}
			if err := tx.Set(makeEntityKey(entity.Id), storage.MarshalEntity(entity)); err != nil {
				return err
			}
			if old.CanonicalId != entity.CanonicalId {
				if old.CanonicalId != 0 {
					if err := tx.Delete(makeEntityCanonicalKey(old.CanonicalId, entity.Id)); err != nil {
						return err
					}
				}
				if entity.CanonicalId != 0 {
					if err := tx.Set(makeEntityCanonicalKey(entity.CanonicalId, entity.Id), storage.MarshalID(entity.Id)); err != nil {
						return err
					}
				}
			}
		}
		return tx.Commit()
	}, true)
	return entities, err
}

func (r *EntityRepository) collectByIndex(prefix []byte) ([]*core.Entity, error) {
	var results []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := scanIndexIDs(tx, prefix)
		if err != nil {
			return err
		}
		for _, id := range ids {
			entity, err := readEntity(tx, id)
			if err != nil {
				return err
			}
			if entity != nil {
				results = append(results, entity)
			}
		}
		return nil
	}, false)
	return results, err
}

// readEntity reads an entity inside a transaction. Returns nil, nil when the
// entity does not exist.
func readEntity(tx *badger.Txn, id core.ID) (*core.Entity, error) {
	item, err := tx.Get(makeEntityKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var entity *core.Entity
	err = item.Value(func(val []byte) error {
		var err error
		entity, err = storage.UnmarshalEntity(val)
		return err
	})
	return entity, err
}

// writeEntity stores an entity and all its index entries.
func writeEntity(tx *badger.Txn, entity *core.Entity) error {
	if err := tx.Set(makeEntityKey(entity.Id), storage.MarshalEntity(entity)); err != nil {
		return err
	}
	idVal := storage.MarshalID(entity.Id)
	if err := tx.Set(makeEntitySourceKey(entity.SourceId, entity.Seq), idVal); err != nil {
		return err
	}
	if err := tx.Set(makeEntitySectionKey(entity.SourceId, entity.SectionId, entity.Seq), idVal); err != nil {
		return err
	}
	if entity.CanonicalId != 0 {
		if err := tx.Set(makeEntityCanonicalKey(entity.CanonicalId, entity.Id), idVal); err != nil {
			return err
		}
	}
	return nil
}

// deleteEntity removes an entity and all its index entries.
func deleteEntity(tx *badger.Txn, entity *core.Entity) error {
	if err := tx.Delete(makeEntityKey(entity.Id)); err != nil {
		return err
	}
	if err := tx.Delete(makeEntitySourceKey(entity.SourceId, entity.Seq)); err != nil {
		return err
	}
	if err := tx.Delete(makeEntitySectionKey(entity.SourceId, entity.SectionId, entity.Seq)); err != nil {
		return err
	}
	if entity.CanonicalId != 0 {
		if err := tx.Delete(makeEntityCanonicalKey(entity.CanonicalId, entity.Id)); err != nil {
			return err
		}
	}
	return nil
}
