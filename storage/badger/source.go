package badger

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/varint"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

// SourceRepository implements storage.SourceRepository for BadgerDB.
type SourceRepository struct {
	backend *Backend
}

var _ storage.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(backend *Backend) (storage.SourceRepository, error) {
	return &SourceRepository{backend: backend}, nil
}

// Close releases resources. SourceRepository has no resources to release.
func (r *SourceRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *SourceRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *SourceRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// ReplaceSource atomically swaps a source's full record set. The previous
// version, when present, is removed inside the same transaction, so readers
// never observe a partially ingested source.
func (r *SourceRepository) ReplaceSource(ctx context.Context, batch *storage.IngestBatch, clusters []*core.AliasCluster, removedClusters []core.ID) error {
	if batch == nil || batch.Source == nil {
		return storage.ErrInvalidQuery
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		// Entity ids are content-derived, so a re-ingest keeping an entity
		// reuses its id; inbound links into those must stay resolved.
		surviving := make(map[core.ID]bool, len(batch.Entities))
		for _, entity := range batch.Entities {
			surviving[entity.Id] = true
		}
		removed, err := removeSourceRecords(tx, batch.Source.Id, surviving)
		if err != nil {
			return err
		}

		src := batch.Source
		if err := tx.Set(makeSourceKey(src.Id), storage.MarshalSource(src)); err != nil {
			return err
		}
		if err := tx.Set(makeSourceLookupKey(src.Key), storage.MarshalID(src.Id)); err != nil {
			return err
		}
		if err := tx.Set(makeSourceRecentKey(src.IngestedAt.UnixMicro(), src.Id), storage.MarshalID(src.Id)); err != nil {
			return err
		}

		for _, sec := range batch.Sections {
			if err := tx.Set(makeSectionKey(src.Id, sec.Id), storage.MarshalSection(sec)); err != nil {
				return err
			}
		}

		for _, entity := range batch.Entities {
			if err := writeEntity(tx, entity); err != nil {
				return err
			}
		}
		for _, rel := range batch.Relationships {
			if err := writeRelationship(tx, rel); err != nil {
				return err
			}
		}

		if len(batch.Postings) > 0 {
			for _, p := range batch.Postings {
				buf := make([]byte, varint.Int.Size(p.TF))
				varint.Int.Marshal(p.TF, buf)
				if err := tx.Set(makePostingKey(p.Term, p.Kind, p.Id), buf); err != nil {
					return err
				}
			}
			if err := tx.Set(makePostingListKey(src.Id), storage.MarshalPostings(batch.Postings)); err != nil {
				return err
			}
		}

		if len(batch.AliasUsage) > 0 {
			if err := tx.Set(makeAliasUsageKey(src.Id), storage.MarshalAliasUsage(batch.AliasUsage)); err != nil {
				return err
			}
		}

		if err := writeAliasChanges(tx, clusters, removedClusters); err != nil {
			return err
		}

		delta := len(batch.Entities) + len(batch.Relationships) - removed
		if err := adjustRecordCount(tx, delta); err != nil {
			return err
		}

		// Cancellation must not leave a half-replaced source behind, so it
		// is honored by discarding rather than committing.
		if err := ctx.Err(); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetSource retrieves a source by ID.
func (r *SourceRepository) GetSource(ctx context.Context, id core.ID) (*core.Source, error) {
	var result *core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSource(tx, id)
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

// FindSourceByKey retrieves a source by its caller-supplied key.
func (r *SourceRepository) FindSourceByKey(ctx context.Context, key string) (*core.Source, error) {
	var result *core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSourceLookupKey(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		var id core.ID
		if err := item.Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return err
		}
		result, err = readSource(tx, id)
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

// GetSources retrieves all sources, ordered by key.
func (r *SourceRepository) GetSources(ctx context.Context) ([]*core.Source, error) {
	var results []*core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sourcePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var src *core.Source
			err := iter.Item().Value(func(val []byte) error {
				var err error
				src, err = storage.UnmarshalSource(val)
				return err
			})
			if err != nil {
				return err
			}
			if src != nil {
				results = append(results, src)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

// GetRecentSources retrieves the N most recently ingested sources.
func (r *SourceRepository) GetRecentSources(ctx context.Context, limit int) ([]*core.Source, error) {
	if limit <= 0 {
		return nil, nil
	}
	var results []*core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		prefix := []byte(sourceRecentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the end of the recency range; 0xFF sorts after any
		// timestamp byte.
		seek := append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for iter.Seek(seek); iter.ValidForPrefix(prefix) && len(results) < limit; iter.Next() {
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}
			src, err := readSource(tx, id)
			if err != nil {
				return err
			}
			if src != nil {
				results = append(results, src)
			}
		}
		return nil
	}, false)
	return results, err
}

// DeleteSource removes a source and every record derived from it.
func (r *SourceRepository) DeleteSource(ctx context.Context, id core.ID, clusters []*core.AliasCluster, removedClusters []core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		src, err := readSource(tx, id)
		if err != nil {
			return err
		}
		if src == nil {
			return storage.ErrNotFound
		}
		removed, err := removeSourceRecords(tx, id, nil)
		if err != nil {
			return err
		}
		if err := tx.Delete(makeSourceLookupKey(src.Key)); err != nil {
			return err
		}
		if err := writeAliasChanges(tx, clusters, removedClusters); err != nil {
			return err
		}
		if err := adjustRecordCount(tx, -removed); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetSections retrieves a source's sections in document order.
func (r *SourceRepository) GetSections(ctx context.Context, sourceID core.ID) ([]*core.Section, error) {
	var results []*core.Section
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSectionScanPrefix(sourceID)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var sec *core.Section
			err := iter.Item().Value(func(val []byte) error {
				var err error
				sec, err = storage.UnmarshalSection(val)
				return err
			})
			if err != nil {
				return err
			}
			if sec != nil {
				results = append(results, sec)
			}
		}
		return nil
	}, false)
	return results, err
}

// GetAliasUsage retrieves the alias usage list persisted with a source.
func (r *SourceRepository) GetAliasUsage(ctx context.Context, sourceID core.ID) ([]core.AliasUsage, error) {
	var usage []core.AliasUsage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeAliasUsageKey(sourceID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			usage, err = storage.UnmarshalAliasUsage(val)
			return err
		})
	}, false)
	return usage, err
}

// PutAliasUsage overwrites the usage list persisted with a source.
func (r *SourceRepository) PutAliasUsage(ctx context.Context, sourceID core.ID, usage []core.AliasUsage) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if len(usage) == 0 {
			if err := tx.Delete(makeAliasUsageKey(sourceID)); err != nil {
				return err
			}
		} else if err := tx.Set(makeAliasUsageKey(sourceID), storage.MarshalAliasUsage(usage)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readSource reads a source record inside a transaction. Returns nil, nil
// when the source does not exist.
func readSource(tx *badger.Txn, id core.ID) (*core.Source, error) {
	item, err := tx.Get(makeSourceKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var src *core.Source
	err = item.Value(func(val []byte) error {
		var err error
		src, err = storage.UnmarshalSource(val)
		return err
	})
	return src, err
}

// removeSourceRecords deletes a source's record set inside the transaction:
// sections, entities, relationships, their indices, postings and usage.
// Inbound cross-source relationships from other sources lose their resolved
// object and are downgraded to external references, so they never point at a
// deleted entity; entities in surviving keep their id across the replace and
// are exempt. The srckey lookup entry is kept, since replacement rewrites it.
// Returns the number of searchable records removed.
func removeSourceRecords(tx *badger.Txn, id core.ID, surviving map[core.ID]bool) (int, error) {
	src, err := readSource(tx, id)
	if err != nil {
		return 0, err
	}
	if src == nil {
		return 0, nil
	}

	if err := tx.Delete(makeSourceKey(id)); err != nil {
		return 0, err
	}
	if err := tx.Delete(makeSourceRecentKey(src.IngestedAt.UnixMicro(), id)); err != nil {
		return 0, err
	}

	if err := deletePrefix(tx, makeSectionScanPrefix(id)); err != nil {
		return 0, err
	}

	removed := 0

	entityIDs, err := scanIndexIDs(tx, makeEntitySourceScanPrefix(id))
	if err != nil {
		return 0, err
	}
	for _, entityID := range entityIDs {
		entity, err := readEntity(tx, entityID)
		if err != nil {
			return 0, err
		}
		if entity == nil {
			continue
		}
		if err := deleteEntity(tx, entity); err != nil {
			return 0, err
		}
		if !surviving[entity.Id] {
			if err := detachInboundRelationships(tx, id, entity); err != nil {
				return 0, err
			}
		}
		removed++
	}

	relIDs, err := scanIndexIDs(tx, makeRelationshipSourceScanPrefix(id))
	if err != nil {
		return 0, err
	}
	for _, relID := range relIDs {
		rel, err := readRelationship(tx, relID)
		if err != nil {
			return 0, err
		}
		if rel == nil {
			continue
		}
		if err := deleteRelationship(tx, rel); err != nil {
			return 0, err
		}
		removed++
	}

	// Retract the source's lexical postings via its stored posting list.
	item, err := tx.Get(makePostingListKey(id))
	if err == nil {
		var postings []storage.Posting
		if err := item.Value(func(val []byte) error {
			var err error
			postings, err = storage.UnmarshalPostings(val)
			return err
		}); err != nil {
			return 0, err
		}
		for _, p := range postings {
			if err := tx.Delete(makePostingKey(p.Term, p.Kind, p.Id)); err != nil {
				return 0, err
			}
		}
		if err := tx.Delete(makePostingListKey(id)); err != nil {
			return 0, err
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, err
	}

	if err := tx.Delete(makeAliasUsageKey(id)); err != nil {
		return 0, err
	}

	return removed, nil
}

// detachInboundRelationships rewrites relationships from other sources whose
// object is the deleted entity: the resolved object id becomes an external
// reference carrying the entity's text. Relationships owned by the source
// being removed are skipped, the relationship pass deletes them outright.
func detachInboundRelationships(tx *badger.Txn, sourceID core.ID, entity *core.Entity) error {
	relIDs, err := scanIndexIDs(tx, makeRelationshipObjectScanPrefix(entity.Id))
	if err != nil {
		return err
	}
	for _, relID := range relIDs {
		rel, err := readRelationship(tx, relID)
		if err != nil {
			return err
		}
		if rel == nil || rel.SourceId == sourceID {
			continue
		}
		if err := tx.Delete(makeRelationshipObjectKey(entity.Id, rel.Id)); err != nil {
			return err
		}
		rel.ObjectId = 0
		rel.ObjectRef = entity.Text
		if err := tx.Set(makeRelationshipKey(rel.Id), storage.MarshalRelationship(rel)); err != nil {
			return err
		}
	}
	return nil
}

func writeAliasChanges(tx *badger.Txn, clusters []*core.AliasCluster, removedClusters []core.ID) error {
	for _, cluster := range clusters {
		if err := tx.Set(makeAliasKey(cluster.Id), storage.MarshalAliasCluster(cluster)); err != nil {
			return err
		}
	}
	for _, id := range removedClusters {
		if err := tx.Delete(makeAliasKey(id)); err != nil {
			return err
		}
	}
	return nil
}

// deletePrefix deletes every key under a prefix. Keys are collected before
// deletion since badger iterators don't tolerate concurrent writes.
func deletePrefix(tx *badger.Txn, prefix []byte) error {
	var keys [][]byte
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// scanIndexIDs collects the ID values stored under an index prefix.
func scanIndexIDs(tx *badger.Txn, prefix []byte) ([]core.ID, error) {
	var ids []core.ID
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// adjustRecordCount moves the searchable record counter by delta.
func adjustRecordCount(tx *badger.Txn, delta int) error {
	if delta == 0 {
		return nil
	}
	count := 0
	item, err := tx.Get([]byte(metaCountKey))
	if err == nil {
		if err := item.Value(func(val []byte) error {
			var err error
			count, _, err = varint.Int.Unmarshal(val)
			return err
		}); err != nil {
			return err
		}
	} else if err != badger.ErrKeyNotFound {
		return err
	}
	count += delta
	if count < 0 {
		count = 0
	}
	buf := make([]byte, varint.Int.Size(count))
	varint.Int.Marshal(count, buf)
	return tx.Set([]byte(metaCountKey), buf)
}
