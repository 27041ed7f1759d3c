package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

// AliasRepository implements storage.AliasRepository for BadgerDB.
// Routine cluster writes happen inside ReplaceSource and DeleteSource; this
// repository reads, plus the full-table rewrite renormalization needs.
type AliasRepository struct {
	backend *Backend
}

var _ storage.AliasRepository = (*AliasRepository)(nil)

// NewAliasRepository creates a new AliasRepository.
func NewAliasRepository(backend *Backend) (storage.AliasRepository, error) {
	return &AliasRepository{backend: backend}, nil
}

// Close releases resources. AliasRepository has no resources to release.
func (r *AliasRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *AliasRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *AliasRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// GetAliasCluster retrieves a cluster by ID.
func (r *AliasRepository) GetAliasCluster(ctx context.Context, id core.ID) (*core.AliasCluster, error) {
	var result *core.AliasCluster
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeAliasKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			result, err = storage.UnmarshalAliasCluster(val)
			return err
		})
	}, false)
	return result, err
}

// GetAllAliasClusters retrieves every persisted cluster.
func (r *AliasRepository) GetAllAliasClusters(ctx context.Context) ([]*core.AliasCluster, error) {
	var results []*core.AliasCluster
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(aliasPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var cluster *core.AliasCluster
			err := iter.Item().Value(func(val []byte) error {
				var err error
				cluster, err = storage.UnmarshalAliasCluster(val)
				return err
			})
			if err != nil {
				return err
			}
			if cluster != nil {
				results = append(results, cluster)
			}
		}
		return nil
	}, false)
	return results, err
}

// ReplaceAllAliasClusters drops the cluster table and writes the given set in
// its place, atomically.
func (r *AliasRepository) ReplaceAllAliasClusters(ctx context.Context, clusters []*core.AliasCluster) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := deletePrefix(tx, []byte(aliasPrefix+":")); err != nil {
			return err
		}
		for _, cluster := range clusters {
			if err := tx.Set(makeAliasKey(cluster.Id), storage.MarshalAliasCluster(cluster)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}
