package badger

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/varint"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

// SearchRepository implements storage.SearchRepository for BadgerDB.
type SearchRepository struct {
	backend *Backend
}

var _ storage.SearchRepository = (*SearchRepository)(nil)

// NewSearchRepository creates a new SearchRepository.
func NewSearchRepository(backend *Backend) (storage.SearchRepository, error) {
	return &SearchRepository{backend: backend}, nil
}

// Close releases resources. SearchRepository has no resources to release.
func (r *SearchRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *SearchRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *SearchRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// GetPostings retrieves the posting list of a term across all sources.
// The kind and record id are recovered from the key suffix, the term
// frequency from the value.
func (r *SearchRepository) GetPostings(ctx context.Context, term string) ([]storage.Posting, error) {
	var postings []storage.Posting
	prefix := makePostingScanPrefix(term)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			key := item.Key()
			suffix := key[len(prefix):]
			if len(suffix) != 9 {
				return fmt.Errorf("malformed posting key %q", key)
			}
			p := storage.Posting{
				Term: term,
				Kind: core.ResultKind(suffix[0]),
				Id:   core.ID(binary.BigEndian.Uint64(suffix[1:])),
			}
			if err := item.Value(func(val []byte) error {
				var err error
				p.TF, _, err = varint.Int.Unmarshal(val)
				return err
			}); err != nil {
				return err
			}
			postings = append(postings, p)
		}
		return nil
	}, false)
	return postings, err
}

// RecordCount returns the number of searchable records in the store.
func (r *SearchRepository) RecordCount(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metaCountKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			count, _, err = varint.Int.Unmarshal(val)
			return err
		})
	}, false)
	return count, err
}

// EmbeddingDimension returns the pinned vector dimension, or 0 when unset.
func (r *SearchRepository) EmbeddingDimension(ctx context.Context) (int, error) {
	dim := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metaDimensionKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			dim, _, err = varint.Int.Unmarshal(val)
			return err
		})
	}, false)
	return dim, err
}

// SetEmbeddingDimension pins the store's vector dimension. A different
// dimension already pinned fails with core.ErrEmbeddingMismatch.
func (r *SearchRepository) SetEmbeddingDimension(ctx context.Context, dim int) error {
	if dim <= 0 {
		return storage.ErrInvalidQuery
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metaDimensionKey))
		if err == nil {
			existing := 0
			if err := item.Value(func(val []byte) error {
				var err error
				existing, _, err = varint.Int.Unmarshal(val)
				return err
			}); err != nil {
				return err
			}
			if existing == dim {
				return nil
			}
			return fmt.Errorf("%w: store holds %d-dimensional vectors, got %d",
				core.ErrEmbeddingMismatch, existing, dim)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		buf := make([]byte, varint.Int.Size(dim))
		varint.Int.Marshal(dim, buf)
		if err := tx.Set([]byte(metaDimensionKey), buf); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
