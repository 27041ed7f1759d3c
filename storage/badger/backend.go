package badger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/corvid-labs/sectra/core"
	"github.com/corvid-labs/sectra/storage"
)

// Backend wraps one BadgerDB instance shared by all repositories.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// slogBadgerLogger routes badger's internal logging onto slog.
type slogBadgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogBadgerLogger)(nil)

func (l *slogBadgerLogger) Errorf(msg string, items ...any) {
	l.logger.Error(fmt.Sprintf(msg, items...))
}

func (l *slogBadgerLogger) Warningf(msg string, items ...any) {
	l.logger.Warn(fmt.Sprintf(msg, items...))
}

func (l *slogBadgerLogger) Infof(msg string, items ...any) {
	l.logger.Info(fmt.Sprintf(msg, items...))
}

func (l *slogBadgerLogger) Debugf(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database under filePath, creating the
// directory if needed. With inMemory set the path is ignored and nothing is
// persisted.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(filePath, 0o755); err != nil {
			return nil, err
		}
		info, err := os.Stat(filePath)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &slogBadgerLogger{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: slog.Default().With("component", "storage"),
	}, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed reports whether the database has been closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx runs fn inside a badger transaction. The transaction is discarded
// on return, so fn must call Commit itself when it writes.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// WithTransaction runs fn inside a committed write transaction.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.WithTx(func(tx *badger.Txn) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// FindSimilar scans every entity and relationship record, scoring those that
// carry a vector by dot product against the query vector. Results at or above
// minSimilarity come back sorted by score descending, ties by id.
func (b *Backend) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	var results []*core.SearchResult

	err := b.WithTx(func(tx *badger.Txn) error {
		scan := func(prefix string, decode func(val []byte) (*core.SearchResult, error)) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix + ":")
			iter := tx.NewIterator(opts)
			defer iter.Close()
			for iter.Rewind(); iter.Valid(); iter.Next() {
				var hit *core.SearchResult
				err := iter.Item().Value(func(val []byte) error {
					var err error
					hit, err = decode(val)
					return err
				})
				if err != nil {
					return err
				}
				if hit != nil {
					results = append(results, hit)
				}
			}
			return nil
		}

		if err := scan(entityPrefix, func(val []byte) (*core.SearchResult, error) {
			ent, err := storage.UnmarshalEntity(val)
			if err != nil {
				return nil, err
			}
			if len(ent.Vector) == 0 {
				return nil, nil
			}
			sim := dotProduct(vector, ent.Vector)
			if sim < minSimilarity {
				return nil, nil
			}
			return &core.SearchResult{Kind: core.KindEntity, Entity: ent, Score: sim, Vector: sim}, nil
		}); err != nil {
			return err
		}

		return scan(relPrefix, func(val []byte) (*core.SearchResult, error) {
			rel, err := storage.UnmarshalRelationship(val)
			if err != nil {
				return nil, err
			}
			if len(rel.Vector) == 0 {
				return nil, nil
			}
			sim := dotProduct(vector, rel.Vector)
			if sim < minSimilarity {
				return nil, nil
			}
			return &core.SearchResult{Kind: core.KindRelationship, Relationship: rel, Score: sim, Vector: sim}, nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.Id() != b.Id() {
			if a.Id() < b.Id() {
				return -1
			}
			return 1
		}
		return 0
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// dotProduct over the shorter of the two vectors. Embedding providers return
// unit vectors, so this equals cosine similarity.
func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
