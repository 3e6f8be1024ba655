package badger

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/storage"
)

// VectorRepository implements storage.VectorRepository for BadgerDB.
// k-NN queries are a brute-force cosine scan over the candidate records.
type VectorRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

const maxConflictRetries = 16

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) (storage.VectorRepository, error) {
	return newVectorRepository(backend)
}

func newVectorRepository(backend *Backend) (*VectorRepository, error) {
	if backend == nil {
		return nil, errors.New("badger backend required")
	}
	return &VectorRepository{
		backend: backend,
		logger:  backend.logger.With("repository", "vectors"),
	}, nil
}

// Close releases resources. The backend is owned and closed by the caller.
func (r *VectorRepository) Close() error {
	return nil
}

// Upsert inserts or replaces the vector for (subjectID, attributeName).
func (r *VectorRepository) Upsert(ctx context.Context, subjectID, attributeName string, vector []float32) (*core.AttributeVector, error) {
	record := &core.AttributeVector{
		SubjectID:     subjectID,
		AttributeName: attributeName,
		Vector:        vector,
	}
	if err := core.ValidateAttributeVector(record); err != nil {
		return nil, err
	}

	// Concurrent writers of the same key conflict on the CreatedAt read;
	// the loser re-reads and writes again so the last writer wins.
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		err = r.backend.WithTx(func(tx *badger.Txn) error {
			if err := putVector(tx, record, storage.Timestamp()); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		r.logger.Debug("upsert conflict, retrying", "subject", subjectID, "attribute", attributeName, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// UpsertMany writes every vector, splitting the work across transactions
// when a single one grows too large.
func (r *VectorRepository) UpsertMany(ctx context.Context, vectors ...*core.AttributeVector) error {
	for _, v := range vectors {
		if err := core.ValidateAttributeVector(v); err != nil {
			return err
		}
	}
	if len(vectors) == 0 {
		return nil
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	now := storage.Timestamp()
	tx := r.backend.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for _, v := range vectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := putVector(tx, v, now)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := tx.Commit(); err != nil {
				return err
			}
			tx = r.backend.db.NewTransaction(true)
			err = putVector(tx, v, now)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// putVector stores the record and both index entries. CreatedAt is carried
// over from an existing record for the same key.
func putVector(tx *badger.Txn, record *core.AttributeVector, now time.Time) error {
	key := makeVectorKey(record.ID())

	existing, err := readVector(tx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if err := tx.Set(key, storage.MarshalAttributeVector(record)); err != nil {
		return err
	}
	if err := tx.Set(makeAttributeIndexKey(record.AttributeName, record.ID()), nil); err != nil {
		return err
	}
	return tx.Set(makeSubjectIndexKey(record.SubjectID, record.AttributeName), nil)
}

// GetVector retrieves the vector stored for (subjectID, attributeName).
func (r *VectorRepository) GetVector(ctx context.Context, subjectID, attributeName string) (*core.AttributeVector, error) {
	var result *core.AttributeVector
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readVector(tx, makeVectorKey(core.VectorID(subjectID, attributeName)))
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

// KNearest returns up to limit eligible neighbors of query, nearest first.
func (r *VectorRepository) KNearest(ctx context.Context, attributeName string, query []float32, limit int, filter core.EligibilityFilter) ([]core.Neighbor, error) {
	if limit <= 0 {
		return nil, core.ErrInvalidLimit
	}
	if len(query) == 0 {
		return nil, core.ErrEmptyVector
	}
	if err := core.ValidateName(attributeName); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = core.AllowAll
	}

	var candidates []core.Neighbor
	skipped := 0
	visit := func(record *core.AttributeVector) {
		if !filter.IsEligible(record.SubjectID) {
			return
		}
		if len(record.Vector) != len(query) {
			skipped++
			return
		}
		candidates = append(candidates, core.Neighbor{
			SubjectID:     record.SubjectID,
			AttributeName: record.AttributeName,
			Distance:      core.CosineDistance(query, record.Vector),
		})
	}

	var err error
	if attributeName == core.AllAttributes {
		err = r.scanAll(ctx, visit)
	} else {
		err = r.scanAttribute(ctx, attributeName, visit)
	}
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		r.logger.Warn("skipped vectors with mismatched dimensions",
			"attribute", attributeName, "count", skipped, "dimensions", len(query))
	}

	slices.SortFunc(candidates, compareNeighbors)
	if attributeName == core.AllAttributes {
		candidates = nearestPerSubject(candidates)
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// scanAll visits every stored vector.
func (r *VectorRepository) scanAll(ctx context.Context, visit func(*core.AttributeVector)) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.AttributeVector
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalAttributeVector(val)
				return err
			})
			if err != nil {
				return err
			}
			visit(record)
		}
		return nil
	}, false)
}

// scanAttribute visits every vector stored under attributeName via the attribute index.
func (r *VectorRepository) scanAttribute(ctx context.Context, attributeName string, visit func(*core.AttributeVector)) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialAttributeIndexKey(attributeName)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := readVector(tx, vectorKeyFromIndexKey(iter.Item().Key()))
			if err != nil {
				return err
			}
			if record == nil {
				r.logger.Warn("attribute index references missing vector", "attribute", attributeName)
				continue
			}
			visit(record)
		}
		return nil
	}, false)
}

// AttributeNamesFor returns the sorted attribute names stored for subjectID.
func (r *VectorRepository) AttributeNamesFor(ctx context.Context, subjectID string) ([]string, error) {
	names := []string{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialSubjectIndexKey(subjectID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			names = append(names, string(iter.Item().Key()[len(prefix):]))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	// Keys iterate in byte order, which is already sorted
	return names, nil
}

// AttributeNames returns the sorted distinct attribute names in the store.
func (r *VectorRepository) AttributeNames(ctx context.Context) ([]string, error) {
	names := []string{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(attributeIndexPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			name, ok := attributeFromIndexKey(iter.Item().Key())
			if !ok {
				continue
			}
			if n := len(names); n == 0 || names[n-1] != name {
				names = append(names, name)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// DeleteSubject removes every vector and index entry for subjectID.
func (r *VectorRepository) DeleteSubject(ctx context.Context, subjectID string) error {
	attributes, err := r.AttributeNamesFor(ctx, subjectID)
	if err != nil {
		return err
	}
	if len(attributes) == 0 {
		return nil
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, attributeName := range attributes {
			id := core.VectorID(subjectID, attributeName)
			if err := tx.Delete(makeVectorKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(makeAttributeIndexKey(attributeName, id)); err != nil {
				return err
			}
			if err := tx.Delete(makeSubjectIndexKey(subjectID, attributeName)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readVector loads a record, returning nil when the key is absent.
func readVector(tx *badger.Txn, key []byte) (*core.AttributeVector, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.AttributeVector
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalAttributeVector(val)
		return err
	})
	return record, err
}

// compareNeighbors orders by distance, then subject, then attribute.
func compareNeighbors(a, b core.Neighbor) int {
	return cmp.Or(
		cmp.Compare(a.Distance, b.Distance),
		cmp.Compare(a.SubjectID, b.SubjectID),
		cmp.Compare(a.AttributeName, b.AttributeName),
	)
}

// nearestPerSubject keeps the first occurrence of each subject in a sorted list.
func nearestPerSubject(sorted []core.Neighbor) []core.Neighbor {
	seen := make(map[string]struct{}, len(sorted))
	out := sorted[:0]
	for _, n := range sorted {
		if _, ok := seen[n.SubjectID]; ok {
			continue
		}
		seen[n.SubjectID] = struct{}{}
		out = append(out, n)
	}
	return out
}
