package storage

import (
	"context"

	"github.com/poiesic/mentormatch/core"
)

// VectorRepository persists one embedding per (subject, attribute) pair and
// answers nearest-neighbor queries over them.
// Implementations must be thread-safe and support concurrent access.
type VectorRepository interface {
	// Upsert inserts or replaces the vector stored for (subjectID, attributeName).
	// Calling it twice leaves a single stored vector holding the latest value.
	// CreatedAt is preserved across replacements; UpdatedAt is refreshed.
	// Concurrent Upserts of the same pair are last-writer-wins.
	Upsert(ctx context.Context, subjectID, attributeName string, vector []float32) (*core.AttributeVector, error)

	// UpsertMany applies Upsert to every vector, committing from the calling
	// goroutine. Used by bulk import after all embeddings have been collected.
	UpsertMany(ctx context.Context, vectors ...*core.AttributeVector) error

	// GetVector returns the vector stored for (subjectID, attributeName).
	// Returns ErrNotFound if the pair has no vector.
	GetVector(ctx context.Context, subjectID, attributeName string) (*core.AttributeVector, error)

	// KNearest returns up to limit neighbors of query ordered by ascending
	// cosine distance, ties broken by subject id.
	// attributeName core.AllAttributes searches every attribute and reports
	// each subject once, at its nearest attribute.
	// The filter is applied before the limit; nil admits every subject.
	KNearest(ctx context.Context, attributeName string, query []float32, limit int, filter core.EligibilityFilter) ([]core.Neighbor, error)

	// AttributeNamesFor returns the sorted distinct attribute names stored
	// for subjectID. Unknown subjects yield an empty slice.
	AttributeNamesFor(ctx context.Context, subjectID string) ([]string, error)

	// AttributeNames returns the sorted distinct attribute names in the store.
	AttributeNames(ctx context.Context) ([]string, error)

	// DeleteSubject removes every vector stored for subjectID.
	// Deleting an unknown subject is not an error.
	DeleteSubject(ctx context.Context, subjectID string) error

	// Close closes the storage backend and releases resources.
	Close() error
}
