package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/storage"
)

func init() {
	sqlite_vec.Auto()
}

const schema = `
CREATE TABLE IF NOT EXISTS attribute_vectors (
	subject_id     TEXT    NOT NULL,
	attribute_name TEXT    NOT NULL,
	embedding      BLOB    NOT NULL,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL,
	PRIMARY KEY (subject_id, attribute_name)
);
CREATE INDEX IF NOT EXISTS attribute_vectors_by_attribute ON attribute_vectors(attribute_name);`

const upsertQuery = `INSERT INTO attribute_vectors(subject_id, attribute_name, embedding, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(subject_id, attribute_name) DO UPDATE SET
	embedding = excluded.embedding,
	updated_at = excluded.updated_at
RETURNING created_at`

// VectorRepository implements storage.VectorRepository on SQLite. Distances
// are computed by sqlite-vec's vec_distance_cosine and ordered in SQL; rows
// are streamed so the eligibility filter runs before the limit.
type VectorRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// Open opens (or creates) a SQLite vector store at dbPath.
func Open(dbPath string) (storage.VectorRepository, error) {
	return open(dbPath)
}

func open(dbPath string) (*VectorRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating attribute_vectors table: %w", err)
	}

	return &VectorRepository{
		db:     db,
		logger: slog.Default().With("component", "sqlite-vectors"),
	}, nil
}

// Close closes the underlying database connection.
func (r *VectorRepository) Close() error {
	return r.db.Close()
}

// Upsert inserts or replaces the vector for (subjectID, attributeName).
func (r *VectorRepository) Upsert(ctx context.Context, subjectID, attributeName string, vector []float32) (*core.AttributeVector, error) {
	record := &core.AttributeVector{
		SubjectID:     subjectID,
		AttributeName: attributeName,
		Vector:        vector,
	}
	if err := r.UpsertMany(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// UpsertMany writes every vector in a single transaction.
func (r *VectorRepository) UpsertMany(ctx context.Context, vectors ...*core.AttributeVector) error {
	for _, v := range vectors {
		if err := core.ValidateAttributeVector(v); err != nil {
			return err
		}
	}
	if len(vectors) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := storage.Timestamp()
	for _, v := range vectors {
		blob, err := sqlite_vec.SerializeFloat32(v.Vector)
		if err != nil {
			return fmt.Errorf("serializing embedding: %w", err)
		}
		var created int64
		err = stmt.QueryRowContext(ctx, v.SubjectID, v.AttributeName, blob, now.UnixMicro(), now.UnixMicro()).Scan(&created)
		if err != nil {
			return fmt.Errorf("upserting vector %s/%s: %w", v.SubjectID, v.AttributeName, err)
		}
		v.CreatedAt = time.UnixMicro(created).UTC()
		v.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vectors: %w", err)
	}
	return nil
}

// GetVector retrieves the vector stored for (subjectID, attributeName).
func (r *VectorRepository) GetVector(ctx context.Context, subjectID, attributeName string) (*core.AttributeVector, error) {
	const q = `SELECT embedding, created_at, updated_at FROM attribute_vectors
WHERE subject_id = ? AND attribute_name = ?`

	var (
		blob             []byte
		created, updated int64
	)
	err := r.db.QueryRowContext(ctx, q, subjectID, attributeName).Scan(&blob, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading vector %s/%s: %w", subjectID, attributeName, err)
	}

	vector, err := deserializeFloat32(blob)
	if err != nil {
		return nil, err
	}
	return &core.AttributeVector{
		SubjectID:     subjectID,
		AttributeName: attributeName,
		Vector:        vector,
		CreatedAt:     time.UnixMicro(created).UTC(),
		UpdatedAt:     time.UnixMicro(updated).UTC(),
	}, nil
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

	// vec_distance_cosine yields NULL for a zero-norm operand; such pairs are
	// maximally unrelated, matching core.CosineDistance.
	distance := `COALESCE(vec_distance_cosine(embedding, ?), 1.0)`
	var args []any
	if isZeroVector(query) {
		distance = `1.0`
	} else {
		blob, err := sqlite_vec.SerializeFloat32(query)
		if err != nil {
			return nil, fmt.Errorf("serializing query vector: %w", err)
		}
		args = append(args, blob)
	}

	// Vectors of another dimensionality are excluded rather than compared.
	q := `SELECT subject_id, attribute_name, ` + distance + ` AS distance
FROM attribute_vectors
WHERE vec_length(embedding) = ?`
	args = append(args, len(query))
	if attributeName != core.AllAttributes {
		q += ` AND attribute_name = ?`
		args = append(args, attributeName)
	}
	q += ` ORDER BY distance, subject_id, attribute_name`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]struct{})
	neighbors := make([]core.Neighbor, 0, limit)
	for len(neighbors) < limit && rows.Next() {
		var (
			n        core.Neighbor
			distance float64
		)
		if err := rows.Scan(&n.SubjectID, &n.AttributeName, &distance); err != nil {
			return nil, fmt.Errorf("scanning vector result: %w", err)
		}
		if _, dup := seen[n.SubjectID]; dup {
			continue
		}
		if !filter.IsEligible(n.SubjectID) {
			continue
		}
		// For a single attribute each subject has one row anyway
		seen[n.SubjectID] = struct{}{}
		n.Distance = float32(distance)
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector results: %w", err)
	}
	return neighbors, nil
}

// AttributeNamesFor returns the sorted attribute names stored for subjectID.
func (r *VectorRepository) AttributeNamesFor(ctx context.Context, subjectID string) ([]string, error) {
	return r.queryNames(ctx,
		`SELECT attribute_name FROM attribute_vectors WHERE subject_id = ? ORDER BY attribute_name`, subjectID)
}

// AttributeNames returns the sorted distinct attribute names in the store.
func (r *VectorRepository) AttributeNames(ctx context.Context) ([]string, error) {
	return r.queryNames(ctx,
		`SELECT DISTINCT attribute_name FROM attribute_vectors ORDER BY attribute_name`)
}

func (r *VectorRepository) queryNames(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing attribute names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning attribute name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteSubject removes every vector stored for subjectID.
func (r *VectorRepository) DeleteSubject(ctx context.Context, subjectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attribute_vectors WHERE subject_id = ?`, subjectID); err != nil {
		return fmt.Errorf("deleting vectors for %s: %w", subjectID, err)
	}
	return nil
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// deserializeFloat32 is the inverse of sqlite_vec.SerializeFloat32
// (little-endian IEEE 754 float32).
func deserializeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: embedding blob of %d bytes", storage.ErrSerializationFailed, len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}
