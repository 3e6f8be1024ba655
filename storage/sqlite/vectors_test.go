package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepository(t *testing.T) *VectorRepository {
	t.Helper()
	repo, err := open(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestUpsert_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	first, err := repo.Upsert(ctx, "s", "bio", []float32{1, 0, 0})
	require.NoError(t, err)
	second, err := repo.Upsert(ctx, "s", "bio", []float32{0, 1, 0})
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	stored, err := repo.GetVector(ctx, "s", "bio")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, stored.Vector)

	var count int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM attribute_vectors`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestGetVector_NotFound(t *testing.T) {
	repo := setupRepository(t)
	_, err := repo.GetVector(context.Background(), "nobody", "bio")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKNearest(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	require.NoError(t, repo.UpsertMany(ctx,
		&core.AttributeVector{SubjectID: "z", AttributeName: "bio", Vector: []float32{1, 0, 0}},
		&core.AttributeVector{SubjectID: "near", AttributeName: "bio", Vector: []float32{0.9, 0.1, 0}},
		&core.AttributeVector{SubjectID: "far", AttributeName: "bio", Vector: []float32{0, 1, 0}},
		&core.AttributeVector{SubjectID: "near", AttributeName: "skills", Vector: []float32{1, 0, 0}},
		&core.AttributeVector{SubjectID: "short", AttributeName: "bio", Vector: []float32{1, 0}},
	))

	t.Run("ordered by distance within attribute", func(t *testing.T) {
		neighbors, err := repo.KNearest(ctx, "bio", []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, neighbors, 3, "mismatched dimensions excluded")
		assert.Equal(t, "z", neighbors[0].SubjectID)
		assert.Equal(t, "near", neighbors[1].SubjectID)
		assert.Equal(t, "far", neighbors[2].SubjectID)
		assert.InDelta(t, 0, neighbors[0].Distance, 1e-5)
	})

	t.Run("eligibility applied before limit", func(t *testing.T) {
		filter := core.Excluding(nil, "z")
		neighbors, err := repo.KNearest(ctx, "bio", []float32{1, 0, 0}, 2, filter)
		require.NoError(t, err)
		require.Len(t, neighbors, 2)
		assert.Equal(t, "near", neighbors[0].SubjectID)
		assert.Equal(t, "far", neighbors[1].SubjectID)
	})

	t.Run("all attributes reports each subject once", func(t *testing.T) {
		neighbors, err := repo.KNearest(ctx, core.AllAttributes, []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, neighbors, 3)
		// near/skills and z/bio are both exact; subject id breaks the tie
		assert.Equal(t, "near", neighbors[0].SubjectID)
		assert.Equal(t, "skills", neighbors[0].AttributeName)
		assert.Equal(t, "z", neighbors[1].SubjectID)
		assert.Equal(t, "far", neighbors[2].SubjectID)
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, err := repo.KNearest(ctx, "bio", []float32{1, 0, 0}, 0, nil)
		assert.ErrorIs(t, err, core.ErrInvalidLimit)
	})
}

func TestKNearest_ZeroNormVectors(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	_, err := repo.Upsert(ctx, "good", "bio", []float32{1, 0})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "zero", "bio", []float32{0, 0})
	require.NoError(t, err)

	t.Run("zero stored vector is maximally distant", func(t *testing.T) {
		neighbors, err := repo.KNearest(ctx, "bio", []float32{1, 0}, 5, nil)
		require.NoError(t, err)
		require.Len(t, neighbors, 2)
		assert.Equal(t, "good", neighbors[0].SubjectID)
		assert.InDelta(t, 0, neighbors[0].Distance, 1e-6)
		assert.Equal(t, "zero", neighbors[1].SubjectID)
		assert.InDelta(t, 1, neighbors[1].Distance, 1e-6)
	})

	t.Run("zero query ranks everything at distance 1", func(t *testing.T) {
		neighbors, err := repo.KNearest(ctx, core.AllAttributes, []float32{0, 0}, 5, nil)
		require.NoError(t, err)
		require.Len(t, neighbors, 2)
		assert.Equal(t, "good", neighbors[0].SubjectID)
		assert.Equal(t, "zero", neighbors[1].SubjectID)
		for _, n := range neighbors {
			assert.InDelta(t, 1, n.Distance, 1e-6)
		}
	})
}

func TestAttributeNamesAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	for _, pair := range [][2]string{{"m1", "skills"}, {"m1", "bio"}, {"m2", "bio"}} {
		_, err := repo.Upsert(ctx, pair[0], pair[1], []float32{1})
		require.NoError(t, err)
	}

	names, err := repo.AttributeNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bio", "skills"}, names)

	forM1, err := repo.AttributeNamesFor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bio", "skills"}, forM1)

	require.NoError(t, repo.DeleteSubject(ctx, "m1"))
	names, err = repo.AttributeNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bio"}, names)
}

func TestDeserializeFloat32(t *testing.T) {
	_, err := deserializeFloat32([]byte{1, 2, 3})
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)

	v, err := deserializeFloat32([]byte{0, 0, 0x80, 0x3f})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
}
