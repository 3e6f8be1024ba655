package bulkimport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/mentormatch/ai/mock"
	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/ingestion"
	"github.com/poiesic/mentormatch/storage"
	"github.com/poiesic/mentormatch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepository counts UpsertMany calls.
type countingRepository struct {
	storage.VectorRepository
	writes atomic.Int32
	fail   error
}

func (c *countingRepository) UpsertMany(ctx context.Context, vectors ...*core.AttributeVector) error {
	c.writes.Add(1)
	if c.fail != nil {
		return c.fail
	}
	return c.VectorRepository.UpsertMany(ctx, vectors...)
}

func setupImporter(t *testing.T, embedder *mock.MockEmbedder, config *Config, trackers ...StatusTracker) (*Importer, *countingRepository) {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	counting := &countingRepository{VectorRepository: repo}
	g, err := ingestion.NewGenerator(embedder, ingestion.WithPoolSize(4))
	require.NoError(t, err)
	t.Cleanup(g.Release)

	pipeline, err := ingestion.NewPipeline(counting, g)
	require.NoError(t, err)

	im, err := NewImporter(pipeline, config, trackers...)
	require.NoError(t, err)
	return im, counting
}

func makeProfiles(n int) []core.Profile {
	profiles := make([]core.Profile, n)
	for i := range profiles {
		profiles[i] = core.Profile{
			SubjectID: fmt.Sprintf("m%02d", i),
			Fields: map[string]string{
				"skills": fmt.Sprintf("skill set %d", i),
				"goals":  fmt.Sprintf("goal %d", i),
			},
		}
	}
	return profiles
}

func testConfig(batchSize int) *Config {
	return &Config{BatchSize: batchSize, ReportInterval: 1, MaxRetries: 2, RetryDelay: time.Millisecond}
}

func TestNewImporter_Validation(t *testing.T) {
	_, err := NewImporter(nil, nil)
	assert.ErrorIs(t, err, ErrPipelineRequired)

	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()
	g, err := ingestion.NewGenerator(mock.NewMockEmbedder())
	require.NoError(t, err)
	defer g.Release()
	pipeline, err := ingestion.NewPipeline(repo, g)
	require.NoError(t, err)

	_, err = NewImporter(pipeline, &Config{BatchSize: 0, MaxRetries: 1})
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	_, err = NewImporter(pipeline, &Config{BatchSize: 1, MaxRetries: 0})
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	im, err := NewImporter(pipeline, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), im.config)
}

func TestImporter_Run(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = 8
	status := NewMemoryStatus()
	var progress bytes.Buffer
	im, repo := setupImporter(t, embedder, testConfig(4), status, NewProgressTracker(&progress, 1))
	ctx := context.Background()

	report, err := im.Run(ctx, makeProfiles(10))
	require.NoError(t, err)

	assert.NotEmpty(t, report.JobID)
	assert.Equal(t, 10, report.Total)
	assert.Equal(t, 10, report.Stored)
	assert.Empty(t, report.Failed)
	assert.Equal(t, int32(3), repo.writes.Load(), "one write per batch")
	assert.Equal(t, 20, embedder.CallCount())

	names, err := repo.AttributeNamesFor(ctx, "m07")
	require.NoError(t, err)
	assert.Equal(t, []string{"goals", "skills"}, names)

	job, ok := status.Status(report.JobID)
	require.True(t, ok)
	assert.Equal(t, JobCompleted, job.State)
	assert.Equal(t, 10, job.Done)
	assert.Contains(t, progress.String(), "10/10")
}

func TestImporter_InvalidProfilesSkipped(t *testing.T) {
	im, _ := setupImporter(t, mock.NewMockEmbedder(), testConfig(10))

	profiles := append(makeProfiles(2),
		core.Profile{SubjectID: "", Fields: map[string]string{"bio": "x"}},
		core.Profile{SubjectID: "bad", Fields: map[string]string{core.AllAttributes: "x"}},
	)
	report, err := im.Run(context.Background(), profiles)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stored)
	assert.ElementsMatch(t, []string{"", "bad"}, report.Failed)
}

func TestImporter_RetriesUnavailableBatch(t *testing.T) {
	var calls atomic.Int32
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, callerID, text string) ([]float32, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.New("503")
		}
		return mock.GenerateDeterministicVector(text, 4), nil
	}
	config := testConfig(10)
	config.MaxRetries = 3
	im, _ := setupImporter(t, embedder, config)

	profiles := []core.Profile{{SubjectID: "m1", Fields: map[string]string{"bio": "hello"}}}
	report, err := im.Run(context.Background(), profiles)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, int32(3), calls.Load(), "two failed attempts before success")
}

func TestImporter_UnavailableBatchReportedFailed(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, callerID, text string) ([]float32, error) {
		return nil, errors.New("offline")
	}
	status := NewMemoryStatus()
	im, repo := setupImporter(t, embedder, testConfig(2), status)

	report, err := im.Run(context.Background(), makeProfiles(3))
	require.NoError(t, err)
	assert.Zero(t, report.Stored)
	assert.Len(t, report.Failed, 3)
	assert.Zero(t, repo.writes.Load())

	job, _ := status.Status(report.JobID)
	assert.Equal(t, JobCompleted, job.State)
	assert.Equal(t, 3, job.Done)
}

func TestImporter_StorageFailureStopsRun(t *testing.T) {
	status := NewMemoryStatus()
	im, repo := setupImporter(t, mock.NewMockEmbedder(), testConfig(2), status)
	repo.fail = storage.ErrStorageClosed

	report, err := im.Run(context.Background(), makeProfiles(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.Equal(t, int32(1), repo.writes.Load())
	assert.Zero(t, report.Stored)

	job, _ := status.Status(report.JobID)
	assert.Equal(t, JobFailed, job.State)
}

func TestImporter_Cancelled(t *testing.T) {
	im, _ := setupImporter(t, mock.NewMockEmbedder(), testConfig(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := im.Run(ctx, makeProfiles(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImporter_EmptyInput(t *testing.T) {
	status := NewMemoryStatus()
	im, repo := setupImporter(t, mock.NewMockEmbedder(), nil, status)

	report, err := im.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, repo.writes.Load())

	job, ok := status.Status(report.JobID)
	require.True(t, ok)
	assert.Equal(t, JobCompleted, job.State)
}
