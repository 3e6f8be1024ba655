package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/storage"
)

// Pipeline embeds profiles and stores their attribute vectors.
type Pipeline struct {
	repository storage.VectorRepository
	generator  *Generator
	logger     *slog.Logger
}

// NewPipeline creates a new ingestion pipeline. The pipeline does not own
// the generator; release it separately.
func NewPipeline(repository storage.VectorRepository, generator *Generator) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	return &Pipeline{
		repository: repository,
		generator:  generator,
		logger:     slog.Default().With("component", "ingestion"),
	}, nil
}

// Generator returns the generator used by the pipeline.
func (p *Pipeline) Generator() *Generator {
	return p.generator
}

// StoreProfile embeds the subject's fields and upserts one vector per
// embedded field. It returns the stored attribute names in sorted order.
// Blank and failed fields are not stored; prior vectors for them are kept.
func (p *Pipeline) StoreProfile(ctx context.Context, subjectID string, fields map[string]string) ([]string, error) {
	vectors, err := p.generator.Generate(ctx, subjectID, fields)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		p.logger.Debug("nothing to store", "subject", subjectID)
		return []string{}, nil
	}

	records := recordsFor(subjectID, vectors)
	if err := p.repository.UpsertMany(ctx, records...); err != nil {
		return nil, fmt.Errorf("failed to store vectors for %s: %w", subjectID, err)
	}

	stored := make([]string, 0, len(records))
	for _, rec := range records {
		stored = append(stored, rec.AttributeName)
	}
	p.logger.Debug("stored profile", "subject", subjectID, "attributes", len(stored))
	return stored, nil
}

// StoreVectors upserts already generated vectors for many subjects.
func (p *Pipeline) StoreVectors(ctx context.Context, vectors map[string]map[string][]float32) error {
	subjects := make([]string, 0, len(vectors))
	for subject := range vectors {
		subjects = append(subjects, subject)
	}
	slices.Sort(subjects)

	var records []*core.AttributeVector
	for _, subject := range subjects {
		records = append(records, recordsFor(subject, vectors[subject])...)
	}
	if len(records) == 0 {
		return nil
	}
	return p.repository.UpsertMany(ctx, records...)
}

func recordsFor(subjectID string, vectors map[string][]float32) []*core.AttributeVector {
	names := make([]string, 0, len(vectors))
	for name := range vectors {
		names = append(names, name)
	}
	slices.Sort(names)

	records := make([]*core.AttributeVector, 0, len(names))
	for _, name := range names {
		records = append(records, &core.AttributeVector{
			SubjectID:     subjectID,
			AttributeName: name,
			Vector:        vectors[name],
		})
	}
	return records
}
