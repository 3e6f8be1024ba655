// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package bulkimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/ingestion"
)

// Config holds configuration for an import run.
type Config struct {
	// BatchSize is the number of profiles embedded before each write
	BatchSize int

	// ReportInterval is how often to report progress (number of profiles)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Report summarizes a finished import run.
type Report struct {
	JobID   string
	Total   int
	Stored  int
	Failed  []string
	Elapsed time.Duration
}

// Importer embeds and stores profiles in bulk.
// Embedding runs on the generator's worker pool; every write happens on the
// goroutine that called Run, one batch at a time.
type Importer struct {
	pipeline  *ingestion.Pipeline
	config    *Config
	status    StatusTracker
	processor *batchProcessor
	logger    *slog.Logger
}

// NewImporter creates a new importer. Each tracker receives the job's
// lifecycle events; none is required.
func NewImporter(pipeline *ingestion.Pipeline, config *Config, trackers ...StatusTracker) (*Importer, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, config.BatchSize)
	}
	if config.MaxRetries < 1 {
		return nil, ErrInvalidMaxAttempts
	}

	var status multiStatus
	for _, t := range trackers {
		if t != nil {
			status = append(status, t)
		}
	}

	return &Importer{
		pipeline: pipeline,
		config:   config,
		status:   status,
		processor: &batchProcessor{
			generator:      pipeline.Generator(),
			maxRetries:     config.MaxRetries,
			retryBaseDelay: config.RetryDelay,
		},
		logger: slog.Default().With("component", "bulkimport"),
	}, nil
}

// Run imports profiles under a fresh job id.
// Invalid profiles and profiles that could not be embedded are reported in
// Report.Failed and do not stop the run. A storage failure or cancellation
// stops the run and is returned along with the partial report.
func (im *Importer) Run(ctx context.Context, profiles []core.Profile) (*Report, error) {
	report := &Report{
		JobID: uuid.NewString(),
		Total: len(profiles),
	}
	start := time.Now()
	logger := im.logger.With("job", report.JobID)

	im.status.Start(report.JobID, report.Total)
	logger.Info("import started", "profiles", report.Total, "batchSize", im.config.BatchSize)

	err := im.run(ctx, logger, profiles, report)
	report.Elapsed = time.Since(start)
	im.status.Finish(report.JobID, err)

	if err != nil {
		logger.Error("import stopped", "stored", report.Stored, "err", err)
		return report, err
	}
	logger.Info("import complete", "stored", report.Stored, "failed", len(report.Failed), "elapsed", report.Elapsed.Round(time.Millisecond))
	return report, nil
}

func (im *Importer) run(ctx context.Context, logger *slog.Logger, profiles []core.Profile, report *Report) error {
	valid := make([]core.Profile, 0, len(profiles))
	for _, p := range profiles {
		if err := validateProfile(p); err != nil {
			logger.Warn("skipping invalid profile", "subject", p.SubjectID, "err", err)
			report.Failed = append(report.Failed, p.SubjectID)
			continue
		}
		valid = append(valid, p)
	}
	if skipped := len(profiles) - len(valid); skipped > 0 {
		im.status.Advance(report.JobID, skipped)
	}

	for start := 0; start < len(valid); start += im.config.BatchSize {
		batch := valid[start:min(start+im.config.BatchSize, len(valid))]

		vectors, err := im.processor.embed(ctx, batch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !errors.Is(err, ingestion.ErrEmbeddingUnavailable) {
				return err
			}
			logger.Warn("batch could not be embedded", "offset", start, "size", len(batch), "err", err)
			vectors = nil
		}

		if err := im.pipeline.StoreVectors(ctx, vectors); err != nil {
			return fmt.Errorf("failed to store batch at offset %d: %w", start, err)
		}

		for _, p := range batch {
			if _, ok := vectors[p.SubjectID]; ok {
				report.Stored++
			} else {
				report.Failed = append(report.Failed, p.SubjectID)
			}
		}
		im.status.Advance(report.JobID, len(batch))
	}
	return nil
}

func validateProfile(p core.Profile) error {
	if err := core.ValidateSubjectID(p.SubjectID); err != nil {
		return err
	}
	for name := range p.Fields {
		if err := core.ValidateAttributeName(name); err != nil {
			return err
		}
	}
	return nil
}
