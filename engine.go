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


package mentormatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/mentormatch/ai"
	"github.com/poiesic/mentormatch/ai/compat"
	"github.com/poiesic/mentormatch/ai/openai"
	"github.com/poiesic/mentormatch/bulkimport"
	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/ingestion"
	"github.com/poiesic/mentormatch/match"
	"github.com/poiesic/mentormatch/storage"
	"github.com/poiesic/mentormatch/storage/badger"
	"github.com/poiesic/mentormatch/storage/sqlite"
)

// Storage backends accepted by WithBackend.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

var (
	// ErrUnknownBackend is returned when WithBackend names an unsupported store.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrEmbedderRequired is returned when NewEngine is given no embedder.
	ErrEmbedderRequired = errors.New("embedder required")
)

// Engine is the matching engine: a vector store, an embedding provider and
// the matcher and pipeline built on them. Create one per process and share it.
type Engine struct {
	repository storage.VectorRepository
	provider   ai.AIProvider
	generator  *ingestion.Generator
	pipeline   *ingestion.Pipeline
	matcher    *match.Matcher
	closeStore func() error
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig      *ai.Config
	backend       string
	eligibility   core.EligibilityFilter
	entireProfile bool
	neighborLimit int
	logger        *slog.Logger
}

// WithAIConfig sets the embedding provider configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithBackend selects the storage backend used by Open.
// Default is BackendBadger.
func WithBackend(backend string) EngineOption {
	return func(o *engineOptions) {
		o.backend = backend
	}
}

// WithEligibility restricts match results to subjects admitted by filter.
func WithEligibility(filter core.EligibilityFilter) EngineOption {
	return func(o *engineOptions) {
		o.eligibility = filter
	}
}

// WithEntireProfile also embeds every profile and criteria set as a whole,
// under core.EntireProfileAttribute.
func WithEntireProfile(enabled bool) EngineOption {
	return func(o *engineOptions) {
		o.entireProfile = enabled
	}
}

// WithNeighborLimit sets how many candidates each attribute list fetches.
func WithNeighborLimit(n int) EngineOption {
	return func(o *engineOptions) {
		o.neighborLimit = n
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

func applyOptions(opts []EngineOption) *engineOptions {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		backend:  BackendBadger,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.aiConfig == nil {
		options.aiConfig = ai.DefaultConfig()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	return options
}

// Open opens (or creates) a store at path and connects the configured
// embedding provider. Close releases both.
func Open(path string, opts ...EngineOption) (*Engine, error) {
	options := applyOptions(opts)
	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	repository, closeStore, err := openRepository(options.backend, path)
	if err != nil {
		return nil, err
	}

	provider, err := NewProvider(options.aiConfig)
	if err != nil {
		closeStore()
		return nil, err
	}

	engine, err := newEngine(repository, provider.Embedder(), options)
	if err != nil {
		provider.Close()
		closeStore()
		return nil, err
	}
	engine.provider = provider
	engine.closeStore = closeStore
	engine.logger.Info("engine opened", "backend", options.backend, "provider", options.aiConfig.Provider, "model", options.aiConfig.EmbeddingModel)
	return engine, nil
}

// NewEngine builds an engine around collaborators owned by the caller.
// Close does not close the repository.
func NewEngine(repository storage.VectorRepository, embedder ai.Embedder, opts ...EngineOption) (*Engine, error) {
	options := applyOptions(opts)
	return newEngine(repository, embedder, options)
}

func newEngine(repository storage.VectorRepository, embedder ai.Embedder, options *engineOptions) (*Engine, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	generator, err := ingestion.NewGenerator(embedder,
		ingestion.WithPoolSize(options.aiConfig.MaxConcurrency),
		ingestion.WithTimeout(options.aiConfig.RequestTimeout),
		ingestion.WithEntireProfile(options.entireProfile),
		ingestion.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(repository, generator)
	if err != nil {
		generator.Release()
		return nil, err
	}

	matcher, err := match.NewMatcher(repository, generator,
		match.WithEligibility(options.eligibility),
		match.WithNeighborLimit(options.neighborLimit),
		match.WithLogger(options.logger),
	)
	if err != nil {
		generator.Release()
		return nil, err
	}

	return &Engine{
		repository: repository,
		generator:  generator,
		pipeline:   pipeline,
		matcher:    matcher,
		logger:     options.logger.With("component", "engine"),
	}, nil
}

// NewProvider creates the embedding provider named by config.Provider.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Provider {
	case ai.ProviderOpenAI:
		return openai.NewProvider(config)
	default:
		return compat.NewProvider(config)
	}
}

func openRepository(backend, path string) (storage.VectorRepository, func() error, error) {
	switch backend {
	case BackendBadger, "":
		b, err := badger.OpenBackend(path, false)
		if err != nil {
			return nil, nil, err
		}
		repository, err := badger.NewVectorRepository(b)
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		return repository, b.Close, nil
	case BackendSQLite:
		repository, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return repository, repository.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Close releases the worker pool, the provider and, for engines created
// by Open, the store.
func (e *Engine) Close() error {
	e.generator.Release()

	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
		}
	}

	if e.closeStore != nil {
		if err := e.closeStore(); err != nil {
			e.logger.Error("error closing storage", "err", err)
			return err
		}
	}
	return nil
}

// FindMatches returns up to limit subjects ranked for searcherID.
func (e *Engine) FindMatches(ctx context.Context, searcherID string, criteria core.SearchCriteria, limit int) ([]core.MatchResult, error) {
	return e.matcher.FindMatches(ctx, searcherID, criteria, limit)
}

// FindMatchesWithMonitor is FindMatches with stage callbacks.
func (e *Engine) FindMatchesWithMonitor(ctx context.Context, searcherID string, criteria core.SearchCriteria, limit int, monitor match.MatchMonitor) ([]core.MatchResult, error) {
	return e.matcher.FindMatchesWithMonitor(ctx, searcherID, criteria, limit, monitor)
}

// StoreProfileEmbeddings embeds and stores every non-blank field.
func (e *Engine) StoreProfileEmbeddings(ctx context.Context, subjectID string, fields map[string]string) error {
	_, err := e.pipeline.StoreProfile(ctx, subjectID, fields)
	return err
}

// StoreProfile is StoreProfileEmbeddings that also reports which attributes were stored.
func (e *Engine) StoreProfile(ctx context.Context, subjectID string, fields map[string]string) ([]string, error) {
	return e.pipeline.StoreProfile(ctx, subjectID, fields)
}

// DeleteProfile removes every vector stored for subjectID.
func (e *Engine) DeleteProfile(ctx context.Context, subjectID string) error {
	if err := core.ValidateSubjectID(subjectID); err != nil {
		return err
	}
	return e.repository.DeleteSubject(ctx, subjectID)
}

// AttributeNames lists stored attribute names, for one subject or, when
// subjectID is empty, across the store.
func (e *Engine) AttributeNames(ctx context.Context, subjectID string) ([]string, error) {
	if subjectID == "" {
		return e.repository.AttributeNames(ctx)
	}
	return e.repository.AttributeNamesFor(ctx, subjectID)
}

// NewImporter creates a bulk importer writing through this engine.
func (e *Engine) NewImporter(config *bulkimport.Config, trackers ...bulkimport.StatusTracker) (*bulkimport.Importer, error) {
	return bulkimport.NewImporter(e.pipeline, config, trackers...)
}

// Repository returns the underlying vector repository.
func (e *Engine) Repository() storage.VectorRepository {
	return e.repository
}
