package match

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/ingestion"
	"github.com/poiesic/mentormatch/storage"
)

// Matcher ranks subjects against a searcher's stored profile and ad-hoc
// criteria by aggregating one k-NN list per attribute.
type Matcher struct {
	repository    storage.VectorRepository
	generator     *ingestion.Generator
	eligibility   core.EligibilityFilter
	neighborLimit int
	logger        *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger.With("component", "matcher")
		return nil
	}
}

// WithEligibility restricts results to subjects admitted by filter.
// The filter is consulted inside every k-NN query, before the limit.
func WithEligibility(filter core.EligibilityFilter) Option {
	return func(m *Matcher) error {
		m.eligibility = filter
		return nil
	}
}

// WithNeighborLimit sets how many candidates each list fetches.
// Zero means the request limit.
func WithNeighborLimit(n int) Option {
	return func(m *Matcher) error {
		if n < 0 {
			return fmt.Errorf("%w: neighbor limit %d", core.ErrInvalidLimit, n)
		}
		m.neighborLimit = n
		return nil
	}
}

// NewMatcher creates a new matcher.
func NewMatcher(repository storage.VectorRepository, generator *ingestion.Generator, opts ...Option) (*Matcher, error) {
	if repository == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	m := &Matcher{
		repository: repository,
		generator:  generator,
		logger:     slog.Default().With("component", "matcher"),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// FindMatches returns up to limit subjects ranked against the searcher.
func (m *Matcher) FindMatches(ctx context.Context, searcherID string, criteria core.SearchCriteria, limit int) ([]core.MatchResult, error) {
	return m.FindMatchesWithMonitor(ctx, searcherID, criteria, limit, nil)
}

// FindMatchesWithMonitor is FindMatches with callbacks at each stage.
//
// Lists come from two sources: one per attribute the searcher already has
// stored, and one per criteria field that embedded successfully. A criteria
// field whose name is not stored anywhere is searched across all attributes.
// Failed lists are logged and skipped. When every list fails the result is
// empty and the failure is only visible through logs and the monitor.
// Only invalid input and caller cancellation produce an error.
func (m *Matcher) FindMatchesWithMonitor(ctx context.Context, searcherID string, criteria core.SearchCriteria, limit int, monitor MatchMonitor) ([]core.MatchResult, error) {
	if err := core.ValidateSubjectID(searcherID); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidCriteria, err)
	}
	if err := core.ValidateCriteria(criteria); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %w: %d", core.ErrInvalidCriteria, core.ErrInvalidLimit, limit)
	}

	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(searcherID, criteria)

	r := &matchRun{
		Matcher: m,
		monitor: monitor,
		filter:  core.Excluding(m.eligibility, searcherID),
		k:       m.neighborLimit,
		agg:     NewAggregator(),
	}
	if r.k == 0 {
		r.k = limit
	}

	r.searchOwnAttributes(ctx, searcherID)
	r.searchCriteria(ctx, searcherID, criteria)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.attempted > 0 && r.succeeded == 0 {
		err := fmt.Errorf("%w: %w", ErrAllListsFailed, r.lastErr)
		m.logger.Error("no match list could be built", "searcher", searcherID, "attempted", r.attempted, "err", r.lastErr)
		monitor.Degraded(err)
		results := []core.MatchResult{}
		monitor.Finish(results)
		return results, nil
	}

	results := r.agg.Results(limit)
	m.logger.Debug("matches found", "searcher", searcherID, "lists", r.succeeded, "failed", r.attempted-r.succeeded, "results", len(results))
	monitor.Finish(results)
	return results, nil
}

// matchRun holds the state of one FindMatches call.
type matchRun struct {
	*Matcher
	monitor   MatchMonitor
	filter    core.EligibilityFilter
	k         int
	agg       *Aggregator
	attempted int
	succeeded int
	lastErr   error
}

func (r *matchRun) fail(attribute string, err error) {
	r.attempted++
	r.lastErr = err
	r.monitor.ListFailed(attribute, err)
}

func (r *matchRun) search(ctx context.Context, label, searched string, query []float32) {
	neighbors, err := r.repository.KNearest(ctx, searched, query, r.k, r.filter)
	if err != nil {
		r.logger.Warn("nearest neighbor query failed", "attribute", label, "searched", searched, "err", err)
		r.fail(label, err)
		return
	}
	r.attempted++
	r.succeeded++
	list := core.RankedList{Attribute: label, Neighbors: neighbors}
	r.agg.Add(list)
	r.monitor.ListCompleted(list, searched)
}

// searchOwnAttributes runs one list per vector the searcher already has.
func (r *matchRun) searchOwnAttributes(ctx context.Context, searcherID string) {
	names, err := r.repository.AttributeNamesFor(ctx, searcherID)
	if err != nil {
		r.logger.Warn("failed to list searcher attributes", "searcher", searcherID, "err", err)
		r.fail(core.AllAttributes, err)
		names = nil
	}
	r.monitor.AfterSearcherAttributes(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		stored, err := r.repository.GetVector(ctx, searcherID, name)
		if err != nil {
			r.logger.Warn("failed to load searcher vector", "searcher", searcherID, "attribute", name, "err", err)
			r.fail(name, err)
			continue
		}
		r.search(ctx, name, name, stored.Vector)
	}
}

// searchCriteria embeds the criteria and runs one list per embedded field.
func (r *matchRun) searchCriteria(ctx context.Context, searcherID string, criteria core.SearchCriteria) {
	embedded, err := r.generator.Generate(ctx, searcherID, criteria)
	if err != nil {
		r.logger.Warn("criteria embedding failed", "searcher", searcherID, "err", err)
		r.fail(core.AllAttributes, err)
	}

	fields := make([]string, 0, len(embedded))
	for name := range embedded {
		fields = append(fields, name)
	}
	slices.Sort(fields)
	r.monitor.AfterCriteriaEmbedding(fields)
	if len(fields) == 0 {
		return
	}

	known, err := r.repository.AttributeNames(ctx)
	if err != nil {
		r.logger.Warn("failed to list stored attributes, searching all", "err", err)
		known = nil
	}

	for _, name := range fields {
		if ctx.Err() != nil {
			return
		}
		searched := name
		if _, found := slices.BinarySearch(known, name); !found {
			r.logger.Debug("attribute not stored, searching all", "attribute", name)
			searched = core.AllAttributes
		}
		r.search(ctx, name, searched, embedded[name])
	}
}
