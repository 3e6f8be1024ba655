package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/mentormatch/core"
)

var (
	// ErrNoQueries is returned when a dataset has nothing to evaluate.
	ErrNoQueries = errors.New("dataset has no queries")

	// ErrEngineRequired is returned when no engine is provided.
	ErrEngineRequired = errors.New("engine required")
)

// Engine is the part of the matching engine exercised by an evaluation.
type Engine interface {
	StoreProfileEmbeddings(ctx context.Context, subjectID string, fields map[string]string) error
	FindMatches(ctx context.Context, searcherID string, criteria core.SearchCriteria, limit int) ([]core.MatchResult, error)
}

// Summary is the headline of an evaluation. PassRate is a percentage.
type Summary struct {
	Passed   int     `json:"passed"`
	Total    int     `json:"total"`
	PassRate float64 `json:"pass_rate"`
}

// QueryResult records where the target mentor landed for one query.
// TargetRank is 1-based and zero when the target was not returned.
type QueryResult struct {
	QueryIndex       int    `json:"query_index"`
	QueryName        string `json:"query_name"`
	TargetMentorID   string `json:"target_mentor_id"`
	TargetMentorName string `json:"target_mentor_name"`
	TargetInTopN     bool   `json:"target_in_top_n"`
	TargetRank       int    `json:"target_rank,omitempty"`
	Passed           bool   `json:"passed"`
	Error            string `json:"error,omitempty"`
}

// Result is a full evaluation report.
type Result struct {
	Summary Summary       `json:"summary"`
	Details []QueryResult `json:"detailed_results"`
}

type options struct {
	topN       int
	limit      int
	searcherID string
	logger     *slog.Logger
}

// Option configures Run.
type Option func(*options)

// WithTopN sets how high the target must rank to pass. Default is 3.
func WithTopN(n int) Option {
	return func(o *options) { o.topN = n }
}

// WithLimit sets how many matches each query requests. Default is 10.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// WithSearcherID sets the id queries are issued under.
func WithSearcherID(id string) Option {
	return func(o *options) { o.searcherID = id }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Run stores every mentor, issues every query and scores the outcome.
// A query that errors counts as failed; a mentor that cannot be stored
// aborts the run.
func Run(ctx context.Context, engine Engine, ds *Dataset, opts ...Option) (*Result, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if ds == nil || len(ds.Queries) == 0 {
		return nil, ErrNoQueries
	}

	o := options{
		topN:       3,
		limit:      10,
		searcherID: "evaluation-searcher",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.topN < 1 || o.limit < o.topN {
		return nil, fmt.Errorf("%w: top %d of %d", core.ErrInvalidLimit, o.topN, o.limit)
	}
	logger := o.logger.With("component", "evaluation")

	for _, m := range ds.Mentors {
		if err := engine.StoreProfileEmbeddings(ctx, m.ID, m.Fields); err != nil {
			return nil, fmt.Errorf("failed to store mentor %s: %w", m.ID, err)
		}
	}
	logger.Info("mentors stored", "count", len(ds.Mentors))

	result := &Result{Details: make([]QueryResult, 0, len(ds.Queries))}
	for i, q := range ds.Queries {
		qr := QueryResult{
			QueryIndex:       i,
			QueryName:        q.Name,
			TargetMentorID:   q.TargetMentorID,
			TargetMentorName: ds.mentorName(q.TargetMentorID),
		}

		matches, err := engine.FindMatches(ctx, o.searcherID, q.Criteria, o.limit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn("query failed", "query", i, "name", q.Name, "err", err)
			qr.Error = err.Error()
		}

		for rank, m := range matches {
			if m.SubjectID == q.TargetMentorID {
				qr.TargetRank = rank + 1
				break
			}
		}
		qr.TargetInTopN = qr.TargetRank > 0 && qr.TargetRank <= o.topN
		qr.Passed = qr.TargetInTopN
		if qr.Passed {
			result.Summary.Passed++
		}
		logger.Debug("query evaluated", "query", i, "target", q.TargetMentorID, "rank", qr.TargetRank)
		result.Details = append(result.Details, qr)
	}

	result.Summary.Total = len(ds.Queries)
	result.Summary.PassRate = float64(result.Summary.Passed) / float64(result.Summary.Total) * 100
	return result, nil
}

// WriteReport writes the result as indented JSON.
func WriteReport(path string, result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
