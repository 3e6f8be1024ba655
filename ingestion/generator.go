package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/mentormatch/ai"
	"github.com/poiesic/mentormatch/core"
)

const (
	defaultPoolSize = 20
	defaultTimeout  = 30 * time.Second
)

// Generator turns named text fields into named vectors. Each field is
// embedded once on a bounded worker pool, each call under its own timeout.
type Generator struct {
	embedder      ai.Embedder
	pool          *ants.Pool
	timeout       time.Duration
	entireProfile bool
	logger        *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator) error

// WithPoolSize sets the maximum number of concurrent embedding calls.
// Default is 20.
func WithPoolSize(size int) Option {
	return func(g *Generator) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if g.pool != nil {
			g.pool.Release()
		}
		g.pool = pool
		return nil
	}
}

// WithTimeout bounds each embedding call. A timed out call counts as a
// failure of that field only.
// Default is 30s.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Generator) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		g.timeout = timeout
		return nil
	}
}

// WithEntireProfile enables the synthetic core.EntireProfileAttribute field,
// the embedding of all non-blank fields rendered as sorted "name: value" lines.
func WithEntireProfile(enabled bool) Option {
	return func(g *Generator) error {
		g.entireProfile = enabled
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger.With("component", "generator")
		return nil
	}
}

// NewGenerator creates a new Generator. Call Release when done.
func NewGenerator(embedder ai.Embedder, opts ...Option) (*Generator, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		embedder: embedder,
		pool:     pool,
		timeout:  defaultTimeout,
		logger:   slog.Default().With("component", "generator"),
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			g.Release()
			return nil, err
		}
	}
	return g, nil
}

// Release releases the worker pool.
// The generator should not be used after calling Release.
func (g *Generator) Release() {
	if g.pool != nil {
		g.pool.Release()
	}
}

// embedJob is one field of one subject.
type embedJob struct {
	subjectID string
	attribute string
	text      string
}

// Generate embeds every non-blank field of one subject, attributing calls to
// subjectID. Failed fields are logged and left out of the result. When
// every field fails the error wraps ErrEmbeddingUnavailable.
func (g *Generator) Generate(ctx context.Context, subjectID string, fields map[string]string) (map[string][]float32, error) {
	if err := validateFields(subjectID, fields); err != nil {
		return nil, err
	}

	jobs := g.jobsFor(subjectID, fields)
	if len(jobs) == 0 {
		return map[string][]float32{}, nil
	}

	vectors, lastErr := g.embedAll(ctx, jobs)
	result := vectors[subjectID]
	if len(result) == 0 {
		return map[string][]float32{}, fmt.Errorf("%w: all %d fields failed: %w", ErrEmbeddingUnavailable, len(jobs), lastErr)
	}
	return result, nil
}

// GenerateMany embeds the fields of many subjects on the shared pool.
// Subjects whose fields all failed are absent from the result. The error
// wraps ErrEmbeddingUnavailable only when nothing could be embedded.
func (g *Generator) GenerateMany(ctx context.Context, profiles []core.Profile) (map[string]map[string][]float32, error) {
	var jobs []embedJob
	for _, p := range profiles {
		if err := validateFields(p.SubjectID, p.Fields); err != nil {
			return nil, err
		}
		jobs = append(jobs, g.jobsFor(p.SubjectID, p.Fields)...)
	}
	if len(jobs) == 0 {
		return map[string]map[string][]float32{}, nil
	}

	vectors, lastErr := g.embedAll(ctx, jobs)
	if len(vectors) == 0 {
		return vectors, fmt.Errorf("%w: all %d fields failed: %w", ErrEmbeddingUnavailable, len(jobs), lastErr)
	}
	return vectors, nil
}

func validateFields(subjectID string, fields map[string]string) error {
	if err := core.ValidateSubjectID(subjectID); err != nil {
		return err
	}
	for name := range fields {
		if err := core.ValidateAttributeName(name); err != nil {
			return err
		}
	}
	return nil
}

// jobsFor lists the fields worth embedding, plus the synthetic profile field.
func (g *Generator) jobsFor(subjectID string, fields map[string]string) []embedJob {
	names := make([]string, 0, len(fields))
	for name, text := range fields {
		if strings.TrimSpace(text) == "" {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	jobs := make([]embedJob, 0, len(names)+1)
	for _, name := range names {
		jobs = append(jobs, embedJob{subjectID: subjectID, attribute: name, text: fields[name]})
	}

	if _, explicit := fields[core.EntireProfileAttribute]; g.entireProfile && !explicit && len(names) > 0 {
		jobs = append(jobs, embedJob{
			subjectID: subjectID,
			attribute: core.EntireProfileAttribute,
			text:      RenderProfile(fields),
		})
	}
	return jobs
}

// embedAll runs every job on the pool and waits for all of them.
// It returns the successful vectors by subject and the last failure seen.
func (g *Generator) embedAll(ctx context.Context, jobs []embedJob) (map[string]map[string][]float32, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		lastErr error
		results = make(map[string]map[string][]float32)
	)

	record := func(job embedJob, vector []float32, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			lastErr = err
			g.logger.Warn("failed to embed field", "subject", job.subjectID, "attribute", job.attribute, "err", err)
			return
		}
		if results[job.subjectID] == nil {
			results[job.subjectID] = make(map[string][]float32)
		}
		results[job.subjectID][job.attribute] = vector
	}

	for _, job := range jobs {
		wg.Add(1)
		err := g.pool.Submit(func() {
			defer wg.Done()
			vector, err := g.embedOne(ctx, job)
			record(job, vector, err)
		})
		if err != nil {
			wg.Done()
			record(job, nil, err)
		}
	}
	wg.Wait()

	return results, lastErr
}

func (g *Generator) embedOne(ctx context.Context, job embedJob) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vector, err := g.embedder.EmbedText(callCtx, job.subjectID, job.text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	return vector, nil
}

// RenderProfile renders the non-blank fields as "name: value" lines sorted by name.
// The synthetic profile field itself is never included.
func RenderProfile(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name, text := range fields {
		if name == core.EntireProfileAttribute || strings.TrimSpace(text) == "" {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(strings.TrimSpace(fields[name]))
	}
	return sb.String()
}
