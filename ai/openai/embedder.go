package openai

import (
	"context"
	"log/slog"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/poiesic/mentormatch/ai"
)

// Embedder implements ai.Embedder against the hosted OpenAI embeddings API.
// Every request carries the caller id in the "user" field.
type Embedder struct {
	client     oai.Client
	model      string
	dimensions int
	logger     *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config, extra ...option.RequestOption) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithRequestTimeout(config.RequestTimeout),
		option.WithMaxRetries(2),
	}
	if config.EmbeddingHost != "" {
		opts = append(opts, option.WithBaseURL(config.EmbeddingHost))
	}
	opts = append(opts, extra...)

	return &Embedder{
		client:     oai.NewClient(opts...),
		model:      config.EmbeddingModel,
		dimensions: config.Dimensions,
		logger:     slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, callerID, text string) ([]float32, error) {
	e.logger.Debug("generating embedding", "caller", callerID, "length", len(text))

	params := oai.EmbeddingNewParams{
		Input: oai.EmbeddingNewParamsInputUnion{OfString: oai.String(text)},
		Model: oai.EmbeddingModel(e.model),
	}
	if callerID != "" {
		params.User = oai.String(callerID)
	}
	if e.dimensions > 0 {
		params.Dimensions = oai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		e.logger.Error("failed to generate embedding", "caller", callerID, "err", err)
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}

	raw := resp.Data[0].Embedding
	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v)
	}
	return vector, nil
}
