package bulkimport

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/ingestion"
)

// batchProcessor embeds one batch of profiles, retrying when the provider
// is unavailable.
type batchProcessor struct {
	generator      *ingestion.Generator
	maxRetries     int
	retryBaseDelay time.Duration
}

// embed returns the generated vectors by subject. Subjects missing from the
// result could not be embedded.
func (bp *batchProcessor) embed(ctx context.Context, profiles []core.Profile) (map[string]map[string][]float32, error) {
	if len(profiles) == 0 {
		return map[string]map[string][]float32{}, nil
	}

	var vectors map[string]map[string][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.generator.GenerateMany(ctx, profiles)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch after %d attempts: %w", bp.maxRetries, err)
	}
	return vectors, nil
}
