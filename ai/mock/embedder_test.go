package mock

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "c", "python")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "c", "python")
	require.NoError(t, err)
	other, err := m.EmbedText(ctx, "c", "painting")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.Len(t, a, DefaultDimensions)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestMockEmbedder_Injection(t *testing.T) {
	m := NewMockEmbedder().WithVector("fixed", []float32{1, 0})
	ctx := context.Background()

	v, err := m.EmbedText(ctx, "caller-1", "fixed")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)

	m.EmbedTextFunc = func(ctx context.Context, callerID, text string) ([]float32, error) {
		return nil, errors.New("down")
	}
	_, err = m.EmbedText(ctx, "caller-2", "fixed")
	assert.Error(t, err)

	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, []string{"caller-1", "caller-2"}, m.Callers())
	assert.Equal(t, []string{"fixed", "fixed"}, m.Texts())

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Nil(t, m.EmbedTextFunc)
}

func TestMockEmbedder_Concurrent(t *testing.T) {
	m := NewMockEmbedder()
	m.Dimensions = 8

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedText(context.Background(), "c", "text")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, m.CallCount())
}
