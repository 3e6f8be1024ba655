package ai

import "errors"

var (
	// ErrEmptyEmbedding is returned when a provider answers without a vector.
	ErrEmptyEmbedding = errors.New("provider returned an empty embedding")
)
