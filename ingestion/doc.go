// Package ingestion turns free-text profile fields into stored attribute vectors.
//
// The Generator embeds each non-blank field on a bounded worker pool, with
// a timeout per call. A field that fails is logged and dropped; only when
// every field fails does the caller see ErrEmbeddingUnavailable.
//
// The Pipeline writes the generated vectors through a storage.VectorRepository
// from the calling goroutine, so storage is never touched by pool workers.
package ingestion
