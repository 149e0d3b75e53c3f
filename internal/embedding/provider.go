// Package embedding turns text into fixed-length vectors via a pluggable
// provider. Implementations are selected at construction time; callers only
// ever see the Provider interface.
package embedding

import "context"

// Provider is the capability interface for an embedding model backend.
//
// Embed and EmbedBatch are deterministic for a fixed model version: the same
// text yields the same vector. EmbedBatch preserves input order and returns
// exactly one vector per input text.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts.
	// Returns nil (not error) for empty input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed output dimensionality of the active model.
	Dimensions() int

	// ModelID identifies the model so collections built with different
	// models can be told apart.
	ModelID() string

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
}

// Error marks a provider failure (unavailable backend, rejected input).
// Callers may retry the whole operation; no partial state is committed on
// the caller's side when an Error is returned.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "embedding: " + e.Op
	}
	return "embedding: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
