package model

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every failure to reach or initialize the
// embedding model. Callers decide whether it is fatal: a live search
// surfaces it, ingestion logs it and moves on.
var ErrUnavailable = errors.New("embedding model unavailable")

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// EmbedMany preserves order: result[i] embeds texts[i].
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Dimension(ctx context.Context) (int, error)
}
