package ai

import (
	"context"
	"fmt"

	apperr "github.com/botdock/botdock/internal/pkg/errors"
)

// IEmbedder binds one provider to one model and a fixed output dimension.
// It performs no caching; callers that want a cache add one on top.
type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
	Dimension() int
}

type embedder struct {
	provider  IEmbedProvider
	model     string
	dimension int
}

func NewEmbedder(provider IEmbedProvider, model string, dimension int) IEmbedder {
	return &embedder{provider: provider, model: model, dimension: dimension}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	vec, err := e.provider.Embed(ctx, e.model, text, taskType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmbeddingProvider, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding from %s", apperr.ErrEmbeddingProvider, e.provider.Name())
	}
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: model %s returned %d dims, expected %d",
			apperr.ErrEmbeddingProvider, e.model, len(vec), e.dimension)
	}
	return vec, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

func (e *embedder) Dimension() int {
	return e.dimension
}
