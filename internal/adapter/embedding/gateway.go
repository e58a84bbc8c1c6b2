package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"vaultrag/config"
	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// Gateway wraps an embedder with a per-call timeout, an optional request
// rate limit and dimension checking. Provider failures surface as
// domain.ErrEmbeddingUnavailable.
type Gateway struct {
	inner   port.Embedder
	timeout time.Duration
	limiter *rate.Limiter
}

// NewGateway wraps inner. A zero timeout disables the deadline; rps <= 0
// disables rate limiting.
func NewGateway(inner port.Embedder, timeout time.Duration, rps float64) *Gateway {
	g := &Gateway{inner: inner, timeout: timeout}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return g
}

// New builds the configured provider behind a Gateway.
func New(cfg config.EmbeddingConfig) (*Gateway, error) {
	var inner port.Embedder
	switch cfg.Provider {
	case "ollama":
		inner = NewOllamaEmbedder(cfg.Model, cfg.Dimension, cfg.BaseURL)
	case "openai":
		e, err := NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, cfg.Dimension)
		if err != nil {
			return nil, err
		}
		inner = e
	case "mock":
		inner = NewMockEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidConfig, cfg.Provider)
	}
	return NewGateway(inner, cfg.Timeout, cfg.RequestsPerSecond), nil
}

func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, g.unavailable(ctx, err)
		}
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	vectors, err := g.inner.Embed(callCtx, texts)
	if err != nil {
		return nil, g.unavailable(ctx, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}

	dim := g.inner.Dimension()
	for _, v := range vectors {
		if len(v) != dim {
			return nil, &domain.DimensionMismatchError{Expected: dim, Got: len(v)}
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single text.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// unavailable keeps the caller's own cancellation distinct from provider failure.
func (g *Gateway) unavailable(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out after %s", domain.ErrEmbeddingUnavailable, g.timeout)
	}
	return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
}

func (g *Gateway) Dimension() int {
	return g.inner.Dimension()
}

func (g *Gateway) ModelName() string {
	return g.inner.ModelName()
}
