package preflight

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/embed"
)

// CheckEmbedder checks that the configured embeddings backend answers.
// Search degrades to the static embedder, so failures only warn.
func (c *Checker) CheckEmbedder(ctx context.Context, cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: false,
	}

	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	emb, err := c.embedder(ctx, embed.Options{
		Provider:     provider,
		Model:        cfg.Embeddings.Model,
		Host:         cfg.Embeddings.OllamaHost,
		DisableCache: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		result.Status = StatusWarn
		name := string(provider)
		if name == "" {
			name = "auto"
		}
		result.Message = fmt.Sprintf("%s unavailable: %v", name, err)
		return result
	}
	defer func() { _ = emb.Close() }()

	result.Details = fmt.Sprintf("model %s, %d dimensions", emb.ModelName(), emb.Dimensions())
	if !emb.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s not reachable", emb.ModelName())
		return result
	}
	if provider == embed.ProviderAuto && emb.ModelName() == embed.NewStaticEmbedder().ModelName() {
		result.Status = StatusWarn
		result.Message = "ollama unreachable, using static embeddings"
		result.Details = "Start ollama at " + cfg.Embeddings.OllamaHost + " for semantic search"
		return result
	}

	result.Status = StatusPass
	result.Message = emb.ModelName()
	return result
}
