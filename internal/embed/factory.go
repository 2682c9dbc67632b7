package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ProviderType names an embedding backend.
type ProviderType string

const (
	// ProviderAuto tries Ollama and falls back to static.
	ProviderAuto ProviderType = ""

	// ProviderOllama requires a reachable Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings.
	ProviderStatic ProviderType = "static"
)

// ParseProvider maps a config value to a provider. Unknown values are
// returned unchanged and rejected by NewEmbedder.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ProviderAuto
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		return ProviderType(s)
	}
}

// Options selects and configures an embedder.
type Options struct {
	Provider  ProviderType
	Model     string
	Host      string
	CacheSize int

	// DisableCache returns the bare embedder.
	DisableCache bool

	Logger *slog.Logger
}

// NewEmbedder creates the embedder described by opts, wrapped in an LRU
// cache. With ProviderAuto an unreachable Ollama degrades to the static
// embedder with a warning; an explicit ProviderOllama fails instead.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		e   Embedder
		err error
	)
	switch opts.Provider {
	case ProviderStatic:
		e = NewStaticEmbedder()
	case ProviderOllama:
		e, err = newOllama(ctx, opts)
		if err != nil {
			return nil, err
		}
	case ProviderAuto:
		e, err = newOllama(ctx, opts)
		if err != nil {
			logger.Warn("ollama_unavailable_using_static",
				slog.String("host", opts.Host),
				slog.String("error", err.Error()))
			e = NewStaticEmbedder()
		}
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", opts.Provider)
	}

	logger.Info("embedder_ready",
		slog.String("model", e.ModelName()),
		slog.Int("dimensions", e.Dimensions()))

	if opts.DisableCache {
		return e, nil
	}
	return NewCachedEmbedder(e, opts.CacheSize), nil
}

func newOllama(ctx context.Context, opts Options) (*OllamaEmbedder, error) {
	cfg := DefaultOllamaConfig()
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	return NewOllamaEmbedder(ctx, cfg)
}
