package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

// OllamaEmbedder generates embeddings through Ollama's HTTP API.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// errStatus marks non-200 replies. 4xx replies are not retried.
type errStatus struct {
	code int
	body string
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("ollama returned status %d: %s", e.code, e.body)
}

// NewOllamaEmbedder creates an Ollama embedder. Unless SkipHealthCheck is
// set it verifies the model is installed and detects its dimensions.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	def := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = def.Retry
	}
	cfg.Retry.ShouldRetry = func(err error) bool {
		var status *errStatus
		if errors.As(err, &status) {
			return status.code >= 500
		}
		return true
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}
	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout+cfg.Timeout)
		defer cancel()

		name, err := e.findModel(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, docserrors.New(docserrors.ErrCodeEmbeddingFailed, "ollama unavailable", err).
				WithSuggestion("start ollama and run: ollama pull " + cfg.Model)
		}
		e.modelName = name

		if e.dims == 0 {
			vecs, err := e.doEmbed(checkCtx, []string{"dimension detection"})
			if err != nil {
				transport.CloseIdleConnections()
				return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
			}
			e.dims = len(vecs[0])
		}
	}
	if e.dims == 0 {
		return nil, fmt.Errorf("embedding dimensions unknown: set Dimensions when skipping the health check")
	}
	return e, nil
}

func (e *OllamaEmbedder) findModel(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.ConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to connect to ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &errStatus{code: resp.StatusCode, body: string(body)}
	}

	var list OllamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("failed to decode model list: %w", err)
	}

	// "nomic-embed-text" matches "nomic-embed-text:latest"; tagged names
	// must match exactly.
	want := strings.ToLower(e.config.Model)
	for _, m := range list.Models {
		name := strings.ToLower(m.Name)
		base, _, _ := strings.Cut(name, ":")
		if name == want || base == want {
			return m.Name, nil
		}
	}
	return "", fmt.Errorf("model %q is not installed", e.config.Model)
}

// Embed generates the embedding of a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in request batches of BatchSize. Blank texts
// get zero vectors without a request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	results := make([][]float32, len(texts))
	var idx []int
	var pending []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		idx = append(idx, i)
		pending = append(pending, text)
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(pending))

		vecs, err := docserrors.RetryWithResult(ctx, e.config.Retry, func() ([][]float32, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
			defer cancel()
			return e.doEmbed(attemptCtx, pending[start:end])
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, docserrors.New(docserrors.ErrCodeEmbeddingFailed, "embedding request failed", err)
		}
		for j, v := range vecs {
			if len(v) != e.dims {
				return nil, docserrors.New(docserrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("model returned %d dimensions, expected %d", len(v), e.dims), nil)
			}
			results[idx[start+j]] = v
		}
	}
	return results, nil
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(OllamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &errStatus{code: resp.StatusCode, body: string(b)}
	}

	var out OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(out.Embeddings))
	for i, emb := range out.Embeddings {
		v := make([]float32, len(emb))
		for j, x := range emb {
			v[j] = float32(x)
		}
		vecs[i] = normalizeVector(v)
	}

	slog.Debug("embedding_batch_done",
		slog.Int("texts", len(texts)),
		slog.Duration("duration", time.Since(start)))
	return vecs, nil
}

// Dimensions returns the embedding width.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// ModelName returns the resolved Ollama model name.
func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Available probes the model list endpoint.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	_, err := e.findModel(ctx)
	return err == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.transport.CloseIdleConnections()
	}
	return nil
}
