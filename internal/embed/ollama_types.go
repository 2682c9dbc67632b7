package embed

import (
	"time"

	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a general text embedding model suited to prose
	// documentation.
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaConnectTimeout bounds the availability probe.
	OllamaConnectTimeout = 5 * time.Second
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host  string
	Model string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	BatchSize int

	// Timeout bounds each request attempt.
	Timeout time.Duration

	ConnectTimeout time.Duration

	Retry docserrors.RetryConfig

	// SkipHealthCheck skips model discovery at construction.
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns the defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		BatchSize:      DefaultBatchSize,
		Timeout:        DefaultTimeout,
		ConnectTimeout: OllamaConnectTimeout,
		Retry:          docserrors.DefaultRetryConfig(),
	}
}

// OllamaEmbedRequest is the /api/embed request.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string
}

// OllamaEmbedResponse is the /api/embed response.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the /api/tags response.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes an installed model.
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
