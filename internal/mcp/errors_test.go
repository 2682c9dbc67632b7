package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_ContextErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, "timed out"},
		{"canceled", context.Canceled, "canceled"},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), "timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapError(tt.err)
			require.NotNil(t, result)
			assert.Equal(t, ErrCodeTimeout, result.Code)
			assert.Contains(t, result.Message, tt.want)
		})
	}
}

func TestMapError_DocsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"document not found", docserrors.New(docserrors.ErrCodeDocumentNotFound, "no document", nil), ErrCodeDocumentNotFound},
		{"unknown project", docserrors.New(docserrors.ErrCodeUnknownProject, "unknown project", nil), ErrCodeUnknownProject},
		{"best practices not found", docserrors.New(docserrors.ErrCodeBestPracticesNotFound, "no best practices", nil), ErrCodeDocumentNotFound},
		{"empty query", docserrors.New(docserrors.ErrCodeQueryEmpty, "query is empty", nil), ErrCodeInvalidParams},
		{"validation", docserrors.ValidationError("bad content mode", nil), ErrCodeInvalidParams},
		{"embedding", docserrors.New(docserrors.ErrCodeEmbeddingFailed, "embed query", nil), ErrCodeEmbeddingFailed},
		{"busy", docserrors.New(docserrors.ErrCodeIndexBusy, "index locked", nil), ErrCodeIndexUnavailable},
		{"store write", docserrors.New(docserrors.ErrCodeStoreWrite, "upsert", nil), ErrCodeIndexUnavailable},
		{"git", docserrors.New(docserrors.ErrCodeSourceFetch, "clone failed", nil), ErrCodeSourceFailed},
		{"search failed", docserrors.New(docserrors.ErrCodeSearchFailed, "every tier failed", nil), ErrCodeInternalError},
		{"wrapped", fmt.Errorf("tool: %w", docserrors.New(docserrors.ErrCodeUnknownProject, "x", nil)), ErrCodeUnknownProject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapError(tt.err)
			require.NotNil(t, result)
			assert.Equal(t, tt.code, result.Code)
		})
	}
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	// Given: an error carrying a suggestion
	err := docserrors.New(docserrors.ErrCodeDocumentNotFound, `no document "a.md" in project "panel"`, nil).
		WithSuggestion("use search or list_projects to find indexed documents")

	// When: mapping the error
	result := MapError(err)

	// Then: message and suggestion are both present, without the internal code
	assert.Contains(t, result.Message, `no document "a.md"`)
	assert.Contains(t, result.Message, "list_projects")
	assert.NotContains(t, result.Message, "ERR_405")
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	orig := NewInvalidParamsError("query is required")

	assert.Same(t, orig, MapError(fmt.Errorf("wrapped: %w", orig)))
}

func TestMapError_UnknownError(t *testing.T) {
	result := MapError(errors.New("disk on fire"))

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
	assert.NotContains(t, result.Message, "disk on fire")
}

func TestMapError_ReindexUnavailable(t *testing.T) {
	result := MapError(ErrReindexUnavailable)

	assert.Equal(t, ErrCodeIndexUnavailable, result.Code)
	assert.Contains(t, result.Message, "docsmcp index")
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "bad"}

	assert.Equal(t, "MCP error -32602: bad", err.Error())
}
