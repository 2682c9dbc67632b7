package mcp

import (
	"context"
	"errors"
	"fmt"

	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

// Custom MCP error codes for docsmcp.
const (
	// ErrCodeIndexUnavailable indicates the index cannot serve the request.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeEmbeddingFailed indicates the query could not be embedded.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeDocumentNotFound indicates no indexed document has the path.
	ErrCodeDocumentNotFound = -32004

	// ErrCodeUnknownProject indicates the project is not configured.
	ErrCodeUnknownProject = -32005

	// ErrCodeSourceFailed indicates a project could not be fetched or read.
	ErrCodeSourceFailed = -32006

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// ErrReindexUnavailable is returned by the reindex tool when the server
// was built without an ingestion orchestrator.
var ErrReindexUnavailable = errors.New("reindex is not available on this server")

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var docsErr *docserrors.DocsError
	if errors.As(err, &docsErr) {
		return mapDocsError(docsErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrReindexUnavailable):
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: "Reindex is not available on this server. Run 'docsmcp index' instead."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeDocumentNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapDocsError(de *docserrors.DocsError) *MCPError {
	message := de.Message
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", de.Message, de.Suggestion)
	}

	switch de.Code {
	case docserrors.ErrCodeDocumentNotFound, docserrors.ErrCodeBestPracticesNotFound:
		return &MCPError{Code: ErrCodeDocumentNotFound, Message: message}
	case docserrors.ErrCodeUnknownProject:
		return &MCPError{Code: ErrCodeUnknownProject, Message: message}
	case docserrors.ErrCodeEmbeddingFailed:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	case docserrors.ErrCodeNetworkTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case docserrors.ErrCodeIndexBusy, docserrors.ErrCodeCorruptIndex, docserrors.ErrCodeStoreUnavailable:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	}

	switch de.Category {
	case docserrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case docserrors.CategorySource:
		return &MCPError{Code: ErrCodeSourceFailed, Message: message}
	case docserrors.CategoryStore:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
