// Package mcpadapter serves the classification use cases as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

const (
	serverName    = "document-classifier"
	serverVersion = "1.0.0"
)

type Tools struct {
	classifier ports.DocumentClassificationService
	reader     ports.DocumentReader
	logger     *slog.Logger
}

func NewTools(classifier ports.DocumentClassificationService, reader ports.DocumentReader, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{classifier: classifier, reader: reader, logger: logger}
}

// NewServer registers classify_document and get_document on a new MCP server.
func NewServer(tools *Tools) *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Classify stored customer documents and read their recorded labels."),
	)

	srv.AddTool(mcp.NewTool("classify_document",
		mcp.WithDescription("Fetch a stored document, extract its text, classify it and persist the label."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("File name as uploaded, e.g. statement.pdf")),
		mcp.WithNumber("customer_id", mcp.Required(), mcp.Min(1), mcp.Description("Owning customer id")),
		mcp.WithIdempotentHintAnnotation(true),
	), tools.ClassifyDocument)

	srv.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read the metadata record of a stored document, including its label."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("File name as uploaded")),
		mcp.WithNumber("customer_id", mcp.Required(), mcp.Min(1), mcp.Description("Owning customer id")),
		mcp.WithReadOnlyHintAnnotation(true),
	), tools.GetDocument)

	return srv
}

func (t *Tools) ClassifyDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID, filename, err := documentArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := t.classifier.ClassifyDocument(ctx, customerID, filename)
	if err != nil {
		return t.toolError("classify_document", err), nil
	}
	return structured(result)
}

func (t *Tools) GetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID, filename, err := documentArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := t.reader.GetDocument(ctx, customerID, filename)
	if err != nil {
		return t.toolError("get_document", err), nil
	}
	return structured(record)
}

func documentArgs(request mcp.CallToolRequest) (int64, string, error) {
	filename, err := request.RequireString("filename")
	if err != nil {
		return 0, "", err
	}
	raw, err := request.RequireFloat("customer_id")
	if err != nil {
		return 0, "", err
	}
	if raw < 1 || raw != math.Trunc(raw) || raw >= math.MaxInt64 {
		return 0, "", fmt.Errorf("argument %q must be a positive integer", "customer_id")
	}
	return int64(raw), filename, nil
}

// clientKinds are safe to report verbatim; anything else is logged and
// replaced by a generic message.
var clientKinds = []error{
	domain.ErrValidation,
	domain.ErrUnsupportedFormat,
	domain.ErrDocumentNotFound,
	domain.ErrConflict,
}

func (t *Tools) toolError(tool string, err error) *mcp.CallToolResult {
	for _, kind := range clientKinds {
		if errors.Is(err, kind) {
			return mcp.NewToolResultError(err.Error())
		}
	}
	t.logger.Error("tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError("internal error")
}

func structured(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultStructured(v, string(raw)), nil
}
