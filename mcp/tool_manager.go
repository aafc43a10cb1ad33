package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ToolHandler is the contract a tool must satisfy to be served.
type ToolHandler interface {
	GetName() string
	GetDescription() string
	GetInputSchema() json.RawMessage
	Handler(ctx context.Context, params CallToolParams) (CallToolResult, error)
}

// ToolManager handles tool-related operations.
type ToolManager struct {
	mu       sync.RWMutex
	handlers map[string]ToolHandler
}

// NewToolManager creates a new ToolManager with the given handlers.
func NewToolManager(handlers []ToolHandler) (*ToolManager, error) {
	tm := &ToolManager{
		handlers: make(map[string]ToolHandler),
	}

	for _, h := range handlers {
		if err := tm.RegisterToolHandler(h); err != nil {
			return nil, err
		}
	}

	return tm, nil
}

// RegisterToolHandler validates and registers a tool handler.
func (tm *ToolManager) RegisterToolHandler(h ToolHandler) error {
	if err := validateToolHandler(h); err != nil {
		return err
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, exists := tm.handlers[h.GetName()]; exists {
		return fmt.Errorf("tool already registered: %s", h.GetName())
	}

	tm.handlers[h.GetName()] = h
	return nil
}

// ListTools returns a list of all available tools, with optional pagination.
// Tools are ordered by name; the cursor is the last tool name of the
// previous page.
func (tm *ToolManager) ListTools(cursor string, limit int) ListToolsResult {
	if limit <= 0 {
		limit = 50
	}

	tm.mu.RLock()
	defer tm.mu.RUnlock()

	names := make([]string, 0, len(tm.handlers))
	for name := range tm.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	startIdx := 0
	if cursor != "" {
		for i, name := range names {
			if name == cursor {
				startIdx = i + 1
				break
			}
		}
	}

	endIdx := startIdx + limit
	if endIdx > len(names) {
		endIdx = len(names)
	}

	pageTools := make([]Tool, 0, endIdx-startIdx)
	for i := startIdx; i < endIdx; i++ {
		h := tm.handlers[names[i]]
		pageTools = append(pageTools, Tool{
			Name:        h.GetName(),
			Description: h.GetDescription(),
			InputSchema: h.GetInputSchema(),
		})
	}

	var nextCursor string
	if endIdx < len(names) {
		nextCursor = names[endIdx-1]
	}

	return ListToolsResult{
		Tools:      pageTools,
		NextCursor: nextCursor,
	}
}

// CallTool executes a tool with the given parameters. Arguments are checked
// against the tool's input schema before the handler runs; validation
// failures and handler errors are reported as IsError results, not Go errors.
func (tm *ToolManager) CallTool(ctx context.Context, params CallToolParams) (CallToolResult, error) {
	tm.mu.RLock()
	h, exists := tm.handlers[params.Name]
	tm.mu.RUnlock()

	if !exists {
		return CallToolResult{}, fmt.Errorf("tool not found: %s", params.Name)
	}

	if schema := h.GetInputSchema(); len(schema) > 0 {
		args := params.Arguments
		if len(args) == 0 {
			args = []byte(`{}`)
		}

		schemaLoader := gojsonschema.NewBytesLoader(schema)
		documentLoader := gojsonschema.NewBytesLoader(args)

		result, err := gojsonschema.Validate(schemaLoader, documentLoader)
		if err != nil {
			return CallToolResult{}, fmt.Errorf("validation error: %v", err)
		}

		if !result.Valid() {
			var errMsgs []string
			for _, desc := range result.Errors() {
				errMsgs = append(errMsgs, desc.String())
			}
			return CallToolResult{
				IsError: true,
				Content: []ToolResultContent{{
					Type: "text",
					Text: fmt.Sprintf("Schema validation failed: %s", strings.Join(errMsgs, "; ")),
				}},
			}, nil
		}
	}

	result, err := h.Handler(ctx, params)
	if err != nil {
		return CallToolResult{
			IsError: true,
			Content: []ToolResultContent{{
				Type: "text",
				Text: err.Error(),
			}},
		}, nil
	}

	return result, nil
}

// GetTool retrieves a tool's descriptor by its name.
func (tm *ToolManager) GetTool(name string) (Tool, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	h, exists := tm.handlers[name]
	if !exists {
		return Tool{}, fmt.Errorf("tool not found: %s", name)
	}
	return Tool{
		Name:        h.GetName(),
		Description: h.GetDescription(),
		InputSchema: h.GetInputSchema(),
	}, nil
}

func validateToolHandler(h ToolHandler) error {
	if h == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	if h.GetName() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if h.GetDescription() == "" {
		return fmt.Errorf("tool description cannot be empty")
	}

	if schema := h.GetInputSchema(); schema != nil {
		loader := gojsonschema.NewBytesLoader(schema)
		_, err := gojsonschema.NewSchema(loader)
		if err != nil {
			return fmt.Errorf("invalid input schema: %v", err)
		}
	}

	return nil
}
