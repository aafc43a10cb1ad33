package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockToolHandler implements ToolHandler for testing.
type MockToolHandler struct {
	name        string
	description string
	inputSchema json.RawMessage
	handler     func(ctx context.Context, params CallToolParams) (CallToolResult, error)
}

func (m MockToolHandler) GetName() string                 { return m.name }
func (m MockToolHandler) GetDescription() string          { return m.description }
func (m MockToolHandler) GetInputSchema() json.RawMessage { return m.inputSchema }
func (m MockToolHandler) Handler(ctx context.Context, params CallToolParams) (CallToolResult, error) {
	return m.handler(ctx, params)
}

func echoHandler(name string) MockToolHandler {
	return MockToolHandler{
		name:        name,
		description: "echoes back its message argument",
		inputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"message": {"type": "string"}
			},
			"required": ["message"]
		}`),
		handler: func(ctx context.Context, params CallToolParams) (CallToolResult, error) {
			var args struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(params.Arguments, &args); err != nil {
				return CallToolResult{}, err
			}
			return CallToolResult{
				Content: []ToolResultContent{{Type: "text", Text: args.Message}},
			}, nil
		},
	}
}

func TestNewToolManager(t *testing.T) {
	tm, err := NewToolManager([]ToolHandler{echoHandler("echo")})
	require.NoError(t, err)
	require.NotNil(t, tm)

	tool, err := tm.GetTool("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", tool.Name)
	assert.Equal(t, "echoes back its message argument", tool.Description)
}

func TestNewToolManagerRejectsInvalidHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler ToolHandler
	}{
		{
			name:    "empty name",
			handler: MockToolHandler{name: "", description: "something"},
		},
		{
			name:    "empty description",
			handler: MockToolHandler{name: "tool", description: ""},
		},
		{
			name: "malformed schema",
			handler: MockToolHandler{
				name:        "tool",
				description: "something",
				inputSchema: json.RawMessage(`{"type": `),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewToolManager([]ToolHandler{tt.handler})
			assert.Error(t, err)
		})
	}
}

func TestRegisterToolHandlerDuplicate(t *testing.T) {
	tm, err := NewToolManager([]ToolHandler{echoHandler("echo")})
	require.NoError(t, err)

	err = tm.RegisterToolHandler(echoHandler("echo"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestListTools(t *testing.T) {
	tm, err := NewToolManager([]ToolHandler{
		echoHandler("d_tool"),
		echoHandler("a_tool"),
		echoHandler("c_tool"),
		echoHandler("b_tool"),
	})
	require.NoError(t, err)

	tests := []struct {
		name       string
		cursor     string
		limit      int
		wantTools  []string
		wantCursor string
	}{
		{
			name:      "no cursor, default limit",
			wantTools: []string{"a_tool", "b_tool", "c_tool", "d_tool"},
		},
		{
			name:      "with cursor",
			cursor:    "b_tool",
			limit:     2,
			wantTools: []string{"c_tool", "d_tool"},
		},
		{
			name:       "with cursor and limit",
			cursor:     "a_tool",
			limit:      2,
			wantTools:  []string{"b_tool", "c_tool"},
			wantCursor: "c_tool",
		},
		{
			name:      "cursor past the end",
			cursor:    "d_tool",
			limit:     2,
			wantTools: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tm.ListTools(tt.cursor, tt.limit)

			names := make([]string, 0, len(result.Tools))
			for _, tool := range result.Tools {
				names = append(names, tool.Name)
			}
			assert.Equal(t, tt.wantTools, names)
			assert.Equal(t, tt.wantCursor, result.NextCursor)
		})
	}
}

func TestCallTool(t *testing.T) {
	tm, err := NewToolManager([]ToolHandler{echoHandler("echo")})
	require.NoError(t, err)

	result, err := tm.CallTool(context.Background(), CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"message": "hello"}`),
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	assert.False(t, result.IsError)
	assert.Equal(t, "hello", result.Content[0].Text)
}

func TestCallToolNotFound(t *testing.T) {
	tm, err := NewToolManager(nil)
	require.NoError(t, err)

	_, err = tm.CallTool(context.Background(), CallToolParams{Name: "missing"})
	assert.Error(t, err)
}

func TestCallToolSchemaValidation(t *testing.T) {
	tm, err := NewToolManager([]ToolHandler{echoHandler("echo")})
	require.NoError(t, err)

	tests := []struct {
		name string
		args json.RawMessage
	}{
		{name: "missing required argument", args: json.RawMessage(`{}`)},
		{name: "no arguments at all", args: nil},
		{name: "wrong type", args: json.RawMessage(`{"message": 42}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tm.CallTool(context.Background(), CallToolParams{
				Name:      "echo",
				Arguments: tt.args,
			})
			require.NoError(t, err)
			require.Len(t, result.Content, 1)

			assert.True(t, result.IsError)
			assert.Contains(t, result.Content[0].Text, "validation failed")
		})
	}
}

func TestCallToolHandlerError(t *testing.T) {
	failing := MockToolHandler{
		name:        "broken",
		description: "always fails",
		handler: func(ctx context.Context, params CallToolParams) (CallToolResult, error) {
			return CallToolResult{}, fmt.Errorf("boom")
		},
	}

	tm, err := NewToolManager([]ToolHandler{failing})
	require.NoError(t, err)

	result, err := tm.CallTool(context.Background(), CallToolParams{Name: "broken"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	assert.True(t, result.IsError)
	assert.Equal(t, "boom", result.Content[0].Text)
}

func TestGetToolNotFound(t *testing.T) {
	tm, err := NewToolManager(nil)
	require.NoError(t, err)

	_, err = tm.GetTool("missing")
	assert.Error(t, err)
}
