package toolscribe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/toolscribe/toolscribe/mcp"
	"github.com/toolscribe/toolscribe/observability"
)

// ToolsProvider exposes a set of tools either from a local registry or from
// a remote MCP client. A provider is backed by exactly one of the two.
type ToolsProvider struct {
	registry  *Registry
	invoker   *Invoker
	mcpClient *mcp.StdIOClient
}

// NewToolsProvider creates a ToolsProvider with no backing source.
func NewToolsProvider() *ToolsProvider {
	return &ToolsProvider{}
}

// AddRegistry backs the provider with a local registry and its invoker.
func (p *ToolsProvider) AddRegistry(registry *Registry, invoker *Invoker) error {
	if p.mcpClient != nil {
		return fmt.Errorf("cannot add registry as MCP client is already set")
	}
	p.registry = registry
	p.invoker = invoker
	return nil
}

// AddMCPClient backs the provider with a remote MCP client.
func (p *ToolsProvider) AddMCPClient(client *mcp.StdIOClient) error {
	if p.registry != nil {
		return fmt.Errorf("cannot set MCP client as registry is already added")
	}
	p.mcpClient = client
	return nil
}

// ListTools returns the wire-level tool list of the backing source.
func (p *ToolsProvider) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if p.registry != nil {
		return registryTools(p.registry)
	}
	if p.mcpClient != nil {
		return p.mcpClient.ListTools(ctx)
	}
	return []mcp.Tool{}, nil
}

// ExecuteTool executes a tool through the backing source.
func (p *ToolsProvider) ExecuteTool(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	ctx, span := observability.StartSpan(ctx, "ToolsProvider.ExecuteTool")
	span.SetAttributes(
		attribute.String("tool_name", params.Name),
	)
	defer span.End()

	var err error
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	startTime := time.Now()

	if p.registry != nil {
		span.AddEvent("ExecutingLocalTool")
		result, execErr := p.invoker.Invoke(ctx, params)
		span.SetAttributes(
			attribute.Float64("execution_time_ms", float64(time.Since(startTime).Milliseconds())),
			attribute.Bool("is_local_tool", true),
		)
		err = execErr
		return result, execErr
	}

	if p.mcpClient != nil {
		span.AddEvent("ExecutingRemoteTool")
		result, execErr := p.mcpClient.CallTool(ctx, params)
		span.SetAttributes(
			attribute.Float64("execution_time_ms", float64(time.Since(startTime).Milliseconds())),
			attribute.Bool("is_mcp_tool", true),
		)
		err = execErr
		return result, execErr
	}

	err = fmt.Errorf("no tools available")
	return mcp.CallToolResult{}, err
}

// ToolHandlers converts the provider's local tools into handlers an MCP
// server can serve. Providers backed by a remote client have no local
// handlers.
func (p *ToolsProvider) ToolHandlers() ([]mcp.ToolHandler, error) {
	if p.registry == nil {
		return nil, fmt.Errorf("provider has no local registry")
	}

	descriptors := p.registry.List()
	handlers := make([]mcp.ToolHandler, 0, len(descriptors))
	for _, d := range descriptors {
		schema, err := p.registry.Schema(d.Name)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, &registryToolHandler{
			tool: mcp.Tool{
				Name:        d.Name,
				Description: d.Description,
				InputSchema: schema,
			},
			invoker: p.invoker,
		})
	}
	return handlers, nil
}

func registryTools(registry *Registry) ([]mcp.Tool, error) {
	descriptors := registry.List()
	tools := make([]mcp.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		schema, err := registry.Schema(d.Name)
		if err != nil {
			return nil, err
		}
		tools = append(tools, mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

// registryToolHandler adapts one registered tool to the mcp.ToolHandler
// interface.
type registryToolHandler struct {
	tool    mcp.Tool
	invoker *Invoker
}

func (h *registryToolHandler) GetName() string                 { return h.tool.Name }
func (h *registryToolHandler) GetDescription() string          { return h.tool.Description }
func (h *registryToolHandler) GetInputSchema() json.RawMessage { return h.tool.InputSchema }

func (h *registryToolHandler) Handler(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	return h.invoker.Invoke(ctx, params)
}
