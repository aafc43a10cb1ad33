package toolscribe

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/toolscribe/toolscribe/mcp"
	"github.com/toolscribe/toolscribe/observability"
)

const defaultBatchConcurrency = 4

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithLogger sets the invoker's logger.
func WithLogger(logger observability.Logger) InvokerOption {
	return func(inv *Invoker) {
		inv.logger = logger
	}
}

// WithHistory records completed invocations to the given store.
func WithHistory(store InvocationStore) InvokerOption {
	return func(inv *Invoker) {
		inv.history = store
	}
}

// WithRateLimit caps each tool's invocation rate. Every tool gets its own
// token bucket with the given rate and burst; calls to one tool never
// consume another tool's tokens.
func WithRateLimit(limit rate.Limit, burst int) InvokerOption {
	return func(inv *Invoker) {
		inv.limit = limit
		inv.burst = burst
		inv.limiters = make(map[string]*rate.Limiter)
	}
}

// WithBatchConcurrency bounds how many calls InvokeAll runs at once.
func WithBatchConcurrency(n int) InvokerOption {
	return func(inv *Invoker) {
		if n > 0 {
			inv.concurrency = n
		}
	}
}

// Invoker executes registered tools from wire-level call parameters:
// arguments are validated against the tool's input schema, unmarshalled into
// its argument struct, and the function's outcome is wrapped into a call
// result. Tool errors and validation failures become IsError results; only
// unknown tools and infrastructure failures surface as Go errors.
type Invoker struct {
	registry    *Registry
	logger      observability.Logger
	history     InvocationStore
	concurrency int

	limit      rate.Limit
	burst      int
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewInvoker creates an Invoker over the given registry.
func NewInvoker(registry *Registry, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		registry:    registry,
		logger:      observability.NewDefaultLogger(),
		concurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke executes one tool call.
func (inv *Invoker) Invoke(ctx context.Context, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	ctx, span := observability.StartSpan(ctx, "Invoker.Invoke")
	span.SetAttributes(
		attribute.String("tool_name", params.Name),
		attribute.Int("arguments_size", len(params.Arguments)),
	)
	defer span.End()

	var err error
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if inv.limiters != nil {
		if err = inv.limiterFor(params.Name).Wait(ctx); err != nil {
			return mcp.CallToolResult{}, err
		}
	}

	rt, exists := inv.registry.lookup(params.Name)
	if !exists {
		err = fmt.Errorf("%w: %s", ErrToolNotFound, params.Name)
		return mcp.CallToolResult{}, err
	}

	startTime := time.Now()

	result, callErr := inv.call(ctx, rt, params)
	if callErr != nil {
		err = callErr
		return mcp.CallToolResult{}, err
	}

	span.SetAttributes(
		attribute.Bool("is_error", result.IsError),
		attribute.Float64("execution_time_ms", float64(time.Since(startTime).Milliseconds())),
	)

	inv.record(ctx, params, result, time.Since(startTime))
	return result, nil
}

// InvokeAll executes a batch of calls concurrently, bounded by the
// configured concurrency. Results keep the order of the input calls. The
// first infrastructure error cancels the remaining calls.
func (inv *Invoker) InvokeAll(ctx context.Context, calls []mcp.CallToolParams) ([]mcp.CallToolResult, error) {
	results := make([]mcp.CallToolResult, len(calls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(inv.concurrency)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			result, err := inv.Invoke(ctx, call)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (inv *Invoker) limiterFor(tool string) *rate.Limiter {
	inv.limitersMu.Lock()
	defer inv.limitersMu.Unlock()

	limiter, exists := inv.limiters[tool]
	if !exists {
		limiter = rate.NewLimiter(inv.limit, inv.burst)
		inv.limiters[tool] = limiter
	}
	return limiter
}

func (inv *Invoker) call(ctx context.Context, rt *registeredTool, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	validation, err := rt.compiled.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("validation error: %v", err)
	}
	if !validation.Valid() {
		var errMsgs []string
		for _, desc := range validation.Errors() {
			errMsgs = append(errMsgs, desc.String())
		}
		return errorResult(fmt.Sprintf("invalid arguments for tool %s: %s",
			params.Name, strings.Join(errMsgs, "; "))), nil
	}

	argsValue := reflect.New(rt.argsType)
	if err := json.Unmarshal(args, argsValue.Interface()); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments for tool %s: %v", params.Name, err)), nil
	}

	in := make([]reflect.Value, 0, 2)
	if rt.takesCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	if rt.argsIsPtr {
		in = append(in, argsValue)
	} else {
		in = append(in, argsValue.Elem())
	}

	out := rt.fn.Call(in)

	if errValue := out[len(out)-1]; !errValue.IsNil() {
		return errorResult(errValue.Interface().(error).Error()), nil
	}

	text := ""
	if rt.hasResult {
		text, err = resultText(out[0].Interface())
		if err != nil {
			return mcp.CallToolResult{}, fmt.Errorf("failed to marshal result of tool %s: %w", params.Name, err)
		}
	}

	return mcp.CallToolResult{
		Content: []mcp.ToolResultContent{{
			Type: "text",
			Text: text,
		}},
	}, nil
}

func (inv *Invoker) record(ctx context.Context, params mcp.CallToolParams, result mcp.CallToolResult, duration time.Duration) {
	if inv.history == nil {
		return
	}

	text := ""
	if len(result.Content) > 0 {
		text = result.Content[0].Text
	}

	record := Invocation{
		ID:        uuid.New(),
		Tool:      params.Name,
		Arguments: params.Arguments,
		Result:    text,
		IsError:   result.IsError,
		Duration:  duration,
		CreatedAt: time.Now(),
	}

	if err := inv.history.RecordInvocation(ctx, record); err != nil {
		inv.logger.WithErr(err).WithFields(map[string]interface{}{
			"tool": params.Name,
		}).Error("Failed to record invocation")
	}
}

func resultText(result interface{}) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func errorResult(text string) mcp.CallToolResult {
	return mcp.CallToolResult{
		IsError: true,
		Content: []mcp.ToolResultContent{{
			Type: "text",
			Text: text,
		}},
	}
}
