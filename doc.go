// Package toolscribe turns plain Go functions into described, invocable
// tools. A tool's calling contract is captured as a descriptor (name,
// description, parameters, return type) derived by reflecting over the
// function's argument struct and its documentation string; the descriptor in
// turn yields a JSON Schema that argument documents are validated against
// before every call.
//
// The typical flow is: register functions on a Registry, execute them
// through an Invoker, and expose them to automated consumers over the toy
// MCP transport in the mcp subpackage.
//
//	registry := toolscribe.NewRegistry()
//	_, err := registry.Register("add", "Add two numbers.",
//		func(ctx context.Context, args struct {
//			A float64 `json:"a"`
//			B float64 `json:"b"`
//		}) (float64, error) {
//			return args.A + args.B, nil
//		})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	invoker := toolscribe.NewInvoker(registry)
//	result, err := invoker.Invoke(ctx, mcp.CallToolParams{
//		Name:      "add",
//		Arguments: json.RawMessage(`{"a": 2, "b": 3}`),
//	})
//
// Invocations can be recorded to an InvocationStore (in-memory, SQLite, or
// PostgreSQL) and rendered as a markdown catalog for human readers.
package toolscribe
