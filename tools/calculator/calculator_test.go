package calculator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolscribe/toolscribe"
	"github.com/toolscribe/toolscribe/mcp"
	"github.com/toolscribe/toolscribe/observability"
)

func TestOperations(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, Operands) (float64, error)
		args Operands
		want float64
	}{
		{name: "add", fn: Add, args: Operands{A: 2, B: 3}, want: 5},
		{name: "subtract", fn: Subtract, args: Operands{A: 2, B: 3}, want: -1},
		{name: "multiply", fn: Multiply, args: Operands{A: 2, B: 3}, want: 6},
		{name: "divide", fn: Divide, args: Operands{A: 6, B: 3}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(context.Background(), tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDivideByZero(t *testing.T) {
	_, err := Divide(context.Background(), Operands{A: 1, B: 0})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	registry := toolscribe.NewRegistry()
	require.NoError(t, Register(registry))

	descriptors := registry.List()
	require.Len(t, descriptors, 4)

	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"add", "divide", "multiply", "subtract"}, names)

	add, err := registry.Get("add")
	require.NoError(t, err)
	require.Len(t, add.Parameters, 2)

	assert.Equal(t, "a", add.Parameters[0].Name)
	assert.Equal(t, toolscribe.TypeNumber, add.Parameters[0].Type)
	assert.True(t, add.Parameters[0].Required)
	assert.Equal(t, "b", add.Parameters[1].Name)
	assert.Equal(t, toolscribe.TypeNumber, add.Parameters[1].Type)
	assert.True(t, add.Parameters[1].Required)
	assert.Equal(t, toolscribe.TypeNumber, add.Returns)
}

func TestDivideDescriptionKeepsFirstParagraphOnly(t *testing.T) {
	registry := toolscribe.NewRegistry()
	require.NoError(t, Register(registry))

	divide, err := registry.Get("divide")
	require.NoError(t, err)
	assert.Equal(t, "Divide the first number by the second.", divide.Description)
}

func TestRegisteredDivideInvocation(t *testing.T) {
	registry := toolscribe.NewRegistry()
	require.NoError(t, Register(registry))

	invoker := toolscribe.NewInvoker(registry, toolscribe.WithLogger(observability.NewNullLogger()))

	result, err := invoker.Invoke(context.Background(), mcp.CallToolParams{
		Name:      "divide",
		Arguments: json.RawMessage(`{"a": 6, "b": 3}`),
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.False(t, result.IsError)
	assert.Equal(t, "2", result.Content[0].Text)

	result, err = invoker.Invoke(context.Background(), mcp.CallToolParams{
		Name:      "divide",
		Arguments: json.RawMessage(`{"a": 1, "b": 0}`),
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.True(t, result.IsError)
	assert.Equal(t, "division by zero", result.Content[0].Text)
}
