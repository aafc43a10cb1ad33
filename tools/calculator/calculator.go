// Package calculator provides the arithmetic tools served by the example
// binaries.
package calculator

import (
	"context"
	"fmt"

	"github.com/toolscribe/toolscribe"
)

// Operands are the arguments shared by all calculator tools.
type Operands struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Add returns the sum of two numbers.
func Add(ctx context.Context, args Operands) (float64, error) {
	return args.A + args.B, nil
}

// Subtract returns the difference of two numbers.
func Subtract(ctx context.Context, args Operands) (float64, error) {
	return args.A - args.B, nil
}

// Multiply returns the product of two numbers.
func Multiply(ctx context.Context, args Operands) (float64, error) {
	return args.A * args.B, nil
}

// Divide returns the quotient of two numbers.
func Divide(ctx context.Context, args Operands) (float64, error) {
	if args.B == 0 {
		return 0, fmt.Errorf("division by zero")
	}
	return args.A / args.B, nil
}

// Register adds all calculator tools to the registry.
func Register(registry *toolscribe.Registry) error {
	tools := []struct {
		name string
		doc  string
		fn   interface{}
	}{
		{"add", "Add two numbers.", Add},
		{"subtract", "Subtract the second number from the first.", Subtract},
		{"multiply", "Multiply two numbers.", Multiply},
		{"divide", "Divide the first number by the second.\n\nDivision by zero is an error.", Divide},
	}

	for _, t := range tools {
		if _, err := registry.Register(t.name, t.doc, t.fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", t.name, err)
		}
	}
	return nil
}
