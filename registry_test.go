package toolscribe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addFunc(ctx context.Context, args struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}) (float64, error) {
	return args.A + args.B, nil
}

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()

	descriptor, err := registry.Register("add", "Add two numbers.", addFunc)
	require.NoError(t, err)
	assert.Equal(t, "add", descriptor.Name)

	got, err := registry.Get("add")
	require.NoError(t, err)
	assert.Equal(t, descriptor, got)

	schema, err := registry.Schema("add")
	require.NoError(t, err)
	assert.NotEmpty(t, schema)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Register("add", "Add two numbers.", addFunc)
	require.NoError(t, err)

	_, err = registry.Register("add", "Add two numbers again.", addFunc)
	assert.ErrorContains(t, err, "already registered")
}

func TestRegistryRejectsInvalidFunction(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Register("broken", "", "not a function")
	assert.Error(t, err)

	_, err = registry.Get("broken")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistryListSorted(t *testing.T) {
	registry := NewRegistry()

	for _, name := range []string{"delta", "alpha", "charlie", "bravo"} {
		_, err := registry.Register(name, "", addFunc)
		require.NoError(t, err)
	}

	descriptors := registry.List()
	require.Len(t, descriptors, 4)

	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, names)
}

func TestRegistryGetUnknown(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)

	_, err = registry.Schema("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}
