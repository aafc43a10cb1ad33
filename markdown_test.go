package toolscribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorMarkdown(t *testing.T) {
	descriptor, err := Describe("add", "Add two numbers.", addFunc)
	require.NoError(t, err)

	md := descriptor.Markdown()

	assert.Contains(t, md, "### add")
	assert.Contains(t, md, "Add two numbers.")
	assert.Contains(t, md, "| Parameter | Type | Required |")
	assert.Contains(t, md, "| a | number | yes |")
	assert.Contains(t, md, "| b | number | yes |")
	assert.Contains(t, md, "Returns: `number`")
}

func TestDescriptorMarkdownNoParameters(t *testing.T) {
	descriptor, err := Describe("now", "Report the current time.", func(args struct{}) (string, error) {
		return "", nil
	})
	require.NoError(t, err)

	assert.Contains(t, descriptor.Markdown(), "_No parameters._")
}

func TestRenderCatalog(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Register("add", "Add two numbers.", addFunc)
	require.NoError(t, err)

	catalog := RenderCatalog(registry.List())

	assert.Contains(t, catalog, "# Tool Catalog")
	assert.Contains(t, catalog, "1 tool(s) registered.")
	assert.Contains(t, catalog, "### add")
}
