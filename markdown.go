package toolscribe

import (
	"fmt"
	"strings"
)

// Markdown renders the descriptor as a human-readable markdown section.
func (d ToolDescriptor) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s\n\n", d.Name)
	if d.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", d.Description)
	}

	if len(d.Parameters) == 0 {
		b.WriteString("_No parameters._\n\n")
	} else {
		b.WriteString("| Parameter | Type | Required |\n")
		b.WriteString("|-----------|------|----------|\n")
		for _, p := range d.Parameters {
			required := "no"
			if p.Required {
				required = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", p.Name, p.Type, required)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Returns: `%s`\n", d.Returns)
	return b.String()
}

// RenderCatalog renders a markdown catalog of the given descriptors.
func RenderCatalog(descriptors []ToolDescriptor) string {
	var b strings.Builder

	b.WriteString("# Tool Catalog\n\n")
	fmt.Fprintf(&b, "%d tool(s) registered.\n\n", len(descriptors))

	for _, d := range descriptors {
		b.WriteString(d.Markdown())
		b.WriteString("\n")
	}
	return b.String()
}
