// Command toolscribe prints the calling contracts of the calculator tools,
// either as a rendered markdown catalog or as raw JSON schemas.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/glamour"

	"github.com/toolscribe/toolscribe"
	"github.com/toolscribe/toolscribe/tools/calculator"
)

var cli struct {
	JSON  bool `help:"Print descriptors and schemas as JSON instead of markdown."`
	Plain bool `help:"Print markdown without terminal rendering."`
}

func main() {
	kctx := kong.Parse(&cli)

	registry := toolscribe.NewRegistry()
	if err := calculator.Register(registry); err != nil {
		kctx.FatalIfErrorf(err)
	}

	descriptors := registry.List()

	if cli.JSON {
		type toolContract struct {
			Descriptor  toolscribe.ToolDescriptor `json:"descriptor"`
			InputSchema json.RawMessage           `json:"inputSchema"`
		}

		contracts := make([]toolContract, 0, len(descriptors))
		for _, d := range descriptors {
			schema, err := registry.Schema(d.Name)
			if err != nil {
				kctx.FatalIfErrorf(err)
			}
			contracts = append(contracts, toolContract{Descriptor: d, InputSchema: schema})
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		kctx.FatalIfErrorf(encoder.Encode(contracts))
		return
	}

	catalog := toolscribe.RenderCatalog(descriptors)
	if cli.Plain {
		fmt.Print(catalog)
		return
	}

	rendered, err := glamour.Render(catalog, "dark")
	if err != nil {
		fmt.Print(catalog)
		return
	}
	fmt.Print(rendered)
}
