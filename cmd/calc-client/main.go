// Command calc-client spawns a calc-server process, connects over its
// pipes, lists the served tools, and invokes one of them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/toolscribe/toolscribe/mcp"
	"github.com/toolscribe/toolscribe/observability"
)

var cli struct {
	Server  string        `help:"Command launching the tool server." default:"calc-server" env:"CALC_SERVER_CMD"`
	Tool    string        `help:"Tool to invoke." default:"add"`
	A       float64       `help:"First operand." default:"2"`
	B       float64       `help:"Second operand." default:"3"`
	Timeout time.Duration `help:"Overall timeout." default:"30s"`
}

func main() {
	_ = godotenv.Load()
	kctx := kong.Parse(&cli)

	logger := observability.NewDefaultLogger()

	ctx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()

	serverCmd := exec.CommandContext(ctx, cli.Server)
	serverCmd.Stderr = os.Stderr

	stdin, err := serverCmd.StdinPipe()
	if err != nil {
		kctx.FatalIfErrorf(err)
	}
	stdout, err := serverCmd.StdoutPipe()
	if err != nil {
		kctx.FatalIfErrorf(err)
	}
	if err := serverCmd.Start(); err != nil {
		kctx.FatalIfErrorf(err)
	}

	client := mcp.NewStdIOClient(mcp.StdIOClientConfig{
		Logger: logger,
		Reader: stdout,
		Writer: stdin,
	})

	if err := client.Connect(ctx); err != nil {
		kctx.FatalIfErrorf(err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		kctx.FatalIfErrorf(err)
	}
	for _, tool := range tools {
		fmt.Printf("Tool: %s - %s\n", tool.Name, tool.Description)
	}

	arguments, err := json.Marshal(map[string]float64{"a": cli.A, "b": cli.B})
	if err != nil {
		kctx.FatalIfErrorf(err)
	}

	result, err := client.CallTool(ctx, mcp.CallToolParams{
		Name:      cli.Tool,
		Arguments: arguments,
	})
	if err != nil {
		kctx.FatalIfErrorf(err)
	}

	for _, content := range result.Content {
		if result.IsError {
			fmt.Printf("%s failed: %s\n", cli.Tool, content.Text)
		} else {
			fmt.Printf("%s(%v, %v) = %s\n", cli.Tool, cli.A, cli.B, content.Text)
		}
	}

	_ = client.Close()
	_ = stdin.Close()
	_ = serverCmd.Wait()
}
