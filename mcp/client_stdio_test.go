package mcp

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolscribe/toolscribe/observability"
)

// newClientServerPair wires a StdIOClient to an in-process StdIOServer over
// two pipes, the way the client would talk to a spawned server's stdin and
// stdout.
func newClientServerPair(t *testing.T, tm *ToolManager) *StdIOClient {
	t.Helper()

	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()

	opts := []ServerConfigOption{UseLogger(observability.NewNullLogger())}
	if tm != nil {
		opts = append(opts, UseTools(tm))
	}
	baseServer, err := NewBaseServer(opts...)
	require.NoError(t, err)

	server := NewStdIOServer(baseServer, serverIn, serverOut)

	ctx, cancel := context.WithCancel(context.Background())
	go server.Run(ctx)

	client := NewStdIOClient(StdIOClientConfig{
		Logger:         observability.NewNullLogger(),
		Reader:         clientIn,
		Writer:         clientOut,
		RequestTimeout: 5 * time.Second,
	})

	t.Cleanup(func() {
		client.Close()
		cancel()
		clientOut.Close()
		serverOut.Close()
	})

	return client
}

func TestStdIOClientConnect(t *testing.T) {
	client := newClientServerPair(t, nil)

	require.NoError(t, client.Connect(context.Background()))

	assert.Equal(t, Connected, client.GetState())
	assert.True(t, client.IsInitialized())
	assert.Equal(t, "toolscribe-server", client.GetServerInfo().Name)
	assert.Equal(t, ProtocolVersion, client.GetProtocolVersion())
}

func TestStdIOClientConnectTwice(t *testing.T) {
	client := newClientServerPair(t, nil)

	require.NoError(t, client.Connect(context.Background()))
	assert.Error(t, client.Connect(context.Background()))
}

func TestStdIOClientListTools(t *testing.T) {
	tm, err := NewToolManager([]ToolHandler{echoHandler("echo"), echoHandler("shout")})
	require.NoError(t, err)

	client := newClientServerPair(t, tm)
	require.NoError(t, client.Connect(context.Background()))

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)

	assert.Equal(t, "echo", tools[0].Name)
	assert.Equal(t, "shout", tools[1].Name)
}

func TestStdIOClientCallTool(t *testing.T) {
	tm, err := NewToolManager([]ToolHandler{echoHandler("echo")})
	require.NoError(t, err)

	client := newClientServerPair(t, tm)
	require.NoError(t, client.Connect(context.Background()))

	result, err := client.CallTool(context.Background(), CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"message": "round trip"}`),
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	assert.False(t, result.IsError)
	assert.Equal(t, "round trip", result.Content[0].Text)
}

func TestStdIOClientCallUnknownTool(t *testing.T) {
	client := newClientServerPair(t, nil)
	require.NoError(t, client.Connect(context.Background()))

	_, err := client.CallTool(context.Background(), CallToolParams{Name: "missing"})
	assert.Error(t, err)
}

func TestStdIOClientPing(t *testing.T) {
	client := newClientServerPair(t, nil)
	require.NoError(t, client.Connect(context.Background()))

	assert.NoError(t, client.Ping(context.Background()))
}

func TestStdIOClientRequiresConnect(t *testing.T) {
	client := NewStdIOClient(StdIOClientConfig{
		Logger: observability.NewNullLogger(),
	})

	_, err := client.ListTools(context.Background())
	assert.Error(t, err)

	_, err = client.CallTool(context.Background(), CallToolParams{Name: "echo"})
	assert.Error(t, err)

	assert.Error(t, client.Ping(context.Background()))
}

func TestStdIOClientRequestTimeout(t *testing.T) {
	clientIn, _ := io.Pipe()

	client := NewStdIOClient(StdIOClientConfig{
		Logger:         observability.NewNullLogger(),
		Reader:         clientIn,
		Writer:         io.Discard,
		RequestTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() {
		client.Close()
		clientIn.Close()
	})

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, Disconnected, client.GetState())
}
