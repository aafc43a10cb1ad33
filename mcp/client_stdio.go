package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/toolscribe/toolscribe/observability"
)

// ConnectionState represents the client's connection lifecycle.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

const (
	defaultClientName     = "toolscribe-client"
	defaultClientVersion  = "0.1.0"
	defaultRequestTimeout = 30 * time.Second
)

// StdIOClientConfig configures a StdIOClient. Reader and Writer are usually
// the stdout and stdin pipes of a spawned server process.
type StdIOClientConfig struct {
	ClientName     string
	ClientVersion  string
	RequestTimeout time.Duration
	Logger         observability.Logger
	Reader         io.Reader
	Writer         io.Writer
}

// StdIOClient is a toy MCP client speaking newline-delimited JSON over a
// local process transport.
type StdIOClient struct {
	config StdIOClientConfig

	mu                 sync.RWMutex
	state              ConnectionState
	initialized        bool
	serverInfo         Implementation
	serverCapabilities map[string]any
	protocolVersion    string
	responseHandlers   map[string]chan *Response
	nextRequestID      int

	writeMu  sync.Mutex
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewStdIOClient creates a new StdIOClient with the given configuration.
func NewStdIOClient(config StdIOClientConfig) *StdIOClient {
	if config.ClientName == "" {
		config.ClientName = defaultClientName
	}
	if config.ClientVersion == "" {
		config.ClientVersion = defaultClientVersion
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaultRequestTimeout
	}
	if config.Logger == nil {
		config.Logger = observability.NewDefaultLogger()
	}
	if config.Reader == nil {
		config.Reader = os.Stdin
	}
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	return &StdIOClient{
		config:           config,
		state:            Disconnected,
		responseHandlers: make(map[string]chan *Response),
		nextRequestID:    1,
		stopChan:         make(chan struct{}),
	}
}

// Connect performs the initialize handshake followed by the "initialized"
// notification.
func (c *StdIOClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return fmt.Errorf("client is already connected or connecting")
	}
	c.state = Connecting
	c.mu.Unlock()

	go c.processIncomingMessages()

	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo: Implementation{
			Name:    c.config.ClientName,
			Version: c.config.ClientVersion,
		},
	}

	resp, err := c.sendRequest(ctx, "initialize", params)
	if err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("initialization failed: %w", err)
	}

	var result InitializeResult
	if err := decodeResult(resp, &result); err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("invalid initialize result: %w", err)
	}

	if !strings.HasPrefix(result.ProtocolVersion, "2024-11") {
		c.setState(Disconnected)
		return fmt.Errorf("unsupported protocol version: %s", result.ProtocolVersion)
	}

	if err := c.sendNotification("notifications/initialized", nil); err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}

	c.mu.Lock()
	c.state = Connected
	c.initialized = true
	c.serverInfo = result.ServerInfo
	c.serverCapabilities = result.Capabilities
	c.protocolVersion = result.ProtocolVersion
	c.mu.Unlock()

	c.config.Logger.WithFields(map[string]interface{}{
		"server":  result.ServerInfo.Name,
		"version": result.ServerInfo.Version,
	}).Info("Connection established")
	return nil
}

// Close stops the client's message loop.
func (c *StdIOClient) Close() error {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.setState(Disconnected)
	return nil
}

func (c *StdIOClient) setState(state ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// GetState returns the current connection state.
func (c *StdIOClient) GetState() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsInitialized reports whether the handshake completed.
func (c *StdIOClient) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// GetServerInfo returns the server identity from the initialize result.
func (c *StdIOClient) GetServerInfo() Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// GetProtocolVersion returns the negotiated protocol version.
func (c *StdIOClient) GetProtocolVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.protocolVersion
}

// ListTools retrieves the complete tool list, following pagination cursors.
func (c *StdIOClient) ListTools(ctx context.Context) ([]Tool, error) {
	if !c.IsInitialized() {
		return nil, fmt.Errorf("client not initialized")
	}

	var tools []Tool
	cursor := ""
	for {
		resp, err := c.sendRequest(ctx, "tools/list", ListParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}

		var result ListToolsResult
		if err := decodeResult(resp, &result); err != nil {
			return nil, fmt.Errorf("invalid tools/list result: %w", err)
		}

		tools = append(tools, result.Tools...)
		if result.NextCursor == "" {
			return tools, nil
		}
		cursor = result.NextCursor
	}
}

// CallTool invokes a tool by name with JSON arguments.
func (c *StdIOClient) CallTool(ctx context.Context, params CallToolParams) (CallToolResult, error) {
	if !c.IsInitialized() {
		return CallToolResult{}, fmt.Errorf("client not initialized")
	}

	resp, err := c.sendRequest(ctx, "tools/call", params)
	if err != nil {
		return CallToolResult{}, err
	}

	var result CallToolResult
	if err := decodeResult(resp, &result); err != nil {
		return CallToolResult{}, fmt.Errorf("invalid tools/call result: %w", err)
	}
	return result, nil
}

// Ping checks that the server is responsive.
func (c *StdIOClient) Ping(ctx context.Context) error {
	if !c.IsInitialized() {
		return fmt.Errorf("client not initialized")
	}
	_, err := c.sendRequest(ctx, "ping", nil)
	return err
}

func (c *StdIOClient) sendRequest(ctx context.Context, method string, params interface{}) (*Response, error) {
	c.mu.Lock()
	id := c.nextRequestID
	c.nextRequestID++
	key := strconv.Itoa(id)
	ch := make(chan *Response, 1)
	c.responseHandlers[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.responseHandlers, key)
		c.mu.Unlock()
	}()

	idRaw := json.RawMessage(key)
	request := Request{
		JSONRPC: "2.0",
		ID:      &idRaw,
		Method:  method,
	}
	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		request.Params = paramsBytes
	}

	if err := c.writeMessage(request); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("server error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopChan:
		return nil, fmt.Errorf("client closed")
	case <-time.After(c.config.RequestTimeout):
		return nil, fmt.Errorf("request timed out: %s", method)
	}
}

func (c *StdIOClient) sendNotification(method string, params interface{}) error {
	notification := Notification{
		JSONRPC: "2.0",
		Method:  method,
	}
	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		notification.Params = paramsBytes
	}
	return c.writeMessage(notification)
}

func (c *StdIOClient) writeMessage(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.config.Writer.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (c *StdIOClient) processIncomingMessages() {
	scanner := bufio.NewScanner(c.config.Reader)
	buffer := make([]byte, 0, 64*1024)
	scanner.Buffer(buffer, 1024*1024)

	for {
		select {
		case <-c.stopChan:
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil && !strings.Contains(err.Error(), "file already closed") {
					c.config.Logger.WithErr(err).Error("Scanner error")
				}
				return
			}

			line := scanner.Text()

			var response Response
			if err := json.Unmarshal([]byte(line), &response); err == nil && response.ID != nil {
				c.routeResponse(&response)
				continue
			}

			var notification Notification
			if err := json.Unmarshal([]byte(line), &notification); err == nil && notification.Method != "" {
				c.config.Logger.WithFields(map[string]interface{}{
					"method": notification.Method,
				}).Debug("Received notification")
				continue
			}

			c.config.Logger.WithFields(map[string]interface{}{
				"line": line,
			}).Warn("Received unparseable message")
		}
	}
}

func (c *StdIOClient) routeResponse(response *Response) {
	key := strings.Trim(string(*response.ID), `"`)

	c.mu.RLock()
	ch, exists := c.responseHandlers[key]
	c.mu.RUnlock()

	if !exists {
		c.config.Logger.WithFields(map[string]interface{}{
			"id": key,
		}).Warn("Received response for unknown request")
		return
	}

	select {
	case ch <- response:
	default:
	}
}

func decodeResult(resp *Response, v interface{}) error {
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
