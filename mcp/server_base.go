package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/toolscribe/toolscribe/observability"
)

const (
	defaultServerName    = "toolscribe-server"
	defaultServerVersion = "0.1.0"
)

// ServerConfig holds all configuration for BaseServer
type ServerConfig struct {
	logger          observability.Logger
	protocolVersion string
	serverName      string
	serverVersion   string
	minLogLevel     LogLevel
	capabilities    map[string]any
	toolManager     *ToolManager
}

// ServerConfigOption is a function that modifies ServerConfig
type ServerConfigOption func(*ServerConfig)

// UseLogger sets a custom logger
func UseLogger(logger observability.Logger) ServerConfigOption {
	return func(c *ServerConfig) {
		c.logger = logger
	}
}

// UseServerInfo sets server name and version
func UseServerInfo(name, version string) ServerConfigOption {
	return func(c *ServerConfig) {
		c.serverName = name
		c.serverVersion = version
	}
}

// UseLogLevel sets minimum log level
func UseLogLevel(level LogLevel) ServerConfigOption {
	return func(c *ServerConfig) {
		c.minLogLevel = level
	}
}

// UseTools sets the tool manager serving tools/list and tools/call
func UseTools(toolManager *ToolManager) ServerConfigOption {
	return func(c *ServerConfig) {
		c.toolManager = toolManager
	}
}

// BaseServer contains the common fields and methods for MCP server
// implementations. The transport-specific types embed it and provide the
// concrete send methods.
type BaseServer struct {
	protocolVersion    string
	clientCapabilities map[string]any
	logger             observability.Logger
	ServerInfo         Implementation
	capabilities       map[string]any
	minLogLevel        LogLevel
	toolManager        *ToolManager

	supportsToolListChanged bool

	// Abstract send methods.
	sendResp func(clientID string, id *json.RawMessage, result interface{}, err *Error)
	sendErr  func(clientID string, id *json.RawMessage, code int, message string, data interface{})
	sendNoti func(clientID string, method string, params interface{})
}

// NewBaseServer creates a new BaseServer instance with the given options
func NewBaseServer(opts ...ServerConfigOption) (*BaseServer, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	s := &BaseServer{
		protocolVersion: cfg.protocolVersion,
		logger:          cfg.logger,
		ServerInfo: Implementation{
			Name:    cfg.serverName,
			Version: cfg.serverVersion,
		},
		capabilities: cfg.capabilities,
		minLogLevel:  cfg.minLogLevel,
		toolManager:  cfg.toolManager,
		sendNoti:     func(clientID string, method string, params interface{}) {},
	}

	return s, nil
}

func defaultConfig() *ServerConfig {
	tm, _ := NewToolManager(nil)

	return &ServerConfig{
		logger:          observability.NewDefaultLogger(),
		protocolVersion: ProtocolVersion,
		serverName:      defaultServerName,
		serverVersion:   defaultServerVersion,
		minLogLevel:     LogLevelInfo,
		capabilities: map[string]any{
			"logging": map[string]any{},
			"tools": map[string]any{
				"listChanged": true,
			},
		},
		toolManager: tm,
	}
}

// AddTools registers additional tool handlers after construction.
func (s *BaseServer) AddTools(handlers ...ToolHandler) error {
	for _, h := range handlers {
		if err := s.toolManager.RegisterToolHandler(h); err != nil {
			return err
		}
	}
	if s.supportsToolListChanged {
		s.SendToolListChangedNotification()
	}
	return nil
}

// SendToolListChangedNotification sends a notification that the tool list has changed.
func (s *BaseServer) SendToolListChangedNotification() {
	s.sendNoti("", "notifications/tools/list_changed", nil)
}

// LogMessage emits a "notifications/message" notification, filtered by the
// server's minimum log level.
func (s *BaseServer) LogMessage(level LogLevel, loggerName string, data interface{}) {
	if logLevelSeverity[level] > logLevelSeverity[s.minLogLevel] {
		return
	}

	params := LogMessageParams{
		Level:  level,
		Logger: loggerName,
		Data:   data,
	}
	s.sendNoti("", "notifications/message", params)
}

// handleRequest handles incoming requests. Common to all transports.
func (s *BaseServer) handleRequest(ctx context.Context, clientID string, request *Request) {
	s.logger.WithFields(map[string]interface{}{
		"client": clientID,
		"method": request.Method,
	}).Debug("Received request")

	switch request.Method {
	case "initialize":
		s.handleInitialize(clientID, request)
	case "ping":
		s.handlePing(clientID, request)
	case "logging/setLevel":
		s.handleLoggingSetLevel(clientID, request)
	case "tools/list":
		s.handleToolsList(clientID, request)
	case "tools/call":
		s.handleToolsCall(ctx, clientID, request)

	default:
		s.sendErr(clientID, request.ID, ErrorCodeMethodNotFound, "Method not found", nil)
	}
}

func (s *BaseServer) handleInitialize(clientID string, request *Request) {
	var params InitializeParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
		return
	}

	if !strings.HasPrefix(params.ProtocolVersion, "2024-11") {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Unsupported protocol version",
			map[string][]string{"supported": {ProtocolVersion}})
		return
	}

	s.clientCapabilities = params.Capabilities
	result := InitializeResult{
		ProtocolVersion: s.protocolVersion,
		Capabilities:    s.capabilities,
		ServerInfo:      s.ServerInfo,
	}

	s.updateSupportedCapabilities()
	s.sendResp(clientID, request.ID, result, nil)
}

func (s *BaseServer) handlePing(clientID string, request *Request) {
	s.sendResp(clientID, request.ID, map[string]interface{}{}, nil)
}

func (s *BaseServer) handleLoggingSetLevel(clientID string, request *Request) {
	var params SetLogLevelParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
		return
	}
	if _, ok := logLevelSeverity[params.Level]; !ok {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid log level", nil)
		return
	}

	s.minLogLevel = params.Level
	s.sendResp(clientID, request.ID, struct{}{}, nil)
}

func (s *BaseServer) handleToolsList(clientID string, request *Request) {
	var params ListParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
			return
		}
	}

	s.sendResp(clientID, request.ID, s.toolManager.ListTools(params.Cursor, 0), nil)
}

func (s *BaseServer) handleToolsCall(ctx context.Context, clientID string, request *Request) {
	var params CallToolParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, "Invalid params", nil)
		return
	}

	result, err := s.toolManager.CallTool(ctx, params)
	if err != nil {
		s.sendErr(clientID, request.ID, ErrorCodeInvalidParams, err.Error(), nil)
		return
	}

	s.sendResp(clientID, request.ID, result, nil)
}

func (s *BaseServer) updateSupportedCapabilities() {
	if toolCaps, ok := s.capabilities["tools"].(map[string]any); ok {
		if listChanged, ok := toolCaps["listChanged"].(bool); ok && listChanged {
			s.supportsToolListChanged = true
		}
	}
}

// handleNotification handles incoming notifications. Common to all transports.
func (s *BaseServer) handleNotification(ctx context.Context, clientID string, notification *Notification) {
	s.logger.WithFields(map[string]interface{}{
		"client": clientID,
		"method": notification.Method,
	}).Debug("Received notification")

	switch notification.Method {
	case "notifications/initialized":
		s.logger.Debug("Client initialized")
	case "notifications/cancelled":
		var cancelParams struct {
			RequestID json.RawMessage `json:"requestId"`
			Reason    string          `json:"reason"`
		}
		if err := json.Unmarshal(notification.Params, &cancelParams); err == nil {
			s.logger.WithFields(map[string]interface{}{
				"request_id": string(cancelParams.RequestID),
				"reason":     cancelParams.Reason,
			}).Debug("Cancellation requested")
		}

	default:
		s.logger.WithFields(map[string]interface{}{
			"method": notification.Method,
		}).Warn("Unhandled notification")
	}
}
