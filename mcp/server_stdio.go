package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/codes"

	"github.com/toolscribe/toolscribe/observability"
)

// StdIOServer serves a single client over a newline-delimited JSON stream,
// usually the stdin and stdout of the process. Messages are dispatched in
// arrival order; replies and notifications each occupy one output line.
type StdIOServer struct {
	*BaseServer
	in  io.Reader
	out io.Writer

	writeMu     sync.Mutex
	initialized bool
}

// NewStdIOServer wires a BaseServer to the given streams.
func NewStdIOServer(baseServer *BaseServer, in io.Reader, out io.Writer) *StdIOServer {
	s := &StdIOServer{
		BaseServer: baseServer,
		in:         in,
		out:        out,
	}

	s.sendResp = s.sendResponse
	s.sendErr = s.sendError
	s.sendNoti = s.sendNotification

	return s
}

func (s *StdIOServer) sendResponse(clientID string, id *json.RawMessage, result interface{}, err *Error) {
	response := Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
		Error:   err,
	}
	if writeErr := s.writeLine(response); writeErr != nil {
		s.logger.WithErr(writeErr).Error("Failed to marshal response")
		s.sendError(clientID, id, ErrorCodeInternal, "Internal error: failed to marshal response", nil)
	}
}

func (s *StdIOServer) sendError(clientID string, id *json.RawMessage, code int, message string, data interface{}) {
	response := Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
	if err := s.writeLine(response); err != nil {
		s.logger.WithErr(err).Error("Failed to marshal error response")
	}
}

func (s *StdIOServer) sendNotification(clientID string, method string, params interface{}) {
	notification := Notification{
		JSONRPC: "2.0",
		Method:  method,
	}
	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			s.logger.WithErr(err).Error("Failed to marshal notification params")
			return
		}
		notification.Params = paramsBytes
	}
	if err := s.writeLine(notification); err != nil {
		s.logger.WithErr(err).Error("Failed to marshal notification")
	}
}

// writeLine marshals one message and writes it with its line terminator
// under the write lock, so concurrent notifications cannot interleave
// within a line. Marshal failures are returned; write failures are logged,
// since there is nothing useful to send after the stream broke.
func (s *StdIOServer) writeLine(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		s.logger.WithErr(err).Error("Failed to write outgoing message")
	}
	return nil
}

// Run serves the connection until the input stream ends or the context is
// cancelled. Cancellation closes the input stream when it supports closing,
// which releases the blocked reader; for non-closable readers the read
// goroutine lives until its next read returns.
//
// Requests other than "initialize" are rejected until the client completes
// the handshake with the "notifications/initialized" notification.
func (s *StdIOServer) Run(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "StdIOServer.Run")
	defer span.End()

	lines := make(chan string)
	readDone := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)

	go s.readLines(lines, readDone, quit)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Context cancelled, StdIOServer shutting down")
			s.closeInput()
			return ctx.Err()
		case err := <-readDone:
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			s.logger.Debug("Input stream ended, StdIOServer shutting down")
			return err
		case line := <-lines:
			s.dispatch(ctx, line)
		}
	}
}

// readLines feeds input lines to the dispatch loop, then reports how the
// stream ended.
func (s *StdIOServer) readLines(lines chan<- string, done chan<- error, quit <-chan struct{}) {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-quit:
			return
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		done <- fmt.Errorf("failed to read input: %w", err)
		return
	}
	done <- nil
}

func (s *StdIOServer) closeInput() {
	if closer, ok := s.in.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.WithErr(err).Debug("Failed to close input stream")
		}
	}
}

// dispatch classifies one wire message and routes it. A line that parses as
// neither a request nor a notification gets an invalid-request reply.
func (s *StdIOServer) dispatch(ctx context.Context, line string) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		s.logger.WithErr(err).Error("Failed to parse message")
		s.sendError("", nil, ErrorCodeParseError, "Parse error", nil)
		return
	}

	var request Request
	if err := json.Unmarshal(raw, &request); err == nil && request.Method != "" && request.ID != nil {
		s.dispatchRequest(ctx, &request)
		return
	}

	var notification Notification
	if err := json.Unmarshal(raw, &notification); err == nil && notification.Method != "" {
		s.dispatchNotification(ctx, &notification)
		return
	}

	s.sendError("", nil, ErrorCodeInvalidRequest, "Invalid Request", nil)
}

// dispatchRequest enforces the handshake gate: only "initialize" may run
// before the client announced itself initialized.
func (s *StdIOServer) dispatchRequest(ctx context.Context, request *Request) {
	if !s.initialized && request.Method != "initialize" {
		s.logger.Warn("Rejecting request received before the handshake completed")
		s.sendError("", request.ID, ErrorCodeNotInitialized, "Server not initialized", nil)
		return
	}

	// A stdio connection serves exactly one client; the client ID stays empty.
	s.handleRequest(ctx, "", request)
}

func (s *StdIOServer) dispatchNotification(ctx context.Context, notification *Notification) {
	if notification.Method == "notifications/initialized" {
		s.initialized = true
	} else if !s.initialized {
		s.logger.Debug("Dropping notification received before the handshake completed")
		return
	}
	s.handleNotification(ctx, "", notification)
}
