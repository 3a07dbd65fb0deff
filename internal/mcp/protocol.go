package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ErrorCode is the single error code this server reports for every RPC failure.
const ErrorCode = -1

// Request represents a JSON-RPC 2.0 request. ID is kept as raw JSON so it can be
// echoed byte-for-byte, null included.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response models a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError holds JSON-RPC error data.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return e.Message
}

func newError(format string, args ...any) *ResponseError {
	return &ResponseError{Code: ErrorCode, Message: fmt.Sprintf(format, args...)}
}

// Decode parses a request body. Whatever can be recovered of the id is returned
// even when decoding fails, so the error response can still echo it.
func Decode(body []byte) (Request, *ResponseError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Request{}, newError("Invalid request: %v", err)
	}

	req := Request{ID: fields["id"], Params: fields["params"]}
	if raw, ok := fields["jsonrpc"]; ok {
		_ = json.Unmarshal(raw, &req.JSONRPC)
	}

	raw, ok := fields["method"]
	if !ok || isNull(raw) {
		return req, newError("Invalid request: missing method")
	}
	if err := json.Unmarshal(raw, &req.Method); err != nil {
		return req, newError("Invalid request: method must be a string")
	}
	return req, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeParams unmarshals params into v; absent or null params leave v untouched.
func decodeParams(raw json.RawMessage, v any) *ResponseError {
	if isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return newError("Invalid params: %v", err)
	}
	return nil
}

// ClientInfo is what a client declares about itself in initialize.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the part of the initialize params this server reads.
type InitializeParams struct {
	ClientInfo ClientInfo `json:"clientInfo"`
}

// InitializeResult is the static handshake answer.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises tool and prompt support.
type Capabilities struct {
	Tools   struct{} `json:"tools"`
	Prompts struct{} `json:"prompts"`
}

// ServerInfo names this server to clients.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolDescriptor describes a tool available from the MCP server.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema *JSONSchema `json:"inputSchema,omitempty"`
}

// JSONSchema is a minimal subset to describe tool input shapes.
type JSONSchema struct {
	Type        string                `json:"type,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty"`
	Required    []string              `json:"required,omitempty"`
	Description string                `json:"description,omitempty"`
}

// ToolList is the payload for tools/list.
type ToolList struct {
	Tools []ToolDescriptor `json:"tools"`
}

// NamedParams carries the name and raw arguments of tools/call and prompts/get.
type NamedParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ContentPart is a single piece of tool or prompt output.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the payload for a successful tool invocation.
type CallResult struct {
	Content []ContentPart `json:"content"`
}

// PromptArgument describes one prompt argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// PromptDescriptor describes a prompt available from the MCP server.
type PromptDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Arguments   []PromptArgument `json:"arguments"`
}

// PromptList is the payload for prompts/list.
type PromptList struct {
	Prompts []PromptDescriptor `json:"prompts"`
}

// PromptMessage is one message of a rendered prompt.
type PromptMessage struct {
	Role    string      `json:"role"`
	Content ContentPart `json:"content"`
}

// PromptResult is the payload for prompts/get.
type PromptResult struct {
	Description string          `json:"description"`
	Messages    []PromptMessage `json:"messages"`
}
