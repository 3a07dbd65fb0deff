// Package mcp implements the JSON-RPC tool and prompt protocol used by AI-agent clients.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/metrics"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/tracing"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/version"
)

// ProtocolVersion is the MCP revision answered in the handshake.
const ProtocolVersion = "2025-03-26"

// Tool defines the behavior of a single MCP tool.
type Tool interface {
	Descriptor() ToolDescriptor
	Invoke(ctx context.Context, args json.RawMessage) (CallResult, error)
}

// Prompt defines the behavior of a single MCP prompt.
type Prompt interface {
	Descriptor() PromptDescriptor
	Get(ctx context.Context, args json.RawMessage) (PromptResult, error)
}

// Dispatcher routes JSON-RPC requests. It holds no per-request state.
type Dispatcher struct {
	tools   []Tool
	prompts []Prompt

	toolIndex   map[string]Tool
	promptIndex map[string]Prompt

	log     *logrus.Entry
	metrics *metrics.Metrics
}

// NewDispatcher wires tools and prompts into a dispatcher. List order follows
// registration order.
func NewDispatcher(log *logrus.Entry, m *metrics.Metrics, tools []Tool, prompts []Prompt) *Dispatcher {
	d := &Dispatcher{
		tools:       tools,
		prompts:     prompts,
		toolIndex:   make(map[string]Tool, len(tools)),
		promptIndex: make(map[string]Prompt, len(prompts)),
		log:         log,
		metrics:     m,
	}
	for _, t := range tools {
		d.toolIndex[t.Descriptor().Name] = t
	}
	for _, p := range prompts {
		d.promptIndex[p.Descriptor().Name] = p
	}
	return d
}

// HandleRaw decodes body and dispatches it. Decoding failures become error
// responses carrying whatever id could be read.
func (d *Dispatcher) HandleRaw(ctx context.Context, body []byte) Response {
	req, rpcErr := Decode(body)
	if rpcErr != nil {
		return d.finish(req, "", nil, rpcErr)
	}
	return d.Handle(ctx, req)
}

// Handle routes a single request. Every path returns a response whose id is the
// request id.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	ctx, span := tracing.Tracer().Start(ctx, "mcp.dispatch", trace.WithAttributes(
		attribute.String("rpc.method", req.Method),
	))
	defer span.End()

	var (
		result any
		rpcErr *ResponseError
	)

	switch req.Method {
	case "initialize":
		result, rpcErr = d.initialize(req.Params)
	case "tools/list":
		result = d.listTools()
	case "tools/call":
		result, rpcErr = d.callTool(ctx, req.Params)
	case "prompts/list":
		result = d.listPrompts()
	case "prompts/get":
		result, rpcErr = d.getPrompt(ctx, req.Params)
	default:
		rpcErr = newError("Unknown method: %s", req.Method)
	}

	if rpcErr != nil {
		tracing.RecordError(ctx, rpcErr)
	}
	return d.finish(req, req.Method, result, rpcErr)
}

func (d *Dispatcher) finish(req Request, method string, result any, rpcErr *ResponseError) Response {
	if method == "" {
		method = "unknown"
	}

	resp := Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		d.log.WithField("method", method).Errorf("MCP Error (%s): %s", method, rpcErr.Message)
		d.metrics.ObserveRPC(metricMethod(method), "error")
		resp.Error = rpcErr
		return resp
	}

	d.metrics.ObserveRPC(method, "ok")
	resp.Result = result
	return resp
}

// metricMethod keeps label cardinality bounded for arbitrary client input
func metricMethod(method string) string {
	switch method {
	case "initialize", "tools/list", "tools/call", "prompts/list", "prompts/get":
		return method
	default:
		return "other"
	}
}

func (d *Dispatcher) initialize(raw json.RawMessage) (InitializeResult, *ResponseError) {
	var params InitializeParams
	// the handshake answer is static; unreadable params only cost us the log detail
	_ = decodeParams(raw, &params)

	name, ver := params.ClientInfo.Name, params.ClientInfo.Version
	if name == "" {
		name = "unknown"
	}
	if ver == "" {
		ver = "unknown"
	}
	d.log.WithFields(logrus.Fields{
		"client_name":    name,
		"client_version": ver,
	}).Infof("MCP initialization from %s v%s", name, ver)

	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo: ServerInfo{
			Name:    version.ServerName,
			Version: version.Get(),
		},
	}, nil
}

func (d *Dispatcher) listTools() ToolList {
	list := ToolList{Tools: make([]ToolDescriptor, 0, len(d.tools))}
	for _, t := range d.tools {
		list.Tools = append(list.Tools, t.Descriptor())
	}
	return list
}

func (d *Dispatcher) callTool(ctx context.Context, raw json.RawMessage) (any, *ResponseError) {
	var params NamedParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, newError("Missing required parameter: name")
	}

	tool, ok := d.toolIndex[params.Name]
	if !ok {
		return nil, newError("Unknown tool: %s", params.Name)
	}

	result, err := recoverCall(d.log, params.Name, func() (CallResult, error) {
		return tool.Invoke(ctx, params.Arguments)
	})
	if err != nil {
		return nil, newError("%s", err.Error())
	}
	return result, nil
}

func (d *Dispatcher) listPrompts() PromptList {
	list := PromptList{Prompts: make([]PromptDescriptor, 0, len(d.prompts))}
	for _, p := range d.prompts {
		list.Prompts = append(list.Prompts, p.Descriptor())
	}
	return list
}

func (d *Dispatcher) getPrompt(ctx context.Context, raw json.RawMessage) (any, *ResponseError) {
	var params NamedParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, newError("Missing required parameter: name")
	}

	prompt, ok := d.promptIndex[params.Name]
	if !ok {
		return nil, newError("Unknown prompt: %s", params.Name)
	}

	result, err := recoverCall(d.log, params.Name, func() (PromptResult, error) {
		return prompt.Get(ctx, params.Arguments)
	})
	if err != nil {
		return nil, newError("%s", err.Error())
	}
	return result, nil
}

// recoverCall runs fn and converts a panic into an error so the caller can
// still answer with the request id.
func recoverCall[T any](log *logrus.Entry, name string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("name", name).Errorf("MCP handler panicked: %v", rec)
			err = fmt.Errorf("%v", rec)
		}
	}()
	return fn()
}
