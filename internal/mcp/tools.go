package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/ctxlog"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/provider"
)

// filterArgs are the shared chain/project arguments of the tool and the prompt
type filterArgs struct {
	Chain   *string `json:"chain"`
	Project *string `json:"project"`
}

func decodeFilter(raw json.RawMessage) (model.Filter, error) {
	var args filterArgs
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &args); err != nil {
			return model.Filter{}, fmt.Errorf("Invalid arguments: %w", err)
		}
	}
	return model.NewFilter(deref(args.Chain), deref(args.Project)), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// yieldPoolsTool implements get_yield_pools.
type yieldPoolsTool struct {
	provider provider.YieldDataProvider
	log      *logrus.Entry
}

// YieldPoolsTool constructs the get_yield_pools tool.
func YieldPoolsTool(p provider.YieldDataProvider, log *logrus.Entry) Tool {
	return &yieldPoolsTool{provider: p, log: log}
}

func (t *yieldPoolsTool) Descriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        "get_yield_pools",
		Description: "Fetch DeFi yield pools from the yields.llama.fi API, optionally filtering by chain or project",
		InputSchema: &JSONSchema{
			Type: "object",
			Properties: map[string]JSONSchema{
				"chain": {
					Type:        "string",
					Description: "Filter for blockchain (e.g., 'Ethereum', 'Solana')",
				},
				"project": {
					Type:        "string",
					Description: "Filter for project name (e.g., 'lido', 'aave-v3')",
				},
			},
		},
	}
}

func (t *yieldPoolsTool) Invoke(ctx context.Context, raw json.RawMessage) (CallResult, error) {
	filter, err := decodeFilter(raw)
	if err != nil {
		return CallResult{}, err
	}

	pools, err := t.provider.Fetch(ctx, filter, ctxlog.New(t.log, ctxlog.PrefixMCP))
	if err != nil {
		return CallResult{}, err
	}

	text, err := indentJSON(pools)
	if err != nil {
		return CallResult{}, err
	}
	return CallResult{Content: []ContentPart{{Type: "text", Text: text}}}, nil
}

// indentJSON renders pools as a two-space indented array; nil renders as [].
func indentJSON(pools []model.YieldPool) (string, error) {
	if pools == nil {
		pools = []model.YieldPool{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pools); err != nil {
		return "", fmt.Errorf("error encoding pools: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// analyzeYieldsPrompt implements analyze_yields.
type analyzeYieldsPrompt struct {
	generator provider.PromptGenerator
}

// AnalyzeYieldsPrompt constructs the analyze_yields prompt.
func AnalyzeYieldsPrompt(g provider.PromptGenerator) Prompt {
	return &analyzeYieldsPrompt{generator: g}
}

func (p *analyzeYieldsPrompt) Descriptor() PromptDescriptor {
	return PromptDescriptor{
		Name:        "analyze_yields",
		Description: "Generate a prompt to analyze DeFi yield pools, optionally filtered by chain or project",
		Arguments: []PromptArgument{
			{Name: "chain", Description: "Optional blockchain filter", Required: false},
			{Name: "project", Description: "Optional project filter", Required: false},
		},
	}
}

func (p *analyzeYieldsPrompt) Get(ctx context.Context, raw json.RawMessage) (PromptResult, error) {
	filter, err := decodeFilter(raw)
	if err != nil {
		return PromptResult{}, err
	}

	text, err := p.generator.Build(ctx, filter)
	if err != nil {
		return PromptResult{}, err
	}
	return PromptResult{
		Description: text,
		Messages: []PromptMessage{
			{Role: "user", Content: ContentPart{Type: "text", Text: text}},
		},
	}, nil
}
