package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
)

// AnalysisPrompt builds the analyze_yields prompt. It is deterministic and does not
// touch the upstream; the agent fetches data itself through get_yield_pools.
type AnalysisPrompt struct{}

// NewAnalysisPrompt creates the default prompt generator
func NewAnalysisPrompt() AnalysisPrompt {
	return AnalysisPrompt{}
}

// Build returns the prompt text for the filter
func (AnalysisPrompt) Build(ctx context.Context, filter model.Filter) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Please analyze DeFi yield pools %s.\n\n", describeScope(filter))
	fmt.Fprintf(&b, "Use the get_yield_pools tool%s to fetch current data from yields.llama.fi, then:\n", describeArgs(filter))
	b.WriteString("1. Identify the top pools by APY and compare each current APY with its 30-day mean (apyMean30d).\n")
	b.WriteString("2. Weigh yield against liquidity: highlight pools with meaningful TVL (tvlUsd) and flag high APY on thin liquidity.\n")
	b.WriteString("3. Summarize the APY predictions (predicted class and confidence) where they are available.\n")
	b.WriteString("4. Recommend a short list of pools with the best risk-adjusted yield and explain the trade-offs.")
	return b.String(), nil
}

func describeScope(filter model.Filter) string {
	switch {
	case filter.Chain != "" && filter.Project != "":
		return fmt.Sprintf("for the %s project on the %s chain", filter.Project, filter.Chain)
	case filter.Chain != "":
		return fmt.Sprintf("on the %s chain", filter.Chain)
	case filter.Project != "":
		return fmt.Sprintf("for the %s project", filter.Project)
	default:
		return "across all chains and projects"
	}
}

func describeArgs(filter model.Filter) string {
	var args []string
	if filter.Chain != "" {
		args = append(args, fmt.Sprintf("chain=%q", filter.Chain))
	}
	if filter.Project != "" {
		args = append(args, fmt.Sprintf("project=%q", filter.Project))
	}
	if len(args) == 0 {
		return ""
	}
	return " with " + strings.Join(args, " and ")
}
