// Package model defines the core data structures for the yields gateway.
package model

import (
	"math"
	"strings"
)

// YieldPool is a snapshot of one liquidity or lending pool's yield metrics.
// This is the core data structure that flows through every transport.
type YieldPool struct {
	// Chain is the blockchain the pool lives on, e.g. "Ethereum"
	Chain string `json:"chain"`

	// Pool is the pool symbol, e.g. "STETH"
	Pool string `json:"pool"`

	// Project is the protocol slug, e.g. "lido"
	Project string `json:"project"`

	// TVLUsd is the Total Value Locked in USD
	TVLUsd float64 `json:"tvlUsd"`

	// APY is the current Annual Percentage Yield, in percent
	APY float64 `json:"apy"`

	// APYMean30d is the 30-day mean APY, in percent
	APYMean30d float64 `json:"apyMean30d"`

	// Predictions carries the upstream APY outlook as-is
	Predictions map[string]any `json:"predictions"`
}

// IsFinite reports whether every numeric field can be encoded as JSON
func (p YieldPool) IsFinite() bool {
	for _, v := range []float64{p.TVLUsd, p.APY, p.APYMean30d} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Filter narrows which pools a provider returns. Empty fields match everything.
type Filter struct {
	Chain   string `json:"chain,omitempty"`
	Project string `json:"project,omitempty"`
}

// NewFilter builds a filter from raw chain and project values
func NewFilter(chain, project string) Filter {
	return Filter{
		Chain:   strings.TrimSpace(chain),
		Project: strings.TrimSpace(project),
	}
}

// IsEmpty reports whether the filter matches every pool
func (f Filter) IsEmpty() bool {
	return f.Chain == "" && f.Project == ""
}

// Matches reports whether the pool satisfies the filter. Comparison is case-insensitive.
func (f Filter) Matches(p YieldPool) bool {
	if f.Chain != "" && !strings.EqualFold(f.Chain, p.Chain) {
		return false
	}
	if f.Project != "" && !strings.EqualFold(f.Project, p.Project) {
		return false
	}
	return true
}
