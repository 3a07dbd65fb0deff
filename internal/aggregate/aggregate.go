// Package aggregate computes summary statistics over a batch of yield pools.
package aggregate

import (
	"math"
	"sort"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
)

// Summary describes one fetched batch of pools
type Summary struct {
	Count       int     `json:"count"`
	TotalTVL    float64 `json:"total_tvl"`
	WeightedAPY float64 `json:"weighted_apy"`
	MedianAPY   float64 `json:"median_apy"`
}

// Summarize returns count, total TVL, TVL-weighted APY and median APY
func Summarize(pools []model.YieldPool) Summary {
	tvl, apy := Weighted(pools)
	return Summary{
		Count:       len(pools),
		TotalTVL:    tvl,
		WeightedAPY: apy,
		MedianAPY:   Median(pools, func(p model.YieldPool) float64 { return p.APY }),
	}
}

// Weighted returns the total TVL and the TVL-weighted average APY.
// Pools with non-positive TVL or negative APY do not contribute.
func Weighted(pools []model.YieldPool) (totalTVL, weightedAPY float64) {
	var weighted float64
	for _, p := range pools {
		if p.TVLUsd > 0 && p.APY >= 0 {
			totalTVL += p.TVLUsd
			weighted += p.APY * p.TVLUsd
		}
	}

	if totalTVL <= 0 || math.IsNaN(weighted) {
		return 0, 0
	}
	return totalTVL, weighted / totalTVL
}

// Median returns the median of the selected property, or 0 for an empty batch
func Median(pools []model.YieldPool, selector func(model.YieldPool) float64) float64 {
	if len(pools) == 0 {
		return 0
	}

	values := make([]float64, len(pools))
	for i, p := range pools {
		values[i] = selector(p)
	}
	sort.Float64s(values)

	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}
