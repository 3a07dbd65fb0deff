// Package validation provides filtering and validation mechanisms for yield pools.
package validation

import (
	"github.com/sirupsen/logrus"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
)

// Apply keeps the pools that are valid and match the filter. Order is preserved
// and the result is never nil, so an empty match encodes as [].
func Apply(pools []model.YieldPool, filter model.Filter) []model.YieldPool {
	valid := make([]model.YieldPool, 0, len(pools))
	dropped := 0
	for _, p := range pools {
		if !isValidPool(p) {
			dropped++
			logrus.WithFields(logrus.Fields{
				"chain":   p.Chain,
				"project": p.Project,
				"pool":    p.Pool,
			}).Debug("Filtered invalid pool")
			continue
		}
		if filter.Matches(p) {
			valid = append(valid, p)
		}
	}

	logrus.WithFields(logrus.Fields{
		"total":   len(pools),
		"matched": len(valid),
		"dropped": dropped,
		"chain":   filter.Chain,
		"project": filter.Project,
	}).Debug("Pool filtering complete")

	return valid
}

// isValidPool rejects pools whose numbers would make the response unencodable.
// Rows with blank chain or project are upstream data and pass through untouched.
// Decoded JSON never carries NaN or Inf; the check matters for providers built
// in code, such as a provider.FetchFunc.
func isValidPool(p model.YieldPool) bool {
	return p.IsFinite()
}
