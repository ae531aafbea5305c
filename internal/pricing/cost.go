// Package pricing reconciles the monetary cost of a chat turn.
package pricing

import "strconv"

// Reconcile returns the cost of one completed turn. A provider-reported
// cost wins verbatim, regardless of token counts. Otherwise the cost is
// derived from per-token prices; a missing or unparseable price counts as
// zero for that component rather than failing the turn.
func Reconcile(reported *float64, promptTokens, completionTokens int64, promptPrice, completionPrice string) float64 {
	if reported != nil {
		return *reported
	}
	return float64(promptTokens)*parsePrice(promptPrice) +
		float64(completionTokens)*parsePrice(completionPrice)
}

// parsePrice reads a per-token decimal price string, degrading to 0.
func parsePrice(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
