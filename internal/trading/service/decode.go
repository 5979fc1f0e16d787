package service

import (
	"encoding/json"
	"math"
	"strings"

	"golang-stock-trader/pkg/apperr"
)

// decodeDecision parses an oracle JSON answer into out. Markdown code fences
// some models wrap around JSON are stripped first.
func decodeDecision(op, raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return apperr.Errorf(apperr.KindMalformedOutput, op, "failed to decode oracle response: %v", err)
	}
	return nil
}

// toConfidence clamps an oracle confidence into 0..100. A missing value is 0.
func toConfidence(v *float64) int {
	if v == nil || math.IsNaN(*v) || *v < 0 {
		return 0
	}
	if *v > 100 {
		return 100
	}
	return int(*v)
}

// maxQuantity bounds oracle share counts so the float conversion cannot
// overflow.
const maxQuantity = math.MaxInt32

// toQuantity floors an oracle share count into 0..maxQuantity. Missing,
// negative and NaN values are 0.
func toQuantity(v *float64) int {
	if v == nil || math.IsNaN(*v) || *v < 0 {
		return 0
	}
	if *v >= maxQuantity {
		return maxQuantity
	}
	return int(*v)
}

func normalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
