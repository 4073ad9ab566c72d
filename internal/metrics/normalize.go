package metrics

import (
	"encoding/json"
	"strconv"
	"strings"
)

var nonMetricFields = map[string]struct{}{
	"id":                  {},
	"name":                {},
	"date_start":          {},
	"date_stop":           {},
	"account_id":          {},
	"account_name":        {},
	"account_currency":    {},
	"campaign_id":         {},
	"campaign_name":       {},
	"adset_id":            {},
	"adset_name":          {},
	"ad_id":               {},
	"ad_name":             {},
	"creative_id":         {},
	"objective":           {},
	"buying_type":         {},
	"optimization_goal":   {},
	"attribution_setting": {},
}

// Normalize flattens one raw insight into numeric metrics. Identity fields,
// nested objects and arrays are dropped; non-finite values become 0.
func Normalize(raw map[string]any) Metrics {
	out := make(Metrics, len(raw))
	for key, value := range raw {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, skip := nonMetricFields[key]; skip {
			continue
		}
		number, ok := numericValue(value)
		if !ok {
			continue
		}
		out[key] = finite(number)
	}
	return out
}

func numericValue(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
