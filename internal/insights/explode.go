package insights

import (
	"strconv"
	"strings"
)

// Action type aliases in priority order. The platform reports the same
// conversion under several overlapping types; the first present wins.
var (
	purchaseActionTypes = []string{"omni_purchase", "purchase", "offsite_conversion.fb_pixel_purchase"}
	leadActionTypes     = []string{"lead", "onsite_conversion.lead_grouped", "offsite_conversion.fb_pixel_lead"}
)

var summedActionFields = map[string]string{
	"outbound_clicks":                "outbound_clicks",
	"video_thruplay_watched_actions": "thruplays",
	"video_p25_watched_actions":      "video_p25_watched",
	"video_p50_watched_actions":      "video_p50_watched",
	"video_p75_watched_actions":      "video_p75_watched",
	"video_p100_watched_actions":     "video_p100_watched",
}

// Explode flattens action arrays into scalar metric keys:
//
//	actions              -> conversions_<type>
//	action_values        -> conversion_value_<type>
//	cost_per_action_type -> cost_per_action_<type>
//
// and derives purchases, purchase_value, leads, landing_page_views and
// video_3s_views from their well-known action types.
func Explode(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for key, value := range row {
		if _, ok := value.([]any); ok {
			continue
		}
		out[key] = value
	}

	actions := actionValues(row["actions"])
	for actionType, value := range actions {
		out["conversions_"+actionType] = value
	}
	values := actionValues(row["action_values"])
	for actionType, value := range values {
		out["conversion_value_"+actionType] = value
	}
	for actionType, value := range actionValues(row["cost_per_action_type"]) {
		out["cost_per_action_"+actionType] = value
	}

	if value, ok := firstPresent(actions, purchaseActionTypes); ok {
		out["purchases"] = value
	}
	if value, ok := firstPresent(values, purchaseActionTypes); ok {
		out["purchase_value"] = value
	}
	if value, ok := firstPresent(actions, leadActionTypes); ok {
		out["leads"] = value
	}
	if value, ok := actions["landing_page_view"]; ok {
		out["landing_page_views"] = value
	}
	if value, ok := actions["video_view"]; ok {
		out["video_3s_views"] = value
	}

	for field, key := range summedActionFields {
		entries, ok := row[field].([]any)
		if !ok {
			continue
		}
		total := 0.0
		for _, value := range actionValues(entries) {
			total += value
		}
		out[key] = total
	}
	return out
}

func actionValues(raw any) map[string]float64 {
	entries, ok := raw.([]any)
	if !ok {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(entries))
	for _, entry := range entries {
		action, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		actionType, _ := action["action_type"].(string)
		actionType = strings.TrimSpace(actionType)
		if actionType == "" {
			continue
		}
		value, ok := parseValue(action["value"])
		if !ok {
			continue
		}
		out[actionType] += value
	}
	return out
}

func firstPresent(values map[string]float64, candidates []string) (float64, bool) {
	for _, candidate := range candidates {
		if value, ok := values[candidate]; ok {
			return value, true
		}
	}
	return 0, false
}

func parseValue(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
