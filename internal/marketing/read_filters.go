package marketing

import (
	"fmt"
	"strings"
)

const statusActive = "ACTIVE"

type readFilters struct {
	nameContains      string
	statuses          map[string]struct{}
	effectiveStatuses map[string]struct{}
	activeOnly        bool
}

func newReadFilters(name string, statuses []string, effectiveStatuses []string, activeOnly bool) (readFilters, error) {
	statusSet, err := upperSet("status", statuses)
	if err != nil {
		return readFilters{}, err
	}
	effectiveSet, err := upperSet("effective status", effectiveStatuses)
	if err != nil {
		return readFilters{}, err
	}
	return readFilters{
		nameContains:      strings.ToLower(strings.TrimSpace(name)),
		statuses:          statusSet,
		effectiveStatuses: effectiveSet,
		activeOnly:        activeOnly,
	}, nil
}

func (f readFilters) match(item map[string]any) bool {
	if f.nameContains != "" && !strings.Contains(strings.ToLower(itemString(item, "name")), f.nameContains) {
		return false
	}
	status := strings.ToUpper(itemString(item, "status"))
	if len(f.statuses) > 0 {
		if _, ok := f.statuses[status]; !ok {
			return false
		}
	}
	effective := strings.ToUpper(itemString(item, "effective_status"))
	if len(f.effectiveStatuses) > 0 {
		if _, ok := f.effectiveStatuses[effective]; !ok {
			return false
		}
	}
	if f.activeOnly && status != statusActive && effective != statusActive {
		return false
	}
	return true
}

func upperSet(label string, values []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.ToUpper(strings.TrimSpace(value))
		if trimmed == "" {
			return nil, fmt.Errorf("%s filter contains blank entries", label)
		}
		out[trimmed] = struct{}{}
	}
	return out, nil
}

func normalizeReadFields(kind string, fields []string, defaults []string) ([]string, error) {
	if len(fields) == 0 {
		return append([]string(nil), defaults...), nil
	}
	for _, field := range fields {
		if strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("%s fields contain blank entries", kind)
		}
	}
	return mergeReadFields(fields), nil
}

func mergeReadFields(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	seen := make(map[string]struct{}, len(base)+len(extras))
	for _, group := range [][]string{base, extras} {
		for _, field := range group {
			trimmed := strings.TrimSpace(field)
			if trimmed == "" {
				continue
			}
			if _, ok := seen[trimmed]; ok {
				continue
			}
			seen[trimmed] = struct{}{}
			out = append(out, trimmed)
		}
	}
	return out
}

// projectReadFields keeps only the requested fields. Nested selections such as
// creative{id} project onto their top-level key.
func projectReadFields(item map[string]any, fields []string) map[string]any {
	projected := make(map[string]any, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field)
		if idx := strings.Index(key, "{"); idx >= 0 {
			key = key[:idx]
		}
		if key == "" {
			continue
		}
		projected[key] = item[key]
	}
	return projected
}

func itemString(item map[string]any, key string) string {
	value, ok := item[key]
	if !ok || value == nil {
		return ""
	}
	if typed, ok := value.(string); ok {
		return strings.TrimSpace(typed)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
