// Package insights reads daily ads insights from the Graph API and flattens the
// platform's action arrays into metric keys.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bilalbayram/adlens/internal/graph"
)

var DefaultFields = []string{
	"account_id",
	"account_name",
	"campaign_id",
	"campaign_name",
	"adset_id",
	"adset_name",
	"ad_id",
	"ad_name",
	"date_start",
	"date_stop",
	"impressions",
	"reach",
	"clicks",
	"spend",
	"inline_link_clicks",
	"outbound_clicks",
	"actions",
	"action_values",
	"cost_per_action_type",
	"video_thruplay_watched_actions",
	"video_p25_watched_actions",
	"video_p50_watched_actions",
	"video_p75_watched_actions",
	"video_p100_watched_actions",
	"ctr",
	"cpc",
	"cpm",
	"frequency",
}

var supportedLevels = map[string]struct{}{
	"account":  {},
	"campaign": {},
	"adset":    {},
	"ad":       {},
}

type Query struct {
	AccountID   string
	Level       string
	DateFrom    string
	DateTo      string
	Attribution string
	Fields      []string
	PageSize    int
}

type Service struct {
	Client *graph.Client
}

func New(client *graph.Client) *Service {
	if client == nil {
		client = graph.NewClient(nil, "")
	}
	return &Service{Client: client}
}

// Fetch returns one flattened row per object and day in the inclusive range.
func (s *Service) Fetch(ctx context.Context, version string, token string, appSecret string, query Query) ([]map[string]any, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("insights service client is required")
	}
	accountID := strings.TrimPrefix(strings.TrimSpace(query.AccountID), "act_")
	if accountID == "" {
		return nil, errors.New("account id is required")
	}
	level := strings.ToLower(strings.TrimSpace(query.Level))
	if _, ok := supportedLevels[level]; !ok {
		return nil, fmt.Errorf("unsupported insights level %q: expected account|campaign|adset|ad", query.Level)
	}
	if strings.TrimSpace(query.DateFrom) == "" || strings.TrimSpace(query.DateTo) == "" {
		return nil, errors.New("insights date range is required")
	}

	fields := DefaultFields
	if len(query.Fields) > 0 {
		normalized, err := normalizeFields(query.Fields)
		if err != nil {
			return nil, err
		}
		fields = normalized
	}
	timeRange, err := json.Marshal(map[string]string{
		"since": strings.TrimSpace(query.DateFrom),
		"until": strings.TrimSpace(query.DateTo),
	})
	if err != nil {
		return nil, fmt.Errorf("encode insights time range: %w", err)
	}
	params := map[string]string{
		"level":          level,
		"time_range":     string(timeRange),
		"time_increment": "1",
		"fields":         strings.Join(fields, ","),
	}
	if windows := attributionWindows(query.Attribution); len(windows) > 0 {
		encoded, err := json.Marshal(windows)
		if err != nil {
			return nil, fmt.Errorf("encode attribution windows: %w", err)
		}
		params["action_attribution_windows"] = string(encoded)
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	rows := make([]map[string]any, 0)
	_, err = s.Client.FetchWithPagination(ctx, graph.Request{
		Path:        fmt.Sprintf("act_%s/insights", accountID),
		Version:     strings.TrimSpace(version),
		Query:       params,
		AccessToken: token,
		AppSecret:   appSecret,
	}, graph.PaginationOptions{
		FollowNext: true,
		PageSize:   pageSize,
	}, func(item map[string]any) error {
		rows = append(rows, Explode(item))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch insights for act_%s: %w", accountID, err)
	}
	return rows, nil
}

// attributionWindows accepts "7d_click,1d_view"; "default" and blank leave
// the account's attribution setting in place.
func attributionWindows(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "default") {
		return nil
	}
	out := make([]string, 0, 2)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeFields(fields []string) ([]string, error) {
	normalized := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed == "" {
			return nil, errors.New("insights fields contains blank entries")
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	if len(normalized) == 0 {
		return nil, errors.New("insights fields are required when fields filter is set")
	}
	return normalized, nil
}
