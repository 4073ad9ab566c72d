package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bilalbayram/adlens/internal/graph"
)

func TestFetchDailyInsights(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/act_42/insights") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		query := r.URL.Query()
		if got := query.Get("level"); got != "campaign" {
			t.Errorf("unexpected level %q", got)
		}
		if got := query.Get("time_increment"); got != "1" {
			t.Errorf("unexpected time_increment %q", got)
		}
		var timeRange map[string]string
		if err := json.Unmarshal([]byte(query.Get("time_range")), &timeRange); err != nil {
			t.Errorf("decode time_range: %v", err)
		}
		if timeRange["since"] != "2024-03-01" || timeRange["until"] != "2024-03-07" {
			t.Errorf("unexpected time range %v", timeRange)
		}
		if got := query.Get("action_attribution_windows"); got != `["7d_click","1d_view"]` {
			t.Errorf("unexpected attribution windows %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"campaign_id": "c1",
					"date_start":  "2024-03-01",
					"clicks":      "10",
					"actions": []map[string]any{
						{"action_type": "purchase", "value": "2"},
					},
				},
				{"campaign_id": "c1", "date_start": "2024-03-02", "clicks": "4"},
			},
		})
	}))
	defer server.Close()

	svc := New(graph.NewClient(server.Client(), server.URL))
	rows, err := svc.Fetch(context.Background(), "v25.0", "token", "", Query{
		AccountID:   "act_42",
		Level:       "Campaign",
		DateFrom:    "2024-03-01",
		DateTo:      "2024-03-07",
		Attribution: "7d_click, 1d_view",
	})
	if err != nil {
		t.Fatalf("fetch insights: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("unexpected row count: got=%d want=2", len(rows))
	}
	if got := rows[0]["purchases"]; got != 2.0 {
		t.Fatalf("unexpected purchases: got=%v want=2", got)
	}
	if _, ok := rows[0]["actions"]; ok {
		t.Fatal("expected raw actions array to be dropped")
	}
}

func TestFetchOmitsDefaultAttribution(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("action_attribution_windows") {
			t.Errorf("expected no attribution windows, got %q", r.URL.Query().Get("action_attribution_windows"))
		}
		if got := r.URL.Query().Get("fields"); got != "clicks,spend" {
			t.Errorf("unexpected fields %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer server.Close()

	svc := New(graph.NewClient(server.Client(), server.URL))
	rows, err := svc.Fetch(context.Background(), "", "token", "", Query{
		AccountID:   "7",
		Level:       "ad",
		DateFrom:    "2024-03-01",
		DateTo:      "2024-03-01",
		Attribution: "default",
		Fields:      []string{"clicks", "spend", "clicks"},
	})
	if err != nil {
		t.Fatalf("fetch insights: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestFetchValidatesQuery(t *testing.T) {
	t.Parallel()

	svc := New(nil)
	cases := []struct {
		name  string
		query Query
		want  string
	}{
		{name: "account", query: Query{Level: "ad", DateFrom: "2024-03-01", DateTo: "2024-03-01"}, want: "account id is required"},
		{name: "level", query: Query{AccountID: "1", Level: "creative", DateFrom: "2024-03-01", DateTo: "2024-03-01"}, want: "unsupported insights level"},
		{name: "range", query: Query{AccountID: "1", Level: "ad"}, want: "date range is required"},
		{name: "fields", query: Query{AccountID: "1", Level: "ad", DateFrom: "2024-03-01", DateTo: "2024-03-01", Fields: []string{" "}}, want: "blank entries"},
	}
	for _, tc := range cases {
		_, err := svc.Fetch(context.Background(), "", "token", "", tc.query)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: unexpected error: got=%v want substring %q", tc.name, err, tc.want)
		}
	}
}

func TestExplodeFlattensActionArrays(t *testing.T) {
	t.Parallel()

	row := Explode(map[string]any{
		"ad_id":  "a1",
		"clicks": "12",
		"actions": []any{
			map[string]any{"action_type": "offsite_conversion.fb_pixel_purchase", "value": "3"},
			map[string]any{"action_type": "omni_purchase", "value": "4"},
			map[string]any{"action_type": "lead", "value": "5"},
			map[string]any{"action_type": "landing_page_view", "value": "20"},
			map[string]any{"action_type": "video_view", "value": "30"},
			map[string]any{"action_type": "", "value": "1"},
		},
		"action_values": []any{
			map[string]any{"action_type": "purchase", "value": "99.5"},
		},
		"cost_per_action_type": []any{
			map[string]any{"action_type": "lead", "value": "2.25"},
		},
		"outbound_clicks": []any{
			map[string]any{"action_type": "outbound_click", "value": "7"},
		},
		"video_thruplay_watched_actions": []any{
			map[string]any{"action_type": "video_view", "value": "11"},
		},
	})

	want := map[string]any{
		"ad_id":                     "a1",
		"clicks":                    "12",
		"conversions_omni_purchase": 4.0,
		"conversions_lead":          5.0,
		"conversion_value_purchase": 99.5,
		"cost_per_action_lead":      2.25,
		"purchases":                 4.0,
		"purchase_value":            99.5,
		"leads":                     5.0,
		"landing_page_views":        20.0,
		"video_3s_views":            30.0,
		"outbound_clicks":           7.0,
		"thruplays":                 11.0,
		"conversions_offsite_conversion.fb_pixel_purchase": 3.0,
	}
	for key, value := range want {
		if got := row[key]; got != value {
			t.Fatalf("unexpected %s: got=%v want=%v", key, got, value)
		}
	}
	if _, ok := row["conversions_"]; ok {
		t.Fatal("expected blank action types to be skipped")
	}
	if _, ok := row["actions"]; ok {
		t.Fatal("expected actions array to be removed")
	}
}
