package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bilalbayram/adlens/internal/graph"
	"github.com/bilalbayram/adlens/internal/report"
)

func newTestGraph(t *testing.T, handler http.HandlerFunc) *Graph {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := graph.NewClient(server.Client(), server.URL)
	client.MaxRetries = 0
	return NewGraph(client, Credentials{Version: "v25.0", Token: "token"}, nil)
}

func TestGraphInsightsFlattensRows(t *testing.T) {
	t.Parallel()

	source := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v25.0/act_9/insights" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"ad_id":"a1","date_start":"2024-03-01","clicks":"3","actions":[{"action_type":"lead","value":"2"}]}]}`))
	})
	rows, err := source.Insights(context.Background(), report.InsightsQuery{
		AccountID: "9",
		Level:     "ad",
		DateFrom:  "2024-03-01",
		DateTo:    "2024-03-01",
	})
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if len(rows) != 1 || rows[0]["leads"] != 2.0 {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestGraphAdsCarryCreativeAcrossAccounts(t *testing.T) {
	t.Parallel()

	source := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v25.0/act_1/ads":
			_, _ = w.Write([]byte(`{"data":[{"id":"ad_2","name":"B","effective_status":"paused","campaign_id":"c1","adset_id":"s1","creative":{"id":"cr_1"}}]}`))
		case "/v25.0/act_2/ads":
			_, _ = w.Write([]byte(`{"data":[{"id":"ad_1","name":"A","status":"ACTIVE","campaign_id":"c2","adset_id":"s2"}]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	ads, err := source.Ads(context.Background(), []string{"1", "act_2"})
	if err != nil {
		t.Fatalf("ads: %v", err)
	}
	if len(ads) != 2 {
		t.Fatalf("unexpected ad count: got=%d want=2", len(ads))
	}
	if ads[0].ID != "ad_1" || ads[0].AccountID != "2" || ads[0].Status != "ACTIVE" {
		t.Fatalf("unexpected first ad: %+v", ads[0])
	}
	if ads[1].CreativeID != "cr_1" || ads[1].Status != "PAUSED" || ads[1].AdSetID != "s1" {
		t.Fatalf("unexpected second ad: %+v", ads[1])
	}
}

func TestGraphCreativesCarryThumbnail(t *testing.T) {
	t.Parallel()

	source := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"cr_1","name":"Hero","status":"ACTIVE","thumbnail_url":"https://cdn.example.com/t.jpg"}]}`))
	})
	creatives, err := source.Creatives(context.Background(), []string{"1"})
	if err != nil {
		t.Fatalf("creatives: %v", err)
	}
	if got := creatives[0].Thumbnail; got != "https://cdn.example.com/t.jpg" {
		t.Fatalf("unexpected thumbnail: got=%q", got)
	}
}

func TestGraphAccountsResolvesAdAccounts(t *testing.T) {
	t.Parallel()

	source := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"act_20","name":"Brand"},{"id":"act_10","name":"Main"},{"name":"orphan"}]}`))
	})
	accounts, err := source.Accounts(context.Background(), "r1")
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(accounts) != 2 || accounts[0].ID != "10" || accounts[1].Name != "Brand" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}

func TestGraphPropagatesAccountFailure(t *testing.T) {
	t.Parallel()

	source := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Unsupported get request","code":100}}`))
	})
	_, err := source.Campaigns(context.Background(), []string{"1"})
	if err == nil || !strings.Contains(err.Error(), "list campaigns for act_1") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGraphRequiresToken(t *testing.T) {
	t.Parallel()

	source := NewGraph(nil, Credentials{}, nil)
	if _, err := source.Campaigns(context.Background(), []string{"1"}); err == nil {
		t.Fatal("expected missing token error")
	}
}
