package report

import (
	"context"
	"testing"

	"github.com/bilalbayram/adlens/internal/hierarchy"
	"github.com/bilalbayram/adlens/internal/telemetry"
)

func twoAccountSource() *fakeSource {
	source := newFakeSource()
	first := source.account("act_1")
	first.campaigns = []hierarchy.Object{{ID: "c1", Name: "Spring", Status: "active", AccountID: "act_1"}}
	first.insights["campaign"] = []map[string]any{campaignRow("c1", "2024-03-02", 100, 1000)}

	second := source.account("act_2")
	second.campaigns = []hierarchy.Object{{ID: "c2", Name: "Summer", Status: "paused", AccountID: "act_2"}}
	second.insights["campaign"] = []map[string]any{campaignRow("c2", "2024-03-02", 50, 500)}
	return source
}

func TestLoadTabAggregatesAcrossAccounts(t *testing.T) {
	t.Parallel()

	loader := NewLoader(twoAccountSource())
	data := loader.LoadTab(context.Background(), TabCampaigns, LoadRequest{
		DateFrom: "2024-03-01",
		DateTo:   "2024-03-03",
		Accounts: []hierarchy.Account{{ID: "act_1", Name: "One"}, {ID: "act_2", Name: "Two"}},
		Selection: []string{
			"c1", "c2",
		},
	})

	if len(data.Rows) != 3 {
		t.Fatalf("unexpected row count: got=%d want=3", len(data.Rows))
	}
	if data.Rows[0].Date != "2024-03-03" || data.Rows[2].Date != "2024-03-01" {
		t.Fatalf("rows are not newest first: %s..%s", data.Rows[0].Date, data.Rows[2].Date)
	}
	day := data.Rows[1]
	if len(day.Items) != 2 {
		t.Fatalf("unexpected item count on 2024-03-02: got=%d want=2", len(day.Items))
	}
	if day.Metrics["clicks"] != 150 || day.Metrics["impressions"] != 1500 {
		t.Fatalf("unexpected sums: clicks=%v impressions=%v", day.Metrics["clicks"], day.Metrics["impressions"])
	}
	if day.Metrics["ctr"] != 10 {
		t.Fatalf("unexpected ctr: got=%v want=10", day.Metrics["ctr"])
	}
	if len(data.Rows[0].Items) != 0 || len(data.Rows[2].Items) != 0 {
		t.Fatal("expected empty dates to be materialized without items")
	}
	if data.Items["c1"].Status != "ACTIVE" {
		t.Fatalf("unexpected c1 status: %q", data.Items["c1"].Status)
	}
	if data.Hierarchy["c2"].AccountName != "Two" {
		t.Fatalf("unexpected c2 account: %q", data.Hierarchy["c2"].AccountName)
	}
}

func TestLoadTabMergesSameItemAcrossAccounts(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	first := source.account("act_1")
	first.campaigns = []hierarchy.Object{{ID: "c1", Name: "Spring", Status: "active", AccountID: "act_1"}}
	first.insights["campaign"] = []map[string]any{campaignRow("c1", "2024-03-02", 100, 1000)}
	second := source.account("act_2")
	second.campaigns = []hierarchy.Object{{ID: "c1", Name: "Spring", Status: "active", AccountID: "act_2"}}
	second.insights["campaign"] = []map[string]any{campaignRow("c1", "2024-03-02", 50, 2000)}

	data := NewLoader(source).LoadTab(context.Background(), TabCampaigns, LoadRequest{
		DateFrom:  "2024-03-02",
		DateTo:    "2024-03-02",
		Accounts:  []hierarchy.Account{{ID: "act_1", Name: "One"}, {ID: "act_2", Name: "Two"}},
		Selection: []string{"c1"},
	})

	merged := data.Metrics["2024-03-02"]["c1"]
	if merged["clicks"] != 150 || merged["impressions"] != 3000 {
		t.Fatalf("unexpected merged sums: clicks=%v impressions=%v", merged["clicks"], merged["impressions"])
	}
	// 150 clicks over 3000 impressions, not the mean of 10 and 2.5.
	if merged["ctr"] != 5 {
		t.Fatalf("unexpected merged ctr: got=%v want=5", merged["ctr"])
	}
	day := data.Rows[0]
	if len(day.Items) != 1 {
		t.Fatalf("unexpected item count: got=%d want=1", len(day.Items))
	}
	if day.Metrics["ctr"] != 5 {
		t.Fatalf("unexpected row ctr: got=%v want=5", day.Metrics["ctr"])
	}
}

func TestLoadTabMergesAdsIntoCreative(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	account := source.account("act_1")
	account.campaigns = []hierarchy.Object{{ID: "c1", Name: "Spring"}}
	account.adSets = []hierarchy.Object{{ID: "s1", Name: "Broad", CampaignID: "c1"}}
	account.ads = []hierarchy.Object{
		{ID: "a1", Name: "Ad one", AdSetID: "s1", CampaignID: "c1", CreativeID: "cr1"},
		{ID: "a2", Name: "Ad two", AdSetID: "s1", CampaignID: "c1", CreativeID: "cr1"},
	}
	account.creatives = []hierarchy.Object{{ID: "cr1", Name: "Hero video", Thumbnail: "https://cdn/hero.jpg"}}
	account.insights["ad"] = []map[string]any{
		{"ad_id": "a1", "date_start": "2024-03-01", "clicks": "10", "impressions": "100", "ctr": "10"},
		{"ad_id": "a2", "date_start": "2024-03-01", "clicks": "20", "impressions": "400", "ctr": "5"},
	}

	data := NewLoader(source).LoadTab(context.Background(), TabCreatives, LoadRequest{
		DateFrom:  "2024-03-01",
		DateTo:    "2024-03-01",
		Accounts:  []hierarchy.Account{{ID: "act_1", Name: "One"}},
		Selection: []string{"cr1"},
	})

	merged := data.Metrics["2024-03-01"]["cr1"]
	if merged["clicks"] != 30 {
		t.Fatalf("unexpected clicks: got=%v want=30", merged["clicks"])
	}
	if merged["ctr"] != 6 {
		t.Fatalf("unexpected ctr: got=%v want=6", merged["ctr"])
	}
	if data.Items["cr1"].Thumbnail != "https://cdn/hero.jpg" {
		t.Fatalf("unexpected thumbnail: %q", data.Items["cr1"].Thumbnail)
	}
	if data.Hierarchy["cr1"].AdID != "a1" {
		t.Fatalf("expected creative to resolve through first ad, got %q", data.Hierarchy["cr1"].AdID)
	}
}

func TestLoadTabNamesUnlistedCreativeAfterItsAd(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	account := source.account("act_1")
	account.campaigns = []hierarchy.Object{{ID: "c1", Name: "Spring"}}
	account.adSets = []hierarchy.Object{{ID: "s1", Name: "Broad", CampaignID: "c1"}}
	account.ads = []hierarchy.Object{
		{ID: "a2", Name: "Ad two", AdSetID: "s1", CampaignID: "c1", CreativeID: "cr9"},
		{ID: "a1", Name: "Ad one", AdSetID: "s1", CampaignID: "c1", CreativeID: "cr9"},
	}
	account.insights["ad"] = []map[string]any{
		{"ad_id": "a1", "date_start": "2024-03-01", "clicks": "10", "impressions": "100"},
	}

	data := NewLoader(source).LoadTab(context.Background(), TabCreatives, LoadRequest{
		DateFrom:  "2024-03-01",
		DateTo:    "2024-03-01",
		Accounts:  []hierarchy.Account{{ID: "act_1", Name: "One"}},
		Selection: []string{"cr9"},
	})

	meta, ok := data.Items["cr9"]
	if !ok {
		t.Fatal("expected metadata for unlisted creative")
	}
	if meta.Name != "cr9" || meta.Subtitle != "Ad one" {
		t.Fatalf("unexpected creative meta: name=%q subtitle=%q", meta.Name, meta.Subtitle)
	}
	if meta.Status != "" {
		t.Fatalf("unexpected creative status: %q", meta.Status)
	}
}

func TestLoadTabAbsorbsAccountFailure(t *testing.T) {
	t.Parallel()

	source := twoAccountSource()
	source.account("act_2").fail = true
	recorder := telemetry.NewInMemory()
	loader := NewLoader(source)
	loader.Recorder = recorder

	data := loader.LoadTab(context.Background(), TabCampaigns, LoadRequest{
		DateFrom:  "2024-03-02",
		DateTo:    "2024-03-02",
		Accounts:  []hierarchy.Account{{ID: "act_1"}, {ID: "act_2"}},
		Selection: []string{"c1", "c2"},
	})

	if got := data.Rows[0].Metrics["clicks"]; got != 100 {
		t.Fatalf("unexpected clicks: got=%v want=100", got)
	}
	if _, ok := data.Metrics["2024-03-02"]["c2"]; ok {
		t.Fatal("failed account contributed data")
	}
	if got := recorder.Snapshot().AccountFailures["campaigns"]; got != 1 {
		t.Fatalf("unexpected failure count: got=%d want=1", got)
	}
}

func TestLoadTabEmptySelectionMakesNoCalls(t *testing.T) {
	t.Parallel()

	source := twoAccountSource()
	data := NewLoader(source).LoadTab(context.Background(), TabAds, LoadRequest{
		DateFrom: "2024-03-01",
		DateTo:   "2024-03-02",
		Accounts: []hierarchy.Account{{ID: "act_1"}},
	})

	if source.callCount() != 0 {
		t.Fatalf("expected no source calls, got %d", source.callCount())
	}
	if len(data.Rows) != 2 {
		t.Fatalf("unexpected row count: got=%d want=2", len(data.Rows))
	}
	if len(data.MetricKeys) != 0 {
		t.Fatalf("expected no metric keys, got %v", data.MetricKeys)
	}
}

func TestLoadTabSkipsUnselectedItems(t *testing.T) {
	t.Parallel()

	data := NewLoader(twoAccountSource()).LoadTab(context.Background(), TabCampaigns, LoadRequest{
		DateFrom:  "2024-03-02",
		DateTo:    "2024-03-02",
		Accounts:  []hierarchy.Account{{ID: "act_1"}, {ID: "act_2"}},
		Selection: []string{"c2"},
	})

	if _, ok := data.Metrics["2024-03-02"]["c1"]; ok {
		t.Fatal("unselected campaign was loaded")
	}
	if got := data.Rows[0].Metrics["clicks"]; got != 50 {
		t.Fatalf("unexpected clicks: got=%v want=50", got)
	}
}

func TestTabDataSliceRestrictsDates(t *testing.T) {
	t.Parallel()

	data := NewLoader(twoAccountSource()).LoadTab(context.Background(), TabCampaigns, LoadRequest{
		DateFrom:  "2024-03-01",
		DateTo:    "2024-03-03",
		Accounts:  []hierarchy.Account{{ID: "act_1"}},
		Selection: []string{"c1"},
	})
	sliced := data.Slice("2024-03-02", "2024-03-02")
	if len(sliced.Rows) != 1 || sliced.Rows[0].Date != "2024-03-02" {
		t.Fatalf("unexpected sliced rows: %+v", sliced.Rows)
	}
	if len(data.Rows) != 3 {
		t.Fatal("slice mutated the source tab")
	}
	if data.Slice("", "") != data {
		t.Fatal("expected full-range slice to return the same tab")
	}
}

func TestCalendarDatesRejectsReversedRange(t *testing.T) {
	t.Parallel()

	if _, err := CalendarDates("2024-03-02", "2024-03-01"); err == nil {
		t.Fatal("expected error for reversed range")
	}
}
