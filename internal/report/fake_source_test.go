package report

import (
	"context"
	"errors"
	"sync"

	"github.com/bilalbayram/adlens/internal/hierarchy"
)

type fakeAccountData struct {
	insights  map[string][]map[string]any
	campaigns []hierarchy.Object
	adSets    []hierarchy.Object
	ads       []hierarchy.Object
	creatives []hierarchy.Object
	fail      bool
}

// fakeSource serves canned data per account and counts calls. When gate is
// set, every Insights call blocks until the gate is closed or ctx ends.
type fakeSource struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccountData
	calls    int
	queries  []InsightsQuery
	gate     chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{accounts: map[string]*fakeAccountData{}}
}

func (f *fakeSource) account(id string) *fakeAccountData {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.accounts[id]
	if !ok {
		data = &fakeAccountData{insights: map[string][]map[string]any{}}
		f.accounts[id] = data
	}
	return data
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) lookupAccount(id string) (*fakeAccountData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	data, ok := f.accounts[id]
	if !ok {
		return &fakeAccountData{insights: map[string][]map[string]any{}}, nil
	}
	if data.fail {
		return nil, errors.New("account unavailable")
	}
	return data, nil
}

func (f *fakeSource) Insights(ctx context.Context, query InsightsQuery) ([]map[string]any, error) {
	f.mu.Lock()
	gate := f.gate
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	data, err := f.lookupAccount(query.AccountID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0)
	for _, row := range data.insights[query.Level] {
		date, _ := row["date_start"].(string)
		if date < query.DateFrom || date > query.DateTo {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeSource) Campaigns(_ context.Context, accountIDs []string) ([]hierarchy.Object, error) {
	data, err := f.lookupAccount(accountIDs[0])
	if err != nil {
		return nil, err
	}
	return data.campaigns, nil
}

func (f *fakeSource) AdSets(_ context.Context, accountIDs []string) ([]hierarchy.Object, error) {
	data, err := f.lookupAccount(accountIDs[0])
	if err != nil {
		return nil, err
	}
	return data.adSets, nil
}

func (f *fakeSource) Ads(_ context.Context, accountIDs []string) ([]hierarchy.Object, error) {
	data, err := f.lookupAccount(accountIDs[0])
	if err != nil {
		return nil, err
	}
	return data.ads, nil
}

func (f *fakeSource) Creatives(_ context.Context, accountIDs []string) ([]hierarchy.Object, error) {
	data, err := f.lookupAccount(accountIDs[0])
	if err != nil {
		return nil, err
	}
	return data.creatives, nil
}

func campaignRow(campaignID string, date string, clicks float64, impressions float64) map[string]any {
	return map[string]any{
		"campaign_id":   campaignID,
		"campaign_name": "Campaign " + campaignID,
		"date_start":    date,
		"date_stop":     date,
		"clicks":        clicks,
		"impressions":   impressions,
		"ctr":           clicks / impressions * 100,
		"spend":         "10.00",
	}
}
