package report

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bilalbayram/adlens/internal/hierarchy"
	"github.com/bilalbayram/adlens/internal/metrics"
	"github.com/bilalbayram/adlens/internal/telemetry"
)

// LoadRequest is the input of a single tab load.
type LoadRequest struct {
	DateFrom    string
	DateTo      string
	Attribution string
	Accounts    []hierarchy.Account
	Selection   []string
}

// ReportRequest is the input of a load for every tab.
type ReportRequest struct {
	DateFrom    string
	DateTo      string
	Attribution string
	Accounts    []hierarchy.Account
	Selections  map[Tab][]string
}

func (r ReportRequest) forTab(tab Tab) LoadRequest {
	return LoadRequest{
		DateFrom:    r.DateFrom,
		DateTo:      r.DateTo,
		Attribution: r.Attribution,
		Accounts:    r.Accounts,
		Selection:   r.Selections[tab],
	}
}

type Loader struct {
	Source   Source
	Engine   *metrics.Engine
	Logger   *zap.Logger
	Recorder telemetry.Recorder
	Now      func() time.Time
}

func NewLoader(source Source) *Loader {
	return &Loader{
		Source:   source,
		Engine:   metrics.Default,
		Logger:   zap.NewNop(),
		Recorder: telemetry.NewNoop(),
		Now:      time.Now,
	}
}

// LoadAll loads every tab in parallel and returns once all of them resolved.
// onTabDone, when set, is called as each tab finishes.
func (l *Loader) LoadAll(ctx context.Context, request ReportRequest, onTabDone func(Tab)) map[Tab]*TabData {
	var (
		mu  sync.Mutex
		out = make(map[Tab]*TabData, len(Tabs))
		g   errgroup.Group
	)
	for _, tab := range Tabs {
		tab := tab
		g.Go(func() error {
			data := l.LoadTab(ctx, tab, request.forTab(tab))
			mu.Lock()
			out[tab] = data
			mu.Unlock()
			if onTabDone != nil {
				onTabDone(tab)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type accountResult struct {
	account hierarchy.Account
	lookup  *hierarchy.Lookup
	rows    []map[string]any
}

// LoadTab fetches insights and object metadata for every account in parallel
// and builds the tab's metrics, lookups and per-day table rows. Account level
// failures are logged and contribute no data.
func (l *Loader) LoadTab(ctx context.Context, tab Tab, request LoadRequest) *TabData {
	loadedAt := l.now()
	selection := sortedUnique(request.Selection)
	if len(selection) == 0 {
		return emptyTabData(tab, request.DateFrom, request.DateTo, loadedAt)
	}
	dates, err := CalendarDates(request.DateFrom, request.DateTo)
	if err != nil {
		l.logger().Warn("skipping tab load with invalid date range",
			zap.String("tab", string(tab)),
			zap.Error(err),
		)
		return emptyTabData(tab, request.DateFrom, request.DateTo, loadedAt)
	}

	results := make([]*accountResult, len(request.Accounts))
	var g errgroup.Group
	for index, account := range request.Accounts {
		index, account := index, account
		g.Go(func() error {
			result, err := l.loadAccount(ctx, tab, account, request)
			if err != nil {
				l.recorder().IncAccountFailure(string(tab))
				l.logger().Warn("account load failed",
					zap.String("tab", string(tab)),
					zap.String("account_id", account.ID),
					zap.Error(err),
				)
				return nil
			}
			results[index] = result
			return nil
		})
	}
	_ = g.Wait()

	selected := make(map[string]struct{}, len(selection))
	for _, id := range selection {
		selected[id] = struct{}{}
	}

	data := emptyTabData(tab, request.DateFrom, request.DateTo, loadedAt)
	engine := l.engine()
	lookups := make([]*hierarchy.Lookup, 0, len(results))
	for _, result := range results {
		if result == nil {
			continue
		}
		lookups = append(lookups, result.lookup)
		for _, row := range result.rows {
			itemID, ok := resolveItemID(tab, row, result.lookup)
			if !ok {
				continue
			}
			if _, ok := selected[itemID]; !ok {
				continue
			}
			date := strings.TrimSpace(stringField(row, "date_start"))
			if date == "" || date < request.DateFrom || date > request.DateTo {
				continue
			}
			values := metrics.Normalize(row)
			byItem, ok := data.Metrics[date]
			if !ok {
				byItem = map[string]metrics.Metrics{}
				data.Metrics[date] = byItem
			}
			if existing, ok := byItem[itemID]; ok {
				byItem[itemID] = engine.MergeInto(existing, values)
			} else {
				byItem[itemID] = values
			}
			if _, ok := data.Hierarchy[itemID]; !ok {
				data.Hierarchy[itemID] = resolveEntry(tab, itemID, row, result.lookup)
			}
			if _, ok := data.Items[itemID]; !ok {
				data.Items[itemID] = resolveMeta(tab, itemID, row, result.lookup)
			}
		}
	}
	for _, id := range selection {
		if _, ok := data.Items[id]; ok {
			continue
		}
		for _, lookup := range lookups {
			if meta, ok := lookup.Meta(tab.Level(), id); ok {
				data.Items[id] = meta
				entry, _ := lookup.Resolve(tab.Level(), id)
				data.Hierarchy[id] = entry
				break
			}
		}
	}

	data.MetricKeys = engine.ExpandKeys(observedKeys(data.Metrics))
	data.Rows = buildRows(engine, dates, selection, data)
	return data
}

func (l *Loader) loadAccount(ctx context.Context, tab Tab, account hierarchy.Account, request LoadRequest) (*accountResult, error) {
	var (
		rows      []map[string]any
		campaigns []hierarchy.Object
		adSets    []hierarchy.Object
		ads       []hierarchy.Object
		creatives []hierarchy.Object
	)
	accountIDs := []string{account.ID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := l.Source.Insights(gctx, InsightsQuery{
			AccountID:   account.ID,
			Level:       tab.InsightsLevel(),
			DateFrom:    request.DateFrom,
			DateTo:      request.DateTo,
			Attribution: request.Attribution,
		})
		rows = fetched
		return err
	})
	g.Go(func() error {
		fetched, err := l.Source.Campaigns(gctx, accountIDs)
		campaigns = fetched
		return err
	})
	if tab != TabCampaigns {
		g.Go(func() error {
			fetched, err := l.Source.AdSets(gctx, accountIDs)
			adSets = fetched
			return err
		})
	}
	if tab == TabAds || tab == TabCreatives {
		g.Go(func() error {
			fetched, err := l.Source.Ads(gctx, accountIDs)
			ads = fetched
			return err
		})
	}
	if tab == TabCreatives {
		g.Go(func() error {
			fetched, err := l.Source.Creatives(gctx, accountIDs)
			creatives = fetched
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lookup := hierarchy.NewBuilder(account).
		AddCampaigns(campaigns).
		AddAdSets(adSets).
		AddAds(ads).
		AddCreatives(creatives).
		Build()
	return &accountResult{account: account, lookup: lookup, rows: rows}, nil
}

func resolveItemID(tab Tab, row map[string]any, lookup *hierarchy.Lookup) (string, bool) {
	var id string
	switch tab {
	case TabCampaigns:
		id = stringField(row, "campaign_id")
	case TabAdSets:
		id = stringField(row, "adset_id")
	case TabAds:
		id = stringField(row, "ad_id")
	case TabCreatives:
		adID := stringField(row, "ad_id")
		if adID == "" {
			return "", false
		}
		creativeID, ok := lookup.CreativeForAd(adID)
		if !ok {
			return "", false
		}
		id = creativeID
	}
	return id, id != ""
}

func resolveEntry(tab Tab, itemID string, row map[string]any, lookup *hierarchy.Lookup) hierarchy.Entry {
	if entry, ok := lookup.Resolve(tab.Level(), itemID); ok {
		return entry
	}
	account := lookup.Account()
	entry := hierarchy.Entry{
		AccountID:    account.ID,
		AccountName:  account.Name,
		CampaignID:   stringField(row, "campaign_id"),
		CampaignName: stringField(row, "campaign_name"),
	}
	if tab != TabCampaigns {
		entry.AdSetID = stringField(row, "adset_id")
		entry.AdSetName = stringField(row, "adset_name")
	}
	if tab == TabAds || tab == TabCreatives {
		entry.AdID = stringField(row, "ad_id")
		entry.AdName = stringField(row, "ad_name")
	}
	if entry.AccountName == "" {
		entry.AccountName = stringField(row, "account_name")
	}
	return entry
}

func resolveMeta(tab Tab, itemID string, row map[string]any, lookup *hierarchy.Lookup) hierarchy.ItemMeta {
	if meta, ok := lookup.Meta(tab.Level(), itemID); ok {
		return meta
	}
	meta := hierarchy.ItemMeta{}
	switch tab {
	case TabCampaigns:
		meta.Name = stringField(row, "campaign_name")
		meta.Subtitle = lookup.Account().Name
	case TabAdSets:
		meta.Name = stringField(row, "adset_name")
		meta.Subtitle = stringField(row, "campaign_name")
	case TabAds:
		meta.Name = stringField(row, "ad_name")
		meta.Subtitle = stringField(row, "adset_name")
	case TabCreatives:
		meta.Subtitle = stringField(row, "ad_name")
		if meta.Subtitle == "" {
			meta.Subtitle = firstAdName(lookup, itemID)
		}
	}
	if meta.Name == "" {
		meta.Name = itemID
	}
	return meta
}

// firstAdName names a creative missing from the creatives list after the
// first ad that uses it.
func firstAdName(lookup *hierarchy.Lookup, creativeID string) string {
	for _, adID := range lookup.AdsForCreative(creativeID) {
		if ad, ok := lookup.Meta(hierarchy.LevelAd, adID); ok && ad.Name != "" {
			return ad.Name
		}
	}
	return ""
}

func observedKeys(data MetricsData) []string {
	set := map[string]struct{}{}
	for _, items := range data {
		for _, values := range items {
			for key := range values {
				set[key] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// buildRows materializes one row per calendar date. A date is always present;
// only items with at least one non-zero metric that day are included.
func buildRows(engine *metrics.Engine, dates []string, selection []string, data *TabData) []TableRow {
	rows := make([]TableRow, 0, len(dates))
	for _, date := range dates {
		byItem := data.Metrics[date]
		items := make([]TableItem, 0, len(byItem))
		values := make([]metrics.Metrics, 0, len(byItem))
		for _, id := range selection {
			itemMetrics, ok := byItem[id]
			if !ok || !itemMetrics.HasNonZero() {
				continue
			}
			items = append(items, TableItem{
				ID:        id,
				Meta:      data.Items[id],
				Hierarchy: data.Hierarchy[id],
				Metrics:   itemMetrics,
			})
			values = append(values, itemMetrics)
		}
		rows = append(rows, TableRow{
			Date:    date,
			Items:   items,
			Metrics: engine.Aggregate(values),
		})
	}
	return rows
}

func stringField(row map[string]any, key string) string {
	value, ok := row[key]
	if !ok || value == nil {
		return ""
	}
	if typed, ok := value.(string); ok {
		return strings.TrimSpace(typed)
	}
	return ""
}

func (l *Loader) engine() *metrics.Engine {
	if l.Engine == nil {
		return metrics.Default
	}
	return l.Engine
}

func (l *Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l *Loader) recorder() telemetry.Recorder {
	if l.Recorder == nil {
		return telemetry.NewNoop()
	}
	return l.Recorder
}

func (l *Loader) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}
