// Package report owns the signature-keyed report cache: it loads raw insights
// for every tab, keeps prior signatures for instant restoration and prefetches
// the comparison period in the background.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bilalbayram/adlens/internal/hierarchy"
	"github.com/bilalbayram/adlens/internal/metrics"
)

type Tab string

const (
	TabCampaigns Tab = "campaigns"
	TabAdSets    Tab = "adsets"
	TabAds       Tab = "ads"
	TabCreatives Tab = "creatives"
)

var Tabs = []Tab{TabCampaigns, TabAdSets, TabAds, TabCreatives}

func ParseTab(value string) (Tab, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "campaigns", "campaign":
		return TabCampaigns, nil
	case "adsets", "adset", "ad_sets":
		return TabAdSets, nil
	case "ads", "ad":
		return TabAds, nil
	case "creatives", "creative":
		return TabCreatives, nil
	default:
		return "", fmt.Errorf("unknown tab %q; expected campaigns|adsets|ads|creatives", value)
	}
}

func (t Tab) Level() hierarchy.Level {
	switch t {
	case TabAdSets:
		return hierarchy.LevelAdSet
	case TabAds:
		return hierarchy.LevelAd
	case TabCreatives:
		return hierarchy.LevelCreative
	default:
		return hierarchy.LevelCampaign
	}
}

// InsightsLevel is the reporting level requested from the platform. Creative
// insights are reported against the owning ad.
func (t Tab) InsightsLevel() string {
	switch t {
	case TabAdSets:
		return "adset"
	case TabAds, TabCreatives:
		return "ad"
	default:
		return "campaign"
	}
}

// MetricsData is date -> item id -> metrics.
type MetricsData map[string]map[string]metrics.Metrics

type TableItem struct {
	ID        string             `json:"id"`
	Meta      hierarchy.ItemMeta `json:"meta"`
	Hierarchy hierarchy.Entry    `json:"hierarchy"`
	Metrics   metrics.Metrics    `json:"metrics"`
}

type TableRow struct {
	Date    string          `json:"date"`
	Items   []TableItem     `json:"items"`
	Metrics metrics.Metrics `json:"metrics"`
}

// TabData is one tab's load result. It is owned by the cache and never
// mutated after it has been built.
type TabData struct {
	Tab        Tab                           `json:"tab"`
	DateFrom   string                        `json:"date_from"`
	DateTo     string                        `json:"date_to"`
	Metrics    MetricsData                   `json:"metrics"`
	Items      map[string]hierarchy.ItemMeta `json:"items"`
	Hierarchy  map[string]hierarchy.Entry    `json:"hierarchy"`
	MetricKeys []string                      `json:"metric_keys"`
	Rows       []TableRow                    `json:"rows"`
	LoadedAt   time.Time                     `json:"loaded_at"`
}

func emptyTabData(tab Tab, dateFrom string, dateTo string, loadedAt time.Time) *TabData {
	dates, _ := CalendarDates(dateFrom, dateTo)
	rows := make([]TableRow, 0, len(dates))
	for _, date := range dates {
		rows = append(rows, TableRow{Date: date, Items: []TableItem{}, Metrics: metrics.Metrics{}})
	}
	return &TabData{
		Tab:        tab,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Metrics:    MetricsData{},
		Items:      map[string]hierarchy.ItemMeta{},
		Hierarchy:  map[string]hierarchy.Entry{},
		MetricKeys: []string{},
		Rows:       rows,
		LoadedAt:   loadedAt,
	}
}

// Slice returns a view of d restricted to [from, to]. Lookup maps are shared.
func (d *TabData) Slice(from string, to string) *TabData {
	if d == nil {
		return nil
	}
	if from == "" {
		from = d.DateFrom
	}
	if to == "" {
		to = d.DateTo
	}
	if from == d.DateFrom && to == d.DateTo {
		return d
	}
	out := *d
	out.DateFrom = from
	out.DateTo = to
	out.Metrics = make(MetricsData, len(d.Metrics))
	for date, items := range d.Metrics {
		if date >= from && date <= to {
			out.Metrics[date] = items
		}
	}
	out.Rows = make([]TableRow, 0, len(d.Rows))
	for _, row := range d.Rows {
		if row.Date >= from && row.Date <= to {
			out.Rows = append(out.Rows, row)
		}
	}
	return &out
}

type DateRange struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

func (r DateRange) Validate() error {
	from, err := parseDate(r.From)
	if err != nil {
		return err
	}
	to, err := parseDate(r.To)
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("date range end %s is before start %s", r.To, r.From)
	}
	return nil
}

const dateLayout = "2006-01-02"

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return parsed, nil
}

// CalendarDates returns every date in [from, to], newest first.
func CalendarDates(from string, to string) ([]string, error) {
	if err := (DateRange{From: from, To: to}).Validate(); err != nil {
		return nil, err
	}
	start, _ := parseDate(from)
	end, _ := parseDate(to)
	out := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for day := end; !day.Before(start); day = day.AddDate(0, 0, -1) {
		out = append(out, day.Format(dateLayout))
	}
	return out, nil
}

// Params are the render-triggering inputs of a report view. Only some of them
// take part in the cache signature.
type Params struct {
	ReportID    string              `json:"report_id"`
	LoadFrom    string              `json:"load_from"`
	LoadTo      string              `json:"load_to"`
	DisplayFrom string              `json:"display_from,omitempty"`
	DisplayTo   string              `json:"display_to,omitempty"`
	Attribution string              `json:"attribution,omitempty"`
	Accounts    []hierarchy.Account `json:"accounts"`
	Selections  map[Tab][]string    `json:"selections"`
	Compare     *DateRange          `json:"compare,omitempty"`
}

func (p Params) displayRange() (string, string) {
	from, to := p.DisplayFrom, p.DisplayTo
	if from == "" {
		from = p.LoadFrom
	}
	if to == "" {
		to = p.LoadTo
	}
	return from, to
}

func (p Params) request(from string, to string) ReportRequest {
	return ReportRequest{
		DateFrom:    from,
		DateTo:      to,
		Attribution: p.Attribution,
		Accounts:    append([]hierarchy.Account(nil), p.Accounts...),
		Selections:  copySelections(p.Selections),
	}
}

func copySelections(in map[Tab][]string) map[Tab][]string {
	out := make(map[Tab][]string, len(in))
	for tab, ids := range in {
		out[tab] = append([]string(nil), ids...)
	}
	return out
}

// ReportCache is one complete snapshot of every tab for a signature.
type ReportCache struct {
	Tabs             map[Tab]*TabData
	PeriodB          map[Tab]*TabData
	Signature        Signature
	PeriodBSignature *Signature
}

func (c *ReportCache) withPeriodB(signature Signature, tabs map[Tab]*TabData) *ReportCache {
	next := *c
	next.PeriodB = tabs
	next.PeriodBSignature = &signature
	return &next
}

type InsightsQuery struct {
	AccountID   string
	Level       string
	DateFrom    string
	DateTo      string
	Attribution string
}

// Source is the ad-platform client the loader awaits. Every call may fail
// independently.
type Source interface {
	Insights(ctx context.Context, query InsightsQuery) ([]map[string]any, error)
	Campaigns(ctx context.Context, accountIDs []string) ([]hierarchy.Object, error)
	AdSets(ctx context.Context, accountIDs []string) ([]hierarchy.Object, error)
	Ads(ctx context.Context, accountIDs []string) ([]hierarchy.Object, error)
	Creatives(ctx context.Context, accountIDs []string) ([]hierarchy.Object, error)
}

// AccountResolver supplies ad accounts while the report's own account list is
// still being provisioned.
type AccountResolver interface {
	Accounts(ctx context.Context, reportID string) ([]hierarchy.Account, error)
}
