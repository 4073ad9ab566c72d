package view

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bilalbayram/adlens/internal/hierarchy"
	"github.com/bilalbayram/adlens/internal/metrics"
	"github.com/bilalbayram/adlens/internal/report"
)

// DateColumn addresses the row date in filters and sorts.
const DateColumn = "date"

type Input struct {
	Rows         []report.TableRow
	PreviousRows []report.TableRow
	State        State
}

type AggregatedMetric struct {
	Total         float64  `json:"total"`
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
}

type VisibleItem struct {
	ID        string             `json:"id"`
	Meta      hierarchy.ItemMeta `json:"meta"`
	Hierarchy hierarchy.Entry    `json:"hierarchy"`
	Metrics   metrics.Metrics    `json:"metrics"`
}

type Result struct {
	FilteredTableData          []report.TableRow           `json:"filtered_table_data"`
	FilteredPreviousPeriodData []report.TableRow           `json:"filtered_previous_period_data,omitempty"`
	VisibleItems               []VisibleItem               `json:"visible_items"`
	AggregatedMetrics          map[string]AggregatedMetric `json:"aggregated_metrics"`
	FilteredItemIDs            []string                    `json:"filtered_item_ids"`
	TotalRows                  int                         `json:"total_rows"`
	SelectedRows               int                         `json:"selected_rows"`
}

// Apply runs the pipeline: date-level filters and sort, date selection,
// per-row item filters, sort and selection, per-row metric recomputation,
// metric re-sort of the date rows and finally the top-level aggregation with
// optional period-over-period change. Input rows are never mutated.
func Apply(engine *metrics.Engine, input Input) Result {
	if engine == nil {
		engine = metrics.Default
	}
	p := newPipeline(engine, input.State)

	rows := p.filterDates(input.Rows)
	rows = p.selectDates(rows)
	for index := range rows {
		rows[index] = p.processRow(rows[index], true)
	}
	p.sortRows(rows)

	result := Result{
		FilteredTableData: rows,
		TotalRows:         countItems(input.Rows),
		SelectedRows:      countItems(rows),
	}
	result.VisibleItems, result.FilteredItemIDs = visibleItems(engine, rows)

	totals := aggregateRows(engine, rows)
	var previousTotals metrics.Metrics
	if input.PreviousRows != nil {
		previous := make([]report.TableRow, 0, len(input.PreviousRows))
		for _, row := range input.PreviousRows {
			previous = append(previous, p.processRow(row, false))
		}
		result.FilteredPreviousPeriodData = previous
		previousTotals = aggregateRows(engine, previous)
	}
	result.AggregatedMetrics = compareTotals(totals, previousTotals, input.PreviousRows != nil)
	return result
}

type pipeline struct {
	engine        *metrics.Engine
	state         State
	selectedDates map[string]struct{}
	selectedItems map[string]struct{}
	statuses      map[string]struct{}
	search        string
	parentValues  []string
}

func newPipeline(engine *metrics.Engine, state State) *pipeline {
	p := &pipeline{
		engine:        engine,
		state:         state,
		selectedDates: toSet(state.SelectedDates, strings.TrimSpace),
		selectedItems: toSet(state.SelectedItems, strings.TrimSpace),
		statuses:      toSet(state.Statuses, upper),
		search:        lower(state.Search),
		parentValues:  normalizedValues(state.Parent.Values),
	}
	return p
}

func (p *pipeline) selectionMode() bool {
	return p.state.Mode == ModeSelection
}

// filterDates applies date conditions, date-scoped numeric conditions against
// each row's loaded aggregate, and the date sort.
func (p *pipeline) filterDates(rows []report.TableRow) []report.TableRow {
	out := make([]report.TableRow, 0, len(rows))
	for _, row := range rows {
		if !p.matchesDateLevel(row) {
			continue
		}
		out = append(out, row)
	}
	for _, columnSort := range p.state.Sorts {
		if columnSort.Column != DateColumn {
			continue
		}
		sort.SliceStable(out, func(i, j int) bool {
			if columnSort.Direction == Asc {
				return out[i].Date < out[j].Date
			}
			return out[i].Date > out[j].Date
		})
		break
	}
	return out
}

func (p *pipeline) matchesDateLevel(row report.TableRow) bool {
	for column, condition := range p.state.Filters {
		switch {
		case condition.Type == ConditionDate:
			if !matchDate(condition, row.Date) {
				return false
			}
		case condition.Type == ConditionNumeric && condition.Scope == ScopeDate && !isTextColumn(column):
			if !matchNumeric(condition, row.Metrics[column]) {
				return false
			}
		}
	}
	return true
}

func (p *pipeline) selectDates(rows []report.TableRow) []report.TableRow {
	if !p.selectionMode() || len(p.selectedDates) == 0 {
		return rows
	}
	out := make([]report.TableRow, 0, len(p.selectedDates))
	for _, row := range rows {
		if _, ok := p.selectedDates[row.Date]; ok {
			out = append(out, row)
		}
	}
	return out
}

// processRow filters and sorts the row's items and recomputes the row
// aggregate from the survivors. The returned row owns a fresh item slice.
func (p *pipeline) processRow(row report.TableRow, withSort bool) report.TableRow {
	items := make([]report.TableItem, 0, len(row.Items))
	for _, item := range row.Items {
		if !p.matchesSearch(item) || !p.matchesStatus(item) || !p.matchesParent(item) {
			continue
		}
		items = append(items, item)
	}
	if withSort {
		p.sortItems(items)
	}
	filtered := items[:0]
	for _, item := range items {
		if !p.matchesColumns(item) {
			continue
		}
		if p.selectionMode() && len(p.selectedItems) > 0 {
			if _, ok := p.selectedItems[item.ID]; !ok {
				continue
			}
		}
		filtered = append(filtered, item)
	}

	values := make([]metrics.Metrics, 0, len(filtered))
	for _, item := range filtered {
		values = append(values, item.Metrics)
	}
	return report.TableRow{
		Date:    row.Date,
		Items:   filtered,
		Metrics: p.engine.Aggregate(values),
	}
}

func (p *pipeline) matchesSearch(item report.TableItem) bool {
	if p.search == "" {
		return true
	}
	return strings.Contains(lower(item.Meta.Name), p.search) ||
		strings.Contains(lower(item.Meta.Subtitle), p.search)
}

// matchesStatus lets items without a status through; creatives carry none.
func (p *pipeline) matchesStatus(item report.TableItem) bool {
	if len(p.statuses) == 0 || strings.TrimSpace(item.Meta.Status) == "" {
		return true
	}
	_, ok := p.statuses[upper(item.Meta.Status)]
	return ok
}

func (p *pipeline) matchesParent(item report.TableItem) bool {
	if len(p.parentValues) == 0 || p.state.Parent.Operator == "" {
		return true
	}
	path := item.Hierarchy.Path()
	switch p.state.Parent.Operator {
	case OpContains:
		for _, value := range p.parentValues {
			if strings.Contains(path, value) {
				return true
			}
		}
		return false
	case OpNotContains:
		for _, value := range p.parentValues {
			if strings.Contains(path, value) {
				return false
			}
		}
		return true
	case OpEqual:
		segments := strings.Split(path, " > ")
		for _, value := range p.parentValues {
			if path == value {
				return true
			}
			for _, segment := range segments {
				if segment == value {
					return true
				}
			}
		}
		return false
	default:
		return true
	}
}

func (p *pipeline) matchesColumns(item report.TableItem) bool {
	for column, condition := range p.state.Filters {
		switch condition.Type {
		case ConditionText:
			if !matchText(condition, itemText(item, column)) {
				return false
			}
		case ConditionStatus:
			values := toSet(condition.Values, upper)
			if len(values) == 0 {
				continue
			}
			if _, ok := values[upper(itemText(item, column))]; !ok {
				return false
			}
		case ConditionNumeric:
			if condition.Scope == ScopeDate || isTextColumn(column) {
				continue
			}
			if !matchNumeric(condition, item.Metrics[column]) {
				return false
			}
		}
	}
	return true
}

func (p *pipeline) sortItems(items []report.TableItem) {
	sorts := make([]ColumnSort, 0, len(p.state.Sorts))
	for _, columnSort := range p.state.Sorts {
		if columnSort.Column != DateColumn {
			sorts = append(sorts, columnSort)
		}
	}
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, columnSort := range sorts {
			cmp := compareItems(items[i], items[j], columnSort.Column)
			if cmp == 0 {
				continue
			}
			if columnSort.Direction == Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// sortRows re-sorts date rows by metric column sorts, whose values changed
// during recomputation. A date sort keeps its priority position.
func (p *pipeline) sortRows(rows []report.TableRow) {
	sorts := make([]ColumnSort, 0, len(p.state.Sorts))
	hasMetric := false
	for _, columnSort := range p.state.Sorts {
		if columnSort.Column == DateColumn {
			sorts = append(sorts, columnSort)
			continue
		}
		if isTextColumn(columnSort.Column) {
			continue
		}
		sorts = append(sorts, columnSort)
		hasMetric = true
	}
	if !hasMetric {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, columnSort := range sorts {
			var cmp int
			if columnSort.Column == DateColumn {
				cmp = strings.Compare(rows[i].Date, rows[j].Date)
			} else {
				cmp = compareFloat(rows[i].Metrics[columnSort.Column], rows[j].Metrics[columnSort.Column])
			}
			if cmp == 0 {
				continue
			}
			if columnSort.Direction == Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

var textColumns = map[string]struct{}{
	"id":       {},
	"name":     {},
	"subtitle": {},
	"status":   {},
	"account":  {},
	"campaign": {},
	"adset":    {},
	"ad":       {},
	"parent":   {},
}

func isTextColumn(column string) bool {
	_, ok := textColumns[column]
	return ok
}

func itemText(item report.TableItem, column string) string {
	switch column {
	case "id":
		return item.ID
	case "name":
		return item.Meta.Name
	case "subtitle":
		return item.Meta.Subtitle
	case "status":
		return item.Meta.Status
	case "account":
		return item.Hierarchy.AccountName
	case "campaign":
		return item.Hierarchy.CampaignName
	case "adset":
		return item.Hierarchy.AdSetName
	case "ad":
		return item.Hierarchy.AdName
	case "parent":
		return item.Hierarchy.Path()
	default:
		return ""
	}
}

func compareItems(a report.TableItem, b report.TableItem, column string) int {
	if isTextColumn(column) {
		return strings.Compare(lower(itemText(a, column)), lower(itemText(b, column)))
	}
	return compareFloat(a.Metrics[column], b.Metrics[column])
}

func compareFloat(a float64, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func matchText(condition Condition, value string) bool {
	values := normalizedValues(condition.Values)
	if len(values) == 0 {
		return true
	}
	value = lower(value)
	switch condition.Operator {
	case OpContains:
		for _, candidate := range values {
			if strings.Contains(value, candidate) {
				return true
			}
		}
		return false
	case OpNotContains:
		for _, candidate := range values {
			if strings.Contains(value, candidate) {
				return false
			}
		}
		return true
	case OpEqual:
		for _, candidate := range values {
			if value == candidate {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// matchNumeric compares at two-decimal precision. Between is inclusive.
func matchNumeric(condition Condition, value float64) bool {
	actual := round2(value)
	target := round2(condition.Value)
	switch condition.Operator {
	case OpGreater:
		return actual.GreaterThan(target)
	case OpLess:
		return actual.LessThan(target)
	case OpEqual:
		return actual.Equal(target)
	case OpNotEqual:
		return !actual.Equal(target)
	case OpBetween:
		low, high := target, round2(condition.ValueTo)
		if high.LessThan(low) {
			low, high = high, low
		}
		return actual.GreaterThanOrEqual(low) && actual.LessThanOrEqual(high)
	default:
		return true
	}
}

func matchDate(condition Condition, date string) bool {
	target := strings.TrimSpace(condition.Date)
	switch condition.Operator {
	case OpBefore:
		return date < target
	case OpAfter:
		return date > target
	case OpOn:
		return date == target
	default:
		return true
	}
}

// round2 maps non-finite metric values to zero; decimal cannot hold them.
func round2(value float64) decimal.Decimal {
	if !finite(value) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(value).Round(2)
}

func countItems(rows []report.TableRow) int {
	total := 0
	for _, row := range rows {
		total += len(row.Items)
	}
	return total
}

// visibleItems returns every surviving item once, in first-seen order, with
// its metrics aggregated across the visible dates.
func visibleItems(engine *metrics.Engine, rows []report.TableRow) ([]VisibleItem, []string) {
	index := map[string]int{}
	values := map[string][]metrics.Metrics{}
	out := make([]VisibleItem, 0)
	for _, row := range rows {
		for _, item := range row.Items {
			if _, ok := index[item.ID]; !ok {
				index[item.ID] = len(out)
				out = append(out, VisibleItem{ID: item.ID, Meta: item.Meta, Hierarchy: item.Hierarchy})
			}
			values[item.ID] = append(values[item.ID], item.Metrics)
		}
	}
	ids := make([]string, 0, len(out))
	for i := range out {
		out[i].Metrics = engine.Aggregate(values[out[i].ID])
		ids = append(ids, out[i].ID)
	}
	sort.Strings(ids)
	return out, ids
}

func aggregateRows(engine *metrics.Engine, rows []report.TableRow) metrics.Metrics {
	values := make([]metrics.Metrics, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Metrics)
	}
	return engine.Aggregate(values)
}

func compareTotals(current metrics.Metrics, previous metrics.Metrics, withPrevious bool) map[string]AggregatedMetric {
	keys := make(map[string]float64, len(current))
	for key, total := range current {
		keys[key] = total
	}
	if withPrevious {
		for key := range previous {
			if _, ok := keys[key]; !ok {
				keys[key] = 0
			}
		}
	}
	out := make(map[string]AggregatedMetric, len(keys))
	for key, total := range keys {
		aggregated := AggregatedMetric{Total: total}
		if withPrevious {
			before := previous[key]
			change := total - before
			percent := ChangePercent(total, before)
			aggregated.Change = &change
			aggregated.ChangePercent = &percent
		}
		out[key] = aggregated
	}
	return out
}

// ChangePercent is the relative change from previous to current. A zero
// previous value yields 100 for growth and 0 otherwise.
func ChangePercent(current float64, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

func toSet(values []string, normalize func(string) string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := normalize(value)
		if normalized == "" {
			continue
		}
		out[normalized] = struct{}{}
	}
	return out
}

func normalizedValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if normalized := lower(value); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}

func lower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func upper(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
