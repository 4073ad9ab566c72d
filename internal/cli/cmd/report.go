package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bilalbayram/adlens/internal/config"
	"github.com/bilalbayram/adlens/internal/metrics"
	"github.com/bilalbayram/adlens/internal/output"
	"github.com/bilalbayram/adlens/internal/report"
	"github.com/bilalbayram/adlens/internal/telemetry"
	"github.com/bilalbayram/adlens/internal/view"
)

var defaultMetricColumns = []string{"spend", "impressions", "clicks", "ctr", "cpc", "cpm"}

func NewReportCommand(runtime Runtime) *cobra.Command {
	return newGroupCommand("report", "Saved report commands",
		newReportViewCommand(runtime),
		newReportSaveCommand(runtime),
		newReportListCommand(runtime),
		newReportAccountsCommand(runtime),
	)
}

type reportViewOptions struct {
	reportID    string
	from        string
	to          string
	displayFrom string
	displayTo   string
	compareFrom string
	compareTo   string
	tab         string
	search      string
	statuses    []string
	parentOp    string
	parents     []string
	sorts       []string
	filters     []string
	mode        string
	dates       []string
	items       []string
	metrics     string
	byDate      bool
	totals      bool
}

// viewRequest is the validated form of reportViewOptions.
type viewRequest struct {
	tab     report.Tab
	params  report.Params
	state   view.State
	columns []string
}

func (o reportViewOptions) request() (viewRequest, error) {
	if strings.TrimSpace(o.reportID) == "" {
		return viewRequest{}, inputErrorf("report id is required (--report)")
	}
	tab, err := report.ParseTab(o.tab)
	if err != nil {
		return viewRequest{}, inputErrorf("invalid --tab value: %v", err)
	}
	load := report.DateRange{From: o.from, To: o.to}
	if err := load.Validate(); err != nil {
		return viewRequest{}, inputErrorf("invalid --from/--to: %v", err)
	}
	params := report.Params{
		ReportID:    o.reportID,
		LoadFrom:    o.from,
		LoadTo:      o.to,
		DisplayFrom: o.displayFrom,
		DisplayTo:   o.displayTo,
	}
	if o.displayFrom != "" || o.displayTo != "" {
		display := report.DateRange{From: o.displayFrom, To: o.displayTo}
		if display.From == "" {
			display.From = o.from
		}
		if display.To == "" {
			display.To = o.to
		}
		if err := display.Validate(); err != nil {
			return viewRequest{}, inputErrorf("invalid --display-from/--display-to: %v", err)
		}
	}
	if o.compareFrom != "" || o.compareTo != "" {
		compare := report.DateRange{From: o.compareFrom, To: o.compareTo}
		if err := compare.Validate(); err != nil {
			return viewRequest{}, inputErrorf("invalid --compare-from/--compare-to: %v", err)
		}
		params.Compare = &compare
	}

	state := view.State{
		Mode:          view.Mode(strings.ToLower(strings.TrimSpace(o.mode))),
		SelectedDates: o.dates,
		SelectedItems: o.items,
		Search:        o.search,
		Statuses:      o.statuses,
	}
	if len(o.parents) > 0 {
		state.Parent = view.ParentFilter{Operator: view.Operator(o.parentOp), Values: o.parents}
	}
	for _, expression := range o.filters {
		column, condition, err := view.ParseFilter(expression)
		if err != nil {
			return viewRequest{}, inputErrorf("%v", err)
		}
		if state.Filters == nil {
			state.Filters = map[string]view.Condition{}
		}
		state.Filters[column] = condition
	}
	for _, expression := range o.sorts {
		sort, err := view.ParseSort(expression)
		if err != nil {
			return viewRequest{}, inputErrorf("%v", err)
		}
		state.Sorts = append(state.Sorts, sort)
	}
	if err := state.Validate(); err != nil {
		return viewRequest{}, inputErrorf("%v", err)
	}

	columns := csvToSlice(o.metrics)
	if len(columns) == 0 {
		columns = defaultMetricColumns
	}
	return viewRequest{tab: tab, params: params, state: state, columns: columns}, nil
}

func newReportViewCommand(runtime Runtime) *cobra.Command {
	options := reportViewOptions{}
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Load a saved report and render a filtered tab view",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const commandName = "adlens report view"
			request, err := options.request()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			env, err := runtime.environment()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			defer func() { _ = env.logger.Sync() }()

			session, err := openReportSession(env, request.params.ReportID)
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			ctx := cmd.Context()
			params, err := session.params(ctx, report.DateRange{From: request.params.LoadFrom, To: request.params.LoadTo}, request.tab)
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			params.DisplayFrom = request.params.DisplayFrom
			params.DisplayTo = request.params.DisplayTo
			params.Compare = request.params.Compare

			recorder := telemetry.NewInMemory()
			service := session.newService(recorder)
			defer service.Close()
			service.Update(params)
			if err := service.Wait(ctx); err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			state := service.State()
			if state.Error != "" {
				return writeCommandError(cmd, runtime, commandName, errors.New(state.Error))
			}
			current := service.TabData(request.tab, false)
			if current == nil {
				return writeCommandError(cmd, runtime, commandName, fmt.Errorf("no %s data loaded for report %q", request.tab, params.ReportID))
			}

			input := view.Input{Rows: current.Rows, State: request.state}
			if params.Compare != nil {
				if previous := service.TabData(request.tab, true); previous != nil {
					input.PreviousRows = previous.Rows
				}
			}
			result := view.Apply(metrics.Default, input)

			summary := map[string]any{
				"report_id":     params.ReportID,
				"profile":       session.profile,
				"tab":           request.tab,
				"signature":     state.Signature,
				"total_rows":    result.TotalRows,
				"selected_rows": result.SelectedRows,
				"telemetry":     recorder.Snapshot(),
			}
			var data any = result
			if selectedOutputFormat(runtime) != "json" {
				switch {
				case options.totals:
					data = totalsTable(result, request.columns)
				case options.byDate:
					data = dateTable(result, request.columns)
				default:
					data = itemTable(result, request.columns)
				}
			}
			return writeSuccess(cmd, runtime, commandName, data, summary)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&options.reportID, "report", "", "Saved report id")
	flags.StringVar(&options.from, "from", "", "Load range start (YYYY-MM-DD)")
	flags.StringVar(&options.to, "to", "", "Load range end (YYYY-MM-DD)")
	flags.StringVar(&options.displayFrom, "display-from", "", "Display range start inside the load range")
	flags.StringVar(&options.displayTo, "display-to", "", "Display range end inside the load range")
	flags.StringVar(&options.compareFrom, "compare-from", "", "Comparison period start")
	flags.StringVar(&options.compareTo, "compare-to", "", "Comparison period end")
	flags.StringVar(&options.tab, "tab", string(report.TabCampaigns), "Tab: campaigns|adsets|ads|creatives")
	flags.StringVar(&options.search, "search", "", "Case-insensitive name search")
	flags.StringSliceVar(&options.statuses, "status", nil, "Keep items with these statuses")
	flags.StringVar(&options.parentOp, "parent-op", string(view.OpContains), "Parent filter operator: contains|not-contains|equal")
	flags.StringSliceVar(&options.parents, "parent", nil, "Parent path values")
	flags.StringArrayVar(&options.sorts, "sort", nil, "Sort column:asc|desc (repeatable)")
	flags.StringArrayVar(&options.filters, "filter", nil, "Filter expression, e.g. spend>100 or row:clicks>10 (repeatable)")
	flags.StringVar(&options.mode, "mode", string(view.ModeAll), "View mode: all|selection")
	flags.StringSliceVar(&options.dates, "select-date", nil, "Dates kept in selection mode")
	flags.StringSliceVar(&options.items, "select-item", nil, "Item ids kept in selection mode")
	flags.StringVar(&options.metrics, "metrics", "", "Comma-separated metric columns for table output")
	flags.BoolVar(&options.byDate, "by-date", false, "Render one row per date instead of per item")
	flags.BoolVar(&options.totals, "totals", false, "Render aggregated totals with period-over-period change")
	mustMarkFlagRequired(cmd, "report")
	mustMarkFlagRequired(cmd, "from")
	mustMarkFlagRequired(cmd, "to")
	return cmd
}

func itemTable(result view.Result, columns []string) output.Table {
	table := output.Table{Columns: append([]string{"id", "name", "status", "parent"}, columns...)}
	for _, item := range result.VisibleItems {
		row := map[string]any{
			"id":     item.ID,
			"name":   item.Meta.Name,
			"status": item.Meta.Status,
			"parent": item.Meta.Subtitle,
		}
		addMetricCells(row, item.Metrics, columns)
		table.Rows = append(table.Rows, row)
	}
	return table
}

func dateTable(result view.Result, columns []string) output.Table {
	table := output.Table{Columns: append([]string{"date", "items"}, columns...)}
	for _, dateRow := range result.FilteredTableData {
		row := map[string]any{"date": dateRow.Date, "items": len(dateRow.Items)}
		addMetricCells(row, dateRow.Metrics, columns)
		table.Rows = append(table.Rows, row)
	}
	return table
}

func totalsTable(result view.Result, columns []string) output.Table {
	table := output.Table{Columns: []string{"metric", "total", "change", "change_percent"}}
	for _, column := range columns {
		aggregated, ok := result.AggregatedMetrics[column]
		if !ok {
			continue
		}
		table.Rows = append(table.Rows, map[string]any{
			"metric":         column,
			"total":          aggregated.Total,
			"change":         aggregated.Change,
			"change_percent": aggregated.ChangePercent,
		})
	}
	return table
}

func addMetricCells(row map[string]any, values metrics.Metrics, columns []string) {
	for _, column := range columns {
		if value, ok := values[column]; ok {
			row[column] = value
		}
	}
}

func newReportSaveCommand(runtime Runtime) *cobra.Command {
	var (
		reportID    string
		profile     string
		accounts    []string
		attribution string
		selections  []string
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or replace a saved report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const commandName = "adlens report save"
			saved := config.Report{Profile: profile, Attribution: attribution}
			for _, raw := range accounts {
				id, name, _ := strings.Cut(raw, "=")
				saved.Accounts = append(saved.Accounts, config.Account{
					ID:   strings.TrimPrefix(strings.TrimSpace(id), "act_"),
					Name: strings.TrimSpace(name),
				})
			}
			for _, raw := range selections {
				key, ids, found := strings.Cut(raw, "=")
				if !found {
					return writeCommandError(cmd, runtime, commandName, inputErrorf("invalid --select %q: expected tab=id1,id2", raw))
				}
				tab, err := report.ParseTab(key)
				if err != nil {
					return writeCommandError(cmd, runtime, commandName, inputErrorf("invalid --select %q: %v", raw, err))
				}
				if saved.Selections == nil {
					saved.Selections = map[string][]string{}
				}
				saved.Selections[string(tab)] = append(saved.Selections[string(tab)], csvToSlice(ids)...)
			}

			env, err := runtime.environment()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			cfg, err := config.LoadOrCreate(env.configPath)
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			if err := cfg.UpsertReport(reportID, saved); err != nil {
				return writeCommandError(cmd, runtime, commandName, inputErrorf("%v", err))
			}
			if err := config.Save(env.configPath, cfg); err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			return writeSuccess(cmd, runtime, commandName, map[string]any{
				"status":    "ok",
				"report_id": reportID,
				"accounts":  len(saved.Accounts),
			}, nil)
		},
	}
	cmd.Flags().StringVar(&reportID, "report", "", "Report id")
	cmd.Flags().StringVar(&profile, "profile", "", "Profile used to read the report")
	cmd.Flags().StringSliceVar(&accounts, "account", nil, "Ad account id, optionally id=name (repeatable)")
	cmd.Flags().StringVar(&attribution, "attribution", "", "Attribution windows, e.g. 7d_click,1d_view")
	cmd.Flags().StringArrayVar(&selections, "select", nil, "Tab selection tab=id1,id2 (repeatable)")
	mustMarkFlagRequired(cmd, "report")
	return cmd
}

func newReportListCommand(runtime Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const commandName = "adlens report list"
			env, err := runtime.environment()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			cfg, err := config.Load(env.configPath)
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			rows := make([]map[string]any, 0, len(cfg.Reports))
			for _, id := range cfg.ReportIDs() {
				saved := cfg.Reports[id]
				rows = append(rows, map[string]any{
					"report_id":   id,
					"profile":     saved.Profile,
					"accounts":    len(saved.Accounts),
					"attribution": saved.Attribution,
				})
			}
			return writeSuccess(cmd, runtime, commandName, rows, map[string]any{"count": len(rows)})
		},
	}
}

func newReportAccountsCommand(runtime Runtime) *cobra.Command {
	var reportID string
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the ad accounts a saved report reads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const commandName = "adlens report accounts"
			env, err := runtime.environment()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			session, err := openReportSession(env, reportID)
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			accounts, err := session.accounts(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			rows := make([]map[string]any, 0, len(accounts))
			for _, account := range accounts {
				rows = append(rows, map[string]any{"id": account.ID, "name": account.Name})
			}
			return writeSuccess(cmd, runtime, commandName, rows, map[string]any{"count": len(rows)})
		},
	}
	cmd.Flags().StringVar(&reportID, "report", "", "Saved report id")
	mustMarkFlagRequired(cmd, "report")
	return cmd
}

func csvToSlice(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
