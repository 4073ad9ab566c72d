package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/bilalbayram/adlens/internal/config"
	"github.com/bilalbayram/adlens/internal/testutil"
)

func newCampaignGraph(t *testing.T) *testutil.GraphServer {
	t.Helper()
	graph := testutil.NewGraphServer(t)
	graph.Handle("act_1/insights",
		map[string]any{"campaign_id": "c1", "campaign_name": "Launch", "date_start": "2024-03-01", "impressions": "100", "clicks": "10", "spend": "5.5"},
		map[string]any{"campaign_id": "c2", "campaign_name": "Retarget", "date_start": "2024-03-01", "impressions": "400", "clicks": "4", "spend": "2"},
		map[string]any{"campaign_id": "c1", "campaign_name": "Launch", "date_start": "2024-03-02", "impressions": "100", "clicks": "2", "spend": "1"},
	)
	graph.Handle("act_1/campaigns",
		map[string]any{"id": "c1", "name": "Launch", "effective_status": "ACTIVE", "account_id": "1"},
		map[string]any{"id": "c2", "name": "Retarget", "effective_status": "PAUSED", "account_id": "1"},
	)
	return graph
}

func TestReportViewRendersFilteredItemsAsCSV(t *testing.T) {
	graph := newCampaignGraph(t)
	configPath, _ := useTestEnvironment(t, graph.URL, "token")
	saveReport(t, configPath, "weekly", config.Report{Accounts: []config.Account{{ID: "1", Name: "Main"}}})

	cmd := newReportViewCommand(testRuntime("", "csv"))
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{
		"--report", "weekly",
		"--from", "2024-03-01",
		"--to", "2024-03-02",
		"--filter", "clicks>5",
		"--metrics", "clicks,impressions,spend",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute report view: %v", err)
	}

	want := "id,name,status,parent,clicks,impressions,spend\nc1,Launch,ACTIVE,Main,10.00,100.00,5.50\n"
	if got := stdout.String(); got != want {
		t.Fatalf("unexpected csv output:\ngot=%q\nwant=%q", got, want)
	}
}

func TestReportViewJSONCarriesResultAndSummary(t *testing.T) {
	graph := newCampaignGraph(t)
	configPath, _ := useTestEnvironment(t, graph.URL, "token")
	saveReport(t, configPath, "weekly", config.Report{
		Accounts:   []config.Account{{ID: "1", Name: "Main"}},
		Selections: map[string][]string{"campaigns": {"c1", "c2"}},
	})

	cmd := newReportViewCommand(testRuntime("", "json"))
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--report", "weekly", "--from", "2024-03-01", "--to", "2024-03-02"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute report view: %v", err)
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			FilteredItemIDs   []string `json:"filtered_item_ids"`
			TotalRows         int      `json:"total_rows"`
			AggregatedMetrics map[string]struct {
				Total float64 `json:"total"`
			} `json:"aggregated_metrics"`
		} `json:"data"`
		Summary map[string]any `json:"summary"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, stdout.String())
	}
	if !envelope.Success {
		t.Fatal("expected success envelope")
	}
	if got := strings.Join(envelope.Data.FilteredItemIDs, ","); got != "c1,c2" {
		t.Fatalf("unexpected item ids: got=%s want=c1,c2", got)
	}
	if got := envelope.Data.TotalRows; got != 3 {
		t.Fatalf("unexpected total rows: got=%d want=3", got)
	}
	if got := envelope.Data.AggregatedMetrics["clicks"].Total; got != 16 {
		t.Fatalf("unexpected clicks total: got=%v want=16", got)
	}
	if envelope.Summary["report_id"] != "weekly" {
		t.Fatalf("unexpected summary: %v", envelope.Summary)
	}
	for _, path := range graph.Requests() {
		if path == "me/adaccounts" {
			t.Fatal("configured accounts must not trigger account discovery")
		}
	}
}

func TestReportViewTotalsTable(t *testing.T) {
	graph := newCampaignGraph(t)
	configPath, _ := useTestEnvironment(t, graph.URL, "token")
	saveReport(t, configPath, "weekly", config.Report{Accounts: []config.Account{{ID: "1", Name: "Main"}}})

	cmd := newReportViewCommand(testRuntime("", "csv"))
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{
		"--report", "weekly",
		"--from", "2024-03-01",
		"--to", "2024-03-02",
		"--display-from", "2024-03-02",
		"--totals",
		"--metrics", "clicks,spend",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute report view: %v", err)
	}

	want := "metric,total,change,change_percent\nclicks,2.00,,\nspend,1.00,,\n"
	if got := stdout.String(); got != want {
		t.Fatalf("unexpected totals output:\ngot=%q\nwant=%q", got, want)
	}
}

func TestReportViewRejectsInvalidInputBeforeLoading(t *testing.T) {
	graph := newCampaignGraph(t)
	useTestEnvironment(t, graph.URL, "token")

	cases := map[string][]string{
		"bad tab":     {"--report", "weekly", "--from", "2024-03-01", "--to", "2024-03-02", "--tab", "pixels"},
		"bad filter":  {"--report", "weekly", "--from", "2024-03-01", "--to", "2024-03-02", "--filter", "clicks"},
		"nan filter":  {"--report", "weekly", "--from", "2024-03-01", "--to", "2024-03-02", "--filter", "ctr>NaN"},
		"bad sort":    {"--report", "weekly", "--from", "2024-03-01", "--to", "2024-03-02", "--sort", "clicks:sideways"},
		"bad range":   {"--report", "weekly", "--from", "2024-03-05", "--to", "2024-03-02"},
		"bad compare": {"--report", "weekly", "--from", "2024-03-01", "--to", "2024-03-02", "--compare-from", "2024-02-01"},
		"bad mode":    {"--report", "weekly", "--from", "2024-03-01", "--to", "2024-03-02", "--mode", "some"},
	}
	for name, args := range cases {
		cmd := newReportViewCommand(testRuntime("", "json"))
		cmd.SetOut(io.Discard)
		stderr := &bytes.Buffer{}
		cmd.SetErr(stderr)
		cmd.SetArgs(args)

		err := cmd.Execute()
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		var input *invalidInput
		if !errors.As(err, &input) {
			t.Fatalf("%s: expected input error, got %T: %v", name, err, err)
		}
		if !strings.Contains(stderr.String(), `"success": false`) {
			t.Fatalf("%s: expected error envelope on stderr, got %q", name, stderr.String())
		}
	}
	if got := len(graph.Requests()); got != 0 {
		t.Fatalf("expected no graph calls, got=%d", got)
	}
}

func TestReportViewUnknownReport(t *testing.T) {
	graph := newCampaignGraph(t)
	configPath, _ := useTestEnvironment(t, graph.URL, "token")
	saveReport(t, configPath, "weekly", config.Report{})

	cmd := newReportViewCommand(testRuntime("", "json"))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--report", "monthly", "--from", "2024-03-01", "--to", "2024-03-02"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), `report "monthly" does not exist`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReportSaveAndList(t *testing.T) {
	configPath, _ := useTestEnvironment(t, "http://127.0.0.1:0", "token")

	save := newReportSaveCommand(testRuntime("", "json"))
	save.SetOut(io.Discard)
	save.SetErr(io.Discard)
	save.SetArgs([]string{
		"--report", "weekly",
		"--account", "act_1=Main",
		"--account", "2",
		"--attribution", "7d_click",
		"--select", "campaigns=c1,c2",
	})
	if err := save.Execute(); err != nil {
		t.Fatalf("execute report save: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	saved := cfg.Reports["weekly"]
	if len(saved.Accounts) != 2 || saved.Accounts[0].ID != "1" || saved.Accounts[0].Name != "Main" {
		t.Fatalf("unexpected accounts: %+v", saved.Accounts)
	}
	if got := strings.Join(saved.Selections["campaigns"], ","); got != "c1,c2" {
		t.Fatalf("unexpected selection: got=%s want=c1,c2", got)
	}

	list := newReportListCommand(testRuntime("", "csv"))
	stdout := &bytes.Buffer{}
	list.SetOut(stdout)
	list.SetErr(io.Discard)
	if err := list.Execute(); err != nil {
		t.Fatalf("execute report list: %v", err)
	}
	want := "accounts,attribution,profile,report_id\n2,7d_click,,weekly\n"
	if got := stdout.String(); got != want {
		t.Fatalf("unexpected list output:\ngot=%q\nwant=%q", got, want)
	}
}

func TestReportSaveRejectsMalformedSelection(t *testing.T) {
	useTestEnvironment(t, "http://127.0.0.1:0", "token")

	cmd := newReportSaveCommand(testRuntime("", "json"))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--report", "weekly", "--select", "campaigns"})

	err := cmd.Execute()
	var input *invalidInput
	if !errors.As(err, &input) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestReportAccountsFallsBackToDiscovery(t *testing.T) {
	graph := testutil.NewGraphServer(t)
	graph.Handle("me/adaccounts",
		map[string]any{"id": "act_9", "account_id": "9", "name": "Shop"},
		map[string]any{"id": "act_3", "account_id": "3", "name": "Brand"},
	)
	configPath, _ := useTestEnvironment(t, graph.URL, "token")
	saveReport(t, configPath, "weekly", config.Report{})

	cmd := newReportAccountsCommand(testRuntime("", "csv"))
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--report", "weekly"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute report accounts: %v", err)
	}
	want := "id,name\n3,Brand\n9,Shop\n"
	if got := stdout.String(); got != want {
		t.Fatalf("unexpected accounts output:\ngot=%q\nwant=%q", got, want)
	}
}
