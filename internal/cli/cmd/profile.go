package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bilalbayram/adlens/internal/config"
	"github.com/bilalbayram/adlens/internal/graph"
	"github.com/bilalbayram/adlens/internal/hierarchy"
	"github.com/bilalbayram/adlens/internal/report"
	"github.com/bilalbayram/adlens/internal/source"
	"github.com/bilalbayram/adlens/internal/telemetry"
)

// reportSession is a configured report bound to credentials and a live data
// source.
type reportSession struct {
	env      *environment
	reportID string
	report   config.Report
	profile  string
	source   *source.Graph
}

func openReportSession(env *environment, reportID string) (*reportSession, error) {
	cfg, err := config.Load(env.configPath)
	if err != nil {
		return nil, err
	}
	configured, err := cfg.ResolveReport(reportID)
	if err != nil {
		return nil, inputErrorf("%v", err)
	}

	profile := env.settings.Profile
	if profile == "" {
		profile = configured.Profile
	}
	creds, err := env.credentials(profile)
	if err != nil {
		return nil, err
	}
	warnGraphVersion(env.logger, creds.GraphVersion)
	graphSource := source.NewGraph(env.graphClient(), source.Credentials{
		Version:   creds.GraphVersion,
		Token:     creds.Token,
		AppSecret: creds.AppSecret,
	}, env.logger)

	env.logger.Debug("opened report",
		zap.String("report_id", reportID),
		zap.String("profile", creds.Profile),
		zap.Int("accounts", len(configured.Accounts)),
	)
	return &reportSession{
		env:      env,
		reportID: reportID,
		report:   configured,
		profile:  creds.Profile,
		source:   graphSource,
	}, nil
}

func warnGraphVersion(logger *zap.Logger, version string) {
	status, err := graph.CheckVersion(version, time.Now())
	if err != nil {
		logger.Debug("graph version not tracked", zap.String("version", version))
		return
	}
	if warning := status.Warning(); warning != "" {
		logger.Warn(warning, zap.String("latest", status.Latest), zap.Int("days_left", status.DaysLeft))
	}
}

// accounts returns the configured accounts, or every readable account when
// the report does not pin any.
func (s *reportSession) accounts(ctx context.Context) ([]hierarchy.Account, error) {
	if len(s.report.Accounts) == 0 {
		return s.source.Accounts(ctx, s.reportID)
	}
	out := make([]hierarchy.Account, 0, len(s.report.Accounts))
	for _, account := range s.report.Accounts {
		out = append(out, hierarchy.Account{ID: account.ID, Name: account.Name})
	}
	return out, nil
}

func (s *reportSession) selections() (map[report.Tab][]string, error) {
	out := make(map[report.Tab][]string, len(s.report.Selections))
	for key, ids := range s.report.Selections {
		tab, err := report.ParseTab(key)
		if err != nil {
			return nil, fmt.Errorf("report %q: %w", s.reportID, err)
		}
		out[tab] = append(out[tab], ids...)
	}
	return out, nil
}

// discoverSelection selects every object of the tab's level in the given
// accounts.
func (s *reportSession) discoverSelection(ctx context.Context, tab report.Tab, accounts []hierarchy.Account) ([]string, error) {
	accountIDs := make([]string, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.ID)
	}
	var (
		objects []hierarchy.Object
		err     error
	)
	switch tab {
	case report.TabCampaigns:
		objects, err = s.source.Campaigns(ctx, accountIDs)
	case report.TabAdSets:
		objects, err = s.source.AdSets(ctx, accountIDs)
	case report.TabAds:
		objects, err = s.source.Ads(ctx, accountIDs)
	case report.TabCreatives:
		objects, err = s.source.Creatives(ctx, accountIDs)
	default:
		return nil, fmt.Errorf("unsupported tab %q", tab)
	}
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(objects))
	for _, object := range objects {
		ids = append(ids, object.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// params builds report params for a load window. Tabs listed in discover
// that have no configured selection select every object.
func (s *reportSession) params(ctx context.Context, window report.DateRange, discover ...report.Tab) (report.Params, error) {
	accounts, err := s.accounts(ctx)
	if err != nil {
		return report.Params{}, err
	}
	selections, err := s.selections()
	if err != nil {
		return report.Params{}, err
	}
	for _, tab := range discover {
		if len(selections[tab]) > 0 {
			continue
		}
		ids, err := s.discoverSelection(ctx, tab, accounts)
		if err != nil {
			return report.Params{}, err
		}
		selections[tab] = ids
	}
	return report.Params{
		ReportID:    s.reportID,
		LoadFrom:    window.From,
		LoadTo:      window.To,
		Attribution: strings.TrimSpace(s.report.Attribution),
		Accounts:    accounts,
		Selections:  selections,
	}, nil
}

// newService wires a report service over the session's source with the
// process settings.
func (s *reportSession) newService(recorder telemetry.Recorder) *report.Service {
	logger := s.env.logger.With(zap.String("component", "report"))
	loader := report.NewLoader(s.source)
	loader.Logger = logger
	loader.Recorder = recorder
	return report.NewService(loader,
		report.WithLogger(logger),
		report.WithRecorder(recorder),
		report.WithAccountResolver(s.source),
		report.WithAccountRetry(s.env.settings.AccountRetryAttempts, s.env.settings.AccountRetryInterval),
		report.WithPrefetchMaxWait(s.env.settings.PrefetchMaxWait),
	)
}
