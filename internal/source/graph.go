// Package source adapts the Graph API services to the report loader.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bilalbayram/adlens/internal/graph"
	"github.com/bilalbayram/adlens/internal/hierarchy"
	"github.com/bilalbayram/adlens/internal/insights"
	"github.com/bilalbayram/adlens/internal/marketing"
	"github.com/bilalbayram/adlens/internal/report"
)

const maxParallelAccounts = 4

type Credentials struct {
	Version   string
	Token     string
	AppSecret string
}

// Graph reads insights and ad objects for report loads.
type Graph struct {
	InsightsAPI *insights.Service
	Objects     *marketing.ObjectService
	Credentials Credentials
	Logger      *zap.Logger
}

var (
	_ report.Source          = (*Graph)(nil)
	_ report.AccountResolver = (*Graph)(nil)
)

func NewGraph(client *graph.Client, credentials Credentials, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{
		InsightsAPI: insights.New(client),
		Objects:     marketing.NewObjectService(client),
		Credentials: credentials,
		Logger:      logger.With(zap.String("component", "source.graph")),
	}
}

func (g *Graph) Insights(ctx context.Context, query report.InsightsQuery) ([]map[string]any, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g.InsightsAPI.Fetch(ctx, g.Credentials.Version, g.Credentials.Token, g.Credentials.AppSecret, insights.Query{
		AccountID:   query.AccountID,
		Level:       query.Level,
		DateFrom:    query.DateFrom,
		DateTo:      query.DateTo,
		Attribution: query.Attribution,
	})
}

func (g *Graph) Campaigns(ctx context.Context, accountIDs []string) ([]hierarchy.Object, error) {
	return g.objects(ctx, marketing.KindCampaigns, accountIDs)
}

func (g *Graph) AdSets(ctx context.Context, accountIDs []string) ([]hierarchy.Object, error) {
	return g.objects(ctx, marketing.KindAdSets, accountIDs)
}

func (g *Graph) Ads(ctx context.Context, accountIDs []string) ([]hierarchy.Object, error) {
	return g.objects(ctx, marketing.KindAds, accountIDs)
}

func (g *Graph) Creatives(ctx context.Context, accountIDs []string) ([]hierarchy.Object, error) {
	return g.objects(ctx, marketing.KindCreatives, accountIDs)
}

// Accounts returns every ad account the token can read. It backs reports
// whose account list has not been configured yet.
func (g *Graph) Accounts(ctx context.Context, reportID string) ([]hierarchy.Account, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	items, err := g.Objects.ListAdAccounts(ctx, g.Credentials.Version, g.Credentials.Token, g.Credentials.AppSecret)
	if err != nil {
		return nil, err
	}
	accounts := make([]hierarchy.Account, 0, len(items))
	for _, item := range items {
		id := strings.TrimPrefix(stringValue(item["id"]), "act_")
		if id == "" {
			id = stringValue(item["account_id"])
		}
		if id == "" {
			continue
		}
		accounts = append(accounts, hierarchy.Account{ID: id, Name: stringValue(item["name"])})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	g.Logger.Debug("resolved ad accounts", zap.String("report_id", reportID), zap.Int("accounts", len(accounts)))
	return accounts, nil
}

func (g *Graph) objects(ctx context.Context, kind marketing.Kind, accountIDs []string) ([]hierarchy.Object, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	var (
		mu  sync.Mutex
		out []hierarchy.Object
	)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelAccounts)
	for _, accountID := range accountIDs {
		accountID := accountID
		group.Go(func() error {
			result, err := g.Objects.List(gctx, g.Credentials.Version, g.Credentials.Token, g.Credentials.AppSecret, marketing.ListInput{
				AccountID: accountID,
				Kind:      kind,
			})
			if err != nil {
				return err
			}
			objects := make([]hierarchy.Object, 0, len(result.Items))
			for _, item := range result.Items {
				objects = append(objects, toObject(kind, accountID, item))
			}
			mu.Lock()
			out = append(out, objects...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *Graph) validate() error {
	if g == nil || g.InsightsAPI == nil || g.Objects == nil {
		return errors.New("graph source is not configured")
	}
	if strings.TrimSpace(g.Credentials.Token) == "" {
		return errors.New("graph source access token is required")
	}
	return nil
}

func toObject(kind marketing.Kind, accountID string, item map[string]any) hierarchy.Object {
	status := stringValue(item["effective_status"])
	if status == "" {
		status = stringValue(item["status"])
	}
	object := hierarchy.Object{
		ID:         stringValue(item["id"]),
		Name:       stringValue(item["name"]),
		Status:     strings.ToUpper(status),
		AccountID:  strings.TrimPrefix(accountID, "act_"),
		CampaignID: stringValue(item["campaign_id"]),
		AdSetID:    stringValue(item["adset_id"]),
	}
	switch kind {
	case marketing.KindAds:
		if creative, ok := item["creative"].(map[string]any); ok {
			object.CreativeID = stringValue(creative["id"])
		}
	case marketing.KindCreatives:
		object.Thumbnail = stringValue(item["thumbnail_url"])
	}
	return object
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}
