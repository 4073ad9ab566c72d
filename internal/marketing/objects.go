// Package marketing lists ad objects (campaigns, ad sets, ads, creatives and
// ad accounts) with read-side filtering and field projection.
package marketing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bilalbayram/adlens/internal/graph"
)

type Kind string

const (
	KindCampaigns Kind = "campaigns"
	KindAdSets    Kind = "adsets"
	KindAds       Kind = "ads"
	KindCreatives Kind = "adcreatives"
)

const defaultPageSize = 500

var DefaultReadFields = map[Kind][]string{
	KindCampaigns: {"id", "name", "status", "effective_status", "account_id", "objective"},
	KindAdSets:    {"id", "name", "status", "effective_status", "account_id", "campaign_id"},
	KindAds:       {"id", "name", "status", "effective_status", "account_id", "campaign_id", "adset_id", "creative{id}"},
	KindCreatives: {"id", "name", "status", "account_id", "thumbnail_url", "object_type"},
}

func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "campaigns", "campaign":
		return KindCampaigns, nil
	case "adsets", "adset":
		return KindAdSets, nil
	case "ads", "ad":
		return KindAds, nil
	case "adcreatives", "creatives", "creative":
		return KindCreatives, nil
	default:
		return "", fmt.Errorf("unsupported object kind %q: expected campaigns|adsets|ads|adcreatives", value)
	}
}

type ListInput struct {
	AccountID         string
	Kind              Kind
	Fields            []string
	Name              string
	Statuses          []string
	EffectiveStatuses []string
	ActiveOnly        bool
	Limit             int
	PageSize          int
}

type ListResult struct {
	Operation   string                  `json:"operation"`
	RequestPath string                  `json:"request_path"`
	Items       []map[string]any        `json:"items"`
	Paging      *graph.PaginationResult `json:"paging,omitempty"`
}

type ObjectService struct {
	Client *graph.Client
}

func NewObjectService(client *graph.Client) *ObjectService {
	if client == nil {
		client = graph.NewClient(nil, "")
	}
	return &ObjectService{Client: client}
}

// List reads every object of input.Kind under the account, following all
// pages. Filtering happens client side so projection never drops the fields
// the filters need.
func (s *ObjectService) List(ctx context.Context, version string, token string, appSecret string, input ListInput) (*ListResult, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("object service client is required")
	}
	if input.Limit < 0 {
		return nil, errors.New("list limit must be >= 0")
	}
	if input.PageSize < 0 {
		return nil, errors.New("list page size must be >= 0")
	}
	defaults, ok := DefaultReadFields[input.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported object kind %q", input.Kind)
	}
	accountID, err := normalizeAdAccountID(input.AccountID)
	if err != nil {
		return nil, err
	}
	fields, err := normalizeReadFields(string(input.Kind), input.Fields, defaults)
	if err != nil {
		return nil, err
	}
	filters, err := newReadFilters(input.Name, input.Statuses, input.EffectiveStatuses, input.ActiveOnly)
	if err != nil {
		return nil, err
	}

	extras := []string{"name", "status"}
	if input.Kind != KindCreatives {
		extras = append(extras, "effective_status")
	}
	pageSize := input.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	path := fmt.Sprintf("act_%s/%s", accountID, input.Kind)
	rows := make([]map[string]any, 0)
	paging, err := s.Client.FetchWithPagination(ctx, graph.Request{
		Path:    path,
		Version: strings.TrimSpace(version),
		Query: map[string]string{
			"fields": strings.Join(mergeReadFields(fields, extras...), ","),
		},
		AccessToken: token,
		AppSecret:   appSecret,
	}, graph.PaginationOptions{
		FollowNext: true,
		PageSize:   pageSize,
	}, func(item map[string]any) error {
		if !filters.match(item) {
			return nil
		}
		rows = append(rows, projectReadFields(item, fields))
		if input.Limit > 0 && len(rows) >= input.Limit {
			return graph.ErrStopPaging
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s for act_%s: %w", input.Kind, accountID, err)
	}
	return &ListResult{
		Operation:   "list",
		RequestPath: path,
		Items:       rows,
		Paging:      paging,
	}, nil
}

// ListAdAccounts returns the ad accounts visible to the token.
func (s *ObjectService) ListAdAccounts(ctx context.Context, version string, token string, appSecret string) ([]map[string]any, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("object service client is required")
	}
	items, err := s.Client.FetchAll(ctx, graph.Request{
		Path:    "me/adaccounts",
		Version: strings.TrimSpace(version),
		Query: map[string]string{
			"fields": "id,account_id,name,account_status,currency",
		},
		AccessToken: token,
		AppSecret:   appSecret,
	}, defaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("list ad accounts: %w", err)
	}
	return items, nil
}

func normalizeAdAccountID(value string) (string, error) {
	normalized := strings.TrimSpace(value)
	if strings.HasPrefix(strings.ToLower(normalized), "act_") {
		normalized = normalized[4:]
	}
	if normalized == "" {
		return "", errors.New("account id is required")
	}
	if strings.Contains(normalized, "/") {
		return "", fmt.Errorf("invalid account id %q: expected single graph id token", value)
	}
	return normalized, nil
}
