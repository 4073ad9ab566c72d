package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bilalbayram/adlens/internal/auth"
	"github.com/bilalbayram/adlens/internal/config"
)

const httpMethodGet = http.MethodGet

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a read-only Graph API client with retry on throttling and
// transient transport failures.
type Client struct {
	BaseURL        string
	HTTP           HTTPClient
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Sleep          func(context.Context, time.Duration) error
	UserAgent      string
	Logger         *zap.Logger
}

type Request struct {
	Path        string
	Version     string
	Query       map[string]string
	AccessToken string
	AppSecret   string
}

type Response struct {
	StatusCode int
	Body       map[string]any
	Headers    http.Header
	RateLimit  RateLimit
}

type RateLimit struct {
	AppUsage       map[string]any `json:"app_usage,omitempty"`
	AdAccountUsage map[string]any `json:"ad_account_usage,omitempty"`
	BusinessUsage  map[string]any `json:"business_use_case_usage,omitempty"`
}

func NewClient(httpClient HTTPClient, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = auth.DefaultGraphBaseURL
	}

	return &Client{
		BaseURL:        strings.TrimSuffix(baseURL, "/"),
		HTTP:           httpClient,
		MaxRetries:     4,
		InitialBackoff: 300 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Sleep:          sleepContext,
		UserAgent:      "adlens/1.0",
		Logger:         zap.NewNop(),
	}
}

func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, errors.New("graph request path is required")
	}
	version := req.Version
	if version == "" {
		version = config.DefaultGraphVersion
	}
	attempt := 0
	backoff := c.InitialBackoff

	for {
		attempt++
		response, err := c.doOnce(ctx, version, req)
		if err == nil {
			return response, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryable(err) || attempt > c.MaxRetries {
			return nil, err
		}

		c.logger().Debug("retrying graph request",
			zap.String("path", req.Path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff = nextBackoff(backoff, c.MaxBackoff)
	}
}

func (c *Client) doOnce(ctx context.Context, version string, req Request) (*Response, error) {
	endpoint, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse graph base url: %w", err)
	}
	endpoint.Path = path.Join(endpoint.Path, version, strings.TrimPrefix(req.Path, "/"))

	query := url.Values{}
	for key, value := range req.Query {
		query.Set(key, value)
	}
	if req.AccessToken != "" {
		query.Set("access_token", req.AccessToken)
	}
	if req.AccessToken != "" && req.AppSecret != "" {
		proof, err := auth.AppSecretProof(req.AccessToken, req.AppSecret)
		if err != nil {
			return nil, err
		}
		query.Set("appsecret_proof", proof)
	}
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, httpMethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.UserAgent)

	httpRes, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, &TransientError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer httpRes.Body.Close()

	body, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, &TransientError{Message: fmt.Sprintf("read response: %v", err)}
	}

	parsed := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decode response JSON: %w", err)
		}
	}

	if apiErr := parseAPIError(httpRes.StatusCode, parsed); apiErr != nil {
		return nil, apiErr
	}
	if httpRes.StatusCode >= 500 || httpRes.StatusCode == http.StatusTooManyRequests {
		return nil, &TransientError{
			Message:    fmt.Sprintf("transient status code %d", httpRes.StatusCode),
			StatusCode: httpRes.StatusCode,
		}
	}
	if httpRes.StatusCode < 200 || httpRes.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed with status %d", httpRes.StatusCode)
	}

	return &Response{
		StatusCode: httpRes.StatusCode,
		Body:       parsed,
		Headers:    httpRes.Header.Clone(),
		RateLimit:  parseRateLimit(httpRes.Header),
	}, nil
}

func parseRateLimit(headers http.Header) RateLimit {
	return RateLimit{
		AppUsage:       parseUsageHeader(headers.Get("X-App-Usage")),
		AdAccountUsage: parseUsageHeader(headers.Get("X-Ad-Account-Usage")),
		BusinessUsage:  parseUsageHeader(headers.Get("X-Business-Use-Case-Usage")),
	}
}

func parseUsageHeader(value string) map[string]any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parsed := map[string]any{}
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		return map[string]any{
			"raw": value,
		}
	}
	return parsed
}

func parseAPIError(statusCode int, payload map[string]any) *APIError {
	rawErr, ok := payload["error"]
	if !ok {
		if statusCode == http.StatusTooManyRequests {
			return &APIError{
				Type:       "rate_limit",
				Code:       http.StatusTooManyRequests,
				Message:    "rate limited",
				StatusCode: statusCode,
				Retryable:  true,
			}
		}
		return nil
	}
	errMap, ok := rawErr.(map[string]any)
	if !ok {
		return &APIError{
			Type:       "unknown",
			Message:    "unparseable error payload",
			StatusCode: statusCode,
			Retryable:  statusCode >= 500 || statusCode == http.StatusTooManyRequests,
		}
	}

	errCode := intFromAny(errMap["code"])
	message, _ := errMap["message"].(string)
	errType, _ := errMap["type"].(string)
	trace, _ := errMap["fbtrace_id"].(string)

	return &APIError{
		Type:         errType,
		Code:         errCode,
		ErrorSubcode: intFromAny(errMap["error_subcode"]),
		Message:      message,
		FBTraceID:    trace,
		StatusCode:   statusCode,
		Retryable:    ShouldRetry(statusCode, errCode),
	}
}

// ShouldRetry reports whether a Graph failure is throttling or a server-side
// fault. Codes 4, 17, 32 and 613 are the platform's rate-limit family; 80000
// to 80014 are ads insights throttles.
func ShouldRetry(statusCode int, code int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	if statusCode >= 500 {
		return true
	}
	switch code {
	case 4, 17, 32, 613:
		return true
	}
	return code >= 80000 && code <= 80014
}

func intFromAny(value any) int {
	switch typed := value.(type) {
	case float64:
		return int(typed)
	case int:
		return typed
	case string:
		parsed, err := strconv.Atoi(typed)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) sleep(ctx context.Context, duration time.Duration) error {
	if c.Sleep == nil {
		return sleepContext(ctx, duration)
	}
	return c.Sleep(ctx, duration)
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
