package graph

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrStopPaging may be returned by an item callback to end pagination early
// without an error.
var ErrStopPaging = errors.New("stop paging")

type PaginationOptions struct {
	FollowNext bool
	// Limit caps delivered items; MaxPages caps requests. Zero means no cap.
	Limit    int
	MaxPages int
	PageSize int
}

type PaginationResult struct {
	PagesFetched int    `json:"pages_fetched"`
	ItemsFetched int    `json:"items_fetched"`
	Next         string `json:"next,omitempty"`
}

type page struct {
	items []map[string]any
	next  string
}

func decodePage(body map[string]any) page {
	out := page{}
	if raw, ok := body["data"].([]any); ok {
		out.items = make([]map[string]any, 0, len(raw))
		for _, entry := range raw {
			if item, ok := entry.(map[string]any); ok {
				out.items = append(out.items, item)
			}
		}
	}
	if paging, ok := body["paging"].(map[string]any); ok {
		out.next, _ = paging["next"].(string)
	}
	return out
}

// FetchWithPagination streams every item of a list edge to onItem, following
// paging.next when FollowNext is set.
func (c *Client) FetchWithPagination(ctx context.Context, req Request, options PaginationOptions, onItem func(map[string]any) error) (*PaginationResult, error) {
	query := make(map[string]string, len(req.Query)+1)
	for key, value := range req.Query {
		query[key] = value
	}
	if options.PageSize > 0 && query["limit"] == "" {
		query["limit"] = strconv.Itoa(options.PageSize)
	}
	req.Query = query

	result := &PaginationResult{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := c.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		result.PagesFetched++
		current := decodePage(resp.Body)
		result.Next = current.next

		for _, item := range current.items {
			if options.Limit > 0 && result.ItemsFetched >= options.Limit {
				return result, nil
			}
			result.ItemsFetched++
			if onItem == nil {
				continue
			}
			if err := onItem(item); err != nil {
				if errors.Is(err, ErrStopPaging) {
					return result, nil
				}
				return nil, err
			}
		}

		c.logger().Debug("graph page fetched",
			zap.String("path", req.Path),
			zap.Int("page", result.PagesFetched),
			zap.Int("items", len(current.items)),
		)
		if !options.FollowNext || current.next == "" {
			return result, nil
		}
		if options.MaxPages > 0 && result.PagesFetched >= options.MaxPages {
			return result, nil
		}
		req, err = nextRequest(current.next, req)
		if err != nil {
			return nil, err
		}
	}
}

// FetchAll collects every item of a list edge across all pages.
func (c *Client) FetchAll(ctx context.Context, req Request, pageSize int) ([]map[string]any, error) {
	items := make([]map[string]any, 0)
	_, err := c.FetchWithPagination(ctx, req, PaginationOptions{
		FollowNext: true,
		PageSize:   pageSize,
	}, func(item map[string]any) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// nextRequest turns a paging.next URL back into a Request. Credentials in the
// URL are dropped so the caller's token and proof are always used.
func nextRequest(nextURL string, previous Request) (Request, error) {
	parsed, err := url.Parse(nextURL)
	if err != nil {
		return Request{}, fmt.Errorf("parse paging.next url %q: %w", nextURL, err)
	}
	version, path, found := strings.Cut(strings.TrimPrefix(parsed.Path, "/"), "/")
	if !found || path == "" {
		return Request{}, fmt.Errorf("invalid paging.next path %q", parsed.Path)
	}
	if previous.Version != "" {
		version = previous.Version
	}

	values := parsed.Query()
	values.Del("access_token")
	values.Del("appsecret_proof")
	query := make(map[string]string, len(values))
	for key := range values {
		query[key] = values.Get(key)
	}

	return Request{
		Path:        path,
		Version:     version,
		Query:       query,
		AccessToken: previous.AccessToken,
		AppSecret:   previous.AppSecret,
	}, nil
}
