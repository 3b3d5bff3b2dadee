package service

import (
	"bytes"
	"context"
	"net/url"
	"strconv"

	"udf_feed/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Configuration returns the feed capabilities. A failed or malformed /config
// response degrades to an empty capability set.
func (c *Client) Configuration(ctx context.Context) models.FeedConfiguration {
	var cfg models.FeedConfiguration
	if err := c.send(ctx, "/config", nil, &cfg); err != nil {
		return models.FeedConfiguration{}
	}
	return cfg
}

// SearchSymbols queries /search. Both {"result": [...]} and a bare array are
// accepted; failures yield an empty list.
func (c *Client) SearchSymbols(ctx context.Context, query, symbolType, exchange string, limit int) []models.SymbolSummary {
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", symbolType)
	params.Set("exchange", exchange)
	params.Set("limit", strconv.Itoa(limit))

	b, err := c.Get(ctx, "/search", params)
	if err != nil {
		return []models.SymbolSummary{}
	}

	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var list []models.SymbolSummary
		if err := sonic.Unmarshal(b, &list); err != nil || list == nil {
			return []models.SymbolSummary{}
		}
		return list
	}

	var wrap struct {
		Result []models.SymbolSummary `json:"result"`
	}
	if err := sonic.Unmarshal(b, &wrap); err != nil || wrap.Result == nil {
		return []models.SymbolSummary{}
	}
	return wrap.Result
}

// ServerTime returns the server clock in milliseconds. The body is a plain
// integer number of seconds.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	b, err := c.Get(ctx, "/time", nil)
	if err != nil {
		return 0, err
	}
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	sec, err := strconv.ParseInt(leadingInt(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(models.ErrNetwork, "parse server time %q", truncate(b, 40))
	}
	return sec * 1000, nil
}

// leadingInt keeps an optional sign and the digits that follow, like parseInt.
func leadingInt(s string) string {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
