package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"udf_feed/internal/models"
	"udf_feed/internal/modules/config"
	"udf_feed/pkg/logger"
	"udf_feed/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Client talks to a UDF-compatible HTTP endpoint. Every failure on the way
// (dial, non-2xx status, unreadable or malformed body) collapses to
// models.ErrNetwork.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return New(cfg.UDF.BaseURL, &http.Client{Timeout: cfg.UDF.Timeout})
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Get issues GET <baseURL><endpoint>?<params> and returns the raw body.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(models.ErrNetwork, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	ctx, finish := tracing.StartHTTPClientSpan(ctx, "udf GET "+endpoint, req)
	req = req.WithContext(ctx)

	resp, err := c.http.Do(req)
	if err != nil {
		finish(0, err)
		return nil, errors.Wrapf(models.ErrNetwork, "do request: %v", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		finish(resp.StatusCode, err)
		return nil, errors.Wrapf(models.ErrNetwork, "read body: %v", err)
	}
	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("http %d: %s", resp.StatusCode, truncate(b, 200))
		finish(resp.StatusCode, err)
		return nil, errors.Wrap(models.ErrNetwork, err.Error())
	}
	finish(resp.StatusCode, nil)
	return b, nil
}

// send is Get followed by a JSON decode into out.
func (c *Client) send(ctx context.Context, endpoint string, params url.Values, out any) error {
	b, err := c.Get(ctx, endpoint, params)
	if err != nil {
		logger.Debug("udf %s failed: %v", endpoint, err)
		return err
	}
	if err := sonic.Unmarshal(b, out); err != nil {
		logger.Debug("udf %s: malformed body: %v", endpoint, err)
		return errors.Wrapf(models.ErrNetwork, "decode %s: %v", endpoint, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
