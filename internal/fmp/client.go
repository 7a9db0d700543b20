package fmp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/httpclient"
	"resty.dev/v3"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://financialmodelingprep.com/api/v3"

// ErrNotConfigured is returned by every call when no API key was provided.
var ErrNotConfigured = errors.New("FMP API key is not configured (set FMP_API_KEY)")

// ErrNoData is returned when the API answers with an empty list.
var ErrNoData = errors.New("no data returned")

// Record is one JSON object returned by the API.
type Record = map[string]any

// Fetcher is the subset of the API used by node modules.
type Fetcher interface {
	Profile(ctx context.Context, ticker string) (Record, error)
	IncomeStatement(ctx context.Context, ticker, period string, limit int) ([]Record, error)
	BalanceSheet(ctx context.Context, ticker, period string, limit int) ([]Record, error)
	CashFlow(ctx context.Context, ticker, period string, limit int) ([]Record, error)
}

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the API over a shared, pooled HTTP client.
type Client struct {
	apiKey string
	rc     *resty.Client
}

// New creates a Client. Unset fields take their defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	rc := resty.NewWithClient(httpclient.New(cfg.Timeout)).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")

	return &Client{apiKey: cfg.APIKey, rc: rc}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.rc.Close()
}

// Profile returns the company profile of ticker.
func (c *Client) Profile(ctx context.Context, ticker string) (Record, error) {
	records, err := c.list(ctx, "/profile/{ticker}", ticker, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching profile for %s: %w", ticker, err)
	}
	return records[0], nil
}

// IncomeStatement returns up to limit income statements, newest first.
func (c *Client) IncomeStatement(ctx context.Context, ticker, period string, limit int) ([]Record, error) {
	return c.statement(ctx, "income-statement", ticker, period, limit)
}

// BalanceSheet returns up to limit balance sheet statements, newest first.
func (c *Client) BalanceSheet(ctx context.Context, ticker, period string, limit int) ([]Record, error) {
	return c.statement(ctx, "balance-sheet-statement", ticker, period, limit)
}

// CashFlow returns up to limit cash flow statements, newest first.
func (c *Client) CashFlow(ctx context.Context, ticker, period string, limit int) ([]Record, error) {
	return c.statement(ctx, "cash-flow-statement", ticker, period, limit)
}

func (c *Client) statement(ctx context.Context, kind, ticker, period string, limit int) ([]Record, error) {
	query := map[string]string{
		"period": period,
		"limit":  fmt.Sprint(limit),
	}
	records, err := c.list(ctx, "/"+kind+"/{ticker}", ticker, query)
	if err != nil {
		return nil, fmt.Errorf("fetching %s for %s: %w", kind, ticker, err)
	}
	return records, nil
}

// list performs a GET that is expected to return a non-empty JSON array.
func (c *Client) list(ctx context.Context, path, ticker string, query map[string]string) ([]Record, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if ticker == "" {
		return nil, errors.New("ticker must not be empty")
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Calling FMP API.", "path", path, "ticker", ticker)

	var records []Record
	req := c.rc.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParam("apikey", c.apiKey).
		SetResult(&records)
	for k, v := range query {
		req.SetQueryParam(k, v)
	}

	res, err := req.Get(path)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("unexpected status %s: %s", res.Status(), truncate(res.String(), 200))
	}
	if len(records) == 0 {
		return nil, ErrNoData
	}

	logger.Debug("FMP API call succeeded.", "path", path, "records", len(records))
	return records, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
