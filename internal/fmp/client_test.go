package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{APIKey: "secret", BaseURL: srv.URL + "/"})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestProfile(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile/AAPL", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol": "AAPL", "companyName": "Apple Inc."}]`))
	})

	profile, err := c.Profile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", profile["companyName"])
}

func TestStatements(t *testing.T) {
	testCases := []struct {
		name string
		path string
		call func(c *Client) ([]Record, error)
	}{
		{
			name: "income statement",
			path: "/income-statement/MSFT",
			call: func(c *Client) ([]Record, error) {
				return c.IncomeStatement(context.Background(), "MSFT", "quarter", 2)
			},
		},
		{
			name: "balance sheet",
			path: "/balance-sheet-statement/MSFT",
			call: func(c *Client) ([]Record, error) {
				return c.BalanceSheet(context.Background(), "MSFT", "quarter", 2)
			},
		},
		{
			name: "cash flow",
			path: "/cash-flow-statement/MSFT",
			call: func(c *Client) ([]Record, error) {
				return c.CashFlow(context.Background(), "MSFT", "quarter", 2)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tc.path, r.URL.Path)
				assert.Equal(t, "quarter", r.URL.Query().Get("period"))
				assert.Equal(t, "2", r.URL.Query().Get("limit"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`[{"date": "2024-06-30"}, {"date": "2024-03-31"}]`))
			})

			records, err := tc.call(c)
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "2024-06-30", records[0]["date"])
		})
	}
}

func TestErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		c := New(Config{})
		_, err := c.Profile(context.Background(), "AAPL")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("empty ticker", func(t *testing.T) {
		c := New(Config{APIKey: "k"})
		_, err := c.IncomeStatement(context.Background(), "", "annual", 5)
		assert.ErrorContains(t, err, "ticker must not be empty")
	})

	t.Run("empty list", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		})
		_, err := c.Profile(context.Background(), "NOPE")
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("http error", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid key", http.StatusUnauthorized)
		})
		_, err := c.CashFlow(context.Background(), "AAPL", "annual", 5)
		assert.ErrorContains(t, err, "unexpected status")
		assert.ErrorContains(t, err, "cash-flow-statement")
	})

	t.Run("canceled context", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Profile(ctx, "AAPL")
		assert.Error(t, err)
	})
}
