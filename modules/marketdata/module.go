// Package marketdata registers the node types that fetch company data from
// the Financial Modeling Prep API.
package marketdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/fmp"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/state"
)

// Node type names registered by Module.
const (
	TypeLoadTickerData      = "LoadTickerData"
	TypeLoadIncomeStatement = "LoadIncomeStatement"
	TypeLoadBalanceSheet    = "LoadBalanceSheet"
	TypeLoadCashFlow        = "LoadCashFlow"
)

// State fields written by the loaders.
const (
	FieldCurrentTicker      = "current_ticker"
	FieldTickerProfile      = "ticker_profile"
	FieldRawIncomeStatement = "raw_income_statement"
	FieldRawBalanceSheet    = "raw_balance_sheet"
	FieldRawCashFlow        = "raw_cash_flow"
)

const (
	defaultPeriod = "annual"
	defaultLimit  = 5
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Client fmp.Fetcher
}

// Register registers the loader node types.
func (m *Module) Register(r *registry.Registry) error {
	if m.Client == nil {
		return errors.New("marketdata: no FMP client configured")
	}

	if err := r.Register(TypeLoadTickerData, m.newTickerLoader); err != nil {
		return err
	}

	statements := []struct {
		typeName string
		field    string
		fetch    statementFunc
	}{
		{TypeLoadIncomeStatement, FieldRawIncomeStatement, m.Client.IncomeStatement},
		{TypeLoadBalanceSheet, FieldRawBalanceSheet, m.Client.BalanceSheet},
		{TypeLoadCashFlow, FieldRawCashFlow, m.Client.CashFlow},
	}
	for _, s := range statements {
		if err := r.Register(s.typeName, newStatementLoader(s.field, s.fetch)); err != nil {
			return err
		}
	}
	return nil
}

// newTickerLoader builds a LoadTickerData node. The ticker param is required.
func (m *Module) newTickerLoader(params node.Params) (node.Node, error) {
	ticker, err := params.String("ticker", "")
	if err != nil {
		return nil, err
	}
	if ticker == "" {
		return nil, errors.New("param 'ticker' is required")
	}

	return node.Func(func(ctx context.Context, nc *node.Context) (*node.Output, error) {
		logger := ctxlog.FromContext(ctx)
		logger.Info("Loading ticker profile.", "ticker", ticker)

		profile, err := m.Client.Profile(ctx, ticker)
		if err != nil {
			return nil, err
		}
		return &node.Output{
			Value: profile,
			State: state.Update{
				FieldCurrentTicker: ticker,
				FieldTickerProfile: profile,
			},
		}, nil
	}), nil
}

type statementFunc func(ctx context.Context, ticker, period string, limit int) ([]fmp.Record, error)

// newStatementLoader returns a factory for a node that fetches one kind of
// financial statement and stores it under field.
func newStatementLoader(field string, fetch statementFunc) node.Factory {
	return func(params node.Params) (node.Node, error) {
		ticker, err := params.String("ticker", "")
		if err != nil {
			return nil, err
		}
		period, err := params.String("period", defaultPeriod)
		if err != nil {
			return nil, err
		}
		limit, err := params.Int("limit", defaultLimit)
		if err != nil {
			return nil, err
		}
		if limit < 1 {
			return nil, fmt.Errorf("param 'limit' must be at least 1, got %d", limit)
		}

		return node.Func(func(ctx context.Context, nc *node.Context) (*node.Output, error) {
			t := ticker
			if t == "" {
				t = nc.State.String(FieldCurrentTicker)
			}
			if t == "" {
				return nil, fmt.Errorf("missing required state keys: %s", FieldCurrentTicker)
			}

			logger := ctxlog.FromContext(ctx)
			logger.Info("Loading statements.", "field", field, "ticker", t, "period", period, "limit", limit)

			records, err := fetch(ctx, t, period, limit)
			if err != nil {
				return nil, err
			}
			return &node.Output{
				Value: records,
				State: state.Update{field: records},
			}, nil
		}), nil
	}
}
