// Package financials registers the node types that reshape raw statements
// into the figures used by reports.
package financials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/state"
	"github.com/vk/assetgraph/modules/marketdata"
)

// Node type names registered by Module.
const (
	TypePreprocessFinancials     = "PreprocessFinancials"
	TypeSummarizeIncomeStatement = "SummarizeIncomeStatement"
)

// State fields written by this package.
const (
	FieldProcessedFinancials = "processed_financials"
	FieldIncomeSummary       = "income_summary"
)

// Keys of the processed_financials object.
const (
	KeyTicker                = "ticker"
	KeyPeriods               = "periods"
	KeyLatestIncomeStatement = "latest_income_statement"
	KeyLatestBalanceSheet    = "latest_balance_sheet"
	KeyLatestCashFlow        = "latest_cash_flow"
)

const notAvailable = "N/A"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the financials node types.
func (m *Module) Register(r *registry.Registry) error {
	if err := r.Register(TypePreprocessFinancials, stateless(preprocess)); err != nil {
		return err
	}
	return r.Register(TypeSummarizeIncomeStatement, stateless(summarize))
}

// stateless adapts a function that takes no params into a node factory.
func stateless(fn node.Func) node.Factory {
	return func(node.Params) (node.Node, error) {
		return fn, nil
	}
}

// preprocess picks the newest statement of each kind from the raw fields.
func preprocess(ctx context.Context, nc *node.Context) (*node.Output, error) {
	raw, ok := nc.State.Get(marketdata.FieldRawIncomeStatement)
	if !ok || raw == nil {
		return nil, fmt.Errorf("missing required state keys: %s", marketdata.FieldRawIncomeStatement)
	}
	income := records(raw)
	if len(income) == 0 {
		return nil, errors.New("no income statements found for preprocessing")
	}

	processed := map[string]any{
		KeyPeriods:               len(income),
		KeyLatestIncomeStatement: income[0],
	}
	if ticker := nc.State.String(marketdata.FieldCurrentTicker); ticker != "" {
		processed[KeyTicker] = ticker
	} else if symbol, ok := income[0]["symbol"].(string); ok {
		processed[KeyTicker] = symbol
	}
	for field, key := range map[string]string{
		marketdata.FieldRawBalanceSheet: KeyLatestBalanceSheet,
		marketdata.FieldRawCashFlow:     KeyLatestCashFlow,
	} {
		v, _ := nc.State.Get(field)
		if rs := records(v); len(rs) > 0 {
			processed[key] = rs[0]
		}
	}

	ctxlog.FromContext(ctx).Info("Financials preprocessed.", "periods", len(income))
	return &node.Output{
		Value: processed,
		State: state.Update{FieldProcessedFinancials: processed},
	}, nil
}

// summarize renders a short rule-based summary of the latest income statement.
func summarize(ctx context.Context, nc *node.Context) (*node.Output, error) {
	raw, ok := nc.State.Get(FieldProcessedFinancials)
	if !ok || raw == nil {
		return nil, fmt.Errorf("missing required state keys: %s", FieldProcessedFinancials)
	}
	processed, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("processed financials data invalid format (expected object)")
	}
	latest, ok := processed[KeyLatestIncomeStatement].(map[string]any)
	if !ok || len(latest) == 0 {
		return nil, errors.New("latest_income_statement not found or invalid in processed_financials")
	}

	summary := Summary(latest)
	ctxlog.FromContext(ctx).Info("Income statement summarized.")
	return &node.Output{
		Value: summary,
		State: state.Update{FieldIncomeSummary: summary},
	}, nil
}

// Summary formats the headline figures of one income statement.
func Summary(statement map[string]any) string {
	date, _ := statement["date"].(string)
	if date == "" {
		date = "Unknown Date"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "For the period ending %s:\n", date)
	fmt.Fprintf(&b, "- Revenue: %s\n", FormatNumber(statement["revenue"]))
	fmt.Fprintf(&b, "- Gross Profit: %s\n", FormatNumber(statement["grossProfit"]))
	fmt.Fprintf(&b, "- Net Income: %s", FormatNumber(statement["netIncome"]))
	return b.String()
}

var printer = message.NewPrinter(language.English)

// FormatNumber renders v with thousands separators. Missing values render as
// N/A and non-numeric values are printed as they are.
func FormatNumber(v any) string {
	switch n := v.(type) {
	case nil:
		return notAvailable
	case int:
		return printer.Sprintf("%d", n)
	case int64:
		return printer.Sprintf("%d", n)
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < math.MaxInt64 {
			return printer.Sprintf("%d", int64(n))
		}
		return printer.Sprintf("%.2f", n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return printer.Sprintf("%d", i)
		}
		if f, err := n.Float64(); err == nil {
			return FormatNumber(f)
		}
		return n.String()
	default:
		return fmt.Sprint(v)
	}
}

// records normalizes a statement list as stored in state. Lists decoded
// from JSON arrive as []any.
func records(v any) []map[string]any {
	switch rs := v.(type) {
	case []map[string]any:
		return rs
	case []any:
		out := make([]map[string]any, 0, len(rs))
		for _, r := range rs {
			if m, ok := r.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
