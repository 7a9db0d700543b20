package app

import (
	"github.com/vk/assetgraph/internal/state"
	"github.com/vk/assetgraph/modules/financials"
	"github.com/vk/assetgraph/modules/marketdata"
	"github.com/vk/assetgraph/modules/report"
)

// sharedFields enumerates every field the built-in modules may write.
var sharedFields = []string{
	marketdata.FieldCurrentTicker,
	marketdata.FieldTickerProfile,
	marketdata.FieldRawIncomeStatement,
	marketdata.FieldRawBalanceSheet,
	marketdata.FieldRawCashFlow,
	financials.FieldProcessedFinancials,
	financials.FieldIncomeSummary,
	report.FieldMarkdownReport,
	report.FieldReportHTML,
}

// SharedSchema returns the strict schema of the shared-state mode. The
// error log is always declared with append policy.
func SharedSchema() *state.Schema {
	fields := make([]state.Field, 0, len(sharedFields))
	for _, name := range sharedFields {
		fields = append(fields, state.Field{Name: name, Policy: state.Overwrite})
	}
	return state.NewSchema(true, fields...)
}

// schemaFor returns the schema of a state mode.
func schemaFor(mode string) *state.Schema {
	if mode == StateModeIsolated {
		return state.Lenient()
	}
	return SharedSchema()
}
