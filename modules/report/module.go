// Package report registers the node types that turn run state into a
// human-readable financial report.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/llm"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/state"
	"github.com/vk/assetgraph/modules/financials"
	"github.com/vk/assetgraph/modules/marketdata"
)

// Node type names registered by Module.
const (
	TypeGenerateMarkdownReport = "GenerateMarkdownReport"
	TypeGenerateLLMReport      = "GenerateLLMReport"
)

// State fields written by this package.
const (
	FieldMarkdownReport = "markdown_report"
	FieldReportHTML     = "report_html"
)

// Module implements the registry.Module interface for this package. The LLM
// report type is only registered when a Generator is set.
type Module struct {
	Generator llm.Generator
}

// Register registers the report node types.
func (m *Module) Register(r *registry.Registry) error {
	if err := r.Register(TypeGenerateMarkdownReport, newMarkdownReport); err != nil {
		return err
	}
	if m.Generator == nil {
		return nil
	}
	return r.Register(TypeGenerateLLMReport, m.newLLMReport)
}

func newMarkdownReport(params node.Params) (node.Node, error) {
	withHTML, err := params.Bool("html", false)
	if err != nil {
		return nil, err
	}

	return node.Func(func(ctx context.Context, nc *node.Context) (*node.Output, error) {
		report := Markdown(nc.State)
		update := state.Update{FieldMarkdownReport: report}
		if withHTML {
			html, err := RenderHTML(report)
			if err != nil {
				return nil, err
			}
			update[FieldReportHTML] = html
		}

		ctxlog.FromContext(ctx).Info("Markdown report generated.", "bytes", len(report), "html", withHTML)
		return &node.Output{Value: report, State: update}, nil
	}), nil
}

// Markdown renders the report for the ticker, income summary and error log
// visible in s.
func Markdown(s state.State) string {
	parts := []string{"# Financial Report"}

	if ticker := s.String(marketdata.FieldCurrentTicker); ticker != "" {
		parts = append(parts, "\n## Ticker: "+ticker)
	}

	if summary := s.String(financials.FieldIncomeSummary); summary != "" {
		parts = append(parts, "\n## Income Statement Summary", summary)
	} else {
		parts = append(parts, "\n*No income statement summary generated.*")
	}

	if errs := s.Errors(); len(errs) > 0 {
		parts = append(parts, "\n## Errors Encountered")
		for _, e := range errs {
			parts = append(parts, fmt.Sprintf("- `%s`", e))
		}
	}

	return strings.Join(parts, "\n")
}

// RenderHTML converts a markdown document to HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering report html: %w", err)
	}
	return buf.String(), nil
}

func (m *Module) newLLMReport(params node.Params) (node.Node, error) {
	instructions, err := params.String("instructions", "")
	if err != nil {
		return nil, err
	}

	return node.Func(func(ctx context.Context, nc *node.Context) (*node.Output, error) {
		prompt, err := Prompt(nc.State, instructions)
		if err != nil {
			return nil, err
		}

		text, err := m.Generator.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("generating report: %w", err)
		}
		if text == "" {
			return nil, errors.New("generating report: empty response")
		}

		ctxlog.FromContext(ctx).Info("LLM report generated.", "bytes", len(text))
		return &node.Output{
			Value: text,
			State: state.Update{FieldMarkdownReport: text},
		}, nil
	}), nil
}

// Prompt builds the analyst prompt from the financial data visible in s.
func Prompt(s state.State, instructions string) (string, error) {
	ticker := s.String(marketdata.FieldCurrentTicker)
	processed, hasProcessed := s.Get(financials.FieldProcessedFinancials)
	summary := s.String(financials.FieldIncomeSummary)
	if !hasProcessed && summary == "" {
		return "", fmt.Errorf("missing required state keys: %s or %s",
			financials.FieldProcessedFinancials, financials.FieldIncomeSummary)
	}

	var b strings.Builder
	b.WriteString("Write a concise financial report in markdown")
	if ticker != "" {
		fmt.Fprintf(&b, " for %s", ticker)
	}
	b.WriteString(".\n")
	if instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n")
	}
	if summary != "" {
		fmt.Fprintf(&b, "\nIncome statement summary:\n%s\n", summary)
	}
	if hasProcessed {
		data, err := json.MarshalIndent(processed, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding financial data: %w", err)
		}
		fmt.Fprintf(&b, "\nLatest financial statements (JSON):\n%s\n", data)
	}
	return b.String(), nil
}
