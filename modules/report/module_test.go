package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/state"
	"github.com/vk/assetgraph/modules/financials"
	"github.com/vk/assetgraph/modules/marketdata"
)

type fakeGenerator struct {
	prompt string
	reply  string
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

func stateWith(t *testing.T, update state.Update) state.State {
	t.Helper()
	schema := state.Lenient()
	s, err := schema.Merge(schema.Seed(), update)
	require.NoError(t, err)
	return s
}

func build(t *testing.T, m *Module, typeName string, params node.Params) node.Node {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.RegisterModules(m))
	factory, err := r.Resolve(typeName)
	require.NoError(t, err)
	n, err := factory(params)
	require.NoError(t, err)
	return n
}

func TestMarkdown(t *testing.T) {
	testCases := []struct {
		name   string
		update state.Update
		want   string
	}{
		{
			name: "full report",
			update: state.Update{
				marketdata.FieldCurrentTicker:  "AAPL",
				financials.FieldIncomeSummary: "For the period ending 2024-09-28:\n- Revenue: 1",
			},
			want: "# Financial Report\n" +
				"\n## Ticker: AAPL\n" +
				"\n## Income Statement Summary\n" +
				"For the period ending 2024-09-28:\n- Revenue: 1",
		},
		{
			name: "no summary with errors",
			update: state.Update{
				state.ErrorsField: []any{
					state.ErrorEntry{NodeID: "load", Kind: "execution", Message: "execution failed: boom"},
				},
			},
			want: "# Financial Report\n" +
				"\n*No income statement summary generated.*\n" +
				"\n## Errors Encountered\n" +
				"- `load: execution failed: boom`",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Markdown(stateWith(t, tc.update)))
		})
	}
}

func TestGenerateMarkdownReport(t *testing.T) {
	n := build(t, &Module{}, TypeGenerateMarkdownReport, node.Params{"html": true})

	out, err := n.Run(context.Background(), &node.Context{
		State: stateWith(t, state.Update{marketdata.FieldCurrentTicker: "MSFT"}),
	})
	require.NoError(t, err)

	md, ok := out.State[FieldMarkdownReport].(string)
	require.True(t, ok)
	assert.Contains(t, md, "## Ticker: MSFT")
	assert.Equal(t, md, out.Value)

	html, ok := out.State[FieldReportHTML].(string)
	require.True(t, ok)
	assert.Contains(t, html, "<h1>Financial Report</h1>")
	assert.Contains(t, html, "<h2>Ticker: MSFT</h2>")
}

func TestGenerateMarkdownReport_NoHTMLByDefault(t *testing.T) {
	n := build(t, &Module{}, TypeGenerateMarkdownReport, nil)

	out, err := n.Run(context.Background(), &node.Context{})
	require.NoError(t, err)
	assert.NotContains(t, out.State, FieldReportHTML)
}

func TestRegister_LLMReportNeedsGenerator(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.RegisterModules(&Module{}))
	assert.Equal(t, []string{TypeGenerateMarkdownReport}, r.Types())

	r = registry.New()
	require.NoError(t, r.RegisterModules(&Module{Generator: &fakeGenerator{}}))
	assert.Equal(t, []string{TypeGenerateLLMReport, TypeGenerateMarkdownReport}, r.Types())
}

func TestGenerateLLMReport(t *testing.T) {
	gen := &fakeGenerator{reply: "# AAPL\nSolid year."}
	n := build(t, &Module{Generator: gen}, TypeGenerateLLMReport, node.Params{"instructions": "Keep it short."})

	out, err := n.Run(context.Background(), &node.Context{
		State: stateWith(t, state.Update{
			marketdata.FieldCurrentTicker:        "AAPL",
			financials.FieldIncomeSummary:       "- Revenue: 1",
			financials.FieldProcessedFinancials: map[string]any{"periods": 5},
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, "# AAPL\nSolid year.", out.State[FieldMarkdownReport])
	assert.Contains(t, gen.prompt, "for AAPL.")
	assert.Contains(t, gen.prompt, "Keep it short.")
	assert.Contains(t, gen.prompt, "- Revenue: 1")
	assert.Contains(t, gen.prompt, `"periods": 5`)
}

func TestGenerateLLMReport_Errors(t *testing.T) {
	t.Run("missing data", func(t *testing.T) {
		gen := &fakeGenerator{reply: "x"}
		n := build(t, &Module{Generator: gen}, TypeGenerateLLMReport, nil)

		_, err := n.Run(context.Background(), &node.Context{})
		assert.ErrorContains(t, err, "missing required state keys")
		assert.Empty(t, gen.prompt)
	})

	t.Run("generator failure", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("rate limited")}
		n := build(t, &Module{Generator: gen}, TypeGenerateLLMReport, nil)

		_, err := n.Run(context.Background(), &node.Context{
			State: stateWith(t, state.Update{financials.FieldIncomeSummary: "s"}),
		})
		assert.EqualError(t, err, "generating report: rate limited")
	})

	t.Run("empty reply", func(t *testing.T) {
		n := build(t, &Module{Generator: &fakeGenerator{}}, TypeGenerateLLMReport, nil)

		_, err := n.Run(context.Background(), &node.Context{
			State: stateWith(t, state.Update{financials.FieldIncomeSummary: "s"}),
		})
		assert.EqualError(t, err, "generating report: empty response")
	})
}
