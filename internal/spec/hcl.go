package spec

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclRoot decodes the top-level blocks of an HCL specification file.
type hclRoot struct {
	Nodes []*hclNode `hcl:"node,block"`
	Edges []*hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	ID        string         `hcl:"id,label"`
	Type      string         `hcl:"type"`
	Params    hcl.Expression `hcl:"params,optional"`
	DependsOn []string       `hcl:"depends_on,optional"`
}

type hclEdge struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// parseHCL decodes an HCL document. environ is exposed to params expressions
// as the `env` object, e.g. `params = { ticker = env.TICKER }`.
func parseHCL(data []byte, filename string, environ []string) (*GraphSpec, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL specification %s: %w", filename, diags)
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL specification %s: %w", filename, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envObject(environ)},
	}

	g := &GraphSpec{}
	for _, n := range root.Nodes {
		params, err := decodeParams(n.Params, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("node %q in %s: %w", n.ID, filename, err)
		}
		g.Nodes = append(g.Nodes, NodeSpec{ID: n.ID, Type: n.Type, Params: params})
		for _, dep := range n.DependsOn {
			g.Edges = append(g.Edges, EdgeSpec{From: dep, To: n.ID})
		}
	}
	for _, e := range root.Edges {
		g.Edges = append(g.Edges, EdgeSpec{From: e.From, To: e.To})
	}
	return g, nil
}

func envObject(environ []string) cty.Value {
	vals := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vals[k] = cty.StringVal(v)
	}
	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}

func decodeParams(expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating params: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("params must be an object, got %s", val.Type().FriendlyName())
	}
	out, err := ctyValueToInterface(val)
	if err != nil {
		return nil, fmt.Errorf("converting params: %w", err)
	}
	params, _ := out.(map[string]any)
	return params, nil
}

// ctyValueToInterface converts a cty.Value to the plain Go representation
// produced by encoding/json: float64 numbers, string, bool, []any and
// map[string]any.
func ctyValueToInterface(val cty.Value) (any, error) {
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			conv, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = conv
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := make([]any, 0)
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			conv, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", ty.FriendlyName())
}
