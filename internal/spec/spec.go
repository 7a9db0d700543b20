package spec

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// NodeSpec declares one vertex of the workflow graph.
type NodeSpec struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// EdgeSpec declares that To must run strictly after From.
type EdgeSpec struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// edgeWire accepts both "from" and the "from_" spelling sent by older
// frontends.
type edgeWire struct {
	From    string `json:"from" yaml:"from"`
	FromAlt string `json:"from_" yaml:"from_"`
	To      string `json:"to" yaml:"to"`
}

func (w edgeWire) edge() EdgeSpec {
	from := w.From
	if from == "" {
		from = w.FromAlt
	}
	return EdgeSpec{From: from, To: w.To}
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *EdgeSpec) UnmarshalJSON(data []byte) error {
	var w edgeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = w.edge()
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *EdgeSpec) UnmarshalYAML(value *yaml.Node) error {
	var w edgeWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	*e = w.edge()
	return nil
}

// String renders the edge as "from -> to".
func (e EdgeSpec) String() string {
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}

// GraphSpec is the complete declarative description of a workflow.
type GraphSpec struct {
	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`
	Edges []EdgeSpec `json:"edges" yaml:"edges"`
}

// Merge appends the nodes and edges of other onto g, preserving order.
func (g *GraphSpec) Merge(other *GraphSpec) {
	if other == nil {
		return
	}
	g.Nodes = append(g.Nodes, other.Nodes...)
	g.Edges = append(g.Edges, other.Edges...)
}

// NodeIDs returns the declared node ids in declaration order.
func (g *GraphSpec) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
