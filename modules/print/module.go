// Package print registers the Print node type, a debugging aid that writes
// its dependency results and visible state to an output stream.
package print

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/state"
)

// TypePrint is the registered type name.
const TypePrint = "Print"

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed lines. Defaults to os.Stdout.
	Out io.Writer

	mu sync.Mutex
}

// Register registers the Print node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(TypePrint, m.newPrint)
}

func (m *Module) newPrint(params node.Params) (node.Node, error) {
	label, err := params.String("label", "")
	if err != nil {
		return nil, err
	}
	withState, err := params.Bool("state", false)
	if err != nil {
		return nil, err
	}

	return node.Func(func(ctx context.Context, nc *node.Context) (*node.Output, error) {
		ctxlog.FromContext(ctx).Info("Printing input", "deps", len(nc.Deps))
		heading := label
		if heading == "" {
			heading = nc.NodeID
		}
		if err := m.print(heading, nc.Deps, withState, nc.State); err != nil {
			return nil, err
		}

		passthrough := make(map[string]any, len(nc.Deps))
		for id, v := range nc.Deps {
			passthrough[id] = v
		}
		return &node.Output{Value: passthrough}, nil
	}), nil
}

// print writes one block per call. Blocks of concurrent nodes never interleave.
func (m *Module) print(label string, deps map[string]any, withState bool, s state.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.Out
	if out == nil {
		out = os.Stdout
	}

	if _, err := fmt.Fprintf(out, "--- %s ---\n", label); err != nil {
		return err
	}
	if len(deps) == 0 {
		fmt.Fprintln(out, "      (null)")
	}

	// Sort keys for consistent output
	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "      %s = %s\n", id, render(deps[id]))
	}

	if withState {
		for _, field := range s.Fields() {
			v, _ := s.Get(field)
			fmt.Fprintf(out, "      state.%s = %s\n", field, render(v))
		}
	}
	return nil
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
