package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/spec"
)

func TestNodeContext_RejectsUnfinishedDependency(t *testing.T) {
	e := New(registry.New(), Options{})
	plan, err := e.Plan(&spec.GraphSpec{
		Nodes: []spec.NodeSpec{{ID: "up", Type: "T"}, {ID: "down", Type: "T"}},
		Edges: []spec.EdgeSpec{{From: "up", To: "down"}},
	})
	require.NoError(t, err)

	r := newRun("run-1", plan, e)
	r.results["up"].Status = node.Error

	_, err = r.nodeContext("down", "T", nil)
	require.Error(t, err)
	assert.Equal(t, "dependency 'up' did not complete successfully (status: error)", err.Error())
}

func TestStart_InvariantViolationFailsNode(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("T", func(node.Params) (node.Node, error) {
		return node.Func(func(context.Context, *node.Context) (*node.Output, error) {
			return &node.Output{}, nil
		}), nil
	}))
	e := New(reg, Options{})
	plan, err := e.Plan(&spec.GraphSpec{
		Nodes: []spec.NodeSpec{{ID: "up", Type: "T"}, {ID: "down", Type: "T"}},
		Edges: []spec.EdgeSpec{{From: "up", To: "down"}},
	})
	require.NoError(t, err)

	r := newRun("run-1", plan, e)
	r.results["up"].Status = node.Running

	jobs := make(chan job, 2)
	r.start(context.Background(), jobs, "down")

	assert.Empty(t, jobs, "the node must never be handed to a worker")
	assert.Equal(t, node.Error, r.results["down"].Status)
	assert.Equal(t, KindInvariant, r.results["down"].Kind)
	require.Len(t, r.store.Snapshot().Errors(), 1)
}

func TestStart_FactoryErrorFailsNode(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("Picky", func(p node.Params) (node.Node, error) {
		return nil, assert.AnError
	}))
	e := New(reg, Options{})
	plan, err := e.Plan(&spec.GraphSpec{Nodes: []spec.NodeSpec{{ID: "p", Type: "Picky"}}})
	require.NoError(t, err)

	res := newRun("run-1", plan, e).execute(context.Background())
	assert.Equal(t, node.Error, res.Nodes["p"].Status)
	assert.Equal(t, KindExecution, res.Nodes["p"].Kind)
	assert.Contains(t, res.Nodes["p"].Error, "failed to build node")
}
