package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/node"
)

func noopFactory(node.Params) (node.Node, error) {
	return node.Func(func(context.Context, *node.Context) (*node.Output, error) {
		return &node.Output{}, nil
	}), nil
}

type testModule struct {
	types []string
}

func (m *testModule) Register(r *Registry) error {
	for _, t := range m.types {
		if err := r.Register(t, noopFactory); err != nil {
			return err
		}
	}
	return nil
}

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Print", noopFactory))

	f, err := r.Resolve("Print")
	require.NoError(t, err)
	n, err := f(nil)
	require.NoError(t, err)
	assert.NotNil(t, n)

	again, err := r.Resolve("Print")
	require.NoError(t, err, "resolution is repeatable")
	assert.NotNil(t, again)
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Print", noopFactory))

	err := r.Register("Print", noopFactory)
	var dupErr *DuplicateTypeError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "Print", dupErr.Type)
}

func TestRegister_Invalid(t *testing.T) {
	r := New()
	assert.Error(t, r.Register("", noopFactory))
	assert.Error(t, r.Register("Nil", nil))
	assert.Empty(t, r.Types())
}

func TestResolve_Unknown(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("B", noopFactory))
	require.NoError(t, r.Register("A", noopFactory))

	_, err := r.Resolve("Missing")
	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Missing", unknown.Type)
	assert.Equal(t, []string{"A", "B"}, unknown.Known)
	assert.EqualError(t, err, `node type "Missing" not found. Available types: [A, B]`)
}

func TestRegisterModules(t *testing.T) {
	t.Run("registers every module", func(t *testing.T) {
		r := New()
		err := r.RegisterModules(&testModule{types: []string{"X"}}, &testModule{types: []string{"Y", "Z"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"X", "Y", "Z"}, r.Types())
	})

	t.Run("duplicate across modules", func(t *testing.T) {
		r := New()
		err := r.RegisterModules(&testModule{types: []string{"X"}}, &testModule{types: []string{"X"}})
		var dupErr *DuplicateTypeError
		require.ErrorAs(t, err, &dupErr)
		assert.Contains(t, err.Error(), "registering module")
	})
}

func TestResolve_Concurrent(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Print", noopFactory))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve("Print")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
