package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot-io/stackpilot/internal/ir"
)

func spec(name string, kind ir.Kind, deps ...string) *ir.ResourceSpec {
	return &ir.ResourceSpec{Name: name, Kind: kind, DependsOn: deps}
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestBuildGraph_NoDependencies(t *testing.T) {
	graph, err := BuildGraph([]*ir.ResourceSpec{
		spec("a", ir.KindNetwork),
		spec("b", ir.KindNetwork),
		spec("c", ir.KindNetwork),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, graph.CreationOrder())
}

func TestBuildGraph_DependencyOrdering(t *testing.T) {
	graph, err := BuildGraph([]*ir.ResourceSpec{
		spec("instance", ir.KindComputeInstance, "subnet", "role"),
		spec("subnet", ir.KindSubnet, "vpc"),
		spec("vpc", ir.KindNetwork),
		spec("role", ir.KindIdentityRole),
	})
	require.NoError(t, err)

	order := graph.CreationOrder()
	require.Len(t, order, 4)

	assert.Less(t, indexOf(order, "vpc"), indexOf(order, "subnet"))
	assert.Less(t, indexOf(order, "subnet"), indexOf(order, "instance"))
	assert.Less(t, indexOf(order, "role"), indexOf(order, "instance"))
}

func TestBuildGraph_DeletionOrderIsReversed(t *testing.T) {
	graph, err := BuildGraph([]*ir.ResourceSpec{
		spec("vpc", ir.KindNetwork),
		spec("subnet", ir.KindSubnet, "vpc"),
		spec("instance", ir.KindComputeInstance, "subnet"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"vpc", "subnet", "instance"}, graph.CreationOrder())
	assert.Equal(t, []string{"instance", "subnet", "vpc"}, graph.DeletionOrder())
}

func TestBuildGraph_Deterministic(t *testing.T) {
	specs := []*ir.ResourceSpec{
		spec("z", ir.KindNetwork),
		spec("a", ir.KindNetwork),
		spec("m", ir.KindSubnet, "z"),
	}

	first, err := BuildGraph(specs)
	require.NoError(t, err)

	// Same input must always produce the same order.
	for i := 0; i < 10; i++ {
		graph, err := BuildGraph(specs)
		require.NoError(t, err)
		assert.Equal(t, first.CreationOrder(), graph.CreationOrder())
	}

	// Independent nodes keep their input order.
	assert.Equal(t, []string{"z", "a", "m"}, first.CreationOrder())
}

func TestBuildGraph_UnresolvedDependency(t *testing.T) {
	_, err := BuildGraph([]*ir.ResourceSpec{
		spec("subnet", ir.KindSubnet, "vpc"),
	})
	require.Error(t, err)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "subnet", depErr.Resource)
	assert.Equal(t, "vpc", depErr.Missing)
	assert.True(t, IsGraphError(err))
}

func TestBuildGraph_Cycle(t *testing.T) {
	_, err := BuildGraph([]*ir.ResourceSpec{
		spec("x", ir.KindNetwork, "y"),
		spec("y", ir.KindSubnet, "x"),
	})
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Path, "x")
	assert.Contains(t, cycleErr.Path, "y")
	assert.True(t, IsGraphError(err))
}

func TestBuildGraph_SelfCycle(t *testing.T) {
	_, err := BuildGraph([]*ir.ResourceSpec{
		spec("a", ir.KindNetwork, "a"),
	})
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Path, "a")
}

func TestGraph_TransitiveDependents(t *testing.T) {
	graph, err := BuildGraph([]*ir.ResourceSpec{
		spec("vpc", ir.KindNetwork),
		spec("subnet", ir.KindSubnet, "vpc"),
		spec("instance", ir.KindComputeInstance, "subnet"),
		spec("role", ir.KindIdentityRole),
	})
	require.NoError(t, err)

	dependents := graph.TransitiveDependents("vpc")
	assert.ElementsMatch(t, []string{"subnet", "instance"}, dependents)
	assert.Empty(t, graph.TransitiveDependents("role"))
}
