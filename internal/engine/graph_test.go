package engine

import (
	"testing"

	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storageKey(name string) ir.Key {
	return ir.Key{Kind: ir.KindStorage, Name: name}
}

func indexOf(t *testing.T, order []ir.Key, key ir.Key) int {
	t.Helper()
	for i, k := range order {
		if k == key {
			return i
		}
	}
	t.Fatalf("key %s not found in order %v", key, order)
	return -1
}

func TestBuildDAG_NoDependencies(t *testing.T) {
	specs := []*ir.Spec{
		{Key: storageKey("a")},
		{Key: storageKey("b")},
		{Key: storageKey("c")},
	}

	dag, err := BuildDAG(specs)
	require.NoError(t, err)

	// Independent specs come out in declaration order.
	assert.Equal(t, []ir.Key{storageKey("a"), storageKey("b"), storageKey("c")}, dag.CreationOrder())
}

func TestBuildDAG_OrderRespectsEdges(t *testing.T) {
	specs := []*ir.Spec{
		{Key: storageKey("a"), DependsOn: []ir.Key{storageKey("b")}},
		{Key: storageKey("b")},
		{Key: storageKey("c"), DependsOn: []ir.Key{storageKey("a")}},
	}

	dag, err := BuildDAG(specs)
	require.NoError(t, err)

	order := dag.CreationOrder()
	require.Len(t, order, 3)

	// b before a, a before c
	assert.Less(t, indexOf(t, order, storageKey("b")), indexOf(t, order, storageKey("a")))
	assert.Less(t, indexOf(t, order, storageKey("a")), indexOf(t, order, storageKey("c")))
}

func TestBuildDAG_DestructionOrderIsReversed(t *testing.T) {
	specs := []*ir.Spec{
		{Key: storageKey("base")},
		{Key: storageKey("mid"), DependsOn: []ir.Key{storageKey("base")}},
		{Key: storageKey("top"), DependsOn: []ir.Key{storageKey("mid")}},
	}

	dag, err := BuildDAG(specs)
	require.NoError(t, err)

	creation := dag.CreationOrder()
	destruction := dag.DestructionOrder()
	require.Len(t, destruction, len(creation))
	for i := range creation {
		assert.Equal(t, creation[i], destruction[len(destruction)-1-i])
	}
}

func TestBuildDAG_Deterministic(t *testing.T) {
	first, err := BuildDAG(Pipeline())
	require.NoError(t, err)
	second, err := BuildDAG(Pipeline())
	require.NoError(t, err)

	assert.Equal(t, first.CreationOrder(), second.CreationOrder())
}

func TestBuildDAG_Cycle(t *testing.T) {
	specs := []*ir.Spec{
		{Key: storageKey("a"), DependsOn: []ir.Key{storageKey("b")}},
		{Key: storageKey("b"), DependsOn: []ir.Key{storageKey("a")}},
	}

	_, err := BuildDAG(specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildDAG_UnknownDependency(t *testing.T) {
	specs := []*ir.Spec{
		{Key: storageKey("a"), DependsOn: []ir.Key{storageKey("ghost")}},
	}

	_, err := BuildDAG(specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource")
}

func TestBuildDAG_DuplicateKey(t *testing.T) {
	specs := []*ir.Spec{
		{Key: storageKey("a")},
		{Key: storageKey("a")},
	}

	_, err := BuildDAG(specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestBuildDAG_Dependencies(t *testing.T) {
	dag, err := BuildDAG(Pipeline())
	require.NoError(t, err)

	assert.ElementsMatch(t, []ir.Key{KeyInventoryTable}, dag.Dependencies(KeyLoaderFn))
	assert.ElementsMatch(t, []ir.Key{KeyUploadsBucket, KeyLoaderFn}, dag.Dependencies(KeyUploadTrigger))
	assert.Empty(t, dag.Dependencies(KeyUploadsBucket))
}
