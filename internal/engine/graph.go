package engine

import (
	"fmt"

	"github.com/stockpile-io/stockpile/internal/ir"
)

// DAG is the dependency graph over resource specs used to derive apply
// and teardown order.
type DAG struct {
	specs    []*ir.Spec
	nodes    map[ir.Key]*dagNode
	order    []ir.Key // topological order (creation order)
	revOrder []ir.Key // reverse topological order (destruction order)
}

type dagNode struct {
	key      ir.Key
	edges    []ir.Key // resources this node depends on
	revEdges []ir.Key // resources that depend on this node
}

// BuildDAG constructs the dependency graph from specs and fixes the
// topological order. Ready nodes are visited in declaration order, so the
// walk is deterministic across runs.
func BuildDAG(specs []*ir.Spec) (*DAG, error) {
	dag := &DAG{
		specs: specs,
		nodes: make(map[ir.Key]*dagNode),
	}

	for _, spec := range specs {
		if _, dup := dag.nodes[spec.Key]; dup {
			return nil, fmt.Errorf("duplicate resource key %s", spec.Key)
		}
		dag.nodes[spec.Key] = &dagNode{key: spec.Key}
	}

	for _, spec := range specs {
		node := dag.nodes[spec.Key]
		for _, dep := range spec.DependsOn {
			if _, ok := dag.nodes[dep]; !ok {
				return nil, fmt.Errorf("%s depends on unknown resource %s", spec.Key, dep)
			}
			node.edges = append(node.edges, dep)
		}
	}

	for _, spec := range specs {
		node := dag.nodes[spec.Key]
		for _, dep := range node.edges {
			dag.nodes[dep].revEdges = append(dag.nodes[dep].revEdges, node.key)
		}
	}

	order, err := dag.topoSort()
	if err != nil {
		return nil, err
	}
	dag.order = order

	dag.revOrder = make([]ir.Key, len(order))
	for i, key := range order {
		dag.revOrder[len(order)-1-i] = key
	}

	return dag, nil
}

// CreationOrder returns keys in dependency-respecting creation order.
func (d *DAG) CreationOrder() []ir.Key {
	return d.order
}

// DestructionOrder returns keys in reverse dependency order (safe for
// deletion).
func (d *DAG) DestructionOrder() []ir.Key {
	return d.revOrder
}

// Dependencies returns the declared dependencies of key.
func (d *DAG) Dependencies(key ir.Key) []ir.Key {
	if node, ok := d.nodes[key]; ok {
		return node.edges
	}
	return nil
}

// topoSort performs Kahn's algorithm over the spec graph.
func (d *DAG) topoSort() ([]ir.Key, error) {
	inDegree := make(map[ir.Key]int, len(d.nodes))
	for key, node := range d.nodes {
		inDegree[key] = len(node.edges)
	}

	var queue []ir.Key
	for _, spec := range d.specs {
		if inDegree[spec.Key] == 0 {
			queue = append(queue, spec.Key)
		}
	}

	var sorted []ir.Key
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		sorted = append(sorted, key)

		for _, dependent := range d.nodes[key].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("dependency cycle detected in resource graph")
	}

	return sorted, nil
}
