// Package graph holds the static dependency graph of registrations whose
// dependencies are known up front, such as constructors.
package graph

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/dadhi/DryIoc-sub012/internal/typecache"
)

// DependencyGraph manages the dependency relationships between services.
// It provides cycle detection, topological sorting, and dependency analysis.
type DependencyGraph struct {
	mu    sync.RWMutex
	nodes map[NodeKey]*Node
	order []NodeKey // insertion order, for deterministic output
}

// NodeKey uniquely identifies a node in the graph. Key must be comparable.
type NodeKey struct {
	Type reflect.Type
	Key  any // for keyed services
}

// Node represents a service in the dependency graph
type Node struct {
	Key NodeKey

	// Label is free-form text shown by the visualizer, such as a lifetime.
	Label string

	// Added is false for nodes that are only referenced as a dependency.
	Added bool

	Dependencies []NodeKey // services this node depends on
	Dependents   []NodeKey // services that depend on this node
}

// New creates a new dependency graph
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[NodeKey]*Node),
	}
}

// Add adds a service and its dependencies, replacing the dependencies of a
// service added before under the same key.
func (g *DependencyGraph) Add(key NodeKey, label string, dependencies []NodeKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node := g.node(key)
	for _, dep := range node.Dependencies {
		if d := g.nodes[dep]; d != nil {
			d.Dependents = slices.DeleteFunc(d.Dependents, func(k NodeKey) bool { return k == key })
		}
	}

	node.Added = true
	node.Label = label
	node.Dependencies = slices.Clone(dependencies)

	for _, dep := range dependencies {
		d := g.node(dep)
		d.Dependents = append(d.Dependents, key)
	}
}

// node returns the node for key, creating a placeholder. Must hold mu.
func (g *DependencyGraph) node(key NodeKey) *Node {
	if n, ok := g.nodes[key]; ok {
		return n
	}
	n := &Node{Key: key}
	g.nodes[key] = n
	g.order = append(g.order, key)
	return n
}

// Node returns the node for key, or nil.
func (g *DependencyGraph) Node(key NodeKey) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[key]
}

// Size returns the number of nodes, referenced-only ones included.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Missing returns the dependencies that were referenced but never added.
func (g *DependencyGraph) Missing() []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var missing []NodeKey
	for _, key := range g.order {
		if !g.nodes[key].Added {
			missing = append(missing, key)
		}
	}
	return missing
}

// TopologicalSort returns nodes in dependency order (dependencies first)
func (g *DependencyGraph) TopologicalSort() ([]*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Kahn's algorithm over the number of unsorted dependencies.
	remaining := make(map[NodeKey]int, len(g.nodes))
	var queue []NodeKey
	for _, key := range g.order {
		n := len(g.nodes[key].Dependencies)
		remaining[key] = n
		if n == 0 {
			queue = append(queue, key)
		}
	}

	result := make([]*Node, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.nodes[current]
		result = append(result, node)

		for _, dependent := range node.Dependents {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("circular dependency detected: graph contains %d nodes but only %d could be sorted",
			len(g.nodes), len(result))
	}
	return result, nil
}

// DetectCycles checks if the graph contains any cycles. The first cycle found
// is returned as a CircularDependencyError.
func (g *DependencyGraph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[NodeKey]int, len(g.nodes))
	var path []NodeKey

	var visit func(key NodeKey) []NodeKey
	visit = func(key NodeKey) []NodeKey {
		switch state[key] {
		case visiting:
			start := slices.Index(path, key)
			return slices.Clone(path[start:])
		case visited:
			return nil
		}

		state[key] = visiting
		path = append(path, key)
		for _, dep := range g.nodes[key].Dependencies {
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[key] = visited
		return nil
	}

	for _, key := range g.order {
		if cycle := visit(key); cycle != nil {
			return CircularDependencyError{Node: cycle[0], Path: cycle}
		}
	}
	return nil
}

// IsAcyclic reports whether the graph has no cycles.
func (g *DependencyGraph) IsAcyclic() bool {
	return g.DetectCycles() == nil
}

// TransitiveDependencies returns every service key reachable from key, in
// breadth-first order.
func (g *DependencyGraph) TransitiveDependencies(key NodeKey) []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start, ok := g.nodes[key]
	if !ok {
		return nil
	}

	seen := map[NodeKey]bool{key: true}
	queue := slices.Clone(start.Dependencies)
	var result []NodeKey
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		result = append(result, current)
		if n := g.nodes[current]; n != nil {
			queue = append(queue, n.Dependencies...)
		}
	}
	return result
}

// String returns a string representation of the node key
func (k NodeKey) String() string {
	if k.Key != nil {
		return fmt.Sprintf("%s[%v]", typecache.Name(k.Type), k.Key)
	}
	return typecache.Name(k.Type)
}

// String returns a string representation of the node
func (n *Node) String() string {
	return fmt.Sprintf("Node{%s, deps:%d, dependents:%d}",
		n.Key.String(), len(n.Dependencies), len(n.Dependents))
}
