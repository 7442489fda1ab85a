package graph

import (
	"fmt"
	"io"
	"strings"
)

// Visualizer provides methods to visualize the dependency graph
type Visualizer struct {
	graph *DependencyGraph
}

// NewVisualizer creates a new graph visualizer
func NewVisualizer(graph *DependencyGraph) *Visualizer {
	return &Visualizer{graph: graph}
}

// WriteDOT writes the graph in Graphviz DOT format. Referenced services that
// were never added are drawn in red.
func (v *Visualizer) WriteDOT(w io.Writer) error {
	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	var b strings.Builder
	b.WriteString("digraph dependencies {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	ids := make(map[NodeKey]string, len(v.graph.order))
	for i, key := range v.graph.order {
		id := fmt.Sprintf("n%d", i)
		ids[key] = id

		node := v.graph.nodes[key]
		fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%q, style=filled];\n",
			id, formatNodeLabel(node), nodeColor(node))
	}

	for _, key := range v.graph.order {
		for _, dep := range v.graph.nodes[key].Dependencies {
			fmt.Fprintf(&b, "  %s -> %s;\n", ids[key], ids[dep])
		}
	}

	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText writes one line per service listing its dependencies, in
// dependency order when the graph is acyclic.
func (v *Visualizer) WriteText(w io.Writer) error {
	nodes, err := v.graph.TopologicalSort()
	if err != nil {
		v.graph.mu.RLock()
		for _, key := range v.graph.order {
			nodes = append(nodes, v.graph.nodes[key])
		}
		v.graph.mu.RUnlock()
	}

	var b strings.Builder
	for _, node := range nodes {
		b.WriteString(formatNodeLabel(node))
		if len(node.Dependencies) > 0 {
			deps := make([]string, len(node.Dependencies))
			for i, d := range node.Dependencies {
				deps[i] = d.String()
			}
			b.WriteString(" <- ")
			b.WriteString(strings.Join(deps, ", "))
		}
		b.WriteString("\n")
	}

	_, err = io.WriteString(w, b.String())
	return err
}

func formatNodeLabel(node *Node) string {
	if node.Label == "" {
		return node.Key.String()
	}
	return fmt.Sprintf("%s (%s)", node.Key, node.Label)
}

func nodeColor(node *Node) string {
	if !node.Added {
		return "lightcoral"
	}
	if len(node.Dependencies) == 0 {
		return "lightgreen"
	}
	return "lightblue"
}
