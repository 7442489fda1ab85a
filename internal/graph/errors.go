package graph

import (
	"fmt"
	"strings"
)

// CircularDependencyError represents a cycle in the dependency graph.
// Path lists the cycle starting and ending before Node repeats.
type CircularDependencyError struct {
	Node NodeKey
	Path []NodeKey
}

func (e CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected: ")

	if len(e.Path) == 0 {
		b.WriteString(fmt.Sprintf("%s -> %s", e.Node, e.Node))
		return b.String()
	}

	for _, node := range e.Path {
		b.WriteString(node.String())
		b.WriteString(" -> ")
	}
	b.WriteString(e.Path[0].String())
	return b.String()
}
