package dryioc

import (
	"errors"
	"io"
	"reflect"

	"github.com/dadhi/DryIoc-sub012/internal/graph"
)

// Dependency is a service a registration is known to resolve.
type Dependency struct {
	ServiceType reflect.Type
	ServiceKey  any

	// Optional dependencies may be missing.
	Optional bool

	// Many dependencies collect every registration of ServiceType and may
	// be empty.
	Many bool
}

// Validate checks the declared dependencies of every runtime registration
// without constructing anything. It reports, joined into one error:
//
//   - required dependencies that are not registered (UnresolvedServiceError)
//   - singletons depending on scoped services (CaptiveDependencyError)
//   - dependency cycles (CircularDependencyError)
//
// Registrations without declared dependencies, such as plain recipes, are
// taken as having none.
func (c *Container) Validate() error {
	g, errs := c.dependencyGraph()

	if err := g.DetectCycles(); err != nil {
		var cycle graph.CircularDependencyError
		if errors.As(err, &cycle) {
			chain := make([]ResolutionFrame, len(cycle.Path))
			for i, k := range cycle.Path {
				chain[i] = ResolutionFrame{ServiceType: k.Type, ServiceKey: k.Key}
			}
			errs = append(errs, CircularDependencyError{
				ServiceType: cycle.Node.Type,
				ServiceKey:  cycle.Node.Key,
				Chain:       chain,
			})
		}
	}

	if len(errs) > 0 {
		c.logger.Warn("container validation failed", "errors", len(errs))
	}
	return errors.Join(errs...)
}

// WriteDependencyGraph writes the declared dependencies of the runtime
// registrations in Graphviz DOT format.
func (c *Container) WriteDependencyGraph(w io.Writer) error {
	g, _ := c.dependencyGraph()
	return graph.NewVisualizer(g).WriteDOT(w)
}

func (c *Container) dependencyGraph() (*graph.DependencyGraph, []error) {
	g := graph.New()
	var errs []error

	for _, reg := range c.registry.All() {
		var edges []graph.NodeKey

		for _, d := range reg.Dependencies {
			if d.Many {
				for _, dep := range c.registry.LookupMany(d.ServiceType) {
					edges = append(edges, graph.NodeKey{Type: dep.ServiceType, Key: dep.ServiceKey})
				}
				continue
			}

			if !c.IsRegistered(d.ServiceType, d.ServiceKey) {
				if !d.Optional {
					errs = append(errs, UnresolvedServiceError{
						ServiceType: d.ServiceType,
						ServiceKey:  d.ServiceKey,
						Chain:       []ResolutionFrame{{ServiceType: reg.ServiceType, ServiceKey: reg.ServiceKey}},
						Available:   c.registry.ServiceTypes(),
					})
				}
				continue
			}

			if dep, ok := c.registry.LookupKeyed(d.ServiceType, d.ServiceKey); ok && captures(reg, dep) {
				errs = append(errs, CaptiveDependencyError{
					Service:    ResolutionFrame{ServiceType: reg.ServiceType, ServiceKey: reg.ServiceKey},
					Dependency: ResolutionFrame{ServiceType: dep.ServiceType, ServiceKey: dep.ServiceKey},
				})
			}

			edges = append(edges, graph.NodeKey{Type: d.ServiceType, Key: d.ServiceKey})
		}

		g.Add(graph.NodeKey{Type: reg.ServiceType, Key: reg.ServiceKey}, reg.Lifetime.String(), edges)
	}

	return g, errs
}

// captures reports whether a singleton would keep a scoped dependency alive
// past its scope.
func captures(service, dep *Registration) bool {
	if service.Lifetime != Singleton || dep.Lifetime != Scoped {
		return false
	}
	return !keysEqual(dep.scopedTo, SingletonScopeName)
}
