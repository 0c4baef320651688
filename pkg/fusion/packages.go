package fusion

import (
	"github.com/cgfuse/cgfuse/pkg/cargo"
	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/graph"
)

// BuildPackages creates the challenge graph skeleton: the challenge package
// as the root node, every local library it transitively depends on, and all
// external dependencies classified against the platform allow-list, wired
// with Dependency edges.
//
// Policy guards run here because a violation means the fused output cannot
// compile on the target platform: an unsupported dependency of the
// challenge package itself is always fatal; an unsupported dependency of a
// local library, or a local library pulled in without being declared by the
// challenge package, is fatal unless Force downgrades it to a warning.
func BuildPackages(ws *cargo.Workspace, platform Platform, opts *Options) (*graph.Graph, error) {
	root := ws.Root
	g := graph.New(&graph.LocalPackage{
		Name:     root.Name,
		Manifest: ws.Manifests[root.Name],
		Metadata: ws.Meta,
	})

	nodes := map[string]graph.NodeID{root.Name: g.Root()}
	rootDeclared := make(map[string]bool)
	for _, d := range root.NormalDependencies() {
		rootDeclared[d.Name] = true
	}

	queue := []string{root.Name}
	seen := map[string]bool{root.Name: true}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		pkg, ok := ws.Package(name)
		if !ok {
			return nil, errors.New(errors.ErrCodeMetadata, "package %q missing from metadata", name)
		}
		from := nodes[name]

		for _, dep := range pkg.NormalDependencies() {
			if dep.IsLocal() {
				if name != root.Name && !rootDeclared[dep.Name] {
					if !opts.Force {
						return nil, errors.New(errors.ErrCodePolicy,
							"local library %q is pulled in by %q but not declared as a dependency of %q",
							dep.Name, name, root.Name)
					}
					opts.Logger.Warn("local library not declared by the challenge package",
						"library", dep.Name, "via", name)
				}
				id, ok := nodes[dep.Name]
				if !ok {
					id = g.AddNode(&graph.LocalPackage{
						Name:     dep.Name,
						Manifest: ws.Manifests[dep.Name],
					})
					nodes[dep.Name] = id
				}
				if err := g.AddEdge(from, id, graph.EdgeDependency); err != nil {
					return nil, errors.Wrap(errors.ErrCodeInternal, err, "dependency edge %s -> %s", name, dep.Name)
				}
				if !seen[dep.Name] {
					seen[dep.Name] = true
					queue = append(queue, dep.Name)
				}
				continue
			}

			if !platform.Supports(dep.Name) {
				if name == root.Name {
					return nil, errors.New(errors.ErrCodePolicy,
						"dependency %q of %q is not available on platform %s",
						dep.Name, name, platform.Name())
				}
				if !opts.Force {
					return nil, errors.New(errors.ErrCodePolicy,
						"dependency %q of library %q is not available on platform %s",
						dep.Name, name, platform.Name())
				}
				opts.Logger.Warn("library depends on an unsupported crate",
					"crate", dep.Name, "library", name, "platform", platform.Name())
			}

			id, ok := nodes[dep.Name]
			if !ok {
				if platform.Supports(dep.Name) {
					id = g.AddNode(&graph.ExternalSupportedPackage{Name: dep.Name})
				} else {
					id = g.AddNode(&graph.ExternalUnsupportedPackage{Name: dep.Name})
				}
				nodes[dep.Name] = id
			}
			if err := g.AddEdge(from, id, graph.EdgeDependency); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "dependency edge %s -> %s", name, dep.Name)
			}
		}
	}

	return g, nil
}
