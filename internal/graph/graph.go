package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/cascade-build/cascade/internal/asset"
	"github.com/cascade-build/cascade/internal/engine"
)

// Graph is a set of per-package cascades joined by dependency edges.
//
// Packages are registered with AddPackage before Run; Run validates the
// edge set, wires settlement propagation, and drives every cascade's
// event loop until the context is cancelled or Stop is called.
type Graph struct {
	policy DependencyPolicy

	mu        sync.Mutex
	cascades  map[string]*engine.Cascade
	dependsOn map[string][]string
	running   bool
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithPolicy overrides the dependency propagation policy.
func WithPolicy(p DependencyPolicy) GraphOption {
	return func(g *Graph) {
		g.policy = p
	}
}

// New creates an empty graph with the StaticDependencies policy.
func New(opts ...GraphOption) *Graph {
	g := &Graph{
		policy:    StaticDependencies{},
		cascades:  make(map[string]*engine.Cascade),
		dependsOn: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddPackage registers a cascade and the packages it depends on.
// Dependencies may be registered in any order; the edge set is
// validated when Run starts.
func (g *Graph) AddPackage(c *engine.Cascade, dependsOn ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return fmt.Errorf("graph: cannot add package %q while running", c.Package())
	}
	name := c.Package()
	if _, dup := g.cascades[name]; dup {
		return fmt.Errorf("graph: duplicate package %q", name)
	}
	g.cascades[name] = c
	g.dependsOn[name] = append([]string(nil), dependsOn...)
	return nil
}

// Cascade returns the cascade for a package, or nil if unknown.
func (g *Graph) Cascade(pkg string) *engine.Cascade {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cascades[pkg]
}

// Packages returns the registered package names in sorted order.
func (g *Graph) Packages() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.cascades))
	for name := range g.cascades {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run validates the dependency edges, wires settlement propagation, and
// runs every cascade's event loop. Blocks until all loops exit; a
// cancelled context is a normal shutdown, not an error.
func (g *Graph) Run(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return fmt.Errorf("graph: already running")
	}
	if err := g.validateEdgesLocked(); err != nil {
		g.mu.Unlock()
		return err
	}
	g.wireLocked()
	g.running = true
	cascades := make([]*engine.Cascade, 0, len(g.cascades))
	for _, c := range g.cascades {
		cascades = append(cascades, c)
	}
	g.mu.Unlock()

	slog.Info("package graph starting", "packages", len(cascades))

	var wg sync.WaitGroup
	errCh := make(chan error, len(cascades))
	for _, c := range cascades {
		wg.Add(1)
		go func(c *engine.Cascade) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("package %q: %w", c.Package(), err)
			}
		}(c)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stop shuts down every cascade; Run returns once their loops drain.
func (g *Graph) Stop() {
	g.mu.Lock()
	cascades := make([]*engine.Cascade, 0, len(g.cascades))
	for _, c := range g.cascades {
		cascades = append(cascades, c)
	}
	g.mu.Unlock()
	for _, c := range cascades {
		c.Stop()
	}
}

// UpdateSources fans a source update out to the owning cascades,
// grouped by package. Fails without routing anything if any ID names
// an unknown package.
func (g *Graph) UpdateSources(ids ...asset.ID) error {
	byPkg, err := g.groupByPackage(ids)
	if err != nil {
		return err
	}
	for pkg, group := range byPkg {
		if err := g.Cascade(pkg).UpdateSources(group...); err != nil {
			return err
		}
	}
	return nil
}

// RemoveSources fans a source removal out to the owning cascades,
// grouped by package.
func (g *Graph) RemoveSources(ids ...asset.ID) error {
	byPkg, err := g.groupByPackage(ids)
	if err != nil {
		return err
	}
	for pkg, group := range byPkg {
		if err := g.Cascade(pkg).RemoveSources(group...); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTransformers replaces one package's pipeline.
func (g *Graph) UpdateTransformers(pkg string, groups [][]engine.Transformer) error {
	c := g.Cascade(pkg)
	if c == nil {
		return fmt.Errorf("graph: unknown package %q", pkg)
	}
	return c.UpdateTransformers(groups)
}

func (g *Graph) groupByPackage(ids []asset.ID) (map[string][]asset.ID, error) {
	byPkg := make(map[string][]asset.ID)
	for _, id := range ids {
		if g.Cascade(id.Package) == nil {
			return nil, fmt.Errorf("graph: unknown package %q", id.Package)
		}
		byPkg[id.Package] = append(byPkg[id.Package], id)
	}
	return byPkg, nil
}

// GetAssetNode routes an asset request to the owning package's cascade.
func (g *Graph) GetAssetNode(ctx context.Context, id asset.ID) (*asset.Node, error) {
	c := g.Cascade(id.Package)
	if c == nil {
		return nil, fmt.Errorf("graph: unknown package %q", id.Package)
	}
	return c.GetAssetNode(ctx, id)
}

// GetAllAssets awaits a package's settlement and returns its full
// output snapshot.
func (g *Graph) GetAllAssets(ctx context.Context, pkg string) ([]*asset.Asset, error) {
	c := g.Cascade(pkg)
	if c == nil {
		return nil, fmt.Errorf("graph: unknown package %q", pkg)
	}
	return c.GetAllAssets(ctx)
}

// validateEdgesLocked checks that every edge target exists and the
// graph is acyclic. Unlike transform pipelines inside one package, the
// package graph has no ordering mechanism for mutual feeding, so a
// cycle is an error.
func (g *Graph) validateEdgesLocked() error {
	for pkg, deps := range g.dependsOn {
		for _, dep := range deps {
			if dep == pkg {
				return fmt.Errorf("graph: package %q depends on itself", pkg)
			}
			if _, ok := g.cascades[dep]; !ok {
				return fmt.Errorf("graph: package %q depends on unknown package %q", pkg, dep)
			}
		}
	}

	// DFS three-color cycle detection over the dependency edges.
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.cascades))
	var path []string

	var visit func(pkg string) error
	visit = func(pkg string) error {
		color[pkg] = grey
		path = append(path, pkg)
		for _, dep := range g.dependsOn[pkg] {
			switch color[dep] {
			case grey:
				return fmt.Errorf("graph: dependency cycle: %s", strings.Join(append(path, dep), " -> "))
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[pkg] = black
		path = path[:len(path)-1]
		return nil
	}

	names := make([]string, 0, len(g.cascades))
	for name := range g.cascades {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// wireLocked installs settlement propagation on every dependency edge.
// The push is a non-blocking enqueue onto the dependent's loop: an
// upstream settlement callback must never wait on downstream work.
func (g *Graph) wireLocked() {
	dependents := make(map[string][]string)
	for pkg, deps := range g.dependsOn {
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], pkg)
		}
	}

	for dep, pkgs := range dependents {
		depCascade := g.cascades[dep]
		sort.Strings(pkgs)
		targets := make([]*engine.Cascade, len(pkgs))
		for i, pkg := range pkgs {
			targets[i] = g.cascades[pkg]
		}
		depName := dep
		depCascade.OnSettled(func(assets []*asset.Asset, settleErr error) {
			for _, target := range targets {
				push := g.policy.Propagate(depName, target.Package(), assets, settleErr)
				if len(push) == 0 {
					continue
				}
				if err := target.UpdateExternalAssets(push...); err != nil {
					slog.Warn("dependency push failed",
						"from", depName,
						"to", target.Package(),
						"error", err,
					)
				}
			}
		})
	}
}
