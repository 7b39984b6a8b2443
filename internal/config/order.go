package config

import (
	"fmt"
	"sort"
	"strings"
)

// TopoOrder returns package names dependency-first: every package
// appears after all packages it depends on. Ties break alphabetically
// so the order is stable across runs. Returns an error if the
// dependency edges contain a cycle.
func (m *Manifest) TopoOrder() ([]string, error) {
	dependsOn := make(map[string][]string, len(m.Packages))
	for _, p := range m.Packages {
		dependsOn[p.Name] = p.DependsOn
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(dependsOn))
	var order []string
	var path []string

	var visit func(pkg string) error
	visit = func(pkg string) error {
		color[pkg] = grey
		path = append(path, pkg)
		deps := append([]string(nil), dependsOn[pkg]...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case grey:
				return fmt.Errorf("dependency cycle: %s", strings.Join(append(path, dep), " -> "))
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[pkg] = black
		path = path[:len(path)-1]
		order = append(order, pkg)
		return nil
	}

	names := make([]string, 0, len(dependsOn))
	for name := range dependsOn {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if color[name] == white {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}
