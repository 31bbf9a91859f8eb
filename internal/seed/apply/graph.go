// Package apply schedules and executes a loaded seed's modules against a
// single target: topic-graph construction and validation, run-identifier
// assignment, and the worker pool that dequeues and applies modules as
// their dependencies clear (spec.md §4.6).
package apply

import (
	"fmt"
	"sort"

	"github.com/sqldeploy/sqldeploy/internal/seed"
)

// graph is the dependency graph derived from a loaded seed's modules: node
// i depends on every node in edges[i] (spec.md §4.6 step 1).
type graph struct {
	modules []*seed.Module
	edges   [][]int // edges[i] = indices of modules that must complete before modules[i]
}

// buildGraph wires an edge from every module to each module that provides a
// topic it requires, plus an implicit edge from init to every other module
// unless that module itself provides the "init" topic (spec.md §4.6 step 1).
// The synthetic init module counts as a provider of the "init" topic.
func buildGraph(modules []*seed.Module) (*graph, error) {
	providers := make(map[string][]int) // topic -> provider indices
	for i, m := range modules {
		if m.Name == seed.InitModuleName {
			// the synthetic init module stands for the "init" topic
			providers["init"] = append(providers["init"], i)
		}
		for topic := range m.Provides {
			providers[topic] = append(providers[topic], i)
		}
	}

	initIndex := -1
	for i, m := range modules {
		if m.Name == seed.InitModuleName {
			initIndex = i
			break
		}
	}

	g := &graph{modules: modules, edges: make([][]int, len(modules))}
	for i, m := range modules {
		seen := make(map[int]struct{})
		for topic := range m.Requires {
			provs, ok := providers[topic]
			if !ok {
				return nil, fmt.Errorf("the topic '%s' is required but not provided by any module", topic)
			}
			for _, p := range provs {
				if p == i {
					continue
				}
				seen[p] = struct{}{}
			}
		}

		if initIndex >= 0 && i != initIndex {
			if _, providesInit := m.Provides["init"]; !providesInit {
				seen[initIndex] = struct{}{}
			}
		}

		for p := range seen {
			g.edges[i] = append(g.edges[i], p)
		}
		sort.Ints(g.edges[i])
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// checkAcyclic runs a DFS cycle check over the dependency edges (spec.md
// §4.6 step 2).
func (g *graph) checkAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.modules))

	var visit func(i int) error
	visit = func(i int) error {
		color[i] = gray
		for _, dep := range g.edges[i] {
			switch color[dep] {
			case gray:
				return fmt.Errorf("the dependency graph does not permit cycles")
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[i] = black
		return nil
	}

	for i := range g.modules {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// ready reports which modules in pending have every dependency already in
// done.
func (g *graph) ready(pending []int, done map[int]struct{}) []int {
	var out []int
	for _, i := range pending {
		satisfied := true
		for _, dep := range g.edges[i] {
			if _, ok := done[dep]; !ok {
				satisfied = false
				break
			}
		}
		if satisfied {
			out = append(out, i)
		}
	}
	return out
}
