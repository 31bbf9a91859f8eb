package apply

import (
	"strings"
	"testing"

	"github.com/sqldeploy/sqldeploy/internal/seed"
)

func mod(name string, provides, requires []string) *seed.Module {
	m := &seed.Module{Name: name, Provides: map[string]struct{}{}, Requires: map[string]struct{}{}}
	for _, p := range provides {
		m.Provides[p] = struct{}{}
	}
	for _, r := range requires {
		m.Requires[r] = struct{}{}
	}
	return m
}

func TestBuildGraphWiresImplicitInitEdge(t *testing.T) {
	init := mod(seed.InitModuleName, nil, nil)
	a := mod("A", []string{"a"}, nil)

	g, err := buildGraph([]*seed.Module{init, a})
	if err != nil {
		t.Fatalf("buildGraph: %v", err)
	}
	if len(g.edges[1]) != 1 || g.edges[1][0] != 0 {
		t.Errorf("A's edges = %v, want [0] (implicit init dependency)", g.edges[1])
	}
}

func TestBuildGraphModuleProvidingInitSkipsImplicitEdge(t *testing.T) {
	init := mod(seed.InitModuleName, nil, nil)
	a := mod("A", []string{"init"}, nil)

	g, err := buildGraph([]*seed.Module{init, a})
	if err != nil {
		t.Fatalf("buildGraph: %v", err)
	}
	if len(g.edges[1]) != 0 {
		t.Errorf("A's edges = %v, want none (A itself provides init)", g.edges[1])
	}
}

func TestBuildGraphWiresRequiresToProvider(t *testing.T) {
	init := mod(seed.InitModuleName, nil, nil)
	a := mod("A", []string{"topic"}, nil)
	b := mod("B", nil, []string{"topic"})

	g, err := buildGraph([]*seed.Module{init, a, b})
	if err != nil {
		t.Fatalf("buildGraph: %v", err)
	}
	found := false
	for _, dep := range g.edges[2] {
		if dep == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("B's edges = %v, want to include A's index (1)", g.edges[2])
	}
}

func TestBuildGraphRejectsUnprovidedTopic(t *testing.T) {
	init := mod(seed.InitModuleName, nil, nil)
	b := mod("B", nil, []string{"missing"})

	_, err := buildGraph([]*seed.Module{init, b})
	if err == nil {
		t.Fatal("expected buildGraph to reject an unprovided topic")
	}
	if !strings.Contains(err.Error(), "the topic 'missing' is required but not provided by any module") {
		t.Errorf("error = %q, want the exact unprovided-topic message", err.Error())
	}
}

func TestBuildGraphRejectsCycle(t *testing.T) {
	init := mod(seed.InitModuleName, nil, nil)
	a := mod("A", []string{"a"}, []string{"b"})
	b := mod("B", []string{"b"}, []string{"a"})

	_, err := buildGraph([]*seed.Module{init, a, b})
	if err == nil {
		t.Fatal("expected buildGraph to reject a cyclic dependency")
	}
	if !strings.Contains(err.Error(), "the dependency graph does not permit cycles") {
		t.Errorf("error = %q, want the exact cycle message", err.Error())
	}
}

func TestGraphReadyReturnsOnlySatisfiedPending(t *testing.T) {
	init := mod(seed.InitModuleName, nil, nil)
	a := mod("A", []string{"a"}, nil)
	b := mod("B", nil, []string{"a"})

	g, err := buildGraph([]*seed.Module{init, a, b})
	if err != nil {
		t.Fatalf("buildGraph: %v", err)
	}

	ready := g.ready([]int{1, 2}, map[int]struct{}{0: {}})
	if len(ready) != 1 || ready[0] != 1 {
		t.Errorf("ready = %v, want [1] (only A, since B still needs A done)", ready)
	}

	ready = g.ready([]int{2}, map[int]struct{}{0: {}, 1: {}})
	if len(ready) != 1 || ready[0] != 2 {
		t.Errorf("ready = %v, want [2] once A is done", ready)
	}
}
