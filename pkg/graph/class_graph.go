package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// SupertypeGraph holds class inheritance with edges from a supertype to its
// direct subtypes. Classes are identified by internal name.
type SupertypeGraph struct {
	graph  *simple.DirectedGraph
	ids    map[string]int64 // Map from class name to graph ID
	names  map[int64]string // Reverse of ids
	nextID int64
}

// NewSupertypeGraph creates an empty graph
func NewSupertypeGraph() *SupertypeGraph {
	return &SupertypeGraph{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		names: make(map[int64]string),
	}
}

// AddClass adds a class to the graph
func (g *SupertypeGraph) AddClass(name string) {
	if _, exists := g.ids[name]; exists {
		return
	}
	g.ids[name] = g.nextID
	g.names[g.nextID] = name
	g.graph.AddNode(simple.Node(g.nextID))
	g.nextID++
}

// AddSupertype records that child directly extends or implements parent
func (g *SupertypeGraph) AddSupertype(child, parent string) {
	if child == parent {
		return
	}
	g.AddClass(child)
	g.AddClass(parent)

	parentID, childID := g.ids[parent], g.ids[child]
	if !g.graph.HasEdgeFromTo(parentID, childID) {
		g.graph.SetEdge(g.graph.NewEdge(g.graph.Node(parentID), g.graph.Node(childID)))
	}
}

// Len returns the number of classes in the graph
func (g *SupertypeGraph) Len() int {
	return len(g.ids)
}

// Subtypes returns all transitive subtypes of name, sorted. Inheritance
// cycles from inconsistent input terminate since each class is visited once.
func (g *SupertypeGraph) Subtypes(name string) []string {
	id, exists := g.ids[name]
	if !exists {
		return nil
	}

	var subtypes []string
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) {
			if n.ID() != id {
				subtypes = append(subtypes, g.names[n.ID()])
			}
		},
	}
	bf.Walk(g.graph, g.graph.Node(id), nil)

	sort.Strings(subtypes)
	return subtypes
}
