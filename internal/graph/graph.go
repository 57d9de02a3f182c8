// Package graph materializes the ephemeral, per-user knowledge graph and
// runs its analytics. Graphs are rebuilt from store rows on every call and
// never cached or persisted.
package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/memhubio/memhub/internal/model"
)

type Node struct {
	ID          int64  `json:"entity_id"`
	Name        string `json:"entity_name"`
	Type        string `json:"entity_type"`
	Description string `json:"description,omitempty"`
}

type Edge struct {
	Source int64
	Target int64
	Type   string
	Weight float64
}

type Graph struct {
	directed *simple.WeightedDirectedGraph
	nodes    map[int64]Node
	edges    map[[2]int64]Edge
}

func New() *Graph {
	return &Graph{
		directed: simple.NewWeightedDirectedGraph(0, 0),
		nodes:    make(map[int64]Node),
		edges:    make(map[[2]int64]Edge),
	}
}

// Build assembles the graph for one owner: nodes from the owner's entities,
// edges from relationships whose both endpoints are in that entity set.
// Edges with missing endpoints or self loops are dropped; a repeated
// source/target pair overwrites the previous annotation.
func Build(entities []model.Entity, relationships []model.Relationship) *Graph {
	g := New()
	for _, e := range entities {
		g.AddNode(Node{
			ID:          e.ID,
			Name:        e.EntityName,
			Type:        e.EntityType,
			Description: e.Description,
		})
	}
	for _, rel := range relationships {
		g.AddEdge(Edge{
			Source: rel.SourceEntityID,
			Target: rel.TargetEntityID,
			Type:   rel.RelationshipType,
			Weight: rel.Weight,
		})
	}
	return g
}

func (g *Graph) AddNode(n Node) {
	if _, ok := g.nodes[n.ID]; ok {
		return
	}
	g.nodes[n.ID] = n
	g.directed.AddNode(simple.Node(n.ID))
}

func (g *Graph) AddEdge(e Edge) {
	if e.Source == e.Target {
		return
	}
	if _, ok := g.nodes[e.Source]; !ok {
		return
	}
	if _, ok := g.nodes[e.Target]; !ok {
		return
	}
	g.directed.SetWeightedEdge(simple.WeightedEdge{
		F: simple.Node(e.Source),
		T: simple.Node(e.Target),
		W: e.Weight,
	})
	g.edges[[2]int64{e.Source, e.Target}] = e
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) HasNode(id int64) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) Node(id int64) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// successors returns outgoing neighbours sorted by id ascending so that
// traversal order, and therefore limit-bound early termination, is
// reproducible.
func (g *Graph) successors(id int64) []int64 {
	it := g.directed.From(id)
	var ids []int64
	for it.Next() {
		ids = append(ids, it.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g *Graph) nodeIDs() []int64 {
	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
