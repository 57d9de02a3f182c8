package graph

import (
	"sort"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

const (
	pageRankDamping   = 0.85
	pageRankTolerance = 1e-6

	// Blend factors for the importance score.
	pageRankShare = 0.6
	degreeShare   = 0.4
)

type RelatedEntity struct {
	EntityID         int64   `json:"entity_id"`
	EntityName       string  `json:"entity_name"`
	EntityType       string  `json:"entity_type"`
	RelationshipType string  `json:"relationship_type"`
	Weight           float64 `json:"weight"`
	Depth            int     `json:"depth"`
	Path             []int64 `json:"path"`
}

// Related walks successor edges depth-first from the seed node. A single
// visited set spans the whole traversal, so a node reachable via two paths
// is emitted once, via whichever path is explored first. Discovery stops at
// limit; results are then ordered by weight descending with depth as the
// tiebreak.
func (g *Graph) Related(seedID int64, maxDepth, limit int) []RelatedEntity {
	if limit <= 0 || maxDepth <= 0 || !g.HasNode(seedID) {
		return nil
	}

	visited := map[int64]bool{seedID: true}
	var related []RelatedEntity

	var dfs func(id int64, depth int, path []int64)
	dfs = func(id int64, depth int, path []int64) {
		if depth >= maxDepth {
			return
		}
		for _, succ := range g.successors(id) {
			if len(related) >= limit {
				return
			}
			if visited[succ] {
				continue
			}
			visited[succ] = true
			edge := g.edges[[2]int64{id, succ}]
			node := g.nodes[succ]
			childPath := make([]int64, len(path), len(path)+1)
			copy(childPath, path)
			childPath = append(childPath, succ)
			related = append(related, RelatedEntity{
				EntityID:         succ,
				EntityName:       node.Name,
				EntityType:       node.Type,
				RelationshipType: edge.Type,
				Weight:           edge.Weight,
				Depth:            depth + 1,
				Path:             childPath,
			})
			dfs(succ, depth+1, childPath)
		}
	}
	dfs(seedID, 0, []int64{seedID})

	sort.SliceStable(related, func(i, j int) bool {
		if related[i].Weight != related[j].Weight {
			return related[i].Weight > related[j].Weight
		}
		return related[i].Depth < related[j].Depth
	})
	if len(related) > limit {
		related = related[:limit]
	}
	return related
}

type ImportanceScore struct {
	EntityID   int64   `json:"entity_id"`
	EntityName string  `json:"entity_name"`
	EntityType string  `json:"entity_type"`
	PageRank   float64 `json:"pagerank"`
	Degree     float64 `json:"degree"`
	Importance float64 `json:"importance"`
}

// Importance blends weighted PageRank with normalized weighted total degree.
// A PageRank failure degrades to the uniform distribution; isolated nodes
// keep a finite score from the PageRank baseline.
func (g *Graph) Importance(limit int) []ImportanceScore {
	if g.Len() == 0 || limit <= 0 {
		return nil
	}

	ranks := g.pageRankOrUniform()
	degrees := g.weightedDegrees()
	maxDegree := 1.0
	for _, d := range degrees {
		if d > maxDegree {
			maxDegree = d
		}
	}

	scores := make([]ImportanceScore, 0, g.Len())
	for _, id := range g.nodeIDs() {
		node := g.nodes[id]
		scores = append(scores, ImportanceScore{
			EntityID:   id,
			EntityName: node.Name,
			EntityType: node.Type,
			PageRank:   ranks[id],
			Degree:     degrees[id],
			Importance: pageRankShare*ranks[id] + degreeShare*(degrees[id]/maxDegree),
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Importance > scores[j].Importance
	})
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}

func (g *Graph) pageRankOrUniform() map[int64]float64 {
	uniform := func() map[int64]float64 {
		ranks := make(map[int64]float64, g.Len())
		for id := range g.nodes {
			ranks[id] = 1.0 / float64(g.Len())
		}
		return ranks
	}

	ranks := func() (result map[int64]float64) {
		defer func() {
			if recover() != nil {
				result = nil
			}
		}()
		// PageRank dispatches to its edge-weighted variant because the
		// backing graph implements graph.WeightedDirected.
		return network.PageRank(g.directed, pageRankDamping, pageRankTolerance)
	}()
	if len(ranks) != g.Len() {
		return uniform()
	}
	return ranks
}

func (g *Graph) weightedDegrees() map[int64]float64 {
	degrees := make(map[int64]float64, g.Len())
	for id := range g.nodes {
		degrees[id] = 0
	}
	for _, e := range g.edges {
		degrees[e.Source] += e.Weight
		degrees[e.Target] += e.Weight
	}
	return degrees
}

type Cluster struct {
	ClusterID int    `json:"cluster_id"`
	Label     string `json:"cluster_label"`
	Size      int    `json:"size"`
	Entities  []Node `json:"entities"`
}

// Clusters groups entities into topic communities. Reciprocal and parallel
// edges are merged into one undirected edge by summing weights. Community
// detection uses Louvain modularity maximization; when disabled or failing
// it falls back to connected components. Clusters below minSize are
// dropped; each surviving cluster is labeled with its most frequent entity
// type, smallest type string on ties.
func (g *Graph) Clusters(minSize int, useCommunity bool) []Cluster {
	if minSize <= 0 {
		minSize = 1
	}
	if g.Len() < minSize {
		return nil
	}

	und := g.undirected()
	var groups [][]gograph.Node
	if useCommunity {
		groups = modularizeOrNil(und)
	}
	if groups == nil {
		groups = topo.ConnectedComponents(und)
	}

	var clusters []Cluster
	for _, group := range groups {
		if len(group) < minSize {
			continue
		}
		members := make([]Node, 0, len(group))
		for _, n := range group {
			members = append(members, g.nodes[n.ID()])
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		clusters = append(clusters, Cluster{
			Label:    dominantType(members),
			Size:     len(members),
			Entities: members,
		})
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		if clusters[i].Label != clusters[j].Label {
			return clusters[i].Label < clusters[j].Label
		}
		return clusters[i].Entities[0].ID < clusters[j].Entities[0].ID
	})
	for i := range clusters {
		clusters[i].ClusterID = i
	}
	return clusters
}

func (g *Graph) undirected() *simple.WeightedUndirectedGraph {
	und := simple.NewWeightedUndirectedGraph(0, 0)
	for id := range g.nodes {
		und.AddNode(simple.Node(id))
	}
	merged := make(map[[2]int64]float64)
	for _, e := range g.edges {
		a, b := e.Source, e.Target
		if a > b {
			a, b = b, a
		}
		merged[[2]int64{a, b}] += e.Weight
	}
	for key, weight := range merged {
		und.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(key[0]),
			T: simple.Node(key[1]),
			W: weight,
		})
	}
	return und
}

func modularizeOrNil(und *simple.WeightedUndirectedGraph) (groups [][]gograph.Node) {
	defer func() {
		if recover() != nil {
			groups = nil
		}
	}()
	reduced := community.Modularize(und, 1.0, nil)
	return reduced.Communities()
}

func dominantType(members []Node) string {
	counts := make(map[string]int)
	for _, m := range members {
		counts[m.Type]++
	}
	best := ""
	bestCount := -1
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best = t
			bestCount = c
		}
	}
	return best
}
