package service

import (
	"context"
	"fmt"

	appErr "github.com/memhubio/memhub/internal/pkg/errors"
	"github.com/memhubio/memhub/internal/repo"

	"github.com/memhubio/memhub/internal/graph"
	"github.com/memhubio/memhub/internal/model"
)

// GraphService answers analytics queries over a user's knowledge graph.
// The graph is rebuilt from storage on every call; at per-user scale the
// rebuild is cheap and avoids cache invalidation on ingestion.
type GraphService struct {
	entities      *repo.EntityRepo
	relationships *repo.RelationshipRepo
}

func NewGraphService(entities *repo.EntityRepo, relationships *repo.RelationshipRepo) *GraphService {
	return &GraphService{entities: entities, relationships: relationships}
}

func (s *GraphService) buildGraph(ctx context.Context, userID string) (*graph.Graph, []model.Entity, []model.Relationship, error) {
	ents, err := s.entities.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	ids := make([]int64, 0, len(ents))
	for _, ent := range ents {
		ids = append(ids, ent.ID)
	}
	rels, err := s.relationships.ListByEntityIDs(ctx, ids)
	if err != nil {
		return nil, nil, nil, err
	}
	return graph.Build(ents, rels), ents, rels, nil
}

func (s *GraphService) ListEntities(ctx context.Context, userID string) ([]model.Entity, error) {
	return s.entities.ListByUser(ctx, userID)
}

func (s *GraphService) ListRelationships(ctx context.Context, userID string) ([]model.Relationship, error) {
	ents, err := s.entities.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(ents))
	for _, ent := range ents {
		ids = append(ids, ent.ID)
	}
	return s.relationships.ListByEntityIDs(ctx, ids)
}

type RelatedResult struct {
	Seed    graph.Node            `json:"seed"`
	Related []graph.RelatedEntity `json:"related"`
}

// RelatedEntities resolves a free-form entity name to a stored node and
// walks its neighborhood. An unresolvable seed yields an empty result, not
// an error.
func (s *GraphService) RelatedEntities(ctx context.Context, userID, entityName string, maxDepth, limit int) (*RelatedResult, error) {
	if entityName == "" {
		return nil, fmt.Errorf("%w: entity_name is required", appErr.ErrInvalid)
	}
	if maxDepth < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: max_depth and limit must not be negative", appErr.ErrInvalid)
	}
	if maxDepth == 0 {
		maxDepth = 2
	}
	if limit == 0 {
		limit = 10
	}
	seed, err := s.entities.FindFirstByNameLike(ctx, userID, entityName)
	if appErr.IsNotFound(err) {
		return &RelatedResult{Related: []graph.RelatedEntity{}}, nil
	}
	if err != nil {
		return nil, err
	}
	g, _, _, err := s.buildGraph(ctx, userID)
	if err != nil {
		return nil, err
	}
	node, ok := g.Node(seed.ID)
	if !ok {
		return &RelatedResult{Related: []graph.RelatedEntity{}}, nil
	}
	related := g.Related(seed.ID, maxDepth, limit)
	if related == nil {
		related = []graph.RelatedEntity{}
	}
	return &RelatedResult{Seed: node, Related: related}, nil
}

func (s *GraphService) EntityImportance(ctx context.Context, userID string, limit int) ([]graph.ImportanceScore, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", appErr.ErrInvalid)
	}
	if limit == 0 {
		limit = 10
	}
	g, _, _, err := s.buildGraph(ctx, userID)
	if err != nil {
		return nil, err
	}
	return g.Importance(limit), nil
}

type ClustersResult struct {
	Clusters []graph.Cluster `json:"clusters"`
	// NodeCount and EdgeCount describe the graph the clustering ran over.
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
}

func (s *GraphService) TopicClusters(ctx context.Context, userID string, minSize int) (*ClustersResult, error) {
	if minSize < 0 {
		return nil, fmt.Errorf("%w: min_cluster_size must not be negative", appErr.ErrInvalid)
	}
	if minSize == 0 {
		minSize = 3
	}
	g, _, rels, err := s.buildGraph(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ClustersResult{
		Clusters:  g.Clusters(minSize, true),
		NodeCount: g.Len(),
		EdgeCount: len(rels),
	}, nil
}
