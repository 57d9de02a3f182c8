package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/memhubio/memhub/internal/ai"
	"github.com/memhubio/memhub/internal/extract"
	"github.com/memhubio/memhub/internal/model"
	appErr "github.com/memhubio/memhub/internal/pkg/errors"
	"github.com/memhubio/memhub/internal/pkg/timeutil"
	"github.com/memhubio/memhub/internal/repo"
)

// Embedding task types, passed through to the provider.
const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

// MemoryService owns the write path: storing conversation turns and
// populating the knowledge graph from them.
type MemoryService struct {
	db            *sql.DB
	conversations *repo.ConversationRepo
	entities      *repo.EntityRepo
	relationships *repo.RelationshipRepo
	embedder      *ai.SafeEmbedder
	extractor     extract.Extractor
}

func NewMemoryService(db *sql.DB, conversations *repo.ConversationRepo, entities *repo.EntityRepo,
	relationships *repo.RelationshipRepo, embedder *ai.SafeEmbedder, extractor extract.Extractor) *MemoryService {
	return &MemoryService{
		db:            db,
		conversations: conversations,
		entities:      entities,
		relationships: relationships,
		embedder:      embedder,
		extractor:     extractor,
	}
}

type SaveConversationArgs struct {
	UserID    string
	SessionID string
	Role      string
	Content   string
	Platform  string
	Metadata  string
}

type SaveConversationResult struct {
	ConversationID    int64 `json:"conversation_id"`
	EntityCount       int   `json:"entity_count"`
	RelationshipCount int   `json:"relationship_count"`
	// Partial is set when the turn was stored but graph extraction failed.
	// ExtractionError carries the failure reason in that case.
	Partial         bool   `json:"partial,omitempty"`
	ExtractionError string `json:"extraction_error,omitempty"`
}

// SaveConversation stores the turn first and enriches the graph after. The
// conversation commit never depends on extraction: a failed extraction
// leaves a stored turn and a partial result instead of an error.
func (s *MemoryService) SaveConversation(ctx context.Context, args SaveConversationArgs) (*SaveConversationResult, error) {
	if args.UserID == "" || args.SessionID == "" || args.Content == "" {
		return nil, fmt.Errorf("%w: user_id, session_id and content are required", appErr.ErrInvalid)
	}
	if args.Role != model.RoleUser && args.Role != model.RoleAssistant {
		return nil, fmt.Errorf("%w: role must be user or assistant", appErr.ErrInvalid)
	}

	conv := &model.Conversation{
		UserID:    args.UserID,
		SessionID: args.SessionID,
		Role:      args.Role,
		Content:   args.Content,
		Platform:  args.Platform,
		Metadata:  args.Metadata,
		Embedding: s.embedder.Embed(ctx, args.Content, TaskTypeDocument),
		CreatedAt: timeutil.NowUnix(),
	}
	convID, err := s.conversations.Insert(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	result := &SaveConversationResult{ConversationID: convID}
	entityCount, relCount, err := s.extractAndStore(ctx, conv)
	if err != nil {
		logutil.GetLogger(ctx).Warn("graph extraction failed, conversation kept",
			zap.Int64("conversation_id", convID), zap.Error(err))
		result.Partial = true
		result.ExtractionError = err.Error()
		return result, nil
	}
	result.EntityCount = entityCount
	result.RelationshipCount = relCount
	return result, nil
}

// extractAndStore writes all entities and relationships of one turn in a
// single transaction, so a failure cannot leave dangling relationship
// endpoints.
func (s *MemoryService) extractAndStore(ctx context.Context, conv *model.Conversation) (int, int, error) {
	ents, rels := s.extractor.Extract(conv.Content, conv.Role, true)
	if len(ents) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	now := timeutil.NowUnix()
	idByName := make(map[string]int64, len(ents))
	for _, ent := range ents {
		id, err := s.entities.InsertTx(ctx, tx, &model.Entity{
			UserID:         conv.UserID,
			ConversationID: conv.ID,
			EntityType:     ent.Type,
			EntityName:     ent.Name,
			Description:    ent.Description,
			Embedding:      s.embedder.Embed(ctx, ent.Description, TaskTypeDocument),
			CreatedAt:      now,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("insert entity %q: %w", ent.Name, err)
		}
		idByName[lowerKey(ent.Name)] = id
	}

	relCount := 0
	for _, rel := range rels {
		sourceID, okSource := idByName[lowerKey(rel.SourceName)]
		targetID, okTarget := idByName[lowerKey(rel.TargetName)]
		if !okSource || !okTarget || sourceID == targetID {
			continue
		}
		_, err := s.relationships.InsertTx(ctx, tx, &model.Relationship{
			SourceEntityID:   sourceID,
			TargetEntityID:   targetID,
			RelationshipType: rel.Type,
			Weight:           rel.Weight,
			CreatedAt:        now,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("insert relationship %q -> %q: %w", rel.SourceName, rel.TargetName, err)
		}
		relCount++
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return len(ents), relCount, nil
}

type AddEntityArgs struct {
	UserID         string
	ConversationID int64
	EntityType     string
	EntityName     string
	Description    string
}

// AddEntity records a manually supplied entity against a conversation the
// caller owns.
func (s *MemoryService) AddEntity(ctx context.Context, args AddEntityArgs) (*model.Entity, error) {
	if args.EntityType == "" || args.EntityName == "" {
		return nil, fmt.Errorf("%w: entity_type and entity_name are required", appErr.ErrInvalid)
	}
	if _, err := s.conversations.GetByID(ctx, args.UserID, args.ConversationID); err != nil {
		return nil, err
	}
	ent := &model.Entity{
		UserID:         args.UserID,
		ConversationID: args.ConversationID,
		EntityType:     args.EntityType,
		EntityName:     args.EntityName,
		Description:    args.Description,
		Embedding:      s.embedder.Embed(ctx, args.Description, TaskTypeDocument),
		CreatedAt:      timeutil.NowUnix(),
	}
	if _, err := s.entities.Insert(ctx, ent); err != nil {
		return nil, err
	}
	return ent, nil
}

type AddRelationshipArgs struct {
	UserID           string
	SourceEntityID   int64
	TargetEntityID   int64
	RelationshipType string
	Weight           float64
	Metadata         string
}

// AddRelationship links two entities the caller owns. Weight defaults to 1.
func (s *MemoryService) AddRelationship(ctx context.Context, args AddRelationshipArgs) (*model.Relationship, error) {
	if args.RelationshipType == "" {
		return nil, fmt.Errorf("%w: relationship_type is required", appErr.ErrInvalid)
	}
	if args.SourceEntityID == args.TargetEntityID {
		return nil, fmt.Errorf("%w: source and target must differ", appErr.ErrInvalid)
	}
	if _, err := s.entities.GetByID(ctx, args.UserID, args.SourceEntityID); err != nil {
		return nil, err
	}
	if _, err := s.entities.GetByID(ctx, args.UserID, args.TargetEntityID); err != nil {
		return nil, err
	}
	weight := args.Weight
	if weight == 0 {
		weight = 1.0
	}
	rel := &model.Relationship{
		SourceEntityID:   args.SourceEntityID,
		TargetEntityID:   args.TargetEntityID,
		RelationshipType: args.RelationshipType,
		Weight:           weight,
		Metadata:         args.Metadata,
		CreatedAt:        timeutil.NowUnix(),
	}
	if _, err := s.relationships.Insert(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// DeleteConversation removes the turn; entities and relationships cascade.
func (s *MemoryService) DeleteConversation(ctx context.Context, userID string, id int64) error {
	return s.conversations.Delete(ctx, userID, id)
}

func (s *MemoryService) UpdateConversationMetadata(ctx context.Context, userID string, id int64, metadata string) error {
	return s.conversations.UpdateMetadata(ctx, userID, id, metadata)
}

func lowerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
