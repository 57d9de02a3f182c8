package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memhubio/memhub/internal/ai"
	"github.com/memhubio/memhub/internal/extract"
	appErr "github.com/memhubio/memhub/internal/pkg/errors"
	"github.com/memhubio/memhub/internal/repo"
	"github.com/memhubio/memhub/internal/service"
	"github.com/memhubio/memhub/test/testutil"
)

func TestMemoryServiceSaveConversationIngestion(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	rels := repo.NewRelationshipRepo(db)
	embedder := ai.NewSafeEmbedder(newStubEmbedder(), 768)
	memory := service.NewMemoryService(db, convs, ents, rels, embedder, extract.NewKeywordExtractor())

	result, err := memory.SaveConversation(context.Background(), service.SaveConversationArgs{
		UserID:    "user-ing-1",
		SessionID: "sess-1",
		Role:      "user",
		Content:   "I use Python and Docker together",
	})
	require.NoError(t, err)
	require.False(t, result.Partial)
	require.NotZero(t, result.ConversationID)
	require.Equal(t, 2, result.EntityCount)
	require.Equal(t, 1, result.RelationshipCount)

	stored, err := convs.GetByID(context.Background(), "user-ing-1", result.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "I use Python and Docker together", stored.Content)

	entities, err := ents.ListByUser(context.Background(), "user-ing-1")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	names := []string{entities[0].EntityName, entities[1].EntityName}
	require.Contains(t, names, "Python")
	require.Contains(t, names, "Docker")
	for _, ent := range entities {
		require.Equal(t, result.ConversationID, ent.ConversationID)
		require.Equal(t, "technology", ent.EntityType)
	}

	relationships, err := rels.ListByEntityIDs(context.Background(), []int64{entities[0].ID, entities[1].ID})
	require.NoError(t, err)
	require.Len(t, relationships, 1)
	require.Equal(t, "mentioned_with", relationships[0].RelationshipType)
	require.InDelta(t, 1.0, relationships[0].Weight, 1e-9)
}

func TestMemoryServiceSaveConversationValidation(t *testing.T) {
	embedder := ai.NewSafeEmbedder(newStubEmbedder(), 768)
	memory := service.NewMemoryService(nil, nil, nil, nil, embedder, extract.NewKeywordExtractor())

	_, err := memory.SaveConversation(context.Background(), service.SaveConversationArgs{
		UserID:    "user-x",
		SessionID: "sess-1",
		Role:      "system",
		Content:   "hello",
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = memory.SaveConversation(context.Background(), service.SaveConversationArgs{
		UserID:    "user-x",
		SessionID: "sess-1",
		Role:      "user",
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

// oversizedExtractor emits an entity name longer than the column allows,
// forcing the extraction transaction to fail after the turn is stored.
type oversizedExtractor struct{}

func (oversizedExtractor) Name() string { return "oversized" }

func (oversizedExtractor) Extract(text string, role string, wantRelationships bool) ([]extract.Entity, []extract.Relationship) {
	return []extract.Entity{{Type: "technology", Name: strings.Repeat("x", 300)}}, nil
}

func TestMemoryServiceSaveConversationPartialOnExtractionFailure(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	rels := repo.NewRelationshipRepo(db)
	embedder := ai.NewSafeEmbedder(newStubEmbedder(), 768)
	memory := service.NewMemoryService(db, convs, ents, rels, embedder, oversizedExtractor{})

	result, err := memory.SaveConversation(context.Background(), service.SaveConversationArgs{
		UserID:    "user-part-1",
		SessionID: "sess-1",
		Role:      "user",
		Content:   "still worth keeping",
	})
	require.NoError(t, err)
	require.True(t, result.Partial)
	require.NotEmpty(t, result.ExtractionError)
	require.Zero(t, result.EntityCount)

	// The turn survives even though the graph write rolled back.
	stored, err := convs.GetByID(context.Background(), "user-part-1", result.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "still worth keeping", stored.Content)
	entities, err := ents.ListByUser(context.Background(), "user-part-1")
	require.NoError(t, err)
	require.Empty(t, entities)
}

func TestMemoryServiceManualGraphWrites(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	rels := repo.NewRelationshipRepo(db)
	embedder := ai.NewSafeEmbedder(newStubEmbedder(), 768)
	memory := service.NewMemoryService(db, convs, ents, rels, embedder, extract.NewKeywordExtractor())

	saved, err := memory.SaveConversation(context.Background(), service.SaveConversationArgs{
		UserID:    "user-man-1",
		SessionID: "sess-1",
		Role:      "assistant",
		Content:   "noted",
	})
	require.NoError(t, err)

	source, err := memory.AddEntity(context.Background(), service.AddEntityArgs{
		UserID:         "user-man-1",
		ConversationID: saved.ConversationID,
		EntityType:     "person",
		EntityName:     "Alice",
	})
	require.NoError(t, err)
	target, err := memory.AddEntity(context.Background(), service.AddEntityArgs{
		UserID:         "user-man-1",
		ConversationID: saved.ConversationID,
		EntityType:     "project",
		EntityName:     "memhub",
	})
	require.NoError(t, err)

	// Entities cannot attach to another user's conversation.
	_, err = memory.AddEntity(context.Background(), service.AddEntityArgs{
		UserID:         "user-man-2",
		ConversationID: saved.ConversationID,
		EntityType:     "person",
		EntityName:     "Mallory",
	})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	rel, err := memory.AddRelationship(context.Background(), service.AddRelationshipArgs{
		UserID:           "user-man-1",
		SourceEntityID:   source.ID,
		TargetEntityID:   target.ID,
		RelationshipType: "works_on",
	})
	require.NoError(t, err)
	require.InDelta(t, 1.0, rel.Weight, 1e-9)

	_, err = memory.AddRelationship(context.Background(), service.AddRelationshipArgs{
		UserID:           "user-man-1",
		SourceEntityID:   source.ID,
		TargetEntityID:   source.ID,
		RelationshipType: "self",
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	require.NoError(t, memory.DeleteConversation(context.Background(), "user-man-1", saved.ConversationID))
	remaining, err := ents.ListByUser(context.Background(), "user-man-1")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
