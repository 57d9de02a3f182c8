package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memhubio/memhub/internal/model"
	appErr "github.com/memhubio/memhub/internal/pkg/errors"
	"github.com/memhubio/memhub/internal/pkg/timeutil"
	"github.com/memhubio/memhub/internal/repo"
	"github.com/memhubio/memhub/test/testutil"
)

func insertEntity(t *testing.T, ents *repo.EntityRepo, userID string, convID int64, entityType, name string) int64 {
	t.Helper()
	id, err := ents.Insert(context.Background(), &model.Entity{
		UserID:         userID,
		ConversationID: convID,
		EntityType:     entityType,
		EntityName:     name,
		Description:    entityType + ": " + name,
		Embedding:      basisVec(0),
		CreatedAt:      timeutil.NowUnix(),
	})
	require.NoError(t, err)
	return id
}

func TestEntityRepoOwnershipAndNameLookup(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	now := timeutil.NowUnix()
	convID := insertConversation(t, convs, "user-ent-1", "sess-1", "graph talk", basisVec(0), now)

	firstID := insertEntity(t, ents, "user-ent-1", convID, "technology", "Python")
	insertEntity(t, ents, "user-ent-1", convID, "concept", "data analysis")

	listed, err := ents.ListByUser(context.Background(), "user-ent-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "Python", listed[0].EntityName)

	// Case-insensitive substring match resolves to the oldest entity.
	found, err := ents.FindFirstByNameLike(context.Background(), "user-ent-1", "python")
	require.NoError(t, err)
	require.Equal(t, firstID, found.ID)

	_, err = ents.FindFirstByNameLike(context.Background(), "user-ent-other", "python")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	got, err := ents.GetByID(context.Background(), "user-ent-1", firstID)
	require.NoError(t, err)
	require.Equal(t, "technology", got.EntityType)
	_, err = ents.GetByID(context.Background(), "user-ent-other", firstID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestRelationshipRepoListWithinEntitySet(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	rels := repo.NewRelationshipRepo(db)
	now := timeutil.NowUnix()
	convID := insertConversation(t, convs, "user-rel-1", "sess-1", "tools", basisVec(0), now)

	a := insertEntity(t, ents, "user-rel-1", convID, "technology", "Go")
	b := insertEntity(t, ents, "user-rel-1", convID, "technology", "Docker")
	c := insertEntity(t, ents, "user-rel-1", convID, "technology", "Redis")

	for _, pair := range [][2]int64{{a, b}, {b, c}} {
		_, err := rels.Insert(context.Background(), &model.Relationship{
			SourceEntityID:   pair[0],
			TargetEntityID:   pair[1],
			RelationshipType: "mentioned_with",
			Weight:           1.0,
			CreatedAt:        now,
		})
		require.NoError(t, err)
	}

	all, err := rels.ListByEntityIDs(context.Background(), []int64{a, b, c})
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Edges with an endpoint outside the set are excluded.
	partial, err := rels.ListByEntityIDs(context.Background(), []int64{a, b})
	require.NoError(t, err)
	require.Len(t, partial, 1)
	require.Equal(t, a, partial[0].SourceEntityID)

	empty, err := rels.ListByEntityIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestEmbeddingCacheRepoRoundTrip(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache := repo.NewEmbeddingCacheRepo(db)
	item := &model.EmbeddingCache{
		ModelName:   "test-model",
		TaskType:    "RETRIEVAL_DOCUMENT",
		ContentHash: "hash-round-trip",
		Embedding:   basisVec(3),
		Ctime:       timeutil.NowUnix(),
	}
	require.NoError(t, cache.Save(context.Background(), item))

	values, ok, err := cache.Get(context.Background(), "test-model", "RETRIEVAL_DOCUMENT", "hash-round-trip")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float32(1), values[3])

	_, ok, err = cache.Get(context.Background(), "test-model", "RETRIEVAL_DOCUMENT", "missing")
	require.NoError(t, err)
	require.False(t, ok)

	deleted, err := cache.DeleteBefore(context.Background(), timeutil.NowUnix()+1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, deleted, int64(1))
}
