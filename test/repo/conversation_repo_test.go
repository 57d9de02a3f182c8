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

// basisVec returns a 768-dim unit vector along the given axis, giving exact
// cosine similarities in search assertions.
func basisVec(axis int) []float32 {
	v := make([]float32, 768)
	v[axis] = 1
	return v
}

func insertConversation(t *testing.T, convs *repo.ConversationRepo, userID, sessionID, content string, embedding []float32, createdAt int64) int64 {
	t.Helper()
	id, err := convs.Insert(context.Background(), &model.Conversation{
		UserID:    userID,
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
		Embedding: embedding,
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	return id
}

func TestConversationRepoRoundTripAndIsolation(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	now := timeutil.NowUnix()
	id := insertConversation(t, convs, "user-conv-1", "sess-1", "hello there", basisVec(0), now)

	fetched, err := convs.GetByID(context.Background(), "user-conv-1", id)
	require.NoError(t, err)
	require.Equal(t, "hello there", fetched.Content)
	require.Equal(t, float32(1), fetched.Embedding[0])

	_, err = convs.GetByID(context.Background(), "user-conv-other", id)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, convs.UpdateMetadata(context.Background(), "user-conv-1", id, `{"tag":"x"}`))
	require.ErrorIs(t, convs.UpdateMetadata(context.Background(), "user-conv-other", id, "{}"), appErr.ErrNotFound)

	require.NoError(t, convs.Delete(context.Background(), "user-conv-1", id))
	_, err = convs.GetByID(context.Background(), "user-conv-1", id)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestConversationRepoListRecentOrder(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	base := timeutil.NowUnix()
	insertConversation(t, convs, "user-conv-2", "sess-1", "first", basisVec(0), base)
	insertConversation(t, convs, "user-conv-2", "sess-1", "second", basisVec(1), base+1)
	insertConversation(t, convs, "user-conv-2", "sess-2", "other session", basisVec(2), base+2)

	recent, err := convs.ListRecent(context.Background(), "user-conv-2", "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "second", recent[0].Content)
	require.Equal(t, "first", recent[1].Content)

	all, err := convs.ListRecent(context.Background(), "user-conv-2", "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "other session", all[0].Content)
}

func TestConversationRepoSearchSimilarOrderingAndFilters(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	now := timeutil.NowUnix()
	insertConversation(t, convs, "user-conv-3", "sess-1", "exact match", basisVec(0), now)
	insertConversation(t, convs, "user-conv-3", "sess-1", "orthogonal", basisVec(1), now)
	insertConversation(t, convs, "user-conv-3", "sess-2", "exact in other session", basisVec(0), now)

	matches, err := convs.SearchSimilar(context.Background(), repo.SimilarConversationsQuery{
		UserID:     "user-conv-3",
		Embedding:  basisVec(0),
		FetchLimit: 10,
	})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	require.InDelta(t, 1.0, matches[1].Similarity, 1e-6)
	require.InDelta(t, 0.0, matches[2].Similarity, 1e-6)
	require.Equal(t, "orthogonal", matches[2].Content)

	scoped, err := convs.SearchSimilar(context.Background(), repo.SimilarConversationsQuery{
		UserID:     "user-conv-3",
		Embedding:  basisVec(0),
		SessionID:  "sess-2",
		FetchLimit: 10,
	})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "exact in other session", scoped[0].Content)

	none, err := convs.SearchSimilar(context.Background(), repo.SimilarConversationsQuery{
		UserID:     "user-conv-nobody",
		Embedding:  basisVec(0),
		FetchLimit: 10,
	})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestConversationRepoDeleteCascadesEntities(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	now := timeutil.NowUnix()
	convID := insertConversation(t, convs, "user-conv-4", "sess-1", "python things", basisVec(0), now)
	_, err := ents.Insert(context.Background(), &model.Entity{
		UserID:         "user-conv-4",
		ConversationID: convID,
		EntityType:     "technology",
		EntityName:     "Python",
		Embedding:      basisVec(1),
		CreatedAt:      now,
	})
	require.NoError(t, err)

	require.NoError(t, convs.Delete(context.Background(), "user-conv-4", convID))
	remaining, err := ents.ListByUser(context.Background(), "user-conv-4")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
