package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memhubio/memhub/internal/ai"
	"github.com/memhubio/memhub/internal/model"
	"github.com/memhubio/memhub/internal/pkg/timeutil"
	"github.com/memhubio/memhub/internal/repo"
	"github.com/memhubio/memhub/internal/service"
	"github.com/memhubio/memhub/test/testutil"
)

func seedConversation(t *testing.T, convs *repo.ConversationRepo, userID, sessionID, content string, embedding []float32, createdAt int64) int64 {
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

func TestRetrievalServiceSearchThresholdAndLimit(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	sums := repo.NewSummaryRepo(db)
	stub := newStubEmbedder()
	stub.vecs["python work"] = basisVec(0)
	embedder := ai.NewSafeEmbedder(stub, 768)
	retrieval := service.NewRetrievalService(convs, ents, sums, embedder, 0.3, 10)

	now := timeutil.NowUnix()
	seedConversation(t, convs, "user-ret-1", "sess-1", "exact", basisVec(0), now)
	// cosine 1/sqrt(2), above a 0.5 threshold
	seedConversation(t, convs, "user-ret-1", "sess-1", "partial", diagVec(0, 1), now)
	seedConversation(t, convs, "user-ret-1", "sess-1", "unrelated", basisVec(1), now)

	matches, err := retrieval.SearchConversations(context.Background(), service.SearchArgs{
		UserID:    "user-ret-1",
		Query:     "python work",
		Threshold: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "exact", matches[0].Content)
	require.Equal(t, "partial", matches[1].Content)
	require.Greater(t, matches[0].Similarity, matches[1].Similarity)

	limited, err := retrieval.SearchConversations(context.Background(), service.SearchArgs{
		UserID:    "user-ret-1",
		Query:     "python work",
		Threshold: 0.5,
		Limit:     1,
	})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "exact", limited[0].Content)

	// A blank query is rejected before any store access.
	_, err = retrieval.SearchConversations(context.Background(), service.SearchArgs{UserID: "user-ret-1"})
	require.Error(t, err)
}

func TestRetrievalServiceZeroQueryEmbeddingReturnsEmpty(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	sums := repo.NewSummaryRepo(db)
	stub := newStubEmbedder()
	stub.vecs["dead query"] = make([]float32, 768)
	embedder := ai.NewSafeEmbedder(stub, 768)
	retrieval := service.NewRetrievalService(convs, ents, sums, embedder, 0.3, 10)

	seedConversation(t, convs, "user-ret-2", "sess-1", "content", basisVec(0), timeutil.NowUnix())

	matches, err := retrieval.SearchConversations(context.Background(), service.SearchArgs{
		UserID: "user-ret-2",
		Query:  "dead query",
	})
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestRetrievalServiceRecentContextChronological(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	sums := repo.NewSummaryRepo(db)
	embedder := ai.NewSafeEmbedder(newStubEmbedder(), 768)
	retrieval := service.NewRetrievalService(convs, ents, sums, embedder, 0.3, 10)

	base := timeutil.NowUnix()
	seedConversation(t, convs, "user-ret-3", "sess-1", "oldest", basisVec(0), base)
	seedConversation(t, convs, "user-ret-3", "sess-1", "middle", basisVec(0), base+1)
	seedConversation(t, convs, "user-ret-3", "sess-1", "newest", basisVec(0), base+2)

	seedConversation(t, convs, "user-ret-3", "sess-2", "other session", basisVec(0), base+3)

	context3, err := retrieval.GetRecentContext(context.Background(), "user-ret-3", "sess-1", 2)
	require.NoError(t, err)
	require.Len(t, context3, 2)
	require.Equal(t, "middle", context3[0].Content)
	require.Equal(t, "newest", context3[1].Content)

	// Without a session the window spans every session of the user.
	all, err := retrieval.GetRecentContext(context.Background(), "user-ret-3", "", 3)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "middle", all[0].Content)
	require.Equal(t, "newest", all[1].Content)
	require.Equal(t, "other session", all[2].Content)
}

func TestRetrievalServiceTimelinePreviewTruncation(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	ents := repo.NewEntityRepo(db)
	sums := repo.NewSummaryRepo(db)
	embedder := ai.NewSafeEmbedder(newStubEmbedder(), 768)
	retrieval := service.NewRetrievalService(convs, ents, sums, embedder, 0.3, 10)

	long := strings.Repeat("x", 300)
	seedConversation(t, convs, "user-ret-4", "sess-1", long, basisVec(0), timeutil.NowUnix())

	items, err := retrieval.GetTimeline(context.Background(), "user-ret-4", "", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, []rune(items[0].Preview), 203)
	require.True(t, strings.HasSuffix(items[0].Preview, "..."))
}
