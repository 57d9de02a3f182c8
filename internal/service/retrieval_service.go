package service

import (
	"context"
	"fmt"

	"github.com/memhubio/memhub/internal/ai"
	"github.com/memhubio/memhub/internal/model"
	appErr "github.com/memhubio/memhub/internal/pkg/errors"
	"github.com/memhubio/memhub/internal/pkg/timeutil"
	"github.com/memhubio/memhub/internal/repo"
)

// overFetchFactor widens the candidate window so threshold filtering still
// fills the requested limit.
const overFetchFactor = 2

const timelinePreviewChars = 200

// RetrievalService owns the read path: similarity search over
// conversations, topics and summaries, plus recency views.
type RetrievalService struct {
	conversations    *repo.ConversationRepo
	entities         *repo.EntityRepo
	summaries        *repo.SummaryRepo
	embedder         *ai.SafeEmbedder
	defaultThreshold float64
	defaultLimit     int
}

func NewRetrievalService(conversations *repo.ConversationRepo, entities *repo.EntityRepo,
	summaries *repo.SummaryRepo, embedder *ai.SafeEmbedder, defaultThreshold float64, defaultLimit int) *RetrievalService {
	return &RetrievalService{
		conversations:    conversations,
		entities:         entities,
		summaries:        summaries,
		embedder:         embedder,
		defaultThreshold: defaultThreshold,
		defaultLimit:     defaultLimit,
	}
}

type SearchArgs struct {
	UserID    string
	Query     string
	SessionID string
	Platform  string
	Days      int
	Threshold float64
	Limit     int
}

func (s *RetrievalService) SearchConversations(ctx context.Context, args SearchArgs) ([]repo.ConversationMatch, error) {
	if args.Query == "" {
		return nil, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	threshold, limit, err := s.defaults(args.Threshold, args.Limit)
	if err != nil {
		return nil, err
	}
	embedding := s.embedder.Embed(ctx, args.Query, TaskTypeQuery)
	if ai.IsZeroVector(embedding) {
		return nil, nil
	}
	var since int64
	if args.Days > 0 {
		since = timeutil.DaysAgoUnix(args.Days)
	}
	candidates, err := s.conversations.SearchSimilar(ctx, repo.SimilarConversationsQuery{
		UserID:     args.UserID,
		Embedding:  embedding,
		SessionID:  args.SessionID,
		Platform:   args.Platform,
		Since:      since,
		FetchLimit: limit * overFetchFactor,
	})
	if err != nil {
		return nil, err
	}
	matches := make([]repo.ConversationMatch, 0, limit)
	for _, m := range candidates {
		if !(m.Similarity >= threshold) {
			continue
		}
		matches = append(matches, m)
		if len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

func (s *RetrievalService) SearchByTopic(ctx context.Context, userID, topic string, threshold float64, limit int) ([]repo.EntityMatch, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", appErr.ErrInvalid)
	}
	threshold, limit, err := s.defaults(threshold, limit)
	if err != nil {
		return nil, err
	}
	embedding := s.embedder.Embed(ctx, topic, TaskTypeQuery)
	if ai.IsZeroVector(embedding) {
		return nil, nil
	}
	candidates, err := s.entities.SearchTopicSimilar(ctx, userID, embedding, limit*overFetchFactor)
	if err != nil {
		return nil, err
	}
	matches := make([]repo.EntityMatch, 0, limit)
	for _, m := range candidates {
		if !(m.Similarity >= threshold) {
			continue
		}
		matches = append(matches, m)
		if len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

func (s *RetrievalService) SearchSummaries(ctx context.Context, userID, query, summaryType string, threshold float64, limit int) ([]repo.SummaryMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	threshold, limit, err := s.defaults(threshold, limit)
	if err != nil {
		return nil, err
	}
	embedding := s.embedder.Embed(ctx, query, TaskTypeQuery)
	if ai.IsZeroVector(embedding) {
		return nil, nil
	}
	candidates, err := s.summaries.SearchSimilar(ctx, userID, embedding, summaryType, limit*overFetchFactor)
	if err != nil {
		return nil, err
	}
	matches := make([]repo.SummaryMatch, 0, limit)
	for _, m := range candidates {
		if !(m.Similarity >= threshold) {
			continue
		}
		matches = append(matches, m)
		if len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

// GetRecentContext returns the latest turns of a session in chronological
// order, oldest first, ready to prepend to a prompt.
func (s *RetrievalService) GetRecentContext(ctx context.Context, userID, sessionID string, limit int) ([]model.Conversation, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", appErr.ErrInvalid)
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	convs, err := s.conversations.ListRecent(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(convs)-1; i < j; i, j = i+1, j-1 {
		convs[i], convs[j] = convs[j], convs[i]
	}
	return convs, nil
}

type TimelineItem struct {
	ConversationID int64  `json:"conversation_id"`
	SessionID      string `json:"session_id"`
	Role           string `json:"role"`
	Preview        string `json:"preview"`
	Platform       string `json:"platform,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}

// GetTimeline lists recent turns newest first, optionally narrowed to turns
// mentioning an entity, with content truncated to a preview.
func (s *RetrievalService) GetTimeline(ctx context.Context, userID, entityName string, limit int) ([]TimelineItem, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", appErr.ErrInvalid)
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	convs, err := s.conversations.Timeline(ctx, userID, entityName, limit)
	if err != nil {
		return nil, err
	}
	items := make([]TimelineItem, 0, len(convs))
	for _, conv := range convs {
		items = append(items, TimelineItem{
			ConversationID: conv.ID,
			SessionID:      conv.SessionID,
			Role:           conv.Role,
			Preview:        truncateRunes(conv.Content, timelinePreviewChars),
			Platform:       conv.Platform,
			CreatedAt:      conv.CreatedAt,
		})
	}
	return items, nil
}

// defaults rejects negative values outright and substitutes the configured
// defaults for unset ones.
func (s *RetrievalService) defaults(threshold float64, limit int) (float64, int, error) {
	if threshold < 0 || limit < 0 {
		return 0, 0, fmt.Errorf("%w: threshold and limit must not be negative", appErr.ErrInvalid)
	}
	if threshold == 0 {
		threshold = s.defaultThreshold
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	return threshold, limit, nil
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
