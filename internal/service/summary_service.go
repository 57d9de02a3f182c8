package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/memhubio/memhub/internal/ai"
	"github.com/memhubio/memhub/internal/model"
	appErr "github.com/memhubio/memhub/internal/pkg/errors"
	"github.com/memhubio/memhub/internal/pkg/timeutil"
	"github.com/memhubio/memhub/internal/repo"
)

const summaryPrompt = `Summarize the following conversation in a few sentences.
Capture the topics discussed, decisions made and any facts worth remembering.
Reply with the summary only.

%s`

// maxSummaryTurns caps how much of a session is fed to the generator.
const maxSummaryTurns = 50

// SummaryService condenses finished sessions into stored, searchable
// summaries. It is inert when no text generator is configured.
type SummaryService struct {
	conversations *repo.ConversationRepo
	summaries     *repo.SummaryRepo
	generator     ai.IGenerator
	embedder      *ai.SafeEmbedder
}

func NewSummaryService(conversations *repo.ConversationRepo, summaries *repo.SummaryRepo,
	generator ai.IGenerator, embedder *ai.SafeEmbedder) *SummaryService {
	return &SummaryService{
		conversations: conversations,
		summaries:     summaries,
		generator:     generator,
		embedder:      embedder,
	}
}

func (s *SummaryService) Enabled() bool {
	return s.generator != nil
}

// SummarizeSession generates and stores one session summary.
func (s *SummaryService) SummarizeSession(ctx context.Context, userID, sessionID string) (*model.Summary, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("%w: no text generator configured", appErr.ErrInternal)
	}
	convs, err := s.conversations.ListBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, appErr.ErrNotFound
	}
	if len(convs) > maxSummaryTurns {
		convs = convs[len(convs)-maxSummaryTurns:]
	}

	var sb strings.Builder
	for _, conv := range convs {
		sb.WriteString(conv.Role)
		sb.WriteString(": ")
		sb.WriteString(conv.Content)
		sb.WriteString("\n")
	}
	text, err := s.generator.Generate(ctx, fmt.Sprintf(summaryPrompt, sb.String()))
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("generate summary: empty response")
	}

	sum := &model.Summary{
		UserID:      userID,
		SessionID:   sessionID,
		SummaryText: text,
		SummaryType: model.SummaryTypeSession,
		Embedding:   s.embedder.Embed(ctx, text, TaskTypeDocument),
		StartTime:   convs[0].CreatedAt,
		EndTime:     convs[len(convs)-1].CreatedAt,
		CreatedAt:   timeutil.NowUnix(),
	}
	if _, err := s.summaries.Insert(ctx, sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// SummarizeIdleSessions summarizes sessions whose newest turn is older than
// the cutoff. One failing session does not stop the batch.
func (s *SummaryService) SummarizeIdleSessions(ctx context.Context, cutoff int64, batch int) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	sessions, err := s.conversations.ListIdleSessions(ctx, cutoff, batch)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, sess := range sessions {
		if _, err := s.SummarizeSession(ctx, sess.UserID, sess.SessionID); err != nil {
			logutil.GetLogger(ctx).Warn("session summary failed",
				zap.String("session_id", sess.SessionID), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}
