package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/memhubio/memhub/internal/service"
)

// sessionSummaryBatch caps how many idle sessions one run summarizes, so a
// backlog drains across ticks instead of holding one long run.
const sessionSummaryBatch = 20

type SessionSummaryJob struct {
	summaries   *service.SummaryService
	idleMinutes int
}

func NewSessionSummaryJob(summaries *service.SummaryService, idleMinutes int) *SessionSummaryJob {
	return &SessionSummaryJob{summaries: summaries, idleMinutes: idleMinutes}
}

func (j *SessionSummaryJob) Name() string {
	return "session_summary"
}

func (j *SessionSummaryJob) Run(ctx context.Context) error {
	if j.summaries == nil || !j.summaries.Enabled() {
		return nil
	}
	idleMinutes := j.idleMinutes
	if idleMinutes <= 0 {
		idleMinutes = 60
	}
	cutoff := time.Now().Add(-time.Duration(idleMinutes) * time.Minute).Unix()
	done, err := j.summaries.SummarizeIdleSessions(ctx, cutoff, sessionSummaryBatch)
	if err != nil {
		return err
	}
	if done > 0 {
		logutil.GetLogger(ctx).Info("sessions summarized", zap.Int("count", done))
	}
	return nil
}
