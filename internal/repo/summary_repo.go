package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/memhubio/memhub/internal/model"
)

type SummaryRepo struct {
	db *sql.DB
}

func NewSummaryRepo(db *sql.DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

func (r *SummaryRepo) Insert(ctx context.Context, sum *model.Summary) (int64, error) {
	const query = `
		INSERT INTO summaries (user_id, session_id, summary_text, summary_type, embedding, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sum.UserID,
		sum.SessionID,
		sum.SummaryText,
		sum.SummaryType,
		pgvector.NewVector(sum.Embedding),
		sum.StartTime,
		sum.EndTime,
		sum.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	sum.ID = id
	return id, nil
}

type SummaryMatch struct {
	model.Summary
	Similarity float64 `json:"similarity"`
}

func (r *SummaryRepo) SearchSimilar(ctx context.Context, userID string, embedding []float32, summaryType string, fetchLimit int) ([]SummaryMatch, error) {
	query := `
		SELECT id, user_id, session_id, summary_text, summary_type, start_time, end_time, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM summaries
		WHERE user_id = $2 AND embedding IS NOT NULL
	`
	args := []interface{}{pgvector.NewVector(embedding), userID}
	if summaryType != "" {
		args = append(args, summaryType)
		query += ` AND summary_type = $` + itoa(len(args))
	}
	args = append(args, fetchLimit)
	query += ` ORDER BY similarity DESC LIMIT $` + itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []SummaryMatch
	for rows.Next() {
		var m SummaryMatch
		if err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.SummaryText, &m.SummaryType,
			&m.StartTime, &m.EndTime, &m.CreatedAt, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
