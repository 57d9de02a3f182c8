package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/memhubio/memhub/internal/model"
	"github.com/memhubio/memhub/internal/pkg/dbutil"
	appErr "github.com/memhubio/memhub/internal/pkg/errors"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Insert(ctx context.Context, conv *model.Conversation) (int64, error) {
	const query = `
		INSERT INTO conversations (user_id, session_id, role, content, platform, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		conv.UserID,
		conv.SessionID,
		conv.Role,
		conv.Content,
		conv.Platform,
		pgvector.NewVector(conv.Embedding),
		conv.Metadata,
		conv.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	conv.ID = id
	return id, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, userID string, id int64) (*model.Conversation, error) {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, conversationColumns())
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	conv, err := scanConversation(rows)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepo) UpdateMetadata(ctx context.Context, userID string, id int64, metadata string) error {
	where := map[string]interface{}{
		"id":      id,
		"user_id": userID,
	}
	update := map[string]interface{}{
		"metadata": metadata,
	}
	sqlStr, args, err := builder.BuildUpdate("conversations", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ListRecent returns the newest rows first; callers wanting chronological
// order reverse the slice.
func (r *ConversationRepo) ListRecent(ctx context.Context, userID, sessionID string, limit int) ([]model.Conversation, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "created_at desc, id desc",
		"_limit":   []uint{0, uint(limit)},
	}
	if sessionID != "" {
		where["session_id"] = sessionID
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, conversationColumns())
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryConversations(ctx, sqlStr, args)
}

func (r *ConversationRepo) ListBySession(ctx context.Context, userID, sessionID string) ([]model.Conversation, error) {
	where := map[string]interface{}{
		"user_id":    userID,
		"session_id": sessionID,
		"_orderby":   "created_at asc, id asc",
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, conversationColumns())
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryConversations(ctx, sqlStr, args)
}

type ConversationMatch struct {
	model.Conversation
	Similarity float64 `json:"similarity"`
}

type SimilarConversationsQuery struct {
	UserID    string
	Embedding []float32
	SessionID string
	Platform  string
	// Since filters by created_at when > 0.
	Since int64
	// FetchLimit is the over-fetched candidate count, already multiplied by
	// the over-fetch factor.
	FetchLimit int
}

// SearchSimilar returns candidates ordered by cosine similarity descending.
// Threshold filtering happens client-side in the retrieval engine.
func (r *ConversationRepo) SearchSimilar(ctx context.Context, q SimilarConversationsQuery) ([]ConversationMatch, error) {
	query := `
		SELECT id, user_id, session_id, role, content, platform, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM conversations
		WHERE user_id = $2 AND embedding IS NOT NULL
	`
	args := []interface{}{pgvector.NewVector(q.Embedding), q.UserID}
	if q.SessionID != "" {
		args = append(args, q.SessionID)
		query += ` AND session_id = $` + itoa(len(args))
	}
	if q.Platform != "" {
		args = append(args, q.Platform)
		query += ` AND platform = $` + itoa(len(args))
	}
	if q.Since > 0 {
		args = append(args, q.Since)
		query += ` AND created_at >= $` + itoa(len(args))
	}
	args = append(args, q.FetchLimit)
	query += ` ORDER BY similarity DESC LIMIT $` + itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []ConversationMatch
	for rows.Next() {
		var m ConversationMatch
		if err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.Role, &m.Content,
			&m.Platform, &m.Metadata, &m.CreatedAt, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Timeline lists conversations newest-first, optionally restricted to
// conversations that mention an entity name.
func (r *ConversationRepo) Timeline(ctx context.Context, userID, entityName string, limit int) ([]model.Conversation, error) {
	if entityName == "" {
		return r.ListRecent(ctx, userID, "", limit)
	}
	const query = `
		SELECT id, user_id, session_id, role, content, platform, metadata, created_at
		FROM conversations
		WHERE user_id = $1
		  AND id IN (SELECT conversation_id FROM entities WHERE entity_name ILIKE $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, "%"+entityName+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConversationsNoEmbedding(rows)
}

func (r *ConversationRepo) Delete(ctx context.Context, userID string, id int64) error {
	const query = `DELETE FROM conversations WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

type SessionWindow struct {
	UserID    string
	SessionID string
	StartTime int64
	EndTime   int64
}

// ListIdleSessions finds sessions whose newest message is older than the
// cutoff and that have no session summary covering it yet.
func (r *ConversationRepo) ListIdleSessions(ctx context.Context, cutoff int64, limit int) ([]SessionWindow, error) {
	const query = `
		SELECT c.user_id, c.session_id, MIN(c.created_at), MAX(c.created_at)
		FROM conversations c
		GROUP BY c.user_id, c.session_id
		HAVING MAX(c.created_at) < $1
		   AND NOT EXISTS (
			SELECT 1 FROM summaries s
			WHERE s.user_id = c.user_id
			  AND s.session_id = c.session_id
			  AND s.summary_type = 'session'
			  AND s.end_time >= MAX(c.created_at)
		   )
		ORDER BY MAX(c.created_at) ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []SessionWindow
	for rows.Next() {
		var s SessionWindow
		if err := rows.Scan(&s.UserID, &s.SessionID, &s.StartTime, &s.EndTime); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func conversationColumns() []string {
	return []string{"id", "user_id", "session_id", "role", "content", "platform", "embedding", "metadata", "created_at"}
}

func (r *ConversationRepo) queryConversations(ctx context.Context, sqlStr string, args []interface{}) ([]model.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var convs []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

func scanConversation(rows *sql.Rows) (*model.Conversation, error) {
	var conv model.Conversation
	var embedding pgvector.Vector
	if err := rows.Scan(&conv.ID, &conv.UserID, &conv.SessionID, &conv.Role, &conv.Content,
		&conv.Platform, &embedding, &conv.Metadata, &conv.CreatedAt); err != nil {
		return nil, err
	}
	conv.Embedding = embedding.Slice()
	return &conv, nil
}

func scanConversationsNoEmbedding(rows *sql.Rows) ([]model.Conversation, error) {
	var convs []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.SessionID, &conv.Role, &conv.Content,
			&conv.Platform, &conv.Metadata, &conv.CreatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}
