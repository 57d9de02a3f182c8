package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/memhubio/memhub/internal/model"
	appErr "github.com/memhubio/memhub/internal/pkg/errors"
)

type EntityRepo struct {
	db *sql.DB
}

func NewEntityRepo(db *sql.DB) *EntityRepo {
	return &EntityRepo{db: db}
}

const insertEntityQuery = `
	INSERT INTO entities (user_id, conversation_id, entity_type, entity_name, description, embedding, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
`

func (r *EntityRepo) Insert(ctx context.Context, ent *model.Entity) (int64, error) {
	return r.insert(ctx, r.db.QueryRowContext, ent)
}

// InsertTx is used by the ingestion pipeline so entities and relationships
// land atomically.
func (r *EntityRepo) InsertTx(ctx context.Context, tx *sql.Tx, ent *model.Entity) (int64, error) {
	return r.insert(ctx, tx.QueryRowContext, ent)
}

type queryRowFunc func(ctx context.Context, query string, args ...interface{}) *sql.Row

func (r *EntityRepo) insert(ctx context.Context, queryRow queryRowFunc, ent *model.Entity) (int64, error) {
	var id int64
	err := queryRow(ctx, insertEntityQuery,
		ent.UserID,
		ent.ConversationID,
		ent.EntityType,
		ent.EntityName,
		ent.Description,
		pgvector.NewVector(ent.Embedding),
		ent.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	ent.ID = id
	return id, nil
}

// ListByUser returns every entity reachable through the user's conversations.
// Graph queries rebuild the knowledge graph from this set on each call.
func (r *EntityRepo) ListByUser(ctx context.Context, userID string) ([]model.Entity, error) {
	const query = `
		SELECT e.id, e.user_id, e.conversation_id, e.entity_type, e.entity_name, e.description, e.created_at
		FROM entities e
		JOIN conversations c ON e.conversation_id = c.id
		WHERE c.user_id = $1
		ORDER BY e.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

// FindFirstByNameLike resolves a human-supplied entity name to the oldest
// matching stored entity, case-insensitively.
func (r *EntityRepo) FindFirstByNameLike(ctx context.Context, userID, name string) (*model.Entity, error) {
	const query = `
		SELECT e.id, e.user_id, e.conversation_id, e.entity_type, e.entity_name, e.description, e.created_at
		FROM entities e
		JOIN conversations c ON e.conversation_id = c.id
		WHERE c.user_id = $1 AND e.entity_name ILIKE $2
		ORDER BY e.id ASC
		LIMIT 1
	`
	rows, err := r.db.QueryContext(ctx, query, userID, "%"+name+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ents, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &ents[0], nil
}

func (r *EntityRepo) GetByID(ctx context.Context, userID string, id int64) (*model.Entity, error) {
	const query = `
		SELECT e.id, e.user_id, e.conversation_id, e.entity_type, e.entity_name, e.description, e.created_at
		FROM entities e
		JOIN conversations c ON e.conversation_id = c.id
		WHERE c.user_id = $1 AND e.id = $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ents, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &ents[0], nil
}

type EntityMatch struct {
	model.Entity
	Similarity float64 `json:"similarity"`
}

// SearchTopicSimilar ranks topic and concept entities by cosine similarity
// against the query embedding.
func (r *EntityRepo) SearchTopicSimilar(ctx context.Context, userID string, embedding []float32, fetchLimit int) ([]EntityMatch, error) {
	const query = `
		SELECT e.id, e.user_id, e.conversation_id, e.entity_type, e.entity_name, e.description, e.created_at,
		       1 - (e.embedding <=> $1) AS similarity
		FROM entities e
		JOIN conversations c ON e.conversation_id = c.id
		WHERE c.user_id = $2
		  AND e.entity_type IN ('topic', 'concept')
		  AND e.embedding IS NOT NULL
		ORDER BY similarity DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(embedding), userID, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []EntityMatch
	for rows.Next() {
		var m EntityMatch
		if err := rows.Scan(&m.ID, &m.UserID, &m.ConversationID, &m.EntityType, &m.EntityName,
			&m.Description, &m.CreatedAt, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func scanEntities(rows *sql.Rows) ([]model.Entity, error) {
	var ents []model.Entity
	for rows.Next() {
		var ent model.Entity
		if err := rows.Scan(&ent.ID, &ent.UserID, &ent.ConversationID, &ent.EntityType,
			&ent.EntityName, &ent.Description, &ent.CreatedAt); err != nil {
			return nil, err
		}
		ents = append(ents, ent)
	}
	return ents, rows.Err()
}
