package repo

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/memhubio/memhub/internal/model"
)

type RelationshipRepo struct {
	db *sql.DB
}

func NewRelationshipRepo(db *sql.DB) *RelationshipRepo {
	return &RelationshipRepo{db: db}
}

const insertRelationshipQuery = `
	INSERT INTO relationships (source_entity_id, target_entity_id, relationship_type, weight, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
`

func (r *RelationshipRepo) Insert(ctx context.Context, rel *model.Relationship) (int64, error) {
	return r.insert(ctx, r.db.QueryRowContext, rel)
}

func (r *RelationshipRepo) InsertTx(ctx context.Context, tx *sql.Tx, rel *model.Relationship) (int64, error) {
	return r.insert(ctx, tx.QueryRowContext, rel)
}

func (r *RelationshipRepo) insert(ctx context.Context, queryRow queryRowFunc, rel *model.Relationship) (int64, error) {
	var id int64
	err := queryRow(ctx, insertRelationshipQuery,
		rel.SourceEntityID,
		rel.TargetEntityID,
		rel.RelationshipType,
		rel.Weight,
		rel.Metadata,
		rel.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	rel.ID = id
	return id, nil
}

// ListByEntityIDs returns relationships whose endpoints both fall inside the
// given entity set. Edges pointing outside the set are not part of the
// user's graph and would be dropped during the build anyway.
func (r *RelationshipRepo) ListByEntityIDs(ctx context.Context, entityIDs []int64) ([]model.Relationship, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	const query = `
		SELECT id, source_entity_id, target_entity_id, relationship_type, weight, metadata, created_at
		FROM relationships
		WHERE source_entity_id = ANY($1) AND target_entity_id = ANY($1)
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(entityIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rels []model.Relationship
	for rows.Next() {
		var rel model.Relationship
		if err := rows.Scan(&rel.ID, &rel.SourceEntityID, &rel.TargetEntityID,
			&rel.RelationshipType, &rel.Weight, &rel.Metadata, &rel.CreatedAt); err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}
