package repo

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/pgvector/pgvector-go"

	"github.com/memhubio/memhub/internal/model"
)

type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	const query = `
		SELECT embedding FROM embedding_cache
		WHERE model_name = $1 AND task_type = $2 AND content_hash = $3
	`
	var embedding pgvector.Vector
	err := r.db.QueryRowContext(ctx, query, modelName, taskType, contentHash).Scan(&embedding)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return embedding.Slice(), true, nil
}

func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	const query = `
		INSERT INTO embedding_cache (model_name, task_type, content_hash, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (model_name, task_type, content_hash)
		DO UPDATE SET embedding = EXCLUDED.embedding, ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ModelName,
		item.TaskType,
		item.ContentHash,
		pgvector.NewVector(item.Embedding),
		item.Ctime,
	)
	return err
}

// DeleteBefore exists for the periodic cleanup job.
func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, ctime int64) (int64, error) {
	const query = `DELETE FROM embedding_cache WHERE ctime < $1`
	result, err := r.db.ExecContext(ctx, query, ctime)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
