package implementation

import (
	"context"

	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/mapper"
	"ai-contentgen-be/internal/model"
	"ai-contentgen-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type MessageEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MessageEmbeddingMapper
}

func NewMessageEmbeddingRepository(db *gorm.DB) contract.MessageEmbeddingRepository {
	return &MessageEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewMessageEmbeddingMapper(),
	}
}

func (r *MessageEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.MessageEmbedding) error {
	models := make([]*model.MessageEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = r.mapper.ToModel(e)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*embeddings[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *MessageEmbeddingRepositoryImpl) ExistsBySource(ctx context.Context, sessionId, sourceMessageId uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.MessageEmbedding{}).
		Where("chat_session_id = ?", sessionId).
		Where("source_message_id = ?", sourceMessageId).
		Where("chunk_index = 0").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MessageEmbeddingRepositoryImpl) DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Unscoped().
		Where("chat_session_id = ?", sessionId).
		Delete(&model.MessageEmbedding{})
	return res.RowsAffected, res.Error
}

// SearchSimilarWithScore returns embeddings with similarity scores for one session.
// Cosine distance in pgvector is 1 - cosine_similarity, so we select
// 1 - (embedding_value <=> query_vector) as the score.
func (r *MessageEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID) ([]*contract.ScoredMessageEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.MessageEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("message_embeddings").
		Select("message_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("chat_session_id = ?", sessionId).
		Where("deleted_at IS NULL").
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredMessageEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredMessageEmbedding{
			Embedding:  r.mapper.ToEntity(&res.MessageEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
