package contract

import (
	"context"

	"ai-contentgen-be/internal/entity"

	"github.com/google/uuid"
)

// ScoredMessageEmbedding wraps MessageEmbedding with its similarity score
type ScoredMessageEmbedding struct {
	Embedding  *entity.MessageEmbedding
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type MessageEmbeddingRepository interface {
	CreateBulk(ctx context.Context, embeddings []*entity.MessageEmbedding) error
	// ExistsBySource reports whether the message is already indexed
	// (chunk 0 present for the pair).
	ExistsBySource(ctx context.Context, sessionId, sourceMessageId uuid.UUID) (bool, error)
	// DeleteByChatSessionId removes every record of a conversation and
	// returns how many rows were removed.
	DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) (int64, error)
	// SearchSimilarWithScore runs a cosine top-k restricted to one session.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, sessionId uuid.UUID) ([]*ScoredMessageEmbedding, error)
}
