package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/pkg/logger"
	"ai-contentgen-be/internal/repository/unitofwork"
	"ai-contentgen-be/pkg/embedding"
	"ai-contentgen-be/pkg/utils"

	"github.com/google/uuid"
)

const (
	// Chunking parameters for long messages (extracted PDFs, transcripts).
	chunkSize    = 1500
	chunkOverlap = 200

	// DefaultTopK bounds a query when the caller passes no limit.
	DefaultTopK = 5
)

// Result is one retrieved message chunk with its cosine similarity score.
type Result struct {
	SourceMessageId uuid.UUID
	Role            string
	Document        string
	Score           float64
	CreatedAt       time.Time
}

// Index maintains per-conversation message embeddings. Indexing is
// best-effort: an unreachable embedding backend degrades to a warning and the
// conversation keeps working without that message in retrieval.
type Index struct {
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewIndex(embeddingProvider embedding.EmbeddingProvider, log logger.ILogger) *Index {
	return &Index{
		embeddingProvider: embeddingProvider,
		logger:            log,
		locks:             make(map[uuid.UUID]*sync.Mutex),
	}
}

// conversationLock serializes indexing within one conversation so concurrent
// adds of the same message cannot race past the dedup check.
func (ix *Index) conversationLock(conversationId uuid.UUID) *sync.Mutex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	lock, ok := ix.locks[conversationId]
	if !ok {
		lock = &sync.Mutex{}
		ix.locks[conversationId] = lock
	}
	return lock
}

// Add indexes one message. Re-adding the same (conversation, message) pair is
// a no-op; the first write wins. Long content is chunked and every chunk is
// embedded before anything is persisted, so a message is indexed completely
// or not at all.
func (ix *Index) Add(ctx context.Context, uow unitofwork.UnitOfWork, conversationId, sourceMessageId uuid.UUID, role, content string) error {
	if content == "" {
		return nil
	}

	lock := ix.conversationLock(conversationId)
	lock.Lock()
	defer lock.Unlock()

	repo := uow.MessageEmbeddingRepository()
	exists, err := repo.ExistsBySource(ctx, conversationId, sourceMessageId)
	if err != nil {
		return fmt.Errorf("failed to check embedding existence: %w", err)
	}
	if exists {
		ix.logger.Debug("VectorIndex", "Message already indexed, skipping", map[string]interface{}{"message_id": sourceMessageId, "conversation_id": conversationId})
		return nil
	}

	chunks := utils.SplitText(content, chunkSize, chunkOverlap)
	embeddings := make([]*entity.MessageEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		res, err := ix.embeddingProvider.Generate(chunk, embedding.TaskDocument)
		if err != nil {
			// Retrieval is an enhancement: leave the message unindexed
			// rather than failing the conversation.
			ix.logger.Warn("VectorIndex", "Embedding unavailable, leaving message unindexed", map[string]interface{}{"message_id": sourceMessageId, "chunk": i, "error": err.Error()})
			return nil
		}
		embeddings = append(embeddings, &entity.MessageEmbedding{
			Id:              uuid.New(),
			ChatSessionId:   conversationId,
			SourceMessageId: sourceMessageId,
			Role:            role,
			Document:        chunk,
			EmbeddingValue:  res.Embedding.Values,
			ChunkIndex:      i,
		})
	}

	if err := repo.CreateBulk(ctx, embeddings); err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}
	ix.logger.Info("VectorIndex", "Indexed message", map[string]interface{}{"message_id": sourceMessageId, "conversation_id": conversationId, "chunks": len(embeddings)})
	return nil
}

// Query returns up to topK chunks of the conversation most similar to the
// query text, highest score first; equal scores order newest first. An empty
// or degraded result is an empty slice, never an error.
func (ix *Index) Query(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	res, err := ix.embeddingProvider.Generate(query, embedding.TaskQuery)
	if err != nil {
		ix.logger.Warn("VectorIndex", "Embedding unavailable for query, returning no context", map[string]interface{}{"conversation_id": conversationId, "error": err.Error()})
		return []Result{}, nil
	}

	scored, err := uow.MessageEmbeddingRepository().SearchSimilarWithScore(ctx, res.Embedding.Values, topK, conversationId)
	if err != nil {
		ix.logger.Warn("VectorIndex", "Vector search failed, returning no context", map[string]interface{}{"conversation_id": conversationId, "error": err.Error()})
		return []Result{}, nil
	}

	results := make([]Result, 0, len(scored))
	for _, s := range scored {
		results = append(results, Result{
			SourceMessageId: s.Embedding.SourceMessageId,
			Role:            s.Embedding.Role,
			Document:        s.Embedding.Document,
			Score:           s.Similarity,
			CreatedAt:       s.Embedding.CreatedAt,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteConversation drops every indexed chunk of a conversation and reports
// how many rows were removed. Deleting an unknown conversation removes zero.
func (ix *Index) DeleteConversation(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID) (int64, error) {
	lock := ix.conversationLock(conversationId)
	lock.Lock()
	defer lock.Unlock()

	removed, err := uow.MessageEmbeddingRepository().DeleteByChatSessionId(ctx, conversationId)
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversation index: %w", err)
	}

	ix.mu.Lock()
	delete(ix.locks, conversationId)
	ix.mu.Unlock()

	ix.logger.Info("VectorIndex", "Removed conversation index", map[string]interface{}{"conversation_id": conversationId, "chunks": removed})
	return removed, nil
}

// Backfill re-indexes a conversation from its stored messages, e.g. after the
// index was dropped or the embedding model changed. Already-indexed messages
// are skipped by Add's dedup check.
func (ix *Index) Backfill(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID, messages []*entity.ChatMessage) (int, error) {
	indexed := 0
	for _, msg := range messages {
		if msg.IsDeleted {
			continue
		}
		content := msg.Content
		if msg.ExtractedContent != "" {
			content = msg.ExtractedContent
		}
		if err := ix.Add(ctx, uow, conversationId, msg.Id, msg.Role, content); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}
