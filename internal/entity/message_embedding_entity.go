package entity

import (
	"time"

	"github.com/google/uuid"
)

// MessageEmbedding is one indexed chunk of a chat message. Chunk 0 carries the
// dedup identity: at most one chunk-0 row exists per (ChatSessionId, SourceMessageId).
type MessageEmbedding struct {
	Id              uuid.UUID
	ChatSessionId   uuid.UUID
	SourceMessageId uuid.UUID
	Role            string
	Document        string
	EmbeddingValue  []float32
	ChunkIndex      int
	CreatedAt       time.Time
}
