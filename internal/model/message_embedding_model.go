package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type MessageEmbedding struct {
	Id              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId   uuid.UUID       `gorm:"type:uuid;not null;index:idx_message_embeddings_session"`
	SourceMessageId uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uniq_message_embeddings_source,where:chunk_index = 0"`
	Role            string          `gorm:"type:varchar(50);not null"`
	Document        string          `gorm:"type:text"`
	EmbeddingValue  pgvector.Vector `gorm:"type:vector(768)"` // Gemini text-embedding-004 uses 768 dimensions
	ChunkIndex      int             `gorm:"default:0"`        // 0-based index for ordering
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	DeletedAt       gorm.DeletedAt  `gorm:"index"`
}

func (MessageEmbedding) TableName() string {
	return "message_embeddings"
}
