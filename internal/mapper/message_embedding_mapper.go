package mapper

import (
	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type MessageEmbeddingMapper struct{}

func NewMessageEmbeddingMapper() *MessageEmbeddingMapper {
	return &MessageEmbeddingMapper{}
}

func (m *MessageEmbeddingMapper) ToModel(e *entity.MessageEmbedding) *model.MessageEmbedding {
	if e == nil {
		return nil
	}
	return &model.MessageEmbedding{
		Id:              e.Id,
		ChatSessionId:   e.ChatSessionId,
		SourceMessageId: e.SourceMessageId,
		Role:            e.Role,
		Document:        e.Document,
		EmbeddingValue:  pgvector.NewVector(e.EmbeddingValue),
		ChunkIndex:      e.ChunkIndex,
		CreatedAt:       e.CreatedAt,
	}
}

func (m *MessageEmbeddingMapper) ToEntity(mm *model.MessageEmbedding) *entity.MessageEmbedding {
	if mm == nil {
		return nil
	}
	return &entity.MessageEmbedding{
		Id:              mm.Id,
		ChatSessionId:   mm.ChatSessionId,
		SourceMessageId: mm.SourceMessageId,
		Role:            mm.Role,
		Document:        mm.Document,
		EmbeddingValue:  mm.EmbeddingValue.Slice(),
		ChunkIndex:      mm.ChunkIndex,
		CreatedAt:       mm.CreatedAt,
	}
}
