package contract

import (
	"context"

	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, message *entity.ChatMessage) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error
	// FindLatestExtracted returns the most recent message with extracted
	// source material for a session, or nil when none exists.
	FindLatestExtracted(ctx context.Context, sessionId uuid.UUID) (*entity.ChatMessage, error)
}
