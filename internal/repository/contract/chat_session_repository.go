package contract

import (
	"context"

	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Touch bumps updated_at; called whenever a message lands in the session.
	Touch(ctx context.Context, id uuid.UUID) error
}
