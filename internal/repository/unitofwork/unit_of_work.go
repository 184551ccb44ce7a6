package unitofwork

import (
	"context"

	"ai-contentgen-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	MessageEmbeddingRepository() contract.MessageEmbeddingRepository
	PipelineRunRepository() contract.PipelineRunRepository
}
