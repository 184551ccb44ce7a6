package contract

import (
	"context"

	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/repository/specification"

	"github.com/google/uuid"
)

type PipelineRunRepository interface {
	Create(ctx context.Context, run *entity.PipelineRun) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PipelineRun, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PipelineRun, error)
	// NextSeq allocates the next run sequence for (session, kind).
	NextSeq(ctx context.Context, sessionId uuid.UUID, kind string) (int, error)
	// SaveCheckpoint overwrites the run's checkpoint columns. A write whose
	// stage_index is lower than the stored one must be rejected.
	SaveCheckpoint(ctx context.Context, run *entity.PipelineRun) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error
}
