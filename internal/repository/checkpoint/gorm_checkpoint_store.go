package checkpoint

import (
	"context"

	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/repository/contract"
	"ai-contentgen-be/internal/repository/specification"
	"ai-contentgen-be/pkg/pipeline"

	"github.com/google/uuid"
)

// GormCheckpointStore persists pipeline checkpoints in the pipeline_runs
// table. The monotonic stage-index guard lives in the repository's
// SaveCheckpoint, so concurrent executors race safely at the database.
type GormCheckpointStore struct {
	runRepository contract.PipelineRunRepository
}

var _ pipeline.CheckpointStore = &GormCheckpointStore{}

func NewGormCheckpointStore(runRepository contract.PipelineRunRepository) *GormCheckpointStore {
	return &GormCheckpointStore{runRepository: runRepository}
}

func (s *GormCheckpointStore) Put(ctx context.Context, checkpoint *pipeline.Checkpoint) error {
	stateJSON, err := checkpoint.State.Marshal()
	if err != nil {
		return err
	}
	return s.runRepository.SaveCheckpoint(ctx, &entity.PipelineRun{
		Id:            checkpoint.RunId,
		ChatSessionId: checkpoint.State.ConversationId,
		Kind:          string(checkpoint.Kind),
		StageIndex:    checkpoint.StageIndex,
		Status:        string(checkpoint.Status),
		FailedStage:   checkpoint.FailedStage,
		State:         stateJSON,
	})
}

func (s *GormCheckpointStore) Get(ctx context.Context, runId uuid.UUID) (*pipeline.Checkpoint, error) {
	run, err := s.runRepository.FindOne(ctx, specification.ByID{ID: runId})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, pipeline.ErrRunNotFound
	}

	var state *pipeline.RunState
	if len(run.State) > 0 {
		state, err = pipeline.UnmarshalRunState(run.State)
		if err != nil {
			return nil, err
		}
	}

	updatedAt := run.CreatedAt
	if run.UpdatedAt != nil {
		updatedAt = *run.UpdatedAt
	}
	return &pipeline.Checkpoint{
		RunId:       run.Id,
		Kind:        pipeline.Kind(run.Kind),
		StageIndex:  run.StageIndex,
		Status:      pipeline.CheckpointStatus(run.Status),
		FailedStage: run.FailedStage,
		State:       state,
		UpdatedAt:   updatedAt,
	}, nil
}

func (s *GormCheckpointStore) Delete(ctx context.Context, runId uuid.UUID) error {
	return s.runRepository.Delete(ctx, runId)
}
