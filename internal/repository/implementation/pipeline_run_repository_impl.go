package implementation

import (
	"context"
	"errors"

	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/mapper"
	"ai-contentgen-be/internal/model"
	"ai-contentgen-be/internal/repository/contract"
	"ai-contentgen-be/internal/repository/specification"
	"ai-contentgen-be/pkg/pipeline"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PipelineRunRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PipelineRunMapper
}

func NewPipelineRunRepository(db *gorm.DB) contract.PipelineRunRepository {
	return &PipelineRunRepositoryImpl{
		db:     db,
		mapper: mapper.NewPipelineRunMapper(),
	}
}

func (r *PipelineRunRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PipelineRunRepositoryImpl) Create(ctx context.Context, run *entity.PipelineRun) error {
	m := r.mapper.ToModel(run)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*run = *r.mapper.ToEntity(m)
	return nil
}

func (r *PipelineRunRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PipelineRun, error) {
	var m model.PipelineRun
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *PipelineRunRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PipelineRun, error) {
	var models []*model.PipelineRun
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.PipelineRun, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *PipelineRunRepositoryImpl) NextSeq(ctx context.Context, sessionId uuid.UUID, kind string) (int, error) {
	var maxSeq int
	err := r.db.WithContext(ctx).
		Model(&model.PipelineRun{}).
		Select("COALESCE(MAX(seq), 0)").
		Where("chat_session_id = ?", sessionId).
		Where("kind = ?", kind).
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

// SaveCheckpoint overwrites the run's checkpoint columns. The WHERE guard makes
// the stage index monotonically non-decreasing: a stale retry carrying a lower
// index matches zero rows and is reported as a conflict.
func (r *PipelineRunRepositoryImpl) SaveCheckpoint(ctx context.Context, run *entity.PipelineRun) error {
	res := r.db.WithContext(ctx).
		Model(&model.PipelineRun{}).
		Where("id = ?", run.Id).
		Where("stage_index <= ?", run.StageIndex).
		Updates(map[string]interface{}{
			"stage_index":  run.StageIndex,
			"status":       run.Status,
			"failed_stage": run.FailedStage,
			"state":        datatypes.JSON(run.State),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := r.FindOne(ctx, specification.ByID{ID: run.Id})
		if err != nil {
			return err
		}
		if existing != nil {
			return pipeline.ErrCheckpointConflict
		}
		// No row yet: first checkpoint for this run.
		return r.Create(ctx, run)
	}
	return nil
}

func (r *PipelineRunRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.PipelineRun{}, id).Error
}

func (r *PipelineRunRepositoryImpl) DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionId).
		Delete(&model.PipelineRun{}).Error
}
