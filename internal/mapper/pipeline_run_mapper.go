package mapper

import (
	"time"

	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/model"

	"gorm.io/datatypes"
)

type PipelineRunMapper struct{}

func NewPipelineRunMapper() *PipelineRunMapper {
	return &PipelineRunMapper{}
}

func (m *PipelineRunMapper) ToModel(e *entity.PipelineRun) *model.PipelineRun {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.PipelineRun{
		Id:            e.Id,
		ChatSessionId: e.ChatSessionId,
		Kind:          e.Kind,
		Seq:           e.Seq,
		StageIndex:    e.StageIndex,
		Status:        e.Status,
		FailedStage:   e.FailedStage,
		State:         datatypes.JSON(e.State),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func (m *PipelineRunMapper) ToEntity(mm *model.PipelineRun) *entity.PipelineRun {
	if mm == nil {
		return nil
	}

	var updatedAt *time.Time
	if !mm.UpdatedAt.IsZero() {
		t := mm.UpdatedAt
		updatedAt = &t
	}

	return &entity.PipelineRun{
		Id:            mm.Id,
		ChatSessionId: mm.ChatSessionId,
		Kind:          mm.Kind,
		Seq:           mm.Seq,
		StageIndex:    mm.StageIndex,
		Status:        mm.Status,
		FailedStage:   mm.FailedStage,
		State:         []byte(mm.State),
		CreatedAt:     mm.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}
