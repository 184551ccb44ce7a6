package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PipelineRun struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ChatSessionId uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:uniq_pipeline_runs_seq,priority:1"`
	Kind          string         `gorm:"type:varchar(50);not null;uniqueIndex:uniq_pipeline_runs_seq,priority:2"`
	Seq           int            `gorm:"not null;uniqueIndex:uniq_pipeline_runs_seq,priority:3"`
	StageIndex    int            `gorm:"not null;default:0"`
	Status        string         `gorm:"type:varchar(20);not null;default:'pending'"`
	FailedStage   string         `gorm:"type:varchar(100)"`
	State         datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
