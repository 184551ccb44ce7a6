package entity

import (
	"time"

	"github.com/google/uuid"
)

// PipelineRun is the durable record of one pipeline execution: identity
// (session + kind + per-session sequence) plus the latest checkpoint.
type PipelineRun struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Kind          string // "medium" | "linkedin"
	Seq           int    // monotonic per (session, kind); distinguishes retries
	StageIndex    int
	Status        string // pending | running | completed | failed
	FailedStage   string
	State         []byte // RunState snapshot (JSON)
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}
