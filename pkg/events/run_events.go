package events

import "github.com/google/uuid"

// Run lifecycle event type codes. Published on NATS as events.<type>.
const (
	TypeRunStarted        = "RUN_STARTED"
	TypeRunStageCompleted = "RUN_STAGE_COMPLETED"
	TypeRunCompleted      = "RUN_COMPLETED"
	TypeRunFailed         = "RUN_FAILED"
	TypeRunCancelled      = "RUN_CANCELLED"
)

func NewRunStarted(runId, sessionId uuid.UUID, kind string) Event {
	return NewBaseEvent(TypeRunStarted, map[string]interface{}{
		"run_id":          runId.String(),
		"chat_session_id": sessionId.String(),
		"kind":            kind,
	})
}

func NewRunStageCompleted(runId uuid.UUID, stage string, stageIndex int) Event {
	return NewBaseEvent(TypeRunStageCompleted, map[string]interface{}{
		"run_id":      runId.String(),
		"stage":       stage,
		"stage_index": stageIndex,
	})
}

func NewRunCompleted(runId uuid.UUID, kind string) Event {
	return NewBaseEvent(TypeRunCompleted, map[string]interface{}{
		"run_id": runId.String(),
		"kind":   kind,
	})
}

func NewRunFailed(runId uuid.UUID, failedStage string, reason string) Event {
	return NewBaseEvent(TypeRunFailed, map[string]interface{}{
		"run_id":       runId.String(),
		"failed_stage": failedStage,
		"reason":       reason,
	})
}

func NewRunCancelled(runId uuid.UUID) Event {
	return NewBaseEvent(TypeRunCancelled, map[string]interface{}{
		"run_id": runId.String(),
	})
}
