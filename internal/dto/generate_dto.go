package dto

import (
	"time"

	"github.com/google/uuid"
)

type StartRunRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
	Platform      string    `json:"platform" validate:"required,oneof=medium linkedin Medium LinkedIn"`
	UserRequest   string    `json:"user_request" validate:"required"`
	// RawContent overrides the session's latest extracted material when set.
	RawContent string `json:"raw_content"`
}

type NarrationDTO struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type RunResponse struct {
	RunId         uuid.UUID         `json:"run_id"`
	ChatSessionId uuid.UUID         `json:"chat_session_id"`
	Kind          string            `json:"kind"`
	Seq           int               `json:"seq"`
	Status        string            `json:"status"`
	StageIndex    int               `json:"stage_index"`
	FailedStage   string            `json:"failed_stage,omitempty"`
	Outputs       map[string]string `json:"outputs,omitempty"`
	Narration     []NarrationDTO    `json:"narration,omitempty"`
	// Final is the last stage's output once the run completes.
	Final string `json:"final,omitempty"`
}

type ResumeRunRequest struct {
	RunId uuid.UUID `json:"run_id" validate:"required"`
}

type CancelRunRequest struct {
	RunId uuid.UUID `json:"run_id" validate:"required"`
}

type ListRunsResponse struct {
	Runs []*RunResponse `json:"runs"`
}

// PublishEmbedChatMessage is the internal event asking the consumer to index
// a chat message.
type PublishEmbedChatMessage struct {
	ChatSessionId uuid.UUID `json:"chat_session_id"`
	MessageId     uuid.UUID `json:"message_id"`
}
