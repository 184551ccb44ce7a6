package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NarrationEntry is a short progress note appended after each completed stage.
// The chat timeline shows these to the user while a run is in flight.
type NarrationEntry struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// RunState carries everything a run needs across stages. Stage outputs live in
// Fields under the output field names the definition declares; writes to any
// other field are rejected with ErrUnknownField.
type RunState struct {
	RunId          uuid.UUID        `json:"run_id"`
	ConversationId uuid.UUID        `json:"conversation_id"`
	Platform       string           `json:"platform"`
	RawContent     string           `json:"raw_content"`
	UserRequest    string           `json:"user_request"`
	Fields         map[string]string `json:"fields"`
	Narration      []NarrationEntry `json:"narration"`
}

// NewRunState builds the initial state for a run of def. Every declared output
// field starts empty. Missing inputs make the run invalid before any stage
// executes.
func NewRunState(def *Definition, runId, conversationId uuid.UUID, rawContent, userRequest string) (*RunState, error) {
	var missing []string
	if runId == uuid.Nil {
		missing = append(missing, "run_id")
	}
	if conversationId == uuid.Nil {
		missing = append(missing, "conversation_id")
	}
	if rawContent == "" {
		missing = append(missing, "raw_content")
	}
	if userRequest == "" {
		missing = append(missing, "user_request")
	}
	if len(missing) > 0 {
		return nil, &InvalidRunStateError{Missing: missing}
	}

	fields := make(map[string]string, len(def.Stages))
	for _, stage := range def.Stages {
		fields[stage.OutputField] = ""
	}

	return &RunState{
		RunId:          runId,
		ConversationId: conversationId,
		Platform:       def.Platform,
		RawContent:     rawContent,
		UserRequest:    userRequest,
		Fields:         fields,
		Narration:      []NarrationEntry{},
	}, nil
}

// Get returns the value of a declared output field.
func (s *RunState) Get(field string) (string, bool) {
	v, ok := s.Fields[field]
	return v, ok
}

// Set writes a declared output field. Fields not initialized by NewRunState
// do not exist as far as the run is concerned.
func (s *RunState) Set(field, value string) error {
	if _, ok := s.Fields[field]; !ok {
		return ErrUnknownField
	}
	s.Fields[field] = value
	return nil
}

// Clone deep-copies the state so checkpoints are immutable snapshots.
func (s *RunState) Clone() *RunState {
	fields := make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	narration := make([]NarrationEntry, len(s.Narration))
	copy(narration, s.Narration)

	clone := *s
	clone.Fields = fields
	clone.Narration = narration
	return &clone
}

func (s *RunState) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func UnmarshalRunState(data []byte) (*RunState, error) {
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Fields == nil {
		state.Fields = map[string]string{}
	}
	return &state, nil
}
