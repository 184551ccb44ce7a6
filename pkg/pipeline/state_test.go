package pipeline

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewRunStateValidation(t *testing.T) {
	def := MediumDefinition()
	runId := uuid.New()
	convId := uuid.New()

	tests := []struct {
		name        string
		runId       uuid.UUID
		convId      uuid.UUID
		rawContent  string
		userRequest string
		wantMissing []string
	}{
		{
			name:        "all inputs present",
			runId:       runId,
			convId:      convId,
			rawContent:  "some source material",
			userRequest: "write a blog",
			wantMissing: nil,
		},
		{
			name:        "missing raw content",
			runId:       runId,
			convId:      convId,
			userRequest: "write a blog",
			wantMissing: []string{"raw_content"},
		},
		{
			name:        "missing user request",
			runId:       runId,
			convId:      convId,
			rawContent:  "some source material",
			wantMissing: []string{"user_request"},
		},
		{
			name:        "missing identifiers and inputs",
			wantMissing: []string{"run_id", "conversation_id", "raw_content", "user_request"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := NewRunState(def, tt.runId, tt.convId, tt.rawContent, tt.userRequest)

			if len(tt.wantMissing) == 0 {
				if err != nil {
					t.Fatalf("NewRunState() error = %v, want nil", err)
				}
				for _, stage := range def.Stages {
					if v, ok := state.Get(stage.OutputField); !ok || v != "" {
						t.Errorf("field %q = (%q, %v), want declared and empty", stage.OutputField, v, ok)
					}
				}
				return
			}

			invalidErr, ok := err.(*InvalidRunStateError)
			if !ok {
				t.Fatalf("NewRunState() error = %v, want *InvalidRunStateError", err)
			}
			if len(invalidErr.Missing) != len(tt.wantMissing) {
				t.Fatalf("Missing = %v, want %v", invalidErr.Missing, tt.wantMissing)
			}
			for i, field := range tt.wantMissing {
				if invalidErr.Missing[i] != field {
					t.Errorf("Missing[%d] = %q, want %q", i, invalidErr.Missing[i], field)
				}
			}
		})
	}
}

func TestRunStateSetRejectsUndeclaredField(t *testing.T) {
	def := MediumDefinition()
	state, err := NewRunState(def, uuid.New(), uuid.New(), "raw", "request")
	if err != nil {
		t.Fatalf("NewRunState failed: %v", err)
	}

	if err := state.Set("outline", "the outline"); err != nil {
		t.Errorf("Set(outline) = %v, want nil", err)
	}
	if err := state.Set("summary", "nope"); err != ErrUnknownField {
		t.Errorf("Set(summary) = %v, want ErrUnknownField", err)
	}
	if _, ok := state.Get("summary"); ok {
		t.Error("undeclared field must not appear after rejected write")
	}
}

func TestRunStateCloneIsIndependent(t *testing.T) {
	def := LinkedInDefinition()
	state, err := NewRunState(def, uuid.New(), uuid.New(), "raw", "request")
	if err != nil {
		t.Fatalf("NewRunState failed: %v", err)
	}
	_ = state.Set("key_insights", "original")
	state.Narration = append(state.Narration, NarrationEntry{Stage: "extract_insights", Message: "done"})

	clone := state.Clone()
	_ = clone.Set("key_insights", "mutated")
	clone.Narration[0].Message = "changed"

	if v, _ := state.Get("key_insights"); v != "original" {
		t.Errorf("original field mutated through clone: %q", v)
	}
	if state.Narration[0].Message != "done" {
		t.Errorf("original narration mutated through clone: %q", state.Narration[0].Message)
	}
}

func TestRunStateMarshalRoundTrip(t *testing.T) {
	def := MediumDefinition()
	state, err := NewRunState(def, uuid.New(), uuid.New(), "raw", "request")
	if err != nil {
		t.Fatalf("NewRunState failed: %v", err)
	}
	_ = state.Set("outline", "1. intro\n2. body")

	data, err := state.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	restored, err := UnmarshalRunState(data)
	if err != nil {
		t.Fatalf("UnmarshalRunState failed: %v", err)
	}

	if restored.RunId != state.RunId || restored.ConversationId != state.ConversationId {
		t.Error("identifiers did not survive the round trip")
	}
	if v, _ := restored.Get("outline"); v != "1. intro\n2. body" {
		t.Errorf("outline = %q, want original value", v)
	}
}
