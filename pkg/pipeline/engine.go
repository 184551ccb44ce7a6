package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-contentgen-be/internal/pkg/logger"
	"ai-contentgen-be/pkg/llm"

	"github.com/google/uuid"
)

// CheckpointStatus tracks where a run is in its lifecycle.
type CheckpointStatus string

const (
	StatusPending   CheckpointStatus = "pending"
	StatusRunning   CheckpointStatus = "running"
	StatusCompleted CheckpointStatus = "completed"
	StatusFailed    CheckpointStatus = "failed"
)

// Checkpoint is the durable snapshot written after every stage transition.
// StageIndex never decreases for a given run.
type Checkpoint struct {
	RunId       uuid.UUID
	Kind        Kind
	StageIndex  int
	Status      CheckpointStatus
	FailedStage string
	State       *RunState
	UpdatedAt   time.Time
}

// CheckpointStore persists checkpoints. Put must reject writes whose stage
// index is lower than the stored one with ErrCheckpointConflict. Get returns
// ErrRunNotFound when the run has no checkpoint.
type CheckpointStore interface {
	Put(ctx context.Context, checkpoint *Checkpoint) error
	Get(ctx context.Context, runId uuid.UUID) (*Checkpoint, error)
	Delete(ctx context.Context, runId uuid.UUID) error
}

// ContextProvider retrieves the relevant slice of a conversation for
// context-aware stages.
type ContextProvider interface {
	RelevantTranscript(ctx context.Context, conversationId uuid.UUID, query string, topK int) (string, error)
}

// CancelChecker reports whether a run was cancelled out of band, e.g. through
// the REST cancel endpoint while the run executes on another goroutine.
type CancelChecker interface {
	IsCancelled(ctx context.Context, runId uuid.UUID) bool
}

type EngineOption func(*Engine)

// WithGenerationTimeout bounds each stage's model call. Zero disables the
// per-stage deadline.
func WithGenerationTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.generationTimeout = timeout
	}
}

// WithCancelChecker installs an out-of-band cancellation probe consulted
// between stages.
func WithCancelChecker(checker CancelChecker) EngineOption {
	return func(e *Engine) {
		e.cancelChecker = checker
	}
}

// WithStageObserver registers a hook fired after each stage checkpoint is
// written. Used to publish stage progress to the event bus.
func WithStageObserver(observer func(runId uuid.UUID, stage string, stageIndex int)) EngineOption {
	return func(e *Engine) {
		e.stageObserver = observer
	}
}

// Engine executes pipeline definitions stage by stage, checkpointing after
// every transition so an interrupted run resumes without recomputing
// completed stages.
type Engine struct {
	llmProvider       llm.LLMProvider
	store             CheckpointStore
	contextProvider   ContextProvider
	cancelChecker     CancelChecker
	stageObserver     func(runId uuid.UUID, stage string, stageIndex int)
	logger            logger.ILogger
	generationTimeout time.Duration
}

func NewEngine(llmProvider llm.LLMProvider, store CheckpointStore, contextProvider ContextProvider, log logger.ILogger, opts ...EngineOption) *Engine {
	engine := &Engine{
		llmProvider:     llmProvider,
		store:           store,
		contextProvider: contextProvider,
		logger:          log,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Execute runs def from the first stage. The state must come from NewRunState
// (or carry the same inputs); missing inputs fail before any stage executes
// and before any checkpoint is written.
func (e *Engine) Execute(ctx context.Context, def *Definition, state *RunState) (*RunState, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if state == nil {
		return nil, &InvalidRunStateError{Missing: []string{"state"}}
	}
	var missing []string
	if state.RunId == uuid.Nil {
		missing = append(missing, "run_id")
	}
	if state.ConversationId == uuid.Nil {
		missing = append(missing, "conversation_id")
	}
	if state.RawContent == "" {
		missing = append(missing, "raw_content")
	}
	if state.UserRequest == "" {
		missing = append(missing, "user_request")
	}
	if len(missing) > 0 {
		return nil, &InvalidRunStateError{Missing: missing}
	}
	return e.run(ctx, def, state, 0)
}

// Resume continues a checkpointed run. A run that failed at stage N restarts
// at stage N with every earlier output intact; a run that completed stage N
// continues at N+1. A fully completed run returns its final state as-is.
func (e *Engine) Resume(ctx context.Context, def *Definition, runId uuid.UUID) (*RunState, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	checkpoint, err := e.store.Get(ctx, runId)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil || checkpoint.State == nil {
		return nil, ErrRunNotFound
	}

	start := checkpoint.StageIndex
	switch checkpoint.Status {
	case StatusCompleted:
		if checkpoint.StageIndex >= def.LastIndex() {
			return checkpoint.State, nil
		}
		start = checkpoint.StageIndex + 1
	case StatusPending:
		start = 0
	}

	e.logger.Info("PipelineEngine", "Resuming run", map[string]interface{}{"run_id": runId, "kind": def.Kind, "stage": start})
	return e.run(ctx, def, checkpoint.State, start)
}

func (e *Engine) run(ctx context.Context, def *Definition, state *RunState, start int) (*RunState, error) {
	for i := start; i < len(def.Stages); i++ {
		stage := def.Stages[i]

		if err := e.checkCancelled(ctx, state.RunId); err != nil {
			e.logger.Info("PipelineEngine", "Run cancelled before stage", map[string]interface{}{"run_id": state.RunId, "stage": stage.Name})
			return state, err
		}

		if missing := stage.missingInputs(state); len(missing) > 0 {
			stageErr := &StageError{Stage: stage.Name, Index: i, Err: &InvalidRunStateError{Missing: missing}}
			e.writeCheckpoint(ctx, def, state, i, StatusFailed, stage.Name)
			return state, stageErr
		}

		if err := e.writeCheckpoint(ctx, def, state, i, StatusRunning, ""); err != nil {
			return state, err
		}

		contextText := ""
		if stage.NeedsContext {
			contextText = e.retrieveContext(ctx, state, def.ContextK)
		}

		output, err := e.generate(ctx, stage.Prompt(state, contextText))

		// A cancellation that lands while the model call is in flight
		// discards the stage result: nothing past the cancellation
		// point reaches the checkpoint.
		if cancelErr := e.checkCancelled(ctx, state.RunId); cancelErr != nil {
			e.logger.Info("PipelineEngine", "Run cancelled during stage, discarding result", map[string]interface{}{"run_id": state.RunId, "stage": stage.Name})
			return state, cancelErr
		}

		if err != nil {
			e.logger.Error("PipelineEngine", "Stage failed", map[string]interface{}{"run_id": state.RunId, "stage": stage.Name, "error": err.Error()})
			e.writeCheckpoint(ctx, def, state, i, StatusFailed, stage.Name)
			return state, &StageError{Stage: stage.Name, Index: i, Err: err}
		}

		if err := state.Set(stage.OutputField, output); err != nil {
			e.writeCheckpoint(ctx, def, state, i, StatusFailed, stage.Name)
			return state, &StageError{Stage: stage.Name, Index: i, Err: err}
		}
		if stage.Narrate != nil {
			state.Narration = append(state.Narration, NarrationEntry{
				Stage:   stage.Name,
				Message: stage.Narrate(output),
				At:      time.Now(),
			})
		}

		if err := e.writeCheckpoint(ctx, def, state, i, StatusCompleted, ""); err != nil {
			return state, err
		}
		if e.stageObserver != nil {
			e.stageObserver(state.RunId, stage.Name, i)
		}
		e.logger.Info("PipelineEngine", "Stage completed", map[string]interface{}{"run_id": state.RunId, "stage": stage.Name, "progress": fmt.Sprintf("%d/%d", i+1, len(def.Stages))})
	}
	return state, nil
}

func (e *Engine) checkCancelled(ctx context.Context, runId uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRunCancelled, err)
	}
	if e.cancelChecker != nil && e.cancelChecker.IsCancelled(ctx, runId) {
		return ErrRunCancelled
	}
	return nil
}

// retrieveContext degrades to the no-context sentinel on retrieval failure;
// context is an enhancement, never a precondition.
func (e *Engine) retrieveContext(ctx context.Context, state *RunState, topK int) string {
	if e.contextProvider == nil {
		return NoPriorContext
	}
	transcript, err := e.contextProvider.RelevantTranscript(ctx, state.ConversationId, state.UserRequest, topK)
	if err != nil {
		e.logger.Warn("PipelineEngine", "Context retrieval failed, continuing without context", map[string]interface{}{"run_id": state.RunId, "error": err.Error()})
		return NoPriorContext
	}
	if transcript == "" {
		return NoPriorContext
	}
	return transcript
}

func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	if e.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.generationTimeout)
		defer cancel()
	}
	return e.llmProvider.Generate(ctx, prompt)
}

// writeCheckpoint snapshots the state. A conflicting write means another
// executor has advanced the run further; this one is stale, so the rejection
// is logged and surfaced without touching the stored checkpoint.
func (e *Engine) writeCheckpoint(ctx context.Context, def *Definition, state *RunState, stageIndex int, status CheckpointStatus, failedStage string) error {
	err := e.store.Put(ctx, &Checkpoint{
		RunId:       state.RunId,
		Kind:        def.Kind,
		StageIndex:  stageIndex,
		Status:      status,
		FailedStage: failedStage,
		State:       state.Clone(),
		UpdatedAt:   time.Now(),
	})
	if errors.Is(err, ErrCheckpointConflict) {
		e.logger.Warn("PipelineEngine", "Stale checkpoint write rejected", map[string]interface{}{"run_id": state.RunId, "stage": stageIndex})
		return err
	}
	if err != nil {
		e.logger.Error("PipelineEngine", "Failed to write checkpoint", map[string]interface{}{"run_id": state.RunId, "stage": stageIndex, "error": err.Error()})
		return err
	}
	return nil
}
