package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-contentgen-be/internal/repository/checkpoint"
	"ai-contentgen-be/pkg/llm"
	"ai-contentgen-be/pkg/pipeline"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// scriptedLLM returns "out-<n>" for the n-th call, optionally failing on a
// specific call. onCall fires while the call is in flight, which lets tests
// flip a cancel flag mid-stage.
type scriptedLLM struct {
	mu     sync.Mutex
	calls  []string
	failAt int
	onCall func(call int)
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, prompt)
	n := len(s.calls)
	if s.onCall != nil {
		s.onCall(n)
	}
	if s.failAt != 0 && n == s.failAt {
		return "", errors.New("model unavailable")
	}
	return fmt.Sprintf("out-%d", n), nil
}

func (s *scriptedLLM) Chat(_ context.Context, _ []llm.Message, _ ...llm.Option) (string, error) {
	return "", errors.New("scriptedLLM: chat not supported")
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type flagCancelChecker struct {
	cancelled atomic.Bool
}

func (f *flagCancelChecker) IsCancelled(context.Context, uuid.UUID) bool {
	return f.cancelled.Load()
}

type staticContextProvider struct {
	transcript string
	err        error
}

func (p *staticContextProvider) RelevantTranscript(context.Context, uuid.UUID, string, int) (string, error) {
	return p.transcript, p.err
}

func testDefinition() *pipeline.Definition {
	return &pipeline.Definition{
		Kind:     pipeline.Kind("test"),
		Platform: "Test",
		ContextK: 3,
		Stages: []pipeline.StageSpec{
			{
				Name:         "first",
				OutputField:  "first_out",
				NeedsContext: true,
				Prompt: func(state *pipeline.RunState, contextText string) string {
					return "first|" + contextText + "|" + state.UserRequest
				},
				Narrate: func(output string) string { return "first done: " + output },
			},
			{
				Name:        "second",
				OutputField: "second_out",
				Requires:    []string{"first_out"},
				Prompt: func(state *pipeline.RunState, _ string) string {
					v, _ := state.Get("first_out")
					return "second|" + v
				},
			},
			{
				Name:        "third",
				OutputField: "third_out",
				Requires:    []string{"second_out"},
				Prompt: func(state *pipeline.RunState, _ string) string {
					v, _ := state.Get("second_out")
					return "third|" + v
				},
				Narrate: func(string) string { return "third done" },
			},
		},
	}
}

func newTestState(t *testing.T, def *pipeline.Definition) *pipeline.RunState {
	t.Helper()
	state, err := pipeline.NewRunState(def, uuid.New(), uuid.New(), "raw material", "write something")
	if err != nil {
		t.Fatalf("NewRunState failed: %v", err)
	}
	return state
}

func TestExecuteCompletesAllStages(t *testing.T) {
	def := testDefinition()
	llmFake := &scriptedLLM{}
	store := checkpoint.NewMemoryCheckpointStore(0)
	provider := &staticContextProvider{transcript: "earlier messages"}

	engine := pipeline.NewEngine(llmFake, store, provider, nopLogger{})
	state := newTestState(t, def)

	final, err := engine.Execute(context.Background(), def, state)
	assert.NoError(t, err)

	first, _ := final.Get("first_out")
	second, _ := final.Get("second_out")
	third, _ := final.Get("third_out")
	assert.Equal(t, "out-1", first)
	assert.Equal(t, "out-2", second)
	assert.Equal(t, "out-3", third)

	// Stage prompts chain: each stage consumes the previous output,
	// and the context-aware stage sees the retrieved transcript.
	assert.Equal(t, "first|earlier messages|write something", llmFake.calls[0])
	assert.Equal(t, "second|out-1", llmFake.calls[1])
	assert.Equal(t, "third|out-2", llmFake.calls[2])

	cp, err := store.Get(context.Background(), state.RunId)
	assert.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, cp.Status)
	assert.Equal(t, def.LastIndex(), cp.StageIndex)

	// Only stages with a Narrate hook produce narration entries.
	assert.Len(t, final.Narration, 2)
	assert.Equal(t, "first done: out-1", final.Narration[0].Message)
}

func TestExecuteContextRetrievalFailureDegrades(t *testing.T) {
	def := testDefinition()
	llmFake := &scriptedLLM{}
	store := checkpoint.NewMemoryCheckpointStore(0)
	provider := &staticContextProvider{err: errors.New("vector search down")}

	engine := pipeline.NewEngine(llmFake, store, provider, nopLogger{})
	state := newTestState(t, def)

	_, err := engine.Execute(context.Background(), def, state)
	assert.NoError(t, err)
	assert.Equal(t, "first|"+pipeline.NoPriorContext+"|write something", llmFake.calls[0])
}

func TestExecuteInvalidStateFailsBeforeAnyStage(t *testing.T) {
	def := testDefinition()
	llmFake := &scriptedLLM{}
	store := checkpoint.NewMemoryCheckpointStore(0)

	engine := pipeline.NewEngine(llmFake, store, nil, nopLogger{})
	state := &pipeline.RunState{
		RunId:          uuid.New(),
		ConversationId: uuid.New(),
		UserRequest:    "write something",
		Fields:         map[string]string{},
	}

	_, err := engine.Execute(context.Background(), def, state)

	var invalidErr *pipeline.InvalidRunStateError
	assert.ErrorAs(t, err, &invalidErr)
	assert.Contains(t, invalidErr.Missing, "raw_content")

	// Nothing executed, nothing checkpointed.
	assert.Equal(t, 0, llmFake.callCount())
	_, err = store.Get(context.Background(), state.RunId)
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestStageFailureKeepsEarlierOutputs(t *testing.T) {
	def := testDefinition()
	llmFake := &scriptedLLM{failAt: 2}
	store := checkpoint.NewMemoryCheckpointStore(0)

	engine := pipeline.NewEngine(llmFake, store, &staticContextProvider{}, nopLogger{})
	state := newTestState(t, def)

	_, err := engine.Execute(context.Background(), def, state)

	var stageErr *pipeline.StageError
	assert.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "second", stageErr.Stage)
	assert.Equal(t, 1, stageErr.Index)

	cp, getErr := store.Get(context.Background(), state.RunId)
	assert.NoError(t, getErr)
	assert.Equal(t, pipeline.StatusFailed, cp.Status)
	assert.Equal(t, 1, cp.StageIndex)
	assert.Equal(t, "second", cp.FailedStage)

	first, _ := cp.State.Get("first_out")
	second, _ := cp.State.Get("second_out")
	assert.Equal(t, "out-1", first, "completed stage output must survive the failure")
	assert.Equal(t, "", second, "failed stage must leave its output empty")
}

func TestResumeRestartsFailedStageWithEarlierOutputsIntact(t *testing.T) {
	def := testDefinition()
	store := checkpoint.NewMemoryCheckpointStore(0)
	ctx := context.Background()

	failing := &scriptedLLM{failAt: 2}
	engine := pipeline.NewEngine(failing, store, &staticContextProvider{}, nopLogger{})
	state := newTestState(t, def)

	_, err := engine.Execute(ctx, def, state)
	assert.Error(t, err)

	healthy := &scriptedLLM{}
	engine = pipeline.NewEngine(healthy, store, &staticContextProvider{}, nopLogger{})

	final, err := engine.Resume(ctx, def, state.RunId)
	assert.NoError(t, err)

	// The failed stage restarts, stages before it are not recomputed.
	assert.Equal(t, 2, healthy.callCount())
	assert.Equal(t, "second|out-1", healthy.calls[0])

	first, _ := final.Get("first_out")
	assert.Equal(t, "out-1", first, "resume must carry the original stage output byte for byte")

	cp, err := store.Get(ctx, state.RunId)
	assert.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, cp.Status)
	assert.Equal(t, def.LastIndex(), cp.StageIndex)
}

func TestResumeCompletedRunReturnsFinalState(t *testing.T) {
	def := testDefinition()
	store := checkpoint.NewMemoryCheckpointStore(0)
	ctx := context.Background()

	llmFake := &scriptedLLM{}
	engine := pipeline.NewEngine(llmFake, store, &staticContextProvider{}, nopLogger{})
	state := newTestState(t, def)

	_, err := engine.Execute(ctx, def, state)
	assert.NoError(t, err)
	callsAfterExecute := llmFake.callCount()

	final, err := engine.Resume(ctx, def, state.RunId)
	assert.NoError(t, err)
	assert.Equal(t, callsAfterExecute, llmFake.callCount(), "resuming a completed run must not call the model")

	third, _ := final.Get("third_out")
	assert.Equal(t, "out-3", third)
}

func TestResumeUnknownRun(t *testing.T) {
	def := testDefinition()
	store := checkpoint.NewMemoryCheckpointStore(0)
	engine := pipeline.NewEngine(&scriptedLLM{}, store, nil, nopLogger{})

	_, err := engine.Resume(context.Background(), def, uuid.New())
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestCancelBetweenStages(t *testing.T) {
	checker := &flagCancelChecker{}

	// Stage one's narration hook fires after its checkpoint-bound work is
	// done, so flipping the flag there cancels cleanly between stages.
	def := testDefinition()
	def.Stages[0].Narrate = func(output string) string {
		checker.cancelled.Store(true)
		return "first done: " + output
	}

	llmFake := &scriptedLLM{}
	store := checkpoint.NewMemoryCheckpointStore(0)
	engine := pipeline.NewEngine(llmFake, store, &staticContextProvider{}, nopLogger{},
		pipeline.WithCancelChecker(checker))
	state := newTestState(t, def)

	_, err := engine.Execute(context.Background(), def, state)
	assert.ErrorIs(t, err, pipeline.ErrRunCancelled)
	assert.Equal(t, 1, llmFake.callCount())

	cp, getErr := store.Get(context.Background(), state.RunId)
	assert.NoError(t, getErr)
	assert.Equal(t, pipeline.StatusCompleted, cp.Status)
	assert.Equal(t, 0, cp.StageIndex)

	first, _ := cp.State.Get("first_out")
	assert.Equal(t, "out-1", first)
}

func TestCancelDuringStageDiscardsInFlightResult(t *testing.T) {
	def := testDefinition()
	checker := &flagCancelChecker{}
	llmFake := &scriptedLLM{
		onCall: func(call int) {
			if call == 2 {
				checker.cancelled.Store(true)
			}
		},
	}
	store := checkpoint.NewMemoryCheckpointStore(0)
	engine := pipeline.NewEngine(llmFake, store, &staticContextProvider{}, nopLogger{},
		pipeline.WithCancelChecker(checker))
	state := newTestState(t, def)

	final, err := engine.Execute(context.Background(), def, state)
	assert.ErrorIs(t, err, pipeline.ErrRunCancelled)

	// The in-flight result never reaches the state or the checkpoint.
	second, _ := final.Get("second_out")
	assert.Equal(t, "", second)

	cp, getErr := store.Get(context.Background(), state.RunId)
	assert.NoError(t, getErr)
	assert.Equal(t, pipeline.StatusRunning, cp.Status)
	assert.Equal(t, 1, cp.StageIndex)
	cpSecond, _ := cp.State.Get("second_out")
	assert.Equal(t, "", cpSecond)
}

func TestResumeAfterCancellationContinuesFromCheckpoint(t *testing.T) {
	def := testDefinition()
	checker := &flagCancelChecker{}
	llmFake := &scriptedLLM{
		onCall: func(call int) {
			if call == 2 {
				checker.cancelled.Store(true)
			}
		},
	}
	store := checkpoint.NewMemoryCheckpointStore(0)
	ctx := context.Background()

	engine := pipeline.NewEngine(llmFake, store, &staticContextProvider{}, nopLogger{},
		pipeline.WithCancelChecker(checker))
	state := newTestState(t, def)

	_, err := engine.Execute(ctx, def, state)
	assert.ErrorIs(t, err, pipeline.ErrRunCancelled)

	// Clearing the cancel mark (what the resume endpoint does) lets the
	// run pick up at the interrupted stage.
	checker.cancelled.Store(false)

	healthy := &scriptedLLM{}
	engine = pipeline.NewEngine(healthy, store, &staticContextProvider{}, nopLogger{},
		pipeline.WithCancelChecker(checker))

	final, err := engine.Resume(ctx, def, state.RunId)
	assert.NoError(t, err)
	assert.Equal(t, 2, healthy.callCount())

	first, _ := final.Get("first_out")
	assert.Equal(t, "out-1", first)
}

func TestGenerationTimeoutBoundsStageCalls(t *testing.T) {
	def := testDefinition()
	store := checkpoint.NewMemoryCheckpointStore(0)

	slow := &deadlineCheckingLLM{}
	engine := pipeline.NewEngine(slow, store, &staticContextProvider{}, nopLogger{},
		pipeline.WithGenerationTimeout(5*time.Second))
	state := newTestState(t, def)

	_, err := engine.Execute(context.Background(), def, state)
	assert.NoError(t, err)
	assert.True(t, slow.sawDeadline.Load(), "stage calls must carry the generation deadline")
}

type deadlineCheckingLLM struct {
	sawDeadline atomic.Bool
	calls       atomic.Int32
}

func (d *deadlineCheckingLLM) Generate(ctx context.Context, _ string, _ ...llm.Option) (string, error) {
	if _, ok := ctx.Deadline(); ok {
		d.sawDeadline.Store(true)
	}
	return fmt.Sprintf("out-%d", d.calls.Add(1)), nil
}

func (d *deadlineCheckingLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return "", errors.New("not supported")
}
