package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-contentgen-be/internal/dto"
	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/repository/checkpoint"
	"ai-contentgen-be/internal/repository/contract"
	"ai-contentgen-be/internal/repository/specification"
	"ai-contentgen-be/internal/repository/unitofwork"
	"ai-contentgen-be/internal/service"
	"ai-contentgen-be/pkg/llm"
	"ai-contentgen-be/pkg/pipeline"
	"ai-contentgen-be/pkg/runtracker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type scriptedLLM struct {
	mu     sync.Mutex
	calls  int
	failAt int
}

func (s *scriptedLLM) Generate(context.Context, string, ...llm.Option) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAt != 0 && s.calls == s.failAt {
		return "", errors.New("model unavailable")
	}
	return fmt.Sprintf("out-%d", s.calls), nil
}

func (s *scriptedLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return "", errors.New("not supported")
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeRunRepo mirrors the SQL semantics the service relies on: per-(session,
// kind) sequences and the monotonic stage-index guard in SaveCheckpoint.
type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*entity.PipelineRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[uuid.UUID]*entity.PipelineRun)}
}

func (r *fakeRunRepo) Create(_ context.Context, run *entity.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *run
	r.runs[run.Id] = &stored
	return nil
}

func (r *fakeRunRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.PipelineRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		if byId, ok := spec.(specification.ByID); ok {
			if run, found := r.runs[byId.ID]; found {
				copied := *run
				return &copied, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeRunRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.PipelineRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sessionId uuid.UUID
	for _, spec := range specs {
		if bySession, ok := spec.(specification.ByChatSessionID); ok {
			sessionId = bySession.ChatSessionID
		}
	}
	var out []*entity.PipelineRun
	for _, run := range r.runs {
		if run.ChatSessionId == sessionId {
			copied := *run
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRunRepo) NextSeq(_ context.Context, sessionId uuid.UUID, kind string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, run := range r.runs {
		if run.ChatSessionId == sessionId && run.Kind == kind && run.Seq > max {
			max = run.Seq
		}
	}
	return max + 1, nil
}

func (r *fakeRunRepo) SaveCheckpoint(_ context.Context, run *entity.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, found := r.runs[run.Id]
	if !found {
		stored := *run
		stored.CreatedAt = time.Now()
		r.runs[run.Id] = &stored
		return nil
	}
	if existing.StageIndex > run.StageIndex {
		return pipeline.ErrCheckpointConflict
	}
	now := time.Now()
	existing.StageIndex = run.StageIndex
	existing.Status = run.Status
	existing.FailedStage = run.FailedStage
	existing.State = run.State
	existing.UpdatedAt = &now
	return nil
}

func (r *fakeRunRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
	return nil
}

func (r *fakeRunRepo) DeleteByChatSessionId(_ context.Context, sessionId uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, run := range r.runs {
		if run.ChatSessionId == sessionId {
			delete(r.runs, id)
		}
	}
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entity.ChatSession
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Id] = session
	return nil
}

func (r *fakeSessionRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		if byId, ok := spec.(specification.ByID); ok {
			if session, found := r.sessions[byId.ID]; found {
				return session, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAll(context.Context, ...specification.Specification) ([]*entity.ChatSession, error) {
	return nil, nil
}

func (r *fakeSessionRepo) Delete(context.Context, uuid.UUID) error { return nil }
func (r *fakeSessionRepo) Touch(context.Context, uuid.UUID) error  { return nil }

type fakeMessageRepo struct {
	mu              sync.Mutex
	messages        []*entity.ChatMessage
	latestExtracted *entity.ChatMessage
}

func (r *fakeMessageRepo) Create(_ context.Context, message *entity.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *fakeMessageRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		if byId, ok := spec.(specification.ByID); ok {
			for _, msg := range r.messages {
				if msg.Id == byId.ID {
					return msg, nil
				}
			}
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) FindAll(context.Context, ...specification.Specification) ([]*entity.ChatMessage, error) {
	return nil, nil
}

func (r *fakeMessageRepo) DeleteByChatSessionId(context.Context, uuid.UUID) error { return nil }

func (r *fakeMessageRepo) FindLatestExtracted(context.Context, uuid.UUID) (*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latestExtracted, nil
}

func (r *fakeMessageRepo) saved() []*entity.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

type fakeUow struct {
	runs       *fakeRunRepo
	sessions   *fakeSessionRepo
	messages   *fakeMessageRepo
	embeddings *fakeEmbeddingRepo
}

func (u *fakeUow) Begin(context.Context) error { return nil }
func (u *fakeUow) Commit() error               { return nil }
func (u *fakeUow) Rollback() error             { return nil }
func (u *fakeUow) ChatSessionRepository() contract.ChatSessionRepository { return u.sessions }
func (u *fakeUow) ChatMessageRepository() contract.ChatMessageRepository { return u.messages }
func (u *fakeUow) MessageEmbeddingRepository() contract.MessageEmbeddingRepository {
	if u.embeddings == nil {
		return nil
	}
	return u.embeddings
}
func (u *fakeUow) PipelineRunRepository() contract.PipelineRunRepository { return u.runs }

var _ unitofwork.UnitOfWork = &fakeUow{}

type fakeFactory struct {
	uow *fakeUow
}

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type runFixture struct {
	svc       service.IGenerateService
	llm       *scriptedLLM
	runs      *fakeRunRepo
	messages  *fakeMessageRepo
	publisher *recordingPublisher
	tracker   *runtracker.Tracker
	sessionId uuid.UUID
}

func newRunFixture(t *testing.T, llmFake *scriptedLLM) *runFixture {
	t.Helper()
	sessionId := uuid.New()
	uow := &fakeUow{
		runs: newFakeRunRepo(),
		sessions: &fakeSessionRepo{sessions: map[uuid.UUID]*entity.ChatSession{
			sessionId: {Id: sessionId, Title: "Test Session", Platform: "Medium"},
		}},
		messages: &fakeMessageRepo{
			latestExtracted: &entity.ChatMessage{
				Id:               uuid.New(),
				ChatSessionId:    sessionId,
				Role:             "user",
				Content:          "uploaded notes.txt",
				ExtractedContent: "extracted source material",
			},
		},
	}

	tracker := runtracker.NewTracker(nil, nopLogger{})
	engine := pipeline.NewEngine(
		llmFake,
		checkpoint.NewGormCheckpointStore(uow.runs),
		nil,
		nopLogger{},
		pipeline.WithCancelChecker(tracker),
	)
	publisher := &recordingPublisher{}

	svc := service.NewGenerateService(&fakeFactory{uow: uow}, engine, tracker, publisher, nil, nopLogger{})
	return &runFixture{
		svc:       svc,
		llm:       llmFake,
		runs:      uow.runs,
		messages:  uow.messages,
		publisher: publisher,
		tracker:   tracker,
		sessionId: sessionId,
	}
}

func waitForStatus(t *testing.T, svc service.IGenerateService, runId uuid.UUID, status string) *dto.RunResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		run, err := svc.GetRun(context.Background(), runId)
		if err == nil && run.Status == status {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never reached status %q", runId, status)
	return nil
}

func TestStartRunCompletesAndDeliversFinalOutput(t *testing.T) {
	fx := newRunFixture(t, &scriptedLLM{})
	ctx := context.Background()

	started, err := fx.svc.StartRun(ctx, &dto.StartRunRequest{
		ChatSessionId: fx.sessionId,
		Platform:      "medium",
		UserRequest:   "write a blog about testing",
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, started.Seq)
	assert.Equal(t, string(pipeline.StatusPending), started.Status)

	run := waitForStatus(t, fx.svc, started.RunId, string(pipeline.StatusCompleted))
	assert.Equal(t, 2, run.StageIndex)
	assert.Equal(t, "out-3", run.Final)
	assert.Equal(t, "out-1", run.Outputs["outline"])
	assert.Equal(t, "out-2", run.Outputs["draft_blog"])
	assert.NotEmpty(t, run.Narration)

	// The final output lands in the conversation as an assistant message
	// and is queued for indexing.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(fx.messages.saved()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	saved := fx.messages.saved()
	if assert.Len(t, saved, 1) {
		assert.Equal(t, "assistant", saved[0].Role)
		assert.Equal(t, "out-3", saved[0].Content)
	}
	assert.Equal(t, 1, fx.publisher.count())
}

func TestStartRunWithoutSourceMaterialFails(t *testing.T) {
	fx := newRunFixture(t, &scriptedLLM{})
	fx.messages.latestExtracted = nil

	_, err := fx.svc.StartRun(context.Background(), &dto.StartRunRequest{
		ChatSessionId: fx.sessionId,
		Platform:      "medium",
		UserRequest:   "write a blog",
	})

	var invalidErr *pipeline.InvalidRunStateError
	assert.ErrorAs(t, err, &invalidErr)
	assert.Contains(t, invalidErr.Missing, "raw_content")
	assert.Empty(t, fx.runs.runs, "no run row may exist for a run that never started")
}

func TestStartRunAllocatesSequencePerSessionAndKind(t *testing.T) {
	fx := newRunFixture(t, &scriptedLLM{})
	ctx := context.Background()

	first, err := fx.svc.StartRun(ctx, &dto.StartRunRequest{
		ChatSessionId: fx.sessionId, Platform: "medium", UserRequest: "first",
	})
	assert.NoError(t, err)
	waitForStatus(t, fx.svc, first.RunId, string(pipeline.StatusCompleted))

	second, err := fx.svc.StartRun(ctx, &dto.StartRunRequest{
		ChatSessionId: fx.sessionId, Platform: "medium", UserRequest: "second",
	})
	assert.NoError(t, err)
	assert.Equal(t, first.Seq+1, second.Seq)

	// A different kind starts its own sequence.
	other, err := fx.svc.StartRun(ctx, &dto.StartRunRequest{
		ChatSessionId: fx.sessionId, Platform: "linkedin", UserRequest: "third",
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, other.Seq)
}

func TestFailedRunResumesWithEarlierOutputsIntact(t *testing.T) {
	fx := newRunFixture(t, &scriptedLLM{failAt: 2})
	ctx := context.Background()

	started, err := fx.svc.StartRun(ctx, &dto.StartRunRequest{
		ChatSessionId: fx.sessionId,
		Platform:      "medium",
		UserRequest:   "write a blog",
	})
	assert.NoError(t, err)

	failed := waitForStatus(t, fx.svc, started.RunId, string(pipeline.StatusFailed))
	assert.Equal(t, 1, failed.StageIndex)
	assert.Equal(t, "generate_draft", failed.FailedStage)
	assert.Equal(t, "out-1", failed.Outputs["outline"], "completed stage output must survive the failure")
	assert.Equal(t, "", failed.Outputs["draft_blog"])
	assert.Equal(t, "", failed.Final)

	// A fresh service over the same storage stands in for a process restart.
	healthy := &scriptedLLM{}
	tracker := runtracker.NewTracker(nil, nopLogger{})
	engine := pipeline.NewEngine(healthy, checkpoint.NewGormCheckpointStore(fx.runs), nil, nopLogger{},
		pipeline.WithCancelChecker(tracker))
	uow := &fakeUow{
		runs:     fx.runs,
		sessions: &fakeSessionRepo{sessions: map[uuid.UUID]*entity.ChatSession{}},
		messages: fx.messages,
	}
	svc := service.NewGenerateService(&fakeFactory{uow: uow}, engine, tracker, fx.publisher, nil, nopLogger{})

	resumed, err := svc.ResumeRun(ctx, started.RunId)
	assert.NoError(t, err)
	assert.Equal(t, string(pipeline.StatusRunning), resumed.Status)

	final := waitForStatus(t, svc, started.RunId, string(pipeline.StatusCompleted))
	assert.Equal(t, "out-1", final.Outputs["outline"], "resume must not recompute the completed stage")
	assert.Equal(t, 2, healthy.callCount(), "only the failed stage onward is recomputed")
	assert.NotEmpty(t, final.Final)
}

func TestResumeCompletedRunReturnsAsIs(t *testing.T) {
	fx := newRunFixture(t, &scriptedLLM{})
	ctx := context.Background()

	started, err := fx.svc.StartRun(ctx, &dto.StartRunRequest{
		ChatSessionId: fx.sessionId, Platform: "medium", UserRequest: "write a blog",
	})
	assert.NoError(t, err)
	waitForStatus(t, fx.svc, started.RunId, string(pipeline.StatusCompleted))
	callsAfterRun := fx.llm.callCount()

	resumed, err := fx.svc.ResumeRun(ctx, started.RunId)
	assert.NoError(t, err)
	assert.Equal(t, string(pipeline.StatusCompleted), resumed.Status)
	assert.Equal(t, "out-3", resumed.Final)
	assert.Equal(t, callsAfterRun, fx.llm.callCount(), "resuming a completed run must not re-execute stages")
}

func TestCancelAndResumeUnknownRun(t *testing.T) {
	fx := newRunFixture(t, &scriptedLLM{})
	ctx := context.Background()

	assert.ErrorIs(t, fx.svc.CancelRun(ctx, uuid.New()), pipeline.ErrRunNotFound)

	_, err := fx.svc.ResumeRun(ctx, uuid.New())
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)

	_, err = fx.svc.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestListRunsForSession(t *testing.T) {
	fx := newRunFixture(t, &scriptedLLM{})
	ctx := context.Background()

	started, err := fx.svc.StartRun(ctx, &dto.StartRunRequest{
		ChatSessionId: fx.sessionId, Platform: "medium", UserRequest: "write a blog",
	})
	assert.NoError(t, err)
	waitForStatus(t, fx.svc, started.RunId, string(pipeline.StatusCompleted))

	list, err := fx.svc.ListRuns(ctx, fx.sessionId)
	assert.NoError(t, err)
	assert.Len(t, list.Runs, 1)
	assert.Equal(t, started.RunId, list.Runs[0].RunId)

	other, err := fx.svc.ListRuns(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Empty(t, other.Runs)
}
