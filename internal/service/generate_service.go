package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-contentgen-be/internal/constant"
	"ai-contentgen-be/internal/dto"
	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/pkg/logger"
	"ai-contentgen-be/internal/repository/specification"
	"ai-contentgen-be/internal/repository/unitofwork"
	"ai-contentgen-be/pkg/events"
	pktNats "ai-contentgen-be/pkg/nats"
	"ai-contentgen-be/pkg/pipeline"
	"ai-contentgen-be/pkg/runtracker"

	"github.com/google/uuid"
)

type IGenerateService interface {
	StartRun(ctx context.Context, req *dto.StartRunRequest) (*dto.RunResponse, error)
	GetRun(ctx context.Context, runId uuid.UUID) (*dto.RunResponse, error)
	ListRuns(ctx context.Context, sessionId uuid.UUID) (*dto.ListRunsResponse, error)
	ResumeRun(ctx context.Context, runId uuid.UUID) (*dto.RunResponse, error)
	CancelRun(ctx context.Context, runId uuid.UUID) error
	DeleteRun(ctx context.Context, runId uuid.UUID) error
}

type generateService struct {
	uowFactory       unitofwork.RepositoryFactory
	engine           *pipeline.Engine
	tracker          *runtracker.Tracker
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	logger           logger.ILogger
}

func NewGenerateService(
	uowFactory unitofwork.RepositoryFactory,
	engine *pipeline.Engine,
	tracker *runtracker.Tracker,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IGenerateService {
	return &generateService{
		uowFactory:       uowFactory,
		engine:           engine,
		tracker:          tracker,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		logger:           log,
	}
}

// StartRun registers a new pipeline run and executes it in the background.
// The response carries the run identity for polling; stage outputs land in
// the checkpoint as the run progresses.
func (gs *generateService) StartRun(ctx context.Context, req *dto.StartRunRequest) (*dto.RunResponse, error) {
	def, err := pipeline.DefinitionForPlatform(req.Platform)
	if err != nil {
		return nil, err
	}

	uow := gs.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: req.ChatSessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("chat session not found")
	}

	rawContent := req.RawContent
	if rawContent == "" {
		latest, err := uow.ChatMessageRepository().FindLatestExtracted(ctx, req.ChatSessionId)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			rawContent = latest.ExtractedContent
		}
	}

	runId := uuid.New()
	state, err := pipeline.NewRunState(def, runId, req.ChatSessionId, rawContent, req.UserRequest)
	if err != nil {
		return nil, err
	}
	stateJSON, err := state.Marshal()
	if err != nil {
		return nil, err
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	seq, err := uow.PipelineRunRepository().NextSeq(ctx, req.ChatSessionId, string(def.Kind))
	if err != nil {
		return nil, err
	}
	run := entity.PipelineRun{
		Id:            runId,
		ChatSessionId: req.ChatSessionId,
		Kind:          string(def.Kind),
		Seq:           seq,
		StageIndex:    0,
		Status:        string(pipeline.StatusPending),
		State:         stateJSON,
		CreatedAt:     time.Now(),
	}
	if err := uow.PipelineRunRepository().Create(ctx, &run); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	gs.publishEvent(ctx, events.NewRunStarted(runId, req.ChatSessionId, string(def.Kind)))

	go gs.executeRun(def, state)

	return &dto.RunResponse{
		RunId:         runId,
		ChatSessionId: req.ChatSessionId,
		Kind:          string(def.Kind),
		Seq:           seq,
		Status:        string(pipeline.StatusPending),
		StageIndex:    0,
	}, nil
}

// executeRun drives the engine off the request goroutine. The request context
// is deliberately not used: the run outlives the HTTP call and stops through
// the cancel tracker instead.
func (gs *generateService) executeRun(def *pipeline.Definition, state *pipeline.RunState) {
	ctx := context.Background()
	final, err := gs.engine.Execute(ctx, def, state)
	gs.finishRun(ctx, def, final, err)
}

func (gs *generateService) resumeRun(def *pipeline.Definition, runId uuid.UUID) {
	ctx := context.Background()
	final, err := gs.engine.Resume(ctx, def, runId)
	gs.finishRun(ctx, def, final, err)
}

func (gs *generateService) finishRun(ctx context.Context, def *pipeline.Definition, state *pipeline.RunState, runErr error) {
	if state == nil {
		if runErr != nil {
			gs.logger.Error("GenerateService", "Run aborted before execution", map[string]interface{}{"error": runErr.Error()})
		}
		return
	}

	if runErr != nil {
		var stageErr *pipeline.StageError
		switch {
		case errors.Is(runErr, pipeline.ErrRunCancelled):
			gs.logger.Info("GenerateService", "Run stopped by cancellation", map[string]interface{}{"run_id": state.RunId})
		case errors.As(runErr, &stageErr):
			gs.publishEvent(ctx, events.NewRunFailed(state.RunId, stageErr.Stage, stageErr.Err.Error()))
		default:
			gs.publishEvent(ctx, events.NewRunFailed(state.RunId, "", runErr.Error()))
		}
		return
	}

	gs.publishEvent(ctx, events.NewRunCompleted(state.RunId, string(def.Kind)))
	gs.tracker.Clear(ctx, state.RunId)

	finalOutput, _ := state.Get(def.FinalField())
	if finalOutput == "" {
		return
	}
	if err := gs.saveAssistantMessage(ctx, state.ConversationId, finalOutput); err != nil {
		gs.logger.Error("GenerateService", "Failed to save generated content as message", map[string]interface{}{"run_id": state.RunId, "error": err.Error()})
	}
}

func (gs *generateService) saveAssistantMessage(ctx context.Context, sessionId uuid.UUID, content string) error {
	uow := gs.uowFactory.NewUnitOfWork(ctx)
	message := entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Role:          constant.ChatMessageRoleAssistant,
		Content:       content,
		CreatedAt:     time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, &message); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Touch(ctx, sessionId); err != nil {
		return err
	}

	payload, err := json.Marshal(dto.PublishEmbedChatMessage{
		ChatSessionId: sessionId,
		MessageId:     message.Id,
	})
	if err != nil {
		return err
	}
	return gs.publisherService.Publish(ctx, payload)
}

func (gs *generateService) GetRun(ctx context.Context, runId uuid.UUID) (*dto.RunResponse, error) {
	uow := gs.uowFactory.NewUnitOfWork(ctx)
	run, err := uow.PipelineRunRepository().FindOne(ctx, specification.ByID{ID: runId})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, pipeline.ErrRunNotFound
	}
	return runToDTO(run)
}

func (gs *generateService) ListRuns(ctx context.Context, sessionId uuid.UUID) (*dto.ListRunsResponse, error) {
	uow := gs.uowFactory.NewUnitOfWork(ctx)
	runs, err := uow.PipelineRunRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := &dto.ListRunsResponse{Runs: make([]*dto.RunResponse, 0, len(runs))}
	for _, run := range runs {
		item, err := runToDTO(run)
		if err != nil {
			return nil, err
		}
		response.Runs = append(response.Runs, item)
	}
	return response, nil
}

// ResumeRun continues a failed or interrupted run from its checkpoint.
// Completed stage outputs are reused as stored; only the failed stage onward
// is recomputed.
func (gs *generateService) ResumeRun(ctx context.Context, runId uuid.UUID) (*dto.RunResponse, error) {
	uow := gs.uowFactory.NewUnitOfWork(ctx)
	run, err := uow.PipelineRunRepository().FindOne(ctx, specification.ByID{ID: runId})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, pipeline.ErrRunNotFound
	}

	def, err := pipeline.DefinitionFor(pipeline.Kind(run.Kind))
	if err != nil {
		return nil, err
	}

	response, err := runToDTO(run)
	if err != nil {
		return nil, err
	}
	if run.Status == string(pipeline.StatusCompleted) && run.StageIndex >= def.LastIndex() {
		return response, nil
	}

	// A stale cancel mark from a previous attempt must not stop the new one.
	gs.tracker.Clear(ctx, runId)
	go gs.resumeRun(def, runId)

	response.Status = string(pipeline.StatusRunning)
	return response, nil
}

// CancelRun marks the run cancelled. The engine observes the mark between
// stages; the stage currently in flight finishes but its result is discarded
// and never checkpointed.
func (gs *generateService) CancelRun(ctx context.Context, runId uuid.UUID) error {
	uow := gs.uowFactory.NewUnitOfWork(ctx)
	run, err := uow.PipelineRunRepository().FindOne(ctx, specification.ByID{ID: runId})
	if err != nil {
		return err
	}
	if run == nil {
		return pipeline.ErrRunNotFound
	}

	if err := gs.tracker.Cancel(ctx, runId); err != nil {
		gs.logger.Warn("GenerateService", "Cancel mark not fully persisted", map[string]interface{}{"run_id": runId, "error": err.Error()})
	}
	gs.publishEvent(ctx, events.NewRunCancelled(runId))
	return nil
}

// DeleteRun removes the run's checkpoint once its output has been delivered.
func (gs *generateService) DeleteRun(ctx context.Context, runId uuid.UUID) error {
	uow := gs.uowFactory.NewUnitOfWork(ctx)
	return uow.PipelineRunRepository().Delete(ctx, runId)
}

func (gs *generateService) publishEvent(ctx context.Context, event events.Event) {
	if gs.eventPublisher == nil {
		return
	}
	// Events feed dashboards and notifications; a bus outage never fails a run.
	if err := gs.eventPublisher.Publish(ctx, event); err != nil {
		gs.logger.Warn("GenerateService", "Failed to publish run event", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
	}
}

func runToDTO(run *entity.PipelineRun) (*dto.RunResponse, error) {
	response := &dto.RunResponse{
		RunId:         run.Id,
		ChatSessionId: run.ChatSessionId,
		Kind:          run.Kind,
		Seq:           run.Seq,
		Status:        run.Status,
		StageIndex:    run.StageIndex,
		FailedStage:   run.FailedStage,
	}

	if len(run.State) == 0 {
		return response, nil
	}
	state, err := pipeline.UnmarshalRunState(run.State)
	if err != nil {
		return nil, err
	}
	response.Outputs = state.Fields
	response.Narration = make([]dto.NarrationDTO, 0, len(state.Narration))
	for _, n := range state.Narration {
		response.Narration = append(response.Narration, dto.NarrationDTO{
			Stage:   n.Stage,
			Message: n.Message,
			At:      n.At,
		})
	}

	if run.Status == string(pipeline.StatusCompleted) {
		if def, err := pipeline.DefinitionFor(pipeline.Kind(run.Kind)); err == nil && run.StageIndex >= def.LastIndex() {
			response.Final, _ = state.Get(def.FinalField())
		}
	}
	return response, nil
}
