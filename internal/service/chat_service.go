package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-contentgen-be/internal/constant"
	"ai-contentgen-be/internal/dto"
	"ai-contentgen-be/internal/entity"
	"ai-contentgen-be/internal/pkg/logger"
	"ai-contentgen-be/internal/repository/specification"
	"ai-contentgen-be/internal/repository/unitofwork"
	"ai-contentgen-be/pkg/extract"
	"ai-contentgen-be/pkg/llm"
	"ai-contentgen-be/pkg/rag/assembler"
	"ai-contentgen-be/pkg/rag/intent"
	"ai-contentgen-be/pkg/vectorindex"

	"github.com/google/uuid"
)

const (
	// chatContextTopK is wider than the pipeline's: a free-form chat answer
	// benefits from more surrounding history than a focused generation stage.
	chatContextTopK = 5

	extractedPreviewLimit = 500
	uploadPreviewLimit    = 200
)

type IChatService interface {
	CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetAllSessions(ctx context.Context) ([]*dto.GetAllSessionsResponse, error)
	GetChatHistory(ctx context.Context, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	SendChat(ctx context.Context, req *dto.SendChatRequest) (*dto.SendChatResponse, error)
	DeleteSession(ctx context.Context, req *dto.DeleteSessionRequest) error
	UploadContent(ctx context.Context, req *dto.UploadContentRequest) (*dto.UploadContentResponse, error)
	ReindexSession(ctx context.Context, sessionId uuid.UUID) (*dto.ReindexSessionResponse, error)
}

type chatService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	generateService  IGenerateService
	llmProvider      llm.LLMProvider
	assembler        *assembler.Assembler
	index            *vectorindex.Index
	extractor        extract.Extractor
	logger           logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	generateService IGenerateService,
	llmProvider llm.LLMProvider,
	contextAssembler *assembler.Assembler,
	index *vectorindex.Index,
	extractor extract.Extractor,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		generateService:  generateService,
		llmProvider:      llmProvider,
		assembler:        contextAssembler,
		index:            index,
		extractor:        extractor,
		logger:           log,
	}
}

func (cs *chatService) CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	platform := constant.PlatformMedium
	if strings.EqualFold(req.Platform, "linkedin") {
		platform = constant.PlatformLinkedIn
	}

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("%s Content Chat", platform)
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session := entity.ChatSession{
		Id:        uuid.New(),
		Title:     title,
		Platform:  platform,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, &session); err != nil {
		return nil, err
	}

	return &dto.CreateSessionResponse{Id: session.Id, Title: session.Title}, nil
}

func (cs *chatService) GetAllSessions(ctx context.Context) ([]*dto.GetAllSessionsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllSessionsResponse, 0, len(sessions))
	for _, s := range sessions {
		response = append(response, &dto.GetAllSessionsResponse{
			Id:        s.Id,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return response, nil
}

func (cs *chatService) GetChatHistory(ctx context.Context, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("chat session not found")
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	// Opening a conversation re-indexes anything the consumer missed,
	// e.g. messages written while the embedding backend was down.
	go cs.backfillSession(sessionId, messages)

	response := make([]*dto.GetChatHistoryResponse, 0, len(messages))
	for _, msg := range messages {
		if msg.IsDeleted {
			continue
		}
		response = append(response, &dto.GetChatHistoryResponse{
			Id:        msg.Id,
			Role:      msg.Role,
			Chat:      msg.Content,
			Source:    msg.Source,
			CreatedAt: msg.CreatedAt,
		})
	}
	return response, nil
}

func (cs *chatService) backfillSession(sessionId uuid.UUID, messages []*entity.ChatMessage) {
	ctx := context.Background()
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.index.Backfill(ctx, uow, sessionId, messages); err != nil {
		cs.logger.Warn("ChatService", "Session backfill failed", map[string]interface{}{"chat_session_id": sessionId, "error": err.Error()})
	}
}

// SendChat stores the user message and either answers it with a retrieval
// grounded reply or, when it reads as a generation request and the session
// has source material, kicks off a pipeline run.
func (cs *chatService) SendChat(ctx context.Context, req *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: req.ChatSessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("chat session not found")
	}

	userMessage, err := cs.saveMessage(ctx, uow, req.ChatSessionId, constant.ChatMessageRoleUser, req.Chat, "", "")
	if err != nil {
		return nil, err
	}

	latest, err := uow.ChatMessageRepository().FindLatestExtracted(ctx, req.ChatSessionId)
	if err != nil {
		return nil, err
	}

	mode := "chat"
	var replyContent string
	if intent.IsGenerationRequest(req.Chat) && latest != nil {
		run, err := cs.generateService.StartRun(ctx, &dto.StartRunRequest{
			ChatSessionId: req.ChatSessionId,
			Platform:      session.Platform,
			UserRequest:   req.Chat,
		})
		if err != nil {
			return nil, err
		}
		mode = "generation"
		replyContent = fmt.Sprintf("🚀 **%s generation started** (run %s). The result will appear here when it is ready.", session.Platform, run.RunId)
	} else {
		replyContent, err = cs.contextualReply(ctx, req.ChatSessionId, req.Chat, latest)
		if err != nil {
			return nil, err
		}
	}

	replyMessage, err := cs.saveMessage(ctx, uow, req.ChatSessionId, constant.ChatMessageRoleAssistant, replyContent, "", "")
	if err != nil {
		return nil, err
	}

	return &dto.SendChatResponse{
		ChatSessionId: req.ChatSessionId,
		Mode:          mode,
		Sent: &dto.SendChatResponseChat{
			Id:        userMessage.Id,
			Chat:      userMessage.Content,
			Role:      userMessage.Role,
			CreatedAt: userMessage.CreatedAt,
		},
		Reply: &dto.SendChatResponseChat{
			Id:        replyMessage.Id,
			Chat:      replyMessage.Content,
			Role:      replyMessage.Role,
			CreatedAt: replyMessage.CreatedAt,
		},
	}, nil
}

// contextualReply answers a non-generation message grounded in the relevant
// slice of the conversation.
func (cs *chatService) contextualReply(ctx context.Context, sessionId uuid.UUID, userMessage string, latest *entity.ChatMessage) (string, error) {
	contextText, err := cs.assembler.RelevantTranscript(ctx, sessionId, userMessage, chatContextTopK)
	if err != nil {
		cs.logger.Warn("ChatService", "Context retrieval degraded for chat reply", map[string]interface{}{"chat_session_id": sessionId, "error": err.Error()})
	}

	extractedLine := ""
	if latest != nil && latest.ExtractedContent != "" {
		extractedLine = fmt.Sprintf("Extracted content available: %s...\n\n", truncateRunes(latest.ExtractedContent, extractedPreviewLimit))
	}

	prompt := fmt.Sprintf(`You are a helpful AI assistant specializing in content creation for social media.

Previous conversation context:
%s

%sUser's message: %s

Provide a helpful, contextual response. If the user is asking to generate content, guide them on what information you need.`,
		contextText, extractedLine, userMessage)

	return cs.llmProvider.Generate(ctx, prompt)
}

func (cs *chatService) saveMessage(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, role, content, source, extracted string) (*entity.ChatMessage, error) {
	message := entity.ChatMessage{
		Id:               uuid.New(),
		ChatSessionId:    sessionId,
		Role:             role,
		Content:          content,
		Source:           source,
		ExtractedContent: extracted,
		CreatedAt:        time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, &message); err != nil {
		return nil, err
	}
	if err := uow.ChatSessionRepository().Touch(ctx, sessionId); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(dto.PublishEmbedChatMessage{
		ChatSessionId: sessionId,
		MessageId:     message.Id,
	})
	if err != nil {
		return nil, err
	}
	if err := cs.publisherService.Publish(ctx, payload); err != nil {
		// Indexing is asynchronous best effort; the message itself is saved.
		cs.logger.Warn("ChatService", "Failed to publish embed event", map[string]interface{}{"message_id": message.Id, "error": err.Error()})
	}
	return &message, nil
}

// UploadContent runs the extractor and stores the result as a user message
// carrying the source material for later generation runs.
func (cs *chatService) UploadContent(ctx context.Context, req *dto.UploadContentRequest) (*dto.UploadContentResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: req.ChatSessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("chat session not found")
	}

	extracted, err := cs.extractor.Extract(ctx, extract.Input{
		Kind: extract.Kind(req.Kind),
		Name: req.Name,
		Data: []byte(req.Content),
		URL:  req.URL,
	})
	if err != nil {
		return nil, err
	}

	source := req.Name
	if source == "" {
		source = req.URL
	}
	notice := fmt.Sprintf("📄 Uploaded content from %s (%d characters extracted)", source, len(extracted))

	message, err := cs.saveMessage(ctx, uow, req.ChatSessionId, constant.ChatMessageRoleUser, notice, source, extracted)
	if err != nil {
		return nil, err
	}

	return &dto.UploadContentResponse{
		MessageId: message.Id,
		Source:    source,
		Preview:   truncateRunes(extracted, uploadPreviewLimit),
		Length:    len(extracted),
	}, nil
}

// DeleteSession removes the conversation and everything derived from it:
// messages, indexed embeddings, pipeline runs.
func (cs *chatService) DeleteSession(ctx context.Context, req *dto.DeleteSessionRequest) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: req.ChatSessionId})
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("chat session not found")
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if _, err := cs.index.DeleteConversation(ctx, uow, req.ChatSessionId); err != nil {
		return err
	}
	if err := uow.PipelineRunRepository().DeleteByChatSessionId(ctx, req.ChatSessionId); err != nil {
		return err
	}
	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, req.ChatSessionId); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, req.ChatSessionId); err != nil {
		return err
	}

	return uow.Commit()
}

// ReindexSession rebuilds the vector index from the stored messages.
func (cs *chatService) ReindexSession(ctx context.Context, sessionId uuid.UUID) (*dto.ReindexSessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("chat session not found")
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	indexed, err := cs.index.Backfill(ctx, uow, sessionId, messages)
	if err != nil {
		return nil, err
	}
	return &dto.ReindexSessionResponse{ChatSessionId: sessionId, Indexed: indexed}, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
