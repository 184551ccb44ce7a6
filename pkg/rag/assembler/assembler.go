package assembler

import (
	"context"
	"fmt"
	"strings"

	"ai-contentgen-be/internal/pkg/logger"
	"ai-contentgen-be/internal/repository/specification"
	"ai-contentgen-be/internal/repository/unitofwork"
	"ai-contentgen-be/pkg/pipeline"
	"ai-contentgen-be/pkg/vectorindex"

	"github.com/google/uuid"
)

// Assembler turns indexed conversation history into prompt-ready transcript
// text. Each line reads "ROLE: content" with the role upper-cased.
type Assembler struct {
	uowFactory unitofwork.RepositoryFactory
	index      *vectorindex.Index
	logger     logger.ILogger
}

var _ pipeline.ContextProvider = &Assembler{}

func NewAssembler(uowFactory unitofwork.RepositoryFactory, index *vectorindex.Index, log logger.ILogger) *Assembler {
	return &Assembler{
		uowFactory: uowFactory,
		index:      index,
		logger:     log,
	}
}

// RelevantTranscript retrieves the topK most similar messages for the query
// and renders them as transcript lines. A conversation with nothing to
// retrieve yields the no-context sentinel, never an error.
func (a *Assembler) RelevantTranscript(ctx context.Context, conversationId uuid.UUID, query string, topK int) (string, error) {
	uow := a.uowFactory.NewUnitOfWork(ctx)
	results, err := a.index.Query(ctx, uow, conversationId, query, topK)
	if err != nil {
		return pipeline.NoPriorContext, err
	}
	if len(results) == 0 {
		return pipeline.NoPriorContext, nil
	}

	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = formatLine(r.Role, r.Document)
	}
	return strings.Join(lines, "\n"), nil
}

// FullTranscript renders the whole stored conversation, oldest first. Used
// for the assistant chat path where recency matters more than similarity.
func (a *Assembler) FullTranscript(ctx context.Context, conversationId uuid.UUID) (string, error) {
	uow := a.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.ChatMessageRepository().FindAll(
		ctx,
		specification.ByChatSessionID{ChatSessionID: conversationId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation %s: %w", conversationId, err)
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.IsDeleted || msg.Content == "" {
			continue
		}
		lines = append(lines, formatLine(msg.Role, msg.Content))
	}
	if len(lines) == 0 {
		return pipeline.NoPriorContext, nil
	}
	return strings.Join(lines, "\n"), nil
}

func formatLine(role, content string) string {
	return fmt.Sprintf("%s: %s", strings.ToUpper(role), content)
}
