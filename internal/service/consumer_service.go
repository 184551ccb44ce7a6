package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-contentgen-be/internal/dto"
	"ai-contentgen-be/internal/repository/specification"
	"ai-contentgen-be/internal/repository/unitofwork"
	"ai-contentgen-be/pkg/vectorindex"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	index      *vectorindex.Index
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	index *vectorindex.Index,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		index:      index,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedChatMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Indexing chat message %s for session %s", payload.MessageId, payload.ChatSessionId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatMessage, err := uow.ChatMessageRepository().FindOne(ctx, specification.ByID{ID: payload.MessageId})
	if err != nil {
		log.Printf("[ERROR] Failed to get message %s: %v", payload.MessageId, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if chatMessage == nil || chatMessage.IsDeleted {
		log.Printf("[WARN] Message not found or deleted: %s", payload.MessageId)
		msg.Ack()
		return
	}

	// Extracted source material is indexed instead of the short upload notice.
	content := chatMessage.Content
	if chatMessage.ExtractedContent != "" {
		content = chatMessage.ExtractedContent
	}

	if err := cs.index.Add(ctx, uow, chatMessage.ChatSessionId, chatMessage.Id, chatMessage.Role, content); err != nil {
		log.Printf("[ERROR] Failed to index message %s: %v", payload.MessageId, err)
		msg.Nack()
		return
	}

	msg.Ack()
}
