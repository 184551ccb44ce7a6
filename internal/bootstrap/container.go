package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-contentgen-be/internal/config"
	"ai-contentgen-be/internal/controller"
	"ai-contentgen-be/internal/pkg/logger"
	"ai-contentgen-be/internal/repository/checkpoint"
	"ai-contentgen-be/internal/repository/unitofwork"
	"ai-contentgen-be/internal/service"
	"ai-contentgen-be/pkg/embedding"
	"ai-contentgen-be/pkg/events"
	"ai-contentgen-be/pkg/extract"
	"ai-contentgen-be/pkg/llm/factory"
	pktNats "ai-contentgen-be/pkg/nats"
	"ai-contentgen-be/pkg/pipeline"
	"ai-contentgen-be/pkg/rag/assembler"
	"ai-contentgen-be/pkg/runtracker"
	"ai-contentgen-be/pkg/vectorindex"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController
	RunController  controller.IRunController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Shared infrastructure for shutdown
	Logger    logger.ILogger
	NatsPub   *pktNats.Publisher
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// Durable activity log of run lifecycle events, mostly for operators
	// tailing the log file; dashboards consume the same stream directly.
	if natsPub != nil {
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else if err := natsSub.Subscribe("events.>", "run-activity-log", func(_ context.Context, event events.Event) error {
			sysLogger.Info("RunEvents", "Run event observed", map[string]interface{}{"subject": event.EventType(), "payload": event.Payload()})
			return nil
		}); err != nil {
			log.Printf("[WARN] Failed to subscribe to run events: %v", err)
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	// 5. Retrieval + Pipeline Core
	index := vectorindex.NewIndex(embeddingProvider, sysLogger)
	contextAssembler := assembler.NewAssembler(uowFactory, index, sysLogger)
	checkpointStore := checkpoint.NewGormCheckpointStore(unitofwork.NewUnitOfWork(db).PipelineRunRepository())
	tracker := runtracker.NewTracker(rdb, sysLogger)

	engine := pipeline.NewEngine(
		llmProvider,
		checkpointStore,
		contextAssembler,
		sysLogger,
		pipeline.WithGenerationTimeout(time.Duration(cfg.Pipeline.GenerationTimeoutSeconds)*time.Second),
		pipeline.WithCancelChecker(tracker),
		pipeline.WithStageObserver(func(runId uuid.UUID, stage string, stageIndex int) {
			if natsPub == nil {
				return
			}
			if err := natsPub.Publish(context.Background(), events.NewRunStageCompleted(runId, stage, stageIndex)); err != nil {
				sysLogger.Warn("PipelineEngine", "Failed to publish stage event", map[string]interface{}{"run_id": runId, "stage": stage, "error": err.Error()})
			}
		}),
	)

	// 6. Services
	publisherService := service.NewPublisherService(cfg.Keys.EmbedTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.EmbedTopic,
		uowFactory,
		index,
	)

	generateService := service.NewGenerateService(
		uowFactory,
		engine,
		tracker,
		publisherService,
		natsPub,
		sysLogger,
	)

	chatService := service.NewChatService(
		uowFactory,
		publisherService,
		generateService,
		llmProvider,
		contextAssembler,
		index,
		extract.NewPlainTextExtractor(),
		sysLogger,
	)

	// 7. Controllers
	return &Container{
		ChatController: controller.NewChatController(chatService),
		RunController:  controller.NewRunController(generateService),

		ConsumerService: consumerService,

		Logger:  sysLogger,
		NatsPub: natsPub,
	}
}
