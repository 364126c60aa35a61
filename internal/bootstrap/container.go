package bootstrap

import (
	"context"
	"log"
	"time"

	"cc-intelligence-be/internal/config"
	"cc-intelligence-be/internal/controller"
	"cc-intelligence-be/internal/handler"
	"cc-intelligence-be/internal/orchestrator"
	"cc-intelligence-be/internal/pkg/logger"
	"cc-intelligence-be/internal/repository/contract"
	"cc-intelligence-be/internal/repository/implementation"
	"cc-intelligence-be/internal/repository/memory"
	"cc-intelligence-be/internal/service"
	"cc-intelligence-be/internal/websocket"
	"cc-intelligence-be/pkg/intent"
	"cc-intelligence-be/pkg/research"
	"cc-intelligence-be/pkg/research/stream"
	"cc-intelligence-be/pkg/session"

	pktNats "cc-intelligence-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ResearchController controller.IResearchController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	Orchestrator    *orchestrator.Orchestrator

	// WebSockets
	SessionStreamHandler *handler.SessionStreamHandler
	WebSocketHub         *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/session_stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Session Persistence
	var sessionRepo contract.ISessionRepository
	if db != nil {
		sessionRepo = implementation.NewSessionRepository(db, cfg.Store.MaxPayloadBytes)
		log.Printf("[INFO] Using Session Repository: POSTGRES")
	} else {
		sessionRepo = memory.NewSessionRepository(cfg.Store.MaxPayloadBytes)
		log.Printf("[INFO] Using Session Repository: IN-MEMORY")
	}

	sessionStore := session.NewStore(
		sessionRepo,
		sysLogger,
		time.Duration(cfg.Store.DebounceMillis)*time.Millisecond,
		cfg.Store.TruncateEntries,
	)

	// 4. Research Pipeline
	registry := research.NewRegistry()

	intentResolver := intent.NewResolver(
		cfg.Intent.EndpointURL,
		time.Duration(cfg.Intent.TimeoutSeconds)*time.Second,
		sysLogger,
	)

	var streamClient stream.Client
	if cfg.Research.Provider == "simulated" {
		streamClient = stream.NewSimulatedClient(registry, 400*time.Millisecond)
		log.Printf("[INFO] Using Research Stream Provider: SIMULATED")
	} else {
		streamClient = stream.NewSSEClient(cfg.Research.StreamBaseURL, sysLogger)
		log.Printf("[INFO] Using Research Stream Provider: SSE (%s)", cfg.Research.StreamBaseURL)
	}

	orch := orchestrator.New(
		intentResolver,
		streamClient,
		sessionStore,
		registry,
		pubSub,
		natsPub,
		sysLogger,
	)
	go orch.Run(context.Background())

	// 5. Services
	consumerService := service.NewConsumerService(
		pubSub,
		orchestrator.SessionUpdatesTopic,
		wsHub,
		sysLogger,
	)

	researchService := service.NewResearchService(orch, sessionStore, registry, sysLogger)

	// 6. Controllers & Handlers
	researchController := controller.NewResearchController(researchService)
	sessionStreamHandler := handler.NewSessionStreamHandler(wsHub, sysLogger)

	return &Container{
		ResearchController:   researchController,
		ConsumerService:      consumerService,
		Orchestrator:         orch,
		SessionStreamHandler: sessionStreamHandler,
		WebSocketHub:         wsHub,
	}
}
