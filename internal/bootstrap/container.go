package bootstrap

import (
	"context"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/ai"
	"github.com/kamra34/agentic-fin-tracker/internal/adapters/config"
	"github.com/kamra34/agentic-fin-tracker/internal/adapters/kafka"
	pgclient "github.com/kamra34/agentic-fin-tracker/internal/adapters/postgres"
	"github.com/kamra34/agentic-fin-tracker/internal/adapters/quotes"
	redisclient "github.com/kamra34/agentic-fin-tracker/internal/adapters/redis"
	"github.com/kamra34/agentic-fin-tracker/internal/agents"
	"github.com/kamra34/agentic-fin-tracker/internal/api"
	chatapi "github.com/kamra34/agentic-fin-tracker/internal/api/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/api/health"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/finance"
	"github.com/kamra34/agentic-fin-tracker/internal/events"
	"github.com/kamra34/agentic-fin-tracker/internal/metrics"
	"github.com/kamra34/agentic-fin-tracker/internal/orchestrator"
	pgrepo "github.com/kamra34/agentic-fin-tracker/internal/repository/postgres"
	redisrepo "github.com/kamra34/agentic-fin-tracker/internal/repository/redis"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	Config *config.Config
	Log    *logger.Logger

	// Infrastructure
	PG            *pgclient.Client
	Redis         *redisclient.Client
	KafkaProducer *kafka.Producer
	AI            *ai.OpenAIClient
	Quotes        *quotes.Client

	// Domain
	FinanceService *finance.Service
	ChatService    *chat.Service

	// Orchestration
	Registry *agents.Registry
	Loop     *orchestrator.Loop

	// Application
	Server *api.Server
}

// New wires the full application graph from configuration
func New(cfg *config.Config) (*Container, error) {
	log := logger.Get()

	pg, err := pgclient.NewClient(cfg.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	rdb, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		_ = pg.Close()
		return nil, errors.Wrap(err, "connect redis")
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		log.Info("Kafka telemetry enabled")
	}

	aiClient, err := ai.NewOpenAIClient(cfg.AI.OpenAIKey, cfg.AI.Model, cfg.AI.Timeout, cfg.AI.RatePerMinute)
	if err != nil {
		_ = pg.Close()
		_ = rdb.Close()
		return nil, errors.Wrap(err, "init openai client")
	}

	quotesClient := quotes.NewClient(cfg.Quotes.BaseURL, cfg.Quotes.Timeout)

	// Domain services
	financeRepo := pgrepo.NewFinanceRepository(pg.DB())
	financeService := finance.NewService(financeRepo)

	sessionRepo := redisrepo.NewChatSessionRepository(rdb.Client())
	chatService := chat.NewService(sessionRepo)

	// Agents
	registry := agents.NewRegistry()
	registry.Register(agents.NewDataAnalyst(financeRepo, aiClient))
	registry.Register(agents.NewAdvisor(aiClient))
	registry.Register(agents.NewMarketAgent(quotesClient, aiClient))
	registry.Register(agents.NewKnowledgeAgent(aiClient))

	// Orchestration
	chatMetrics := metrics.NewChat()
	publisher := events.NewTurnPublisher(producer)

	loop := orchestrator.NewLoop(
		orchestrator.NewAssembler(financeService, cfg.Chat.HistoryWindow),
		orchestrator.NewLLMPlanner(aiClient, cfg.Chat.PlannerTimeout),
		registry,
		orchestrator.NewSynthesizer(aiClient, cfg.Chat.PlannerTimeout),
		chatService,
		chatMetrics,
		publisher,
		orchestrator.LoopConfig{
			MaxIterations: cfg.Chat.MaxIterations,
			AgentTimeout:  cfg.Chat.AgentTimeout,
		},
	)

	// HTTP layer
	healthHandler := health.New(log, pg, rdb, cfg.App.Name, cfg.App.Version)
	chatHandler := chatapi.NewHandler(loop, chatService, cfg.Chat.StreamBuffer, 0)

	server := api.NewServer(api.ServerConfig{
		Port:         cfg.Server.Port,
		ServiceName:  cfg.App.Name,
		Version:      cfg.App.Version,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, healthHandler, chatHandler, log)

	log.Infof("Container initialized: agents=%d kafka=%t", len(registry.List()), cfg.Kafka.Enabled)

	return &Container{
		Config:         cfg,
		Log:            log,
		PG:             pg,
		Redis:          rdb,
		KafkaProducer:  producer,
		AI:             aiClient,
		Quotes:         quotesClient,
		FinanceService: financeService,
		ChatService:    chatService,
		Registry:       registry,
		Loop:           loop,
		Server:         server,
	}, nil
}

// Shutdown stops the HTTP server and closes infrastructure connections
func (c *Container) Shutdown(ctx context.Context) {
	if err := c.Server.Shutdown(ctx); err != nil {
		c.Log.Warnf("HTTP shutdown: %v", err)
	}
	if c.KafkaProducer != nil {
		if err := c.KafkaProducer.Close(); err != nil {
			c.Log.Warnf("Kafka close: %v", err)
		}
	}
	if err := c.Redis.Close(); err != nil {
		c.Log.Warnf("Redis close: %v", err)
	}
	if err := c.PG.Close(); err != nil {
		c.Log.Warnf("Postgres close: %v", err)
	}
}
