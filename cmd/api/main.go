package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/calvora/sales-gateway/internal/auth"
	"github.com/calvora/sales-gateway/internal/config"
	gateway "github.com/calvora/sales-gateway/internal/gateways"
	"github.com/calvora/sales-gateway/internal/handlers"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/queue"
	"github.com/calvora/sales-gateway/internal/repository"
	"github.com/calvora/sales-gateway/internal/services"
	xhttp "github.com/calvora/sales-gateway/pkg/http"
	"github.com/calvora/sales-gateway/pkg/logger"
	"github.com/calvora/sales-gateway/pkg/pg"
	"github.com/calvora/sales-gateway/pkg/prom"
	"github.com/calvora/sales-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
	}

	tokens, err := auth.NewManager(config.Get().JWTSecret, config.Get().JWTTTL)
	if err != nil {
		logger.Error("failed creating token manager", "error", err)
		return
	}

	contactRepo := repository.NewContactRepository(db)
	callRepo := repository.NewCallRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	crmIntegrationRepo := repository.NewCrmIntegrationRepository(db)

	voice := gateway.NewVoiceGateway(
		config.Get().VoiceProviderUrl,
		config.Get().VoiceProviderKey,
		config.Get().VoiceCallTimeout,
	)
	messaging := gateway.NewMessagingGateway(gateway.MessagingConfig{
		BaseURL: config.Get().MessagingProviderUrl,
		APIKey:  config.Get().MessagingProviderKey,
	})
	crmGatewayFor := func(platform model.CrmPlatform) (gateway.CrmGateway, error) {
		return gateway.NewCrmGateway(
			platform,
			config.Get().HubspotBaseUrl,
			config.Get().PipedriveBaseUrl,
			10*time.Second,
		)
	}

	// services
	authService := services.NewAuthService(userRepo, tokens)
	contactService := services.NewContactService(contactRepo)
	callService := services.NewCallService(contactRepo, callRepo, voice, services.CallServiceConfig{
		AgentNumber:  config.Get().VoiceAgentNumber,
		BatchWorkers: config.Get().VoiceBatchWorkers,
		CallTimeout:  config.Get().VoiceCallTimeout,
	})
	messageService := services.NewMessageService(contactRepo, threadRepo, messageRepo, q)
	historyService := services.NewHistoryService(contactRepo, threadRepo, messageRepo, messaging, config.Get().OTPMarkerPhrase)
	reconcileService := services.NewReconcileService(contactRepo, callRepo, threadRepo, messageRepo, userRepo)
	crmService := services.NewCrmService(crmIntegrationRepo, contactRepo, crmGatewayFor)
	healthService := services.NewHealthService(db, redisAdap)

	// v1 handlers
	authHandler := handlers.NewAuthHandler(authService, config.Get().JWTTTL, config.Get().CookieSecure)
	contactHandler := handlers.NewContactHandler(contactService)
	callHandler := handlers.NewCallHandler(callService)
	messageHandler := handlers.NewMessageHandler(messageService, historyService)
	webhookHandler := handlers.NewWebhookHandler(reconcileService)
	crmHandler := handlers.NewCrmHandler(crmService)
	healthHandler := handlers.NewHealthHandler(healthService)

	protected := auth.RequireToken(tokens)

	g := s.Router.Group("/api/v1")
	handlers.RegisterAuthRoutes(g, authHandler, protected)
	handlers.RegisterContactRoutes(g, contactHandler, protected)
	handlers.RegisterCallRoutes(g, callHandler, protected)
	handlers.RegisterMessageRoutes(g, messageHandler, protected)
	handlers.RegisterCrmRoutes(g, crmHandler, protected)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	if config.Get().AppDebugMetricsAddr != "" {
		hostname, herr := os.Hostname()
		if herr != nil {
			hostname = "unknown"
		}
		if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
			logger.Error("failed to create prometheus metrics", "error", err)
			return
		}
		go func() {
			prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
		}()
	}

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
