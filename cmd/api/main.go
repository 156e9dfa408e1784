package main

import (
	"context"
	"log"

	"relaychat/config"
	"relaychat/internal/commands"
	"relaychat/internal/handler"
	"relaychat/internal/middleware"
	"relaychat/internal/redis"
	"relaychat/internal/repository"
	"relaychat/internal/scheduler"
	"relaychat/internal/server"
	"relaychat/internal/services"
	"relaychat/internal/storage"
	"relaychat/internal/websocket"
	"relaychat/pkg/database"
	"relaychat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(l)
	defer hub.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	contactRepo := repository.NewContactRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	callRepo := repository.NewCallRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Optional Redis: cross-instance relay, shared presence and rate limits
	var (
		limiter middleware.Limiter
		tracker services.PresenceTracker
	)
	if cfg.RedisEnabled {
		client, err := redis.Connect(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()

		pubsub := redis.NewPubSub(client)
		hub.AttachPublisher(pubsub, cfg.InstanceID)
		go websocket.NewRedisBridge(pubsub, hub, l).Run(ctx, nil)

		rateCfg := redis.DefaultRateLimitConfig()
		if cfg.CallRateLimit > 0 {
			rateCfg.CallLimit = cfg.CallRateLimit
		}
		if cfg.MessageRateLimit > 0 {
			rateCfg.MessageLimit = cfg.MessageRateLimit
		}
		limiter = redis.NewRateLimiter(client, rateCfg)
		tracker = redis.NewPresenceStore(client, 0)
		l.Infof("Redis relay bridge enabled for instance %s", cfg.InstanceID)
	} else {
		l.Infof("Redis disabled, relay is single-instance")
	}

	var blobs *storage.Client
	if cfg.StorageEnabled() {
		blobs, err = storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
		})
		if err != nil {
			log.Fatalf("Failed to configure attachment storage: %v", err)
		}
	}

	// Services
	bus := commands.NewBus()
	authService := services.NewAuthService(userRepo, cfg)
	userService := services.NewUserService(userRepo)
	notificationService := services.NewNotificationService(notificationRepo, hub, l)
	uploadService := services.NewUploadService(blobs)
	conversationService := services.NewConversationService(conversationRepo, messageRepo, userRepo, notificationService, hub, uploadService, bus, l)
	contactService := services.NewContactService(contactRepo, userRepo, notificationService, l)
	callService := services.NewCallService(callRepo, userRepo, notificationService, hub, cfg.CallRingTimeout, l)
	callService.RegisterHandlers(bus)
	iceService := services.NewICEService(cfg)
	presenceService := services.NewPresenceService(contactRepo, tracker, l)
	presenceService.SetRelay(hub)
	presenceService.SetLocalView(hub.Online)

	jobs := scheduler.NewRunner(l)
	if err := jobs.AddCallSweep(cfg.CallSweepInterval, callService); err != nil {
		log.Fatalf("Failed to schedule call sweep: %v", err)
	}
	jobs.Start(ctx)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService, presenceService),
		Call:         handler.NewCallHandler(callService, iceService),
		Conversation: handler.NewConversationHandler(conversationService),
		Contact:      handler.NewContactHandler(contactService),
		Notification: handler.NewNotificationHandler(notificationService),
		Upload:       handler.NewUploadHandler(uploadService),
		Relay:        websocket.NewHandler(authService, hub, bus, presenceService, l),
	}, authService, limiter)

	if err := srv.Start(); err != nil {
		l.Errorf("Server stopped with error: %v", err)
	}
}
