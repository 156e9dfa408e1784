package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaychat/config"
	"relaychat/internal/handler"
	"relaychat/internal/middleware"
	"relaychat/internal/transport/httpdto"
	"relaychat/internal/websocket"
	"relaychat/pkg/database"
	"relaychat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Call         *handler.CallHandler
	Conversation *handler.ConversationHandler
	Contact      *handler.ContactHandler
	Notification *handler.NotificationHandler
	Upload       *handler.UploadHandler
	Relay        *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: logger.OrNop(l),
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetupRoutes mounts every endpoint. limiter may be nil when Redis is off.
func (s *Server) SetupRoutes(handlers *Handlers, auth middleware.TokenAuthenticator, limiter middleware.Limiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")

	authGroup := v1.Group("/auth")
	{
		authLimit := middleware.AuthRateLimitMiddleware(limiter, s.logger)
		authGroup.POST("/register", authLimit, handlers.Auth.Register)
		authGroup.POST("/login", authLimit, handlers.Auth.Login)
		authGroup.GET("/me", middleware.AuthMiddleware(auth), handlers.Auth.Me)
	}

	// the socket authenticates itself so that ?token= works for browsers
	v1.GET("/ws", handlers.Relay.Connect)

	protected := v1.Group("", middleware.AuthMiddleware(auth))

	users := protected.Group("/users")
	{
		users.GET("/search", handlers.User.Search)
		users.GET("/:id", handlers.User.GetByID)
		users.GET("/:id/presence", handlers.User.Presence)
	}

	calls := protected.Group("/calls")
	{
		calls.POST("", middleware.CallRateLimitMiddleware(limiter, s.logger), handlers.Call.Initiate)
		calls.GET("", handlers.Call.List)
		calls.GET("/active", handlers.Call.Active)
		calls.GET("/ice-servers", handlers.Call.ICEServers)
		calls.GET("/:id", handlers.Call.GetByID)
		calls.PATCH("/:id", handlers.Call.Transition)
		calls.POST("/:id/answer", handlers.Call.Answer)
		calls.POST("/:id/end", handlers.Call.End)
	}

	conversations := protected.Group("/conversations")
	{
		conversations.GET("", handlers.Conversation.List)
		conversations.POST("/direct", handlers.Conversation.CreateDirect)
		conversations.POST("/groups", handlers.Conversation.CreateGroup)
		conversations.GET("/:id/messages", handlers.Conversation.ListMessages)
		conversations.POST("/:id/messages", middleware.MessageRateLimitMiddleware(limiter, s.logger), handlers.Conversation.SendMessage)
		conversations.PATCH("/:id/settings", handlers.Conversation.UpdateSettings)
		conversations.POST("/:id/members", handlers.Conversation.AddMember)
		conversations.PATCH("/:id/members/:user_id/role", handlers.Conversation.ChangeRole)
	}

	contacts := protected.Group("/contacts")
	{
		contacts.GET("", handlers.Contact.List)
		contacts.POST("", handlers.Contact.Request)
		contacts.POST("/:id/accept", handlers.Contact.Accept)
		contacts.POST("/:id/reject", handlers.Contact.Reject)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", handlers.Notification.List)
		notifications.GET("/unread-count", handlers.Notification.UnreadCount)
		notifications.POST("/read-all", handlers.Notification.MarkAllRead)
		notifications.PATCH("/:id/read", handlers.Notification.MarkRead)
	}

	protected.POST("/uploads/presign", handlers.Upload.Presign)
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	<-quit

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
