package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/eventpass/eventpass-api/docs"
	v1 "github.com/eventpass/eventpass-api/internal/api/handler/v1"
	"github.com/eventpass/eventpass-api/internal/api/middleware"
	"github.com/eventpass/eventpass-api/internal/config"
	"github.com/eventpass/eventpass-api/internal/repository"
	"github.com/eventpass/eventpass-api/internal/repository/dao"
	"github.com/eventpass/eventpass-api/internal/service"
	"github.com/eventpass/eventpass-api/internal/tokenstore"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine

	broker *service.TokenBroker
	ledger *service.LedgerService
}

type handlers struct {
	auth  *v1.AuthHandler
	user  *v1.UserHandler
	event *v1.EventHandler
	claim *v1.ClaimHandler
}

func NewServer(conf *config.AppConfig, db *gorm.DB) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()
	s.MountHandlers(s.initHandlers(db))

	return s
}

func (s *Server) initHandlers(db *gorm.DB) handlers {
	userRepo := repository.NewUserRepository(dao.NewUserDAO(db))
	eventRepo := repository.NewEventRepository(dao.NewEventDAO(db))
	credentialRepo := repository.NewCredentialRepository(dao.NewCredentialDAO(db))
	ledgerRepo := repository.NewLedgerRepository(dao.NewPendingValidationDAO(db))

	userSvc := service.NewUserService(userRepo, credentialRepo)
	eventSvc := service.NewEventService(eventRepo, userRepo)

	s.broker = service.NewTokenBroker(eventRepo, tokenstore.NewMemory(), s.Config.Tokens.TTL)
	s.ledger = service.NewLedgerService(ledgerRepo, s.Config.Ledger.Retention)
	secure := service.NewSecureChannel(eventRepo, credentialRepo, s.ledger)
	router := service.NewClaimRouter(eventRepo, credentialRepo, s.broker, secure)

	return handlers{
		auth:  v1.NewAuthHandler(s.Config.API, service.NewAuthService(userRepo)),
		user:  v1.NewUserHandler(userSvc),
		event: v1.NewEventHandler(eventSvc, userSvc),
		claim: v1.NewClaimHandler(router, s.broker, s.ledger, eventSvc, userSvc),
	}
}

// StartBackground runs the token janitor and the pending validation
// retention sweep until ctx is done.
func (s *Server) StartBackground(ctx context.Context) {
	go s.broker.RunJanitor(ctx, s.Config.Tokens.JanitorInterval)
	go s.ledger.RunRetentionSweep(ctx, s.Config.Ledger.SweepInterval)
}

const shutdownTimeout = 10 * time.Second

// Serve handles requests on ln until ctx is done, then waits up to
// shutdownTimeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("srv.Shutdown -> %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(h handlers) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", h.auth.HandleSignup)
		auth.POST("/auth/login", h.auth.HandleLogin)
	}

	protected := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		protected.GET("/users/me", h.user.HandleGetMe)
		protected.GET("/users/me/credentials", h.user.HandleListCredentials)

		protected.GET("/events", h.event.HandleListOwnEvents)
		protected.GET("/events/all", h.event.HandleListAllEvents)
		protected.POST("/events", h.event.HandleCreateEvent)
		protected.GET("/events/:eventID", h.event.HandleGetEvent)
		protected.GET("/events/:eventID/badges", h.event.HandleListBadges)
		protected.POST("/events/:eventID/badges", h.event.HandleCreateBadge)
		protected.POST("/events/:eventID/handshake", h.event.HandleHandshake)
		protected.POST("/events/:eventID/tokens", h.claim.HandleIssueToken)

		protected.POST("/claims", h.claim.HandleClaim)
		protected.POST("/claims/secure", h.claim.HandleSecureClaim)
		protected.POST("/validations/sync", h.claim.HandleSyncValidations)
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "EventPass API"
	docs.SwaggerInfo.Description = "Badge issuance and reconciliation for events."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
