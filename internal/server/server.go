package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/shopcat/apiserver/config"
	"github.com/shopcat/apiserver/internal/db"
	"github.com/shopcat/apiserver/internal/handlers"
	"github.com/shopcat/apiserver/internal/imaging"
	"github.com/shopcat/apiserver/internal/mq"
	"github.com/shopcat/apiserver/internal/services"
	"github.com/shopcat/apiserver/internal/storage"
	"github.com/shopcat/apiserver/internal/store"
	"go.uber.org/zap"
)

const jpegQuality = 90

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	blobs      *storage.Storage
	events     *mq.CatalogEvents
	logger     *zap.Logger
}

// Dependencies are the services the router is built from.
type Dependencies struct {
	AuthService    *services.AuthService
	UserService    *services.UserService
	ProductService *services.ProductService
	UploadService  *services.UploadService
	// LocalFiles, when set, is served under /storage.
	LocalFiles     *storage.LocalDisk
	CORSOrigins    []string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// New connects every backing service and constructs the Server.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = s.closeResources()
		}
	}()

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.db = dbConn

	tokens, err := s.tokenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.blobs = blobs

	broker, err := mq.Open(ctx, cfg.Events)
	if err != nil {
		return nil, err
	}
	s.events = mq.NewCatalogEvents(broker)

	productRepo := store.NewProductRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)

	images := services.NewImageService(blobs, imaging.NewResizer(jpegQuality))
	deps := Dependencies{
		AuthService:    services.NewAuthService(userRepo, tokens, services.NewJWTIssuer(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL),
		UserService:    services.NewUserService(userRepo),
		ProductService: services.NewProductService(productRepo, images, s.events, logger),
		UploadService:  services.NewUploadService(images, productRepo, s.events, logger),
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	}
	if local, isLocal := blobs.Local(); isLocal {
		deps.LocalFiles = local
	}

	s.router = NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ok = true
	return s, nil
}

// tokenStore selects the token registry named by TOKEN_STORE.
func (s *Server) tokenStore(ctx context.Context, cfg config.Config) (services.TokenStore, error) {
	switch cfg.Auth.TokenStore {
	case "", "postgres":
		return store.NewTokenRepository(s.db), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		s.redis = client
		return store.NewRedisTokenStore(client), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.Auth.TokenStore)
	}
}

// NewRouter builds the HTTP routes. Every route is reachable both at the
// root and under /api.
func NewRouter(deps Dependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.AccessLog(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}),
		handlers.LimitBody(deps.MaxUploadBytes),
	)
	router.Get("/healthz", handlers.Healthz)

	if deps.LocalFiles != nil {
		files := http.StripPrefix("/storage/", http.FileServer(http.Dir(deps.LocalFiles.Root())))
		router.Handle("/storage/*", files)
	}

	authMiddleware := handlers.RequireAuth(deps.AuthService, logger)
	routes := func(r chi.Router) {
		handlers.AuthRouter(r, deps.AuthService, deps.UserService, authMiddleware, logger)
		handlers.UploadRouter(r, deps.UploadService, authMiddleware, logger)
		r.Route("/products", func(r chi.Router) {
			handlers.ProductRouter(r, deps.ProductService, authMiddleware, logger)
		})
	}
	routes(router)
	router.Route("/api", routes)

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// closes every backing connection.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.closeResources())
}

func (s *Server) closeResources() error {
	var errs []error
	if s.events != nil {
		errs = append(errs, s.events.Close())
	}
	if s.blobs != nil {
		errs = append(errs, s.blobs.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
