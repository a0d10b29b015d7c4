package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/auth"
	"github.com/vibecampus/vibehub/internal/cache"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/procedures"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/internal/storage"
	"github.com/vibecampus/vibehub/pkg/logging"
)

// Dependencies are the backend services the router exposes
type Dependencies struct {
	DB         *db.DB
	Cache      *cache.Cache
	Repo       *db.Repository
	Auth       *auth.Service
	Procedures *procedures.Registry
	Storage    *storage.Local
	Realtime   realtime.Subscriber
	ProfileTTL time.Duration
}

// Router sets up API routes
type Router struct {
	handler    *JSONRPCHandler
	db         *db.DB
	cache      *cache.Cache
	repo       *db.Repository
	auth       *auth.Service
	procedures *procedures.Registry
	storage    *storage.Local
	hub        *Hub
	profileTTL time.Duration
	logger     *zap.Logger

	profiles      *db.ProfileRepository
	follows       *db.FollowRepository
	posts         *db.PostRepository
	communities   *db.CommunityRepository
	events        *db.EventRepository
	tasks         *db.CollabPostRepository
	applications  *db.CollabApplicationRepository
	deliverables  *db.CollabDeliverableRepository
	taskMessages  *db.CollabMessageRepository
	roomMessages  *db.CollegeMessageRepository
	complaints    *db.ComplaintRepository
	notifications *db.NotificationRepository
	wallets       *db.WalletRepository
}

// NewRouter creates a new API router
func NewRouter(deps Dependencies) *Router {
	repo := deps.Repo
	if repo == nil {
		repo = db.NewRepository(deps.DB.DB, nil)
	}
	profileTTL := deps.ProfileTTL
	if profileTTL <= 0 {
		profileTTL = cache.DefaultTTL
	}
	router := &Router{
		handler:    NewJSONRPCHandler(),
		db:         deps.DB,
		cache:      deps.Cache,
		repo:       repo,
		auth:       deps.Auth,
		procedures: deps.Procedures,
		storage:    deps.Storage,
		profileTTL: profileTTL,
		logger:     logging.GetLogger().With(zap.String("component", "api-router")),

		profiles:      db.NewProfileRepository(repo),
		follows:       db.NewFollowRepository(repo),
		posts:         db.NewPostRepository(repo),
		communities:   db.NewCommunityRepository(repo),
		events:        db.NewEventRepository(repo),
		tasks:         db.NewCollabPostRepository(repo),
		applications:  db.NewCollabApplicationRepository(repo),
		deliverables:  db.NewCollabDeliverableRepository(repo),
		taskMessages:  db.NewCollabMessageRepository(repo),
		roomMessages:  db.NewCollegeMessageRepository(repo),
		complaints:    db.NewComplaintRepository(repo),
		notifications: db.NewNotificationRepository(repo),
		wallets:       db.NewWalletRepository(repo),
	}
	if router.procedures == nil {
		router.procedures = procedures.NewRegistry(repo)
	}
	if deps.Realtime != nil {
		router.hub = NewHub(deps.Realtime, router.authorizeFilter)
	}

	// Register all API methods
	router.registerMethods()

	return router
}

// Handler returns the JSON-RPC dispatcher
func (r *Router) Handler() *JSONRPCHandler {
	return r.handler
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	v1 := engine.Group("/v1")
	v1.Use(r.authenticate)
	v1.POST("/rpc", r.handler.Handle)
	if r.hub != nil {
		v1.GET("/realtime", r.hub.Serve)
	}
	if r.storage != nil {
		v1.POST("/storage/upload", r.upload)
		v1.GET("/storage/object/*path", r.download)
	}
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	if r.auth != nil {
		r.registerAuth()
	}
	r.registerCollections()
	r.registerAccount()
	r.registerProcedures()
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{
		"status":  "OK",
		"service": "vibehub-api",
	}
	code := http.StatusOK
	if r.db != nil {
		if err := r.db.Health(ctx); err != nil {
			r.logger.Warn("Database health check failed", zap.Error(err))
			status["status"] = "DEGRADED"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	if r.cache != nil {
		if err := r.cache.Health(ctx); err != nil {
			r.logger.Warn("Redis health check failed", zap.Error(err))
			status["cache"] = "unreachable"
		}
	}
	c.JSON(code, status)
}
