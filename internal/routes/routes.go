// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"biosignal-service/internal/config"
	"biosignal-service/internal/database"
	"biosignal-service/internal/handler"
	"biosignal-service/internal/middleware"
	"biosignal-service/internal/service"
	"biosignal-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config             *config.Config
	logger             *zap.Logger
	db                 *database.DB
	acquisitionService *service.AcquisitionService
	discoveryService   *service.DiscoveryService
	wsHandler          *handler.WebSocketHandler
}

// NewRouter creates a new router instance. db may be nil.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	acquisitionService *service.AcquisitionService,
	discoveryService *service.DiscoveryService,
	eventBus *handler.EventBus,
) *Router {
	return &Router{
		config:             config,
		logger:             logger,
		db:                 db,
		acquisitionService: acquisitionService,
		discoveryService:   discoveryService,
		wsHandler: handler.NewWebSocketHandler(
			acquisitionService,
			eventBus,
			config.Security.AllowedOrigins,
			logger,
		),
	}
}

// WebSocketHandler returns the streaming handler; its Run loop must be started
func (r *Router) WebSocketHandler() *handler.WebSocketHandler {
	return r.wsHandler
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if r.config.App.Environment == "test" {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.acquisitionService, r.config, r.logger)
	monitorHandler := handler.NewMonitorHandler(r.acquisitionService, r.discoveryService, r.logger)
	sessionHandler := handler.NewSessionHandler(r.acquisitionService, r.logger)

	// Health check routes
	healthHandler.RegisterRoutes(&router.RouterGroup)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	monitorHandler.RegisterRoutes(apiV1)
	sessionHandler.RegisterRoutes(apiV1)
	if r.discoveryService != nil {
		handler.NewDiscoveryHandler(r.discoveryService, r.logger).RegisterRoutes(apiV1)
	}

	// WebSocket routes
	r.wsHandler.RegisterRoutes(router.Group("/ws"))

	// Documentation routes
	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
