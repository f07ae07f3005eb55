package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/russtat/internal/api/handler"
	"github.com/timmy/russtat/internal/api/middleware"
	"github.com/timmy/russtat/internal/catalog"
	"github.com/timmy/russtat/internal/config"
	"github.com/timmy/russtat/internal/logger"
	"github.com/timmy/russtat/internal/repository"
)

// Deps groups what the HTTP API serves.
type Deps struct {
	Catalog  *catalog.Store
	Datasets *repository.DatasetRepository
	Admin    *handler.AdminHandler // nil disables the admin routes
	Logger   *logger.Logger
	DropRoot bool
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Deps, serverCfg config.ServerConfig) *gin.Engine {
	// Set Gin mode
	switch serverCfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(serverCfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.Catalog)
	catalogHandler := handler.NewCatalogHandler(deps.Catalog)
	datasetHandler := handler.NewDatasetHandler(deps.Datasets, deps.DropRoot)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Catalog
		v1.GET("/catalog", catalogHandler.ListCatalog)
		v1.GET("/catalog/:id", catalogHandler.GetCatalogEntry)

		// Stored datasets
		v1.GET("/datasets/:id", datasetHandler.GetDataset)
		v1.GET("/classifier", datasetHandler.GetClassifier)
	}

	if deps.Admin != nil {
		admin := v1.Group("/admin")
		admin.POST("/catalog/refresh", deps.Admin.RefreshCatalog)
		admin.POST("/fetch", deps.Admin.TriggerFetch)
		admin.POST("/fetch/cancel", deps.Admin.CancelFetch)
		admin.GET("/fetch/status", deps.Admin.GetFetchStatus)
		admin.GET("/runs", deps.Admin.ListRuns)
	}

	return r
}
