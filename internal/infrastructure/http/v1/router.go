// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"tabula/internal/domain/auth"
	"tabula/internal/domain/documents"
	"tabula/internal/domain/landedcost"
	"tabula/internal/domain/ledger"
	"tabula/internal/domain/reports"
	"tabula/internal/infrastructure/http/v1/handlers"
	"tabula/internal/infrastructure/http/v1/middleware"
	"tabula/internal/infrastructure/storage/postgres"
	"tabula/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	JWTValidator middleware.JWTValidator
	AuthService  *auth.Service

	Documents  *documents.Service
	Ledger     *ledger.Service
	LandedCost *landedcost.Engine
	Reports    *reports.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	base := handlers.NewBaseHandler()

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(base, cfg.AuthService)
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		docHandler := handlers.NewDocumentHandler(base, cfg.Documents)
		docs := protected.Group("/documents")
		{
			docs.POST("", docHandler.Create)
			docs.GET("", docHandler.List)
			docs.GET("/:id", docHandler.Get)
			docs.PUT("/:id", docHandler.Update)
			docs.DELETE("/:id", docHandler.Delete)
			docs.POST("/:id/approve", docHandler.Approve)
			docs.POST("/:id/cancel", docHandler.Cancel)
			docs.POST("/:id/convert/dispatch", docHandler.ConvertToDispatch)
			docs.POST("/:id/convert/invoice", docHandler.ConvertToInvoice)
		}

		ledgerHandler := handlers.NewLedgerHandler(base, cfg.Ledger)
		ledgerGroup := protected.Group("/ledger")
		{
			ledgerGroup.POST("/allocations", ledgerHandler.Allocate)
			ledgerGroup.DELETE("/allocations/:id", ledgerHandler.Deallocate)
			ledgerGroup.POST("/allocations/auto", ledgerHandler.AutoAllocate)
			ledgerGroup.GET("/partners/:id/aging", ledgerHandler.Aging)
		}

		landedCostHandler := handlers.NewLandedCostHandler(base, cfg.LandedCost)
		protected.POST("/landed-costs/apply", landedCostHandler.Apply)

		reportsHandler := handlers.NewReportsHandler(base, cfg.Reports)
		protected.GET("/reports/inventory-value", reportsHandler.InventoryValue)
	}

	return router
}
