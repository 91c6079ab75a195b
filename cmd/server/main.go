// Package main is the entry point for the Tabula API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tabula/internal/domain/auth"
	"tabula/internal/domain/documents"
	"tabula/internal/domain/landedcost"
	"tabula/internal/domain/ledger"
	"tabula/internal/domain/posting"
	"tabula/internal/domain/registers/stock"
	"tabula/internal/domain/reports"
	v1 "tabula/internal/infrastructure/http/v1"
	"tabula/internal/infrastructure/storage/postgres"
	"tabula/internal/infrastructure/storage/postgres/auth_repo"
	"tabula/internal/infrastructure/storage/postgres/catalog_repo"
	"tabula/internal/infrastructure/storage/postgres/document_repo"
	"tabula/internal/infrastructure/storage/postgres/ledger_repo"
	"tabula/internal/infrastructure/storage/postgres/register_repo"
	"tabula/internal/infrastructure/storage/postgres/report_repo"
	"tabula/pkg/logger"
	"tabula/pkg/numerator"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting tabula server")

	// --- Database connection ---
	dsn := mustEnv("DATABASE_URL")
	poolCfg := postgres.DefaultPoolConfig(dsn)
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	docRepo := document_repo.NewDocumentRepo(txManager)
	stockRepo := register_repo.NewStockRepo(txManager)
	ledgerRepo := ledger_repo.NewLedgerRepo(txManager)
	partnerRepo := catalog_repo.NewPartnerRepo(txManager)
	productRepo := catalog_repo.NewProductRepo(txManager)
	warehouseRepo := catalog_repo.NewWarehouseRepo(txManager)
	reportRepo := report_repo.NewReportRepo(txManager)
	userRepo := auth_repo.NewUserRepo(txManager)

	auditStore, err := postgres.NewAuditStore(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit store", "error", err)
	}

	// --- Domain services ---
	stockService := stock.NewService(stockRepo, productRepo)
	ledgerService := ledger.NewService(ledgerRepo, txManager)

	creditPolicy, err := ledger.NewCreditPolicy(partnerRepo, ledgerService, getEnv("CREDIT_RULE", ""))
	if err != nil {
		log.Fatalw("failed to compile credit rule", "error", err)
	}

	postingCfg := posting.DefaultConfig()
	postingCfg.AllowNegativeStock = getEnv("ALLOW_NEGATIVE_STOCK", "false") == "true"

	numbers := numerator.New(pool.Pool, numerator.DefaultOptions())

	policy := posting.NewPolicy(postingCfg, stockService, productRepo)
	engine := posting.NewEngine(
		postingCfg,
		txManager,
		docRepo,
		policy,
		stockService,
		ledgerService,
		creditPolicy,
		productRepo,
		partnerRepo,
		warehouseRepo,
		numbers,
		auditStore,
	)

	documentService := documents.NewService(docRepo, engine, numbers, txManager)
	landedCostEngine := landedcost.NewEngine(txManager, docRepo, stockService, productRepo)
	reportService := reports.NewService(reportRepo, productRepo)

	// --- Auth ---
	jwtSecret := mustEnv("JWT_SECRET")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))
	authService := auth.NewService(userRepo, jwtService, auth.DefaultServiceConfig())

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtService,
		AuthService:  authService,
		Documents:    documentService,
		Ledger:       ledgerService,
		LandedCost:   landedCostEngine,
		Reports:      reportService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
