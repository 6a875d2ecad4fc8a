package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"flowmarket/backend/internal/api"
	"flowmarket/backend/internal/auth"
	"flowmarket/backend/internal/catalog"
	"flowmarket/backend/internal/composer"
	"flowmarket/backend/internal/config"
	"flowmarket/backend/internal/execution"
	"flowmarket/backend/internal/logging"
	"flowmarket/backend/internal/mcp"
	"flowmarket/backend/internal/metrics"
	"flowmarket/backend/internal/repository"
	"flowmarket/backend/internal/tls"
)

func main() {
	ctx := context.Background()

	// Parse command line flags
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	// Initialize logging
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("Starting Flow Market backend", "environment", cfg.Environment)

	// Initialize database connection and apply migrations
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer dbPool.Close()

	if err := repository.Migrate(ctx, dbPool); err != nil {
		logger.Error("Failed to apply migrations", "error", err)
		log.Fatalf("Migration failed: %v", err)
	}
	logger.Info("Database connected and migrated")

	// Initialize repository layer
	repo := repository.NewPostgresStore(dbPool)

	// Metrics
	m, err := metrics.New()
	if err != nil {
		logger.Error("Failed to initialize metrics", "error", err)
		log.Fatalf("Metrics initialization failed: %v", err)
	}

	// Catalog: local directory, optionally merged with the remote registry,
	// with an LRU descriptor cache in front.
	var registry catalog.Catalog
	if cfg.Registry.URL != "" {
		registry = catalog.NewRegistryClient(cfg.Registry.URL, cfg.Registry.Timeout)
		logger.Info("Remote registry enabled", "url", cfg.Registry.URL)
	}
	var cat catalog.Catalog = catalog.NewMerged(catalog.NewDirectory(repo), registry)
	cat, err = catalog.NewCached(cat, cfg.Catalog.CacheSize)
	if err != nil {
		log.Fatalf("Catalog cache initialization failed: %v", err)
	}

	// Composition and execution services
	scoring := composer.ScoringConfig{
		CompatibilityWeight: cfg.Scoring.CompatibilityWeight,
		PriceWeight:         cfg.Scoring.PriceWeight,
		ReliabilityWeight:   cfg.Scoring.ReliabilityWeight,
		ReferenceMaxPrice:   cfg.Scoring.ReferenceMaxPrice,
	}
	comp := composer.New(cat, scoring, logger)
	invoker := execution.NewHTTPInvoker(cfg.Execution.StepTimeout)
	engine := execution.NewEngine(cat, invoker, repo, cfg.Execution.Timeout, m, logger)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.ProblemDetailsHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("flowmarket-backend"))

	// Initialize authentication
	authz, err := auth.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize auth", "error", err)
		log.Fatalf("Auth initialization failed: %v", err)
	}

	// Mount REST API handlers
	apiServer := api.NewServer(comp, engine, cat, repo, m, logger)
	apiServer.Register(e.Group("/api/v1"), authz.RequireOwner)
	e.GET("/healthz", apiServer.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.GET("/openapi.yaml", apiServer.HandleSpec)
	e.GET("/docs", apiServer.HandleDocs)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(comp, cat)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))
	e.Any("/mcp", echo.WrapHandler(mcpHandlers))

	logger.Info("MCP protocol handlers mounted")

	// Create HTTP server
	addr := ":8080"
	if cfg.TLS.Enable {
		addr = ":8443"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- server.ListenAndServe()
				return
			}
			// generate if missing and hostnames provided
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
				if len(cfg.TLS.Hostnames) > 0 {
					if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
						logger.Error("Failed to generate self-signed cert", "error", err)
					}
				}
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
