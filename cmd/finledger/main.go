package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finledger/internal/ai"
	"finledger/internal/cache"
	"finledger/internal/cli"
	"finledger/internal/config"
	apphttp "finledger/internal/http"
	"finledger/internal/log"
	"finledger/internal/services"
	gsheet "finledger/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	backend := cli.InitStore(startupCtx, logger, cfg)
	store := backend.Store

	views, cleanupCache := initViewCache(startupCtx, logger, cfg)

	dashboard := services.NewDashboardService(store, views)
	ledger := services.NewLedgerService(store, dashboard)
	svc := apphttp.Services{
		Accounts:  services.NewAccountService(store, dashboard),
		Ledger:    ledger,
		Budgets:   services.NewBudgetService(store, ledger, dashboard),
		Dashboard: dashboard,
	}

	var gen ai.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := ai.NewGemini(startupCtx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("Failed to initialize Gemini client", log.FieldError, err)
			os.Exit(1)
		}
		gen = g
		svc.Receipts = services.NewReceiptService(g)
		logger.Info("Gemini enabled", "model", cfg.GeminiModel)
	} else {
		logger.Info("Gemini disabled - no GEMINI_API_KEY provided")
	}

	var sheets services.SheetReader
	if creds, err := gsheet.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile); err == nil {
		client, err := gsheet.NewClient(startupCtx, creds)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		sheets = client
		logger.Info("Google Sheets import enabled")
	} else {
		logger.Info("Google Sheets import disabled", "reason", err.Error())
	}
	svc.Imports = services.NewImportService(ledger, gen, sheets)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		JWTSecret:      cfg.JWTSecret,
		RateLimitRPM:   cfg.RateLimitRPM,
		TrustedProxies: cfg.TrustedProxies,
		Ready:          store.Ping,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cleanupCache()
		if backend.Cleanup != nil {
			if err := backend.Cleanup(); err != nil {
				logger.Error("Failed to close ledger store", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting finledger server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// initViewCache picks Redis when REDIS_URL is set so that several server
// replicas share dashboard invalidations, else an in-process LRU.
func initViewCache(ctx context.Context, logger *log.Logger, cfg *config.Config) (cache.ViewCache[services.Overview], func()) {
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Dashboard cache: redis", "ttl", cfg.CacheTTL)
		return cache.NewRedis[services.Overview](client, "finledger:", cfg.CacheTTL), func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close Redis client", log.FieldError, err)
			}
		}
	}

	local := cache.NewLocal[services.Overview](1000, cfg.CacheTTL)
	manager := cache.NewManager()
	manager.Register(local)
	manager.StartCleanup(time.Minute)
	logger.Info("Dashboard cache: local", "ttl", cfg.CacheTTL)
	return local, manager.Stop
}
