package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/russtat/internal/api"
	"github.com/timmy/russtat/internal/api/handler"
	"github.com/timmy/russtat/internal/app"
	"github.com/timmy/russtat/internal/config"
	"github.com/timmy/russtat/internal/logger"
	"github.com/timmy/russtat/internal/service"
)

func main() {
	envCfg := logger.LoadFromEnv()
	envCfg.ServiceName = "russtat-api"
	appLogger := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize")
	}
	defer a.Close()

	// A cold catalog is not fatal; the admin refresh endpoint can load it later
	if datasets, err := a.Catalog.Refresh(ctx, false); err != nil {
		appLogger.WithError(err).Warn("Catalog not loaded")
	} else {
		appLogger.WithField(logger.FieldCount, len(datasets)).Info("Catalog loaded")
	}

	loader := service.NewLoader(a.Datasets, appLogger)
	admin := handler.NewAdminHandler(handler.AdminDeps{
		Fetch:   a.Fetch,
		Catalog: a.Catalog,
		Loader:  loader.OnDataset,
		Titles:  a.Datasets,
		Runs:    a.Runs,
		Policy:  a.Policy(),
		Logger:  appLogger,
	})

	router := api.SetupRouter(api.Deps{
		Catalog:  a.Catalog,
		Datasets: a.Datasets,
		Admin:    admin,
		Logger:   appLogger,
		DropRoot: cfg.Classifier.DropRoot,
	}, cfg.Server)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
