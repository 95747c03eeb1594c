package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldbooks/cashrecon/internal/api"
	"github.com/fieldbooks/cashrecon/internal/application/service"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/config"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/logging"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

// resolvePort picks the listen port: an explicit -port flag wins, then
// the config, then the built-in default.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	if cfgPort != 0 {
		return cfgPort
	}
	return api.DefaultConfig().Port
}

// RunServe runs the API server until interrupted.
func RunServe(cfg *config.Config, flags *ServeFlags) error {
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "api")

	store, err := storage.New(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reconService := service.NewReconService(cfg.EngineConfig(), 4, store, logger)
	reconService.StartBackgroundCleanup(time.Minute)
	defer reconService.StopBackgroundCleanup()

	apiCfg := api.Config{
		Port:           resolvePort(flags.Port, cfg.Server.Port),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if len(apiCfg.AllowedOrigins) == 0 {
		apiCfg.AllowedOrigins = api.DefaultConfig().AllowedOrigins
	}

	server := api.NewServer(apiCfg, store, reconService, logger)

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
