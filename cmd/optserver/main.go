package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tpitkanen/potku/internal/config"
	"github.com/tpitkanen/potku/internal/errors"
	"github.com/tpitkanen/potku/internal/logging"
	"github.com/tpitkanen/potku/internal/server"
	"github.com/tpitkanen/potku/internal/simulation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	serviceLogger := logger.WithFields(map[string]interface{}{
		"service": "recoil-optimization-server",
	})

	ctx := context.Background()
	ctxLogger := &logging.CtxLogger{Logger: serviceLogger}
	ctx = ctxLogger.WithContext(ctx)

	// zap-based libraries share the service logger through the adapter.
	zapLogger := logging.NewZapLogger(serviceLogger)
	zapLogger.Info("configuration loaded",
		zap.String("environment", cfg.Environment),
		zap.Int("sim_processes", cfg.Simulator.Processes),
		zap.Float64("channel_width", cfg.Optimization.ChannelWidth),
	)

	// The simulator collaborator: the external solver when configured,
	// otherwise the built-in echo stand-in.
	newSimulator := func() simulation.Simulator {
		if cfg.Simulator.Binary == "" {
			serviceLogger.Warn("no solver binary configured, using echo simulator")
			return &simulation.EchoSimulator{}
		}
		return simulation.NewExecSimulator(simulation.ExecConfig{
			Binary:    cfg.Simulator.Binary,
			WorkDir:   cfg.Simulator.WorkDir,
			Processes: cfg.Simulator.Processes,
			CheckTime: cfg.Simulator.CheckTime,
			CheckMax:  cfg.Simulator.CheckMax,
			CheckMin:  cfg.Simulator.CheckMin,
		}, serviceLogger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(errors.RecoveryMiddleware(serviceLogger))
	r.Use(errors.ErrorHandler(serviceLogger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := server.NewServer(cfg, serviceLogger, newSimulator)
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		serviceLogger.Info("Starting server", map[string]interface{}{
			"address": httpServer.Addr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serviceLogger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	serviceLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	// Running optimizations are cancelled; their clean-up terminates any
	// child solver processes.
	if err := srv.Close(); err != nil {
		serviceLogger.Error("error closing server resources", map[string]interface{}{"error": err})
	}

	serviceLogger.Info("Server stopped")
}
