package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const workerShutdownWait = 10 * time.Second

type Server struct {
	router       *gin.Engine
	container    *Container
	httpServer   *http.Server
	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerWG     sync.WaitGroup
}

func NewServer(container *Container) *Server {
	router := SetupRouter(container)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	return &Server{
		router:       router,
		container:    container,
		workerCtx:    workerCtx,
		workerCancel: workerCancel,
	}
}

func (s *Server) Start() error {
	s.startBackgroundWorkers()
	s.startMetricsCollector()

	cfg := s.container.Config.Server
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    orDefault(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:   orDefault(cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:    orDefault(cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes: 1 << 20,
	}

	s.container.Logger.Info(s.workerCtx,
		fmt.Sprintf("Starting server on %s", addr),
		zap.String("env", cfg.Env),
		zap.String("database", s.container.Gate.Status()),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server failed: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		s.stopBackgroundWorkers()
		return err
	case sig := <-sigChan:
		s.container.Logger.Info(s.workerCtx, "Shutdown signal received", zap.String("signal", sig.String()))
		return s.gracefulShutdown()
	}
}

// startBackgroundWorkers arms the auto-attendance triggers. The scheduler
// owns its goroutines; Stop waits for them.
func (s *Server) startBackgroundWorkers() {
	if !s.container.Config.AutoAttendance.Enabled {
		s.container.Logger.Info(s.workerCtx, "Auto-attendance disabled by configuration")
		return
	}
	s.container.Scheduler.Start(s.workerCtx)
}

func (s *Server) startMetricsCollector() {
	if !s.container.Config.Metrics.Enabled {
		return
	}
	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			// Prioritize shutdown signal in the select logic
			case <-s.workerCtx.Done():
				return
			case <-ticker.C:
				// Double-check context to prevent starting work during race conditions
				if s.workerCtx.Err() != nil {
					return
				}
				s.collectDatabaseMetrics()
			}
		}
	}()
}

func (s *Server) collectDatabaseMetrics() {
	s.container.Metrics.RecordConnectivity(s.container.Gate.IsReady())
	if s.container.DB == nil {
		return
	}
	stats := s.container.DB.Stats()
	s.container.Metrics.RecordDatabaseStats(
		stats.OpenConnections,
		stats.InUse,
		stats.Idle,
	)
}

// stopBackgroundWorkers cancels the workers and waits a bounded time for an
// in-flight reconciliation to finish.
func (s *Server) stopBackgroundWorkers() {
	s.workerCancel()

	waitCtx, cancel := context.WithTimeout(context.Background(), workerShutdownWait)
	defer cancel()

	if err := s.container.Scheduler.Stop(waitCtx); err != nil {
		s.container.Logger.Warn(waitCtx, "Auto-attendance did not finish in time, proceeding with shutdown", zap.Error(err))
	}

	shutdownDone := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		s.container.Logger.Info(s.workerCtx, "Background workers finished")
	case <-waitCtx.Done():
		s.container.Logger.Warn(s.workerCtx, "Background workers did not finish in time, proceeding with shutdown")
	}
}

func (s *Server) gracefulShutdown() error {
	timeout := orDefault(s.container.Config.Server.ShutdownTimeout, 30*time.Second)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	s.container.Logger.Info(s.workerCtx, "Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.container.Logger.Error(s.workerCtx, "HTTP server shutdown failed", zap.Error(err))
	}

	s.container.Logger.Info(s.workerCtx, "Stopping background workers...")
	s.stopBackgroundWorkers()

	s.container.Logger.Info(s.workerCtx, "Closing infrastructure connections...")
	s.container.Close()
	s.container.Logger.Info(s.workerCtx, "Server exited gracefully")
	return nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
