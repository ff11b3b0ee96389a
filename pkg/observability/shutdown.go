package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a cleanup hook invoked during graceful shutdown.
type ShutdownFunc func(context.Context) error

// ShutdownManager drains the HTTP server and runs registered cleanup
// hooks when SIGINT or SIGTERM arrives.
type ShutdownManager struct {
	logger          *Logger
	server          *http.Server
	shutdownFuncs   []ShutdownFunc
	shutdownTimeout time.Duration
	mu              sync.Mutex
}

// NewShutdownManager creates a shutdown manager. A zero timeout defaults
// to 30 seconds.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:          logger,
		server:          server,
		shutdownTimeout: timeout,
	}
}

// Register adds a cleanup hook. Hooks run concurrently after the HTTP
// server has drained.
func (sm *ShutdownManager) Register(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, fn)
}

// Wait blocks until a shutdown signal is received, then drains the
// server and runs the hooks within the shutdown timeout.
func (sm *ShutdownManager) Wait() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.Infof("Received signal %s, starting graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()
	return sm.shutdown(ctx)
}

func (sm *ShutdownManager) shutdown(ctx context.Context) error {
	if sm.server != nil {
		sm.logger.Info("Shutting down HTTP server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
	}

	sm.mu.Lock()
	funcs := sm.shutdownFuncs
	sm.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(funcs))
	for _, fn := range funcs {
		wg.Add(1)
		go func(shutdownFn ShutdownFunc) {
			defer wg.Done()
			if err := shutdownFn(ctx); err != nil {
				sm.logger.WithError(err).Error("Shutdown hook failed")
				errChan <- err
			}
		}(fn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("Shutdown timeout reached, forcing shutdown")
		return fmt.Errorf("shutdown timeout reached")
	}

	close(errChan)
	var failed int
	for range errChan {
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d errors", failed)
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
