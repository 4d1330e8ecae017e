package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/devtree/internal/config"
	"github.com/muurk/devtree/internal/devtree"
	"github.com/muurk/devtree/internal/logging"
	"github.com/muurk/devtree/internal/subsys"
	"github.com/muurk/devtree/internal/sysfs"
)

// Config holds the server configuration
type Config struct {
	Host       string
	Port       int
	CertPath   string // Path to certificate file (optional)
	KeyPath    string // Path to private key file (optional)
	LogLevel   string
	Backlog    int      // Events kept for replay to new clients
	Subsystems []string // Monitor filters; empty means all subsystems
	SysfsRoot  string   // Device tree root (defaults to /sys)
}

// Server streams device hotplug events over WebSocket.
type Server struct {
	config     *Config
	sys        subsys.Subsystem
	hub        *Hub
	httpServer *http.Server
	cancelPump context.CancelFunc
	pumpDone   chan struct{}
}

// New creates a new Server instance
func New(cfg *Config) (*Server, error) {
	// Initialize logging
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if cfg.Backlog <= 0 {
		cfg.Backlog = config.DefaultBacklog
	}

	var opts []sysfs.Option
	if cfg.SysfsRoot != "" {
		opts = append(opts, sysfs.WithRoot(cfg.SysfsRoot))
	}

	return &Server{
		config: cfg,
		sys:    sysfs.New(opts...),
		hub:    NewHub(cfg.Backlog),
	}, nil
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	logging.Info("Starting devtree event server",
		zap.String("addr", addr),
		zap.Strings("subsystems", s.config.Subsystems),
		zap.Int("backlog", s.config.Backlog),
		zap.Bool("tls", s.config.CertPath != ""),
		zap.String("log_level", s.config.LogLevel),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/devices", s.handleDevices)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.config.CertPath != "" {
		tlsConfig, err := NewTLSConfig(s.config.CertPath, s.config.KeyPath)
		if err != nil {
			return err
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	s.cancelPump = cancel
	s.pumpDone = make(chan struct{})
	go s.runPump(pumpCtx)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.httpServer.TLSConfig != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errChan <- err
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		s.cancelPump()
		<-s.pumpDone
		return err
	}
}

// runPump owns the monitoring session. The session, monitor, and every
// event device are created and closed on this goroutine only.
func (s *Server) runPump(ctx context.Context) {
	defer close(s.pumpDone)

	dctx, err := devtree.Open(s.sys)
	if err != nil {
		logging.Error("Failed to open device session", zap.Error(err))
		return
	}
	defer dctx.Close()

	mon, err := devtree.NewMonitor(dctx)
	if err != nil {
		logging.Error("Failed to create monitor", zap.Error(err))
		return
	}
	defer mon.Close()

	for _, name := range s.config.Subsystems {
		mon.FilterSubsystem(name, "")
	}

	if err := mon.Start(); err != nil {
		logging.Error("Failed to start monitor", zap.Error(err))
		return
	}

	logging.Info("Event pump started",
		zap.Strings("subsystems", s.config.Subsystems),
	)

	for {
		dev, err := mon.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logging.Info("Event pump stopped")
				return
			}
			logging.Warn("Monitor receive failed", zap.Error(err))
			continue
		}

		ev := EventFromDevice(dev)
		_ = dev.Close()

		logging.LogUevent(ev.Action, ev.Syspath, ev.Subsystem)
		s.hub.Publish(ev)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	// Stop the event pump first so its session closes cleanly
	if s.cancelPump != nil {
		s.cancelPump()
		select {
		case <-s.pumpDone:
		case <-ctx.Done():
			logging.Warn("Timed out waiting for event pump")
		}
	}

	// Stop accepting new connections and drain handlers
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			logging.Error("Error shutting down HTTP server", zap.Error(err))
		}
	}

	// Disconnect WebSocket clients
	s.hub.closeAll()

	logging.Info("Server stopped")
	logging.Sync()

	return nil
}

// GetActiveConnections returns the number of connected clients
func (s *Server) GetActiveConnections() int {
	return s.hub.ClientCount()
}
