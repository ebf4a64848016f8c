// Package api implements the serve sub-command.
package api

import (
	"context"
	stdLog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/subsquid/archive-gateway/api"
	"github.com/subsquid/archive-gateway/cmd/common"
	"github.com/subsquid/archive-gateway/config"
	"github.com/subsquid/archive-gateway/gateway"
	"github.com/subsquid/archive-gateway/log"
	"github.com/subsquid/archive-gateway/metrics"
	"github.com/subsquid/archive-gateway/selection"
)

const (
	moduleName = "api"

	shutdownTimeout = 10 * time.Second
)

var (
	// Path to the configuration file.
	configFile string

	apiCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive gateway API",
		Run:   runServer,
	}
)

func runServer(cmd *cobra.Command, args []string) {
	// Initialize config.
	cfg, err := config.InitConfig(configFile)
	if err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}

	// Initialize common environment.
	if err = common.Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	logger := common.RootLogger()

	if cfg.Server == nil {
		logger.Error("server config not provided")
		os.Exit(1)
	}

	service, err := Init(cfg.Server)
	if err != nil {
		os.Exit(1)
	}
	defer service.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	service.Start(ctx)
}

// Init initializes the API service.
func Init(cfg *config.ServerConfig) (*Service, error) {
	logger := common.RootLogger()

	service, err := NewService(cfg)
	if err != nil {
		logger.Error("service failed to start",
			"error", err,
		)
		return nil, err
	}
	return service, nil
}

// Service is the archive gateway's API service.
type Service struct {
	server  *http.Server
	archive common.ArchiveCloser
	gateway *gateway.Gateway
	logger  *log.Logger
}

// NewService creates a new API service.
func NewService(cfg *config.ServerConfig) (*Service, error) {
	logger := common.RootLogger().WithModule(moduleName)

	a, err := common.NewArchive(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	g, err := gateway.New(a, GatewayConfig(cfg), logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	handler := api.NewRouter(g, api.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	}, metrics.NewDefaultRequestMetrics(moduleName), logger)

	return &Service{
		server: &http.Server{
			Addr:              cfg.Endpoint,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      writeTimeout(cfg.RequestTimeout),
			MaxHeaderBytes:    1 << 20,
			ErrorLog:          stdLog.New(log.WriterIntoLogger(logger.WithModule("http").WithCallerUnwind(6)), "", 0),
		},
		archive: a,
		gateway: g,
		logger:  logger,
	}, nil
}

// GatewayConfig derives the gateway settings from the server config.
func GatewayConfig(cfg *config.ServerConfig) gateway.Config {
	return gateway.Config{
		Capabilities: selection.Capabilities{
			EVM:       cfg.EVMSupport,
			Contracts: cfg.ContractsSupport,
		},
		IncludeCallEvents: cfg.IncludeCallEvents,
		MaxLimit:          cfg.MaxLimit,
		LoaderWait:        cfg.LoaderWait,
		LoaderMaxBatch:    cfg.LoaderMaxBatch,
		MetadataCacheSize: cfg.MetadataCacheSize,
	}
}

// writeTimeout leaves the handler its full request timeout to write a response.
func writeTimeout(requestTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 {
		return 0
	}
	return requestTimeout + 5*time.Second
}

// Start serves the API until ctx is done or the server fails.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info("starting api service at " + s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.logger.Error("shutting down",
			"error", err,
		)
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

// Shutdown gracefully shuts down the service.
func (s *Service) Shutdown() {
	s.gateway.Close()
	s.archive.Close()
}

// Register registers the serve sub-command.
func Register(parentCmd *cobra.Command) {
	apiCmd.Flags().StringVar(&configFile, "config", "./config/local.yml", "path to the config.yml file")
	parentCmd.AddCommand(apiCmd)
}
