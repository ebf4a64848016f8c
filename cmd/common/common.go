// Package common implements common gateway command options.
package common

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/subsquid/archive-gateway/archive"
	"github.com/subsquid/archive-gateway/archive/memory"
	archivepg "github.com/subsquid/archive-gateway/archive/postgres"
	"github.com/subsquid/archive-gateway/config"
	"github.com/subsquid/archive-gateway/log"
	"github.com/subsquid/archive-gateway/metrics"
	"github.com/subsquid/archive-gateway/storage/migrate"
	"github.com/subsquid/archive-gateway/storage/postgres"
)

var rootLogger = log.NewDefaultLogger("archive-gateway")

// Init initializes the common environment.
func Init(cfg *config.Config) error {
	var w io.Writer = os.Stdout
	format := log.FmtJSON
	level := log.LevelDebug

	if cfg.Log != nil {
		var err error
		if w, err = getLoggingStream(cfg.Log); err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		if err := format.Set(cfg.Log.Format); err != nil {
			return err
		}
		if err := level.Set(cfg.Log.Level); err != nil {
			return err
		}
	}
	logger, err := log.NewLogger("archive-gateway", w, format, level)
	if err != nil {
		return err
	}
	rootLogger = logger

	// Initialize Prometheus service.
	if cfg.Metrics != nil {
		promServer := metrics.NewPullService(cfg.Metrics.PullEndpoint, rootLogger)
		go func() {
			promServer.Logger().Info("starting metrics pull service", "endpoint", cfg.Metrics.PullEndpoint)
			if err := promServer.Server().ListenAndServe(); err != nil && err != http.ErrServerClosed {
				promServer.Logger().Error("metrics pull service stopped", "err", err)
			}
		}()
	}

	if cfg.Pprof != nil {
		if err := startPprof(cfg.Pprof.Endpoint); err != nil {
			rootLogger.Error("failed to start pprof", "err", err)
			return err
		}
	}
	return nil
}

// RootLogger returns the logger defined by logging flags.
func RootLogger() *log.Logger {
	return rootLogger
}

func getLoggingStream(cfg *config.LogConfig) (io.Writer, error) {
	if cfg == nil || cfg.File == "" {
		return os.Stdout, nil
	}
	w, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ArchiveCloser is an archive holding resources that must be released.
type ArchiveCloser interface {
	archive.Archive
	Close()
}

// NewArchive opens the archive selected by the storage config.
func NewArchive(cfg *config.StorageConfig, logger *log.Logger) (ArchiveCloser, error) {
	var backend config.StorageBackend
	if err := backend.Set(cfg.Backend); err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendPostgres:
		if cfg.Migrations != "" {
			source := cfg.Migrations
			if !strings.Contains(source, "://") {
				source = "file://" + source
			}
			if err := migrate.Up(source, cfg.Endpoint, logger); err != nil {
				return nil, err
			}
		}
		client, err := postgres.NewClient(cfg.Endpoint, logger)
		if err != nil {
			return nil, err
		}
		return archivepg.New(client, logger), nil
	case config.BackendInMemory:
		logger.Warn("serving an empty in-memory archive")
		return nopCloser{memory.New(memory.Data{})}, nil
	default:
		panic(fmt.Sprintf("unsupported storage backend: %v", backend))
	}
}

type nopCloser struct {
	archive.Archive
}

func (nopCloser) Close() {}
