// Package api implements the HTTP surface of the archive gateway.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/subsquid/archive-gateway/archive"
	"github.com/subsquid/archive-gateway/gateway"
	"github.com/subsquid/archive-gateway/log"
	"github.com/subsquid/archive-gateway/metrics"
	"github.com/subsquid/archive-gateway/selection"
)

const (
	moduleName = "api"

	// maxBatchBodyBytes caps the size of a batch request body.
	maxBatchBodyBytes = 1 << 20
)

// Service is the query surface served over HTTP.
type Service interface {
	Batch(ctx context.Context, req *gateway.BatchRequest) ([]gateway.Batch, error)
	Metadata(ctx context.Context) ([]archive.Metadata, error)
	MetadataByID(ctx context.Context, id string) (*archive.Metadata, error)
	Status(ctx context.Context) (*archive.Status, error)
	Capabilities() selection.Capabilities
}

// RouterConfig configures the HTTP router.
type RouterConfig struct {
	// RequestTimeout bounds the handling time of a request. Zero disables it.
	RequestTimeout time.Duration
	// CORSOrigins lists the allowed origins. Empty allows all.
	CORSOrigins []string
}

type handler struct {
	service  Service
	validate *validator.Validate
	logger   *log.Logger
}

// NewRouter returns the HTTP handler serving s.
func NewRouter(s Service, cfg RouterConfig, m metrics.RequestMetrics, l *log.Logger) http.Handler {
	logger := l.WithModule(moduleName)
	h := &handler{
		service:  s,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(MetricsMiddleware(m, logger))
	r.Use(CorsMiddleware(cfg.CORSOrigins))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		HumanReadableJsonErrorHandler(w, r, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		HumanReadableJsonErrorHandler(w, r, ErrMethodNotAllowed)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/batch", h.batch)
		r.Get("/metadata", h.metadata)
		r.Get("/metadata/{id}", h.metadataByID)
		r.Get("/status", h.status)
		r.Get("/capabilities", h.capabilities)
	})
	return r
}

func (h *handler) batch(w http.ResponseWriter, r *http.Request) {
	var req gateway.BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed request body: %s", ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %s", ErrBadRequest, err))
		return
	}

	batches, err := h.service.Batch(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, batches)
}

func (h *handler) metadata(w http.ResponseWriter, r *http.Request) {
	ms, err := h.service.Metadata(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, ms)
}

func (h *handler) metadataByID(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.MetadataByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// Unknown ids are answered with a JSON null.
	h.respond(w, r, m)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, s)
}

func (h *handler) capabilities(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Capabilities())
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, body interface{}) {
	buf, err := json.Marshal(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf); err != nil {
		h.logger.Debug("failed to write response", "err", err)
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID, _ := RequestID(r.Context())
	if errors.Is(err, ErrBadRequest) {
		h.logger.Debug("rejected request",
			"request_id", requestID,
			"err", err,
		)
	} else {
		h.logger.Error("request failed",
			"request_id", requestID,
			"endpoint", r.URL.Path,
			"err", err,
		)
	}
	HumanReadableJsonErrorHandler(w, r, err)
}
