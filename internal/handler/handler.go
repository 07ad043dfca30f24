package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"fibermap/internal/domain"
	"fibermap/internal/metrics"
	"fibermap/internal/service"
)

const maxImportBytes = 32 << 20

var timeNow = time.Now

// Options holds the optional collaborators of a Handler
type Options struct {
	// Events serves the SSE stream at /events
	Events http.Handler
	// Metrics may be nil
	Metrics *metrics.Metrics
	// RequestTimeout bounds every route except /events; zero means 15s
	RequestTimeout time.Duration
}

// Handler exposes the network service over REST
type Handler struct {
	log     zerolog.Logger
	svc     *service.NetworkService
	events  http.Handler
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewHandler(log zerolog.Logger, svc *service.NetworkService, opts Options) *Handler {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Handler{
		log:     log,
		svc:     svc,
		events:  opts.Events,
		metrics: opts.Metrics,
		timeout: timeout,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	// the event stream outlives any request timeout
	if h.events != nil {
		r.Get("/events", h.events.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(h.timeout))

		// Health
		r.Get("/healthz", h.handleHealthz)
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

		// API
		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/elements", func(r chi.Router) {
				r.Get("/", h.handleListElements)
				r.Post("/", h.handleCreateElement)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetElement)
					r.Delete("/", h.handleRemoveElement)
					r.Put("/status", h.handleSetStatus)
					r.Put("/capacity", h.handleSetCapacity)
					r.Put("/strands", h.handleSetUsedStrands)
					r.Put("/split-ratio", h.handleSetSplitRatio)
					r.Put("/technician", h.handleAssignTechnician)
				})
			})

			r.Get("/utilization", h.handleUtilization)
			r.Get("/history", h.handleHistory)

			r.Route("/layers", func(r chi.Router) {
				r.Get("/", h.handleGetLayers)
				r.Post("/{kind}/toggle", h.handleToggleLayer)
				r.Put("/filter", h.handleSetFilter)
			})

			r.Route("/map", func(r chi.Router) {
				r.Get("/", h.handleGetMap)
				r.Put("/mode", h.handleSetMode)
				r.Put("/selection", h.handleSelect)
				r.Delete("/selection", h.handleClearSelection)
				r.Put("/selection/status", h.handleSetSelectedStatus)
				r.Put("/draft", h.handleUpdateDraft)
				r.Post("/draft/submit", h.handleSubmitDraft)
				r.Delete("/draft", h.handleCancelDraft)
			})

			r.Get("/export", h.handleExport)
			r.Post("/import", h.handleImport)
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

// writeServiceError maps a service error onto its HTTP status and code
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Code(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
		msg = "internal error"
	}
	h.writeError(w, status, code, msg, nil)
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, err error) {
	h.writeError(w, http.StatusBadRequest, "bad_request", "invalid request body", map[string]any{"reason": err.Error()})
}

func statusFor(code string) int {
	switch code {
	case "not_found":
		return http.StatusNotFound
	case "missing_required_field", "invalid_kind", "invalid_value", "malformed_document":
		return http.StatusBadRequest
	case "parent_not_found", "cycle_detected", "capacity_below_usage", "aggregate_invariant":
		return http.StatusUnprocessableEntity
	case "parent_at_capacity", "has_live_children", "illegal_transition":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "revision": h.svc.Revision()})
}
