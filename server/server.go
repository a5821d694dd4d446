// Package server exposes the planner over HTTP and websockets.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/metrics"
	"github.com/hupe1980/tripmesh/planner"
)

const maxBodyBytes = 1 << 20

// HeaderItineraryID carries the artifact id of a stored itinerary.
const HeaderItineraryID = "X-Itinerary-ID"

var itineraryIDPattern = regexp.MustCompile(`^itinerary-[0-9a-f-]{36}\.md$`)

// Options configures a Server.
type Options struct {
	Logger logging.Logger
	// Metrics enables /metrics and request instrumentation when set.
	Metrics *metrics.Metrics
	// AllowedOrigins for CORS and websocket upgrades. Empty allows all.
	AllowedOrigins []string
}

// Server routes HTTP requests to a planner.Gateway.
type Server struct {
	gateway *planner.Gateway
	schema  *tripSchema
	opts    Options
	handler http.Handler
}

// New builds the router. It fails when the embedded OpenAPI document is invalid.
func New(gateway *planner.Gateway, optFns ...func(o *Options)) (*Server, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	schema, err := loadTripSchema()
	if err != nil {
		return nil, err
	}

	s := &Server{gateway: gateway, schema: schema, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Post("/plan", s.handlePlan)
	r.Get("/plan/stream", s.handleStream)
	r.Get("/itineraries/{id}", s.handleItinerary)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(openapiSpec)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{HeaderItineraryID},
	}).Handler(r)

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

// instrument logs every request and feeds the HTTP metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		s.opts.Logger.Debug("http.request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)

		if s.opts.Metrics != nil {
			s.opts.Metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
		}
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// planStatus maps a gateway error to the HTTP status and public message.
func planStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, planner.ErrNotReady):
		return http.StatusServiceUnavailable, err.Error(), metrics.OutcomeNotReady
	case errors.Is(err, planner.ErrInvalidRequest):
		return http.StatusUnprocessableEntity, err.Error(), metrics.OutcomeInvalid
	default:
		return http.StatusInternalServerError, "internal error", metrics.OutcomeError
	}
}

func (s *Server) observePlan(outcome string, start time.Time) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObservePlan(outcome, time.Since(start))
	}
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.observePlan(metrics.OutcomeInvalid, start)
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "unreadable request body"})

		return
	}

	req, err := s.schema.decode(body)
	if err != nil {
		s.observePlan(metrics.OutcomeInvalid, start)
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})

		return
	}

	var observe func(core.Event)
	if s.opts.Metrics != nil {
		observe = s.opts.Metrics.ObserveEvent
	}

	resp, err := s.gateway.Stream(r.Context(), req, observe)
	if err != nil {
		status, msg, outcome := planStatus(err)
		if status == http.StatusInternalServerError {
			s.opts.Logger.Error("http.plan.failed", "error", err.Error(), "request_id", middleware.GetReqID(r.Context()))
		}

		s.observePlan(outcome, start)
		writeJSON(w, status, errorBody{Error: msg})

		return
	}

	outcome := metrics.OutcomeSuccess
	if resp.Escalated {
		outcome = metrics.OutcomeEscalated
	}

	s.observePlan(outcome, start)

	if resp.ArtifactID != "" {
		w.Header().Set(HeaderItineraryID, resp.ArtifactID)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleItinerary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !itineraryIDPattern.MatchString(id) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "itinerary not found"})
		return
	}

	data, err := s.gateway.Itinerary(r.Context(), id)

	switch {
	case errors.Is(err, planner.ErrNotReady):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	case errors.Is(err, artifact.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "itinerary not found"})
		return
	case err != nil:
		s.opts.Logger.Error("http.itinerary.failed", "id", id, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})

		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`"`)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.gateway.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
