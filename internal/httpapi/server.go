package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/domain"
	apimw "github.com/hamed0406/apiwatcher/internal/httpapi/middleware"
	"github.com/hamed0406/apiwatcher/internal/metrics"
	"github.com/hamed0406/apiwatcher/internal/monitoring"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

// maxBodyBytes caps request bodies; every payload here is a few fields.
const maxBodyBytes = 64 << 10

// Runner is the manual trigger for a health-check run.
type Runner interface {
	RunAll(ctx context.Context) ([]domain.CheckResult, error)
}

type Server struct {
	Logger    *zap.Logger
	Registry  repo.RegistryStore
	Registrar *monitoring.Registrar
	Checks    Runner
	History   repo.HistoryReader
	Metrics   metrics.Collector
}

func NewServer(l *zap.Logger, registry repo.RegistryStore, registrar *monitoring.Registrar, checks Runner, history repo.HistoryReader, m metrics.Collector) *Server {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Server{Logger: l, Registry: registry, Registrar: registrar, Checks: checks, History: history, Metrics: m}
}

// Router wires the routes. Reads need any key and use the public rate limit;
// writes need an admin key and use the admin limit. An empty origin list
// allows every origin.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(pubRPM, pubBurst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/api/monitoring/apis", s.handleListAPIs)
		r.Get("/api/monitoring/apis/{id}", s.handleGetAPI)

		r.Get("/api/history/registrations/recent", s.handleRecentRegistrations)
		r.Get("/api/history/{apiId}/checks", s.handleChecks)
		r.Get("/api/history/{apiId}/failures/count", s.handleFailureCount)
		r.Get("/api/history/{apiId}/latency", s.handleLatency)
		r.Get("/api/history/{apiId}/registrations", s.handleRegistrations)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(admRPM, admBurst))
		r.Use(apimw.RequireAdmin(keys))

		r.Post("/api/monitoring/apis", s.handleRegister)
		r.Patch("/api/monitoring/apis/{id}", s.handlePatchAPI)
		r.Delete("/api/monitoring/apis/{id}", s.handleDeleteAPI)
		r.Post("/api/monitoring/health-check", s.handleRunChecks)
		r.Post("/api/monitoring/test", s.handleTest)
		r.Post("/api/monitoring/test-and-register", s.handleTestAndRegister)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps domain errors onto status codes. Anything unrecognised is logged
// and reported as a bare 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateURL):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.Logger.Error("http_request_failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into dst and runs struct validation. It writes
// the 400 itself and returns false on any problem.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, describe(err))
		return false
	}
	return true
}
