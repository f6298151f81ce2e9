package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/monitoring"
)

func (s *Server) handleListAPIs(w http.ResponseWriter, r *http.Request) {
	var (
		apis []*domain.MonitoredAPI
		err  error
	)
	switch q := r.URL.Query().Get("active"); q {
	case "":
		apis, err = s.Registry.FindAll(r.Context())
	default:
		active, perr := strconv.ParseBool(q)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		if active {
			apis, err = s.Registry.FindAllActive(r.Context())
		} else {
			apis, err = s.Registry.FindAll(r.Context())
			apis = inactive(apis)
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if apis == nil {
		apis = []*domain.MonitoredAPI{}
	}
	writeJSON(w, http.StatusOK, apis)
}

func inactive(apis []*domain.MonitoredAPI) []*domain.MonitoredAPI {
	out := make([]*domain.MonitoredAPI, 0, len(apis))
	for _, a := range apis {
		if !a.Active {
			out = append(out, a)
		}
	}
	return out
}

func (s *Server) handleGetAPI(w http.ResponseWriter, r *http.Request) {
	api, err := s.Registry.FindByID(r.Context(), domain.APIID(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var p registerRequest
	if !decode(w, r, &p) {
		return
	}
	api, err := s.Registrar.Register(r.Context(), monitoring.RegisterInput{
		Name:               p.Name,
		URL:                p.URL,
		HTTPMethod:         p.HTTPMethod,
		ExpectedStatusCode: p.ExpectedStatusCode,
		LatencyThresholdMS: p.LatencyThresholdMS,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api)
}

func (s *Server) handlePatchAPI(w http.ResponseWriter, r *http.Request) {
	var p patchRequest
	if !decode(w, r, &p) {
		return
	}
	if p.Active == nil && p.LatencyThresholdMS == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	api, err := s.Registrar.Update(r.Context(), domain.APIID(chi.URLParam(r, "id")), p.Active, p.LatencyThresholdMS)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api)
}

func (s *Server) handleDeleteAPI(w http.ResponseWriter, r *http.Request) {
	if err := s.Registrar.Delete(r.Context(), domain.APIID(chi.URLParam(r, "id"))); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type runSummary struct {
	Total   int                  `json:"total"`
	Healthy int                  `json:"healthy"`
	Failed  int                  `json:"failed"`
	Results []domain.CheckResult `json:"results"`
}

// handleRunChecks runs a health check over every active API right away. It
// does not coordinate with the scheduler.
func (s *Server) handleRunChecks(w http.ResponseWriter, r *http.Request) {
	results, err := s.Checks.RunAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sum := runSummary{Total: len(results), Results: results}
	if sum.Results == nil {
		sum.Results = []domain.CheckResult{}
	}
	for _, res := range results {
		if res.IsHealthy() {
			sum.Healthy++
		}
		if !res.Success {
			sum.Failed++
		}
	}
	s.Logger.Info("manual_health_check",
		zap.Int("total", sum.Total),
		zap.Int("healthy", sum.Healthy),
		zap.Int("failed", sum.Failed),
	)
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var p testRequest
	if !decode(w, r, &p) {
		return
	}
	writeJSON(w, http.StatusOK, s.Registrar.TestAPI(r.Context(), p.URL, p.HTTPMethod))
}

func (s *Server) handleTestAndRegister(w http.ResponseWriter, r *http.Request) {
	var p testAndRegisterRequest
	if !decode(w, r, &p) {
		return
	}
	out, api, err := s.Registrar.TestAndRegister(r.Context(), p.Name, p.URL, p.HTTPMethod)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"test": out, "api": api})
}
