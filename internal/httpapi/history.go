package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hamed0406/apiwatcher/internal/domain"
	"github.com/hamed0406/apiwatcher/internal/repo"
)

// defaultWindow applies to aggregate queries that were given no range.
const defaultWindow = 24 * time.Hour

// timeRange reads from/to as RFC 3339. ok is false when neither is given.
// Giving only one of them is an error.
func timeRange(q url.Values) (from, to time.Time, ok bool, err error) {
	f, t := q.Get("from"), q.Get("to")
	if f == "" && t == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if f == "" || t == "" {
		return time.Time{}, time.Time{}, false, errors.New("from and to must be given together")
	}
	if from, err = time.Parse(time.RFC3339, f); err != nil {
		return time.Time{}, time.Time{}, false, errors.New("from must be RFC 3339")
	}
	if to, err = time.Parse(time.RFC3339, t); err != nil {
		return time.Time{}, time.Time{}, false, errors.New("to must be RFC 3339")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, false, errors.New("to is before from")
	}
	return from, to, true, nil
}

// windowOrDefault is timeRange falling back to the last 24h.
func windowOrDefault(q url.Values) (time.Time, time.Time, error) {
	from, to, ok, err := timeRange(q)
	if err != nil {
		return from, to, err
	}
	if !ok {
		to = time.Now().UTC()
		from = to.Add(-defaultWindow)
	}
	return from, to, nil
}

func flag(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return b, nil
}

func limitParam(q url.Values, def int) (int, error) {
	v := q.Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}

// handleChecks serves one of the check-history views. Precedence: a time
// range, then failures=true, then exceeded=true, then limit, else all.
func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	apiID := domain.APIID(chi.URLParam(r, "apiId"))
	q := r.URL.Query()

	from, to, ranged, err := timeRange(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	failures, err := flag(q, "failures")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exceeded, err := flag(q, "exceeded")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var recs []domain.HealthCheckRecord
	switch {
	case ranged:
		recs, err = s.History.ChecksByAPIInRange(r.Context(), apiID, from, to)
	case failures:
		recs, err = s.History.FailedChecks(r.Context(), apiID)
	case exceeded:
		recs, err = s.History.ExceededChecks(r.Context(), apiID)
	case q.Has("limit"):
		n, lerr := limitParam(q, repo.DefaultRecentChecks)
		if lerr != nil {
			writeError(w, http.StatusBadRequest, lerr.Error())
			return
		}
		recs, err = s.History.RecentChecks(r.Context(), apiID, n)
	default:
		recs, err = s.History.ChecksByAPI(r.Context(), apiID)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.HealthCheckRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleFailureCount(w http.ResponseWriter, r *http.Request) {
	apiID := domain.APIID(chi.URLParam(r, "apiId"))
	from, to, err := windowOrDefault(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.History.CountFailures(r.Context(), apiID, from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"api_id":   apiID,
		"from":     from,
		"to":       to,
		"failures": n,
	})
}

func (s *Server) handleLatency(w http.ResponseWriter, r *http.Request) {
	apiID := domain.APIID(chi.URLParam(r, "apiId"))
	from, to, err := windowOrDefault(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pts, err := s.History.LatencySeries(r.Context(), apiID, from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if pts == nil {
		pts = []domain.LatencyPoint{}
	}
	writeJSON(w, http.StatusOK, pts)
}

func (s *Server) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.History.RegistrationsByAPI(r.Context(), domain.APIID(chi.URLParam(r, "apiId")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeRegistrations(w, recs)
}

// handleRecentRegistrations lists registrations across all APIs, either
// within from/to or the latest `limit` (default 10).
func (s *Server) handleRecentRegistrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, ranged, err := timeRange(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var recs []domain.RegistrationRecord
	if ranged {
		recs, err = s.History.RegistrationsInRange(r.Context(), from, to)
	} else {
		n, lerr := limitParam(q, repo.DefaultRecentRegistrations)
		if lerr != nil {
			writeError(w, http.StatusBadRequest, lerr.Error())
			return
		}
		recs, err = s.History.RecentRegistrations(r.Context(), n)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeRegistrations(w, recs)
}

func writeRegistrations(w http.ResponseWriter, recs []domain.RegistrationRecord) {
	if recs == nil {
		recs = []domain.RegistrationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
