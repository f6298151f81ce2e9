package domain

import (
	"time"

	"github.com/google/uuid"
)

// HealthStatus is the classification published with every health check.
type HealthStatus string

const (
	StatusUp       HealthStatus = "UP"
	StatusDegraded HealthStatus = "DEGRADED"
	StatusDown     HealthStatus = "DOWN"
)

// DeriveStatus: DOWN when the check failed, DEGRADED when it succeeded but
// was slower than the threshold, UP otherwise.
func DeriveStatus(success, exceededThreshold bool) HealthStatus {
	switch {
	case !success:
		return StatusDown
	case exceededThreshold:
		return StatusDegraded
	default:
		return StatusUp
	}
}

// CheckResult is the outcome of exactly one probe. Treat it as a value:
// nothing in the pipeline modifies a result after the prober returns it.
type CheckResult struct {
	ID           string    `json:"id"`
	APIID        APIID     `json:"api_id"`
	Success      bool      `json:"success"`
	StatusCode   int       `json:"status_code"`
	LatencyMS    int64     `json:"latency_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

func newResult(apiID APIID, success bool, status int, latencyMS int64, msg string) CheckResult {
	return CheckResult{
		ID:           uuid.NewString(),
		APIID:        apiID,
		Success:      success,
		StatusCode:   status,
		LatencyMS:    latencyMS,
		ErrorMessage: msg,
		CheckedAt:    time.Now().UTC(),
	}
}

// SuccessResult is a response that carried the expected status code.
func SuccessResult(apiID APIID, status int, latencyMS int64) CheckResult {
	return newResult(apiID, true, status, latencyMS, "")
}

// FailureResult is a response with an unexpected status code.
func FailureResult(apiID APIID, status int, latencyMS int64, msg string) CheckResult {
	return newResult(apiID, false, status, latencyMS, msg)
}

// ErrorResult is a probe that never got a response (connection, DNS, timeout).
func ErrorResult(apiID APIID, msg string) CheckResult {
	return newResult(apiID, false, 0, 0, msg)
}

func (r CheckResult) IsHealthy() bool {
	return r.Success && r.StatusCode >= 200 && r.StatusCode < 300
}

func (r CheckResult) ExceededThreshold(thresholdMS int) bool {
	return r.LatencyMS > int64(thresholdMS)
}
