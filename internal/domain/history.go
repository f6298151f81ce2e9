package domain

import "time"

// RegistrationRecord is the durable trace of an api.registered event.
type RegistrationRecord struct {
	ID                 int64     `json:"id"`
	APIID              APIID     `json:"api_id"`
	Name               string    `json:"name"`
	URL                string    `json:"url"`
	HTTPMethod         string    `json:"http_method"`
	ExpectedStatusCode int       `json:"expected_status_code"`
	LatencyThresholdMS int       `json:"latency_threshold_ms"`
	RegisteredAt       time.Time `json:"registered_at"`
	EventID            string    `json:"event_id"`
	EventType          string    `json:"event_type"`
}

// HealthCheckRecord is the durable trace of a health-check.executed event.
type HealthCheckRecord struct {
	ID                int64     `json:"id"`
	APIID             APIID     `json:"api_id"`
	APIName           string    `json:"api_name"`
	APIURL            string    `json:"api_url"`
	Success           bool      `json:"success"`
	StatusCode        int       `json:"status_code"`
	LatencyMS         int64     `json:"latency_ms"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	ExceededThreshold bool      `json:"exceeded_threshold"`
	ThresholdMS       int       `json:"threshold_ms"`
	CheckedAt         time.Time `json:"checked_at"`
	EventID           string    `json:"event_id"`
	EventType         string    `json:"event_type"`
}

func (r HealthCheckRecord) Status() HealthStatus {
	return DeriveStatus(r.Success, r.ExceededThreshold)
}

// LatencyPoint is one sample of a latency series.
type LatencyPoint struct {
	CheckedAt time.Time `json:"checked_at"`
	LatencyMS int64     `json:"latency_ms"`
	Success   bool      `json:"success"`
}
