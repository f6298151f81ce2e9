package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type APIID string

const maxNameLength = 100

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// MonitoredAPI is a registered HTTP endpoint with the status code it must
// answer with and the latency above which it counts as degraded.
//
// Use NewMonitoredAPI for registrations; stores rebuild the struct directly
// without re-validating.
type MonitoredAPI struct {
	ID                 APIID     `json:"id"`
	Name               string    `json:"name"`
	URL                string    `json:"url"`
	HTTPMethod         string    `json:"http_method"`
	ExpectedStatusCode int       `json:"expected_status_code"`
	LatencyThresholdMS int       `json:"latency_threshold_ms"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func NewMonitoredAPI(name, url, method string, expectedStatus, thresholdMS int) (*MonitoredAPI, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateURL(url); err != nil {
		return nil, err
	}
	if err := validateMethod(method); err != nil {
		return nil, err
	}
	if err := validateStatusCode(expectedStatus); err != nil {
		return nil, err
	}
	if err := validateThreshold(thresholdMS); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &MonitoredAPI{
		ID:                 APIID(uuid.NewString()),
		Name:               name,
		URL:                url,
		HTTPMethod:         strings.ToUpper(strings.TrimSpace(method)),
		ExpectedStatusCode: expectedStatus,
		LatencyThresholdMS: thresholdMS,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (a *MonitoredAPI) Activate() {
	a.Active = true
	a.touch()
}

func (a *MonitoredAPI) Deactivate() {
	a.Active = false
	a.touch()
}

func (a *MonitoredAPI) UpdateThreshold(ms int) error {
	if err := validateThreshold(ms); err != nil {
		return err
	}
	a.LatencyThresholdMS = ms
	a.touch()
	return nil
}

func (a *MonitoredAPI) touch() { a.UpdatedAt = time.Now().UTC() }

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return invalid("name", "must be at most 100 characters")
	}
	return nil
}

func validateURL(url string) error {
	if strings.TrimSpace(url) == "" {
		return invalid("url", "must not be empty")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return invalid("url", "must start with http:// or https://")
	}
	return nil
}

func validateMethod(method string) error {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		return invalid("http_method", "must not be empty")
	}
	if !allowedMethods[m] {
		return invalid("http_method", "unsupported method "+method)
	}
	return nil
}

func validateStatusCode(code int) error {
	if code < 100 || code > 599 {
		return invalid("expected_status_code", "must be between 100 and 599")
	}
	return nil
}

func validateThreshold(ms int) error {
	if ms < 0 {
		return invalid("latency_threshold_ms", "must not be negative")
	}
	return nil
}
