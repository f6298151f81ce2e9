// Package events holds the domain events emitted by the monitoring core and
// the transports that move them to the history pipeline.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/apiwatcher/internal/domain"
)

const (
	TypeAPIRegistered       = "api.registered"
	TypeHealthCheckExecuted = "health-check.executed"
)

// Envelope is the part every event shares. It is flattened into the wire
// payload next to the variant's own fields.
type Envelope struct {
	EventID    string    `json:"eventId"`
	OccurredOn time.Time `json:"occurredOn"`
	EventType  string    `json:"eventType"`
}

func (e Envelope) Meta() Envelope { return e }

// Event is implemented only by the variants in this package.
type Event interface {
	Meta() Envelope
	isEvent()
}

func newEnvelope(eventType string) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		OccurredOn: time.Now().UTC(),
		EventType:  eventType,
	}
}

type APIRegistered struct {
	Envelope
	APIID              domain.APIID `json:"apiId"`
	Name               string       `json:"name"`
	URL                string       `json:"url"`
	HTTPMethod         string       `json:"httpMethod"`
	ExpectedStatusCode int          `json:"expectedStatusCode"`
	LatencyThresholdMS int          `json:"latencyThresholdMs"`
}

func (APIRegistered) isEvent() {}

func NewAPIRegistered(api *domain.MonitoredAPI) APIRegistered {
	return APIRegistered{
		Envelope:           newEnvelope(TypeAPIRegistered),
		APIID:              api.ID,
		Name:               api.Name,
		URL:                api.URL,
		HTTPMethod:         api.HTTPMethod,
		ExpectedStatusCode: api.ExpectedStatusCode,
		LatencyThresholdMS: api.LatencyThresholdMS,
	}
}

type HealthCheckExecuted struct {
	Envelope
	APIID             domain.APIID `json:"apiId"`
	APIName           string       `json:"apiName"`
	APIURL            string       `json:"apiUrl"`
	Success           bool         `json:"success"`
	StatusCode        int          `json:"statusCode"`
	LatencyMS         int64        `json:"latencyMs"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
	CheckedAt         time.Time    `json:"checkedAt"`
	ExceededThreshold bool         `json:"exceededThreshold"`
	ThresholdMS       int          `json:"thresholdMs"`
}

func (HealthCheckExecuted) isEvent() {}

// NewHealthCheckExecuted snapshots a probe result together with the API
// attributes it was judged against.
func NewHealthCheckExecuted(r domain.CheckResult, apiName, apiURL string, thresholdMS int) HealthCheckExecuted {
	return HealthCheckExecuted{
		Envelope:          newEnvelope(TypeHealthCheckExecuted),
		APIID:             r.APIID,
		APIName:           apiName,
		APIURL:            apiURL,
		Success:           r.Success,
		StatusCode:        r.StatusCode,
		LatencyMS:         r.LatencyMS,
		ErrorMessage:      r.ErrorMessage,
		CheckedAt:         r.CheckedAt,
		ExceededThreshold: r.ExceededThreshold(thresholdMS),
		ThresholdMS:       thresholdMS,
	}
}

func (e HealthCheckExecuted) Status() domain.HealthStatus {
	return domain.DeriveStatus(e.Success, e.ExceededThreshold)
}

var (
	_ Event = APIRegistered{}
	_ Event = HealthCheckExecuted{}
)
