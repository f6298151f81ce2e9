package httpapi

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return isValidHTTPURL(fl.Field().String())
	})
	// Report json names, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type registerRequest struct {
	Name               string `json:"name" validate:"required,max=100"`
	URL                string `json:"url" validate:"required,httpurl"`
	HTTPMethod         string `json:"http_method" validate:"omitempty,oneof=GET POST PUT DELETE PATCH HEAD OPTIONS"`
	ExpectedStatusCode int    `json:"expected_status_code" validate:"min=100,max=599"`
	LatencyThresholdMS int    `json:"latency_threshold_ms" validate:"min=0"`
}

type testRequest struct {
	URL        string `json:"url" validate:"required,httpurl"`
	HTTPMethod string `json:"http_method" validate:"omitempty,oneof=GET POST PUT DELETE PATCH HEAD OPTIONS"`
}

type testAndRegisterRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	URL        string `json:"url" validate:"required,httpurl"`
	HTTPMethod string `json:"http_method" validate:"omitempty,oneof=GET POST PUT DELETE PATCH HEAD OPTIONS"`
}

// normalizer is implemented by requests that canonicalize fields before
// validation.
type normalizer interface{ normalize() }

func normalizeMethod(m string) string { return strings.ToUpper(strings.TrimSpace(m)) }

func (p *registerRequest) normalize()        { p.HTTPMethod = normalizeMethod(p.HTTPMethod) }
func (p *testRequest) normalize()            { p.HTTPMethod = normalizeMethod(p.HTTPMethod) }
func (p *testAndRegisterRequest) normalize() { p.HTTPMethod = normalizeMethod(p.HTTPMethod) }

// patchRequest changes whichever fields are present.
type patchRequest struct {
	Active             *bool `json:"active"`
	LatencyThresholdMS *int  `json:"latency_threshold_ms" validate:"omitempty,min=0"`
}

// isValidHTTPURL accepts absolute http(s) URLs with a host.
func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// describe flattens validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
