package health

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Liveness answers 200 while the process serves HTTP at all.
func Liveness(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Readiness answers with the overall status in plain text: 200 while
// healthy or degraded, 503 when unhealthy.
func Readiness(agg *Aggregator) echo.HandlerFunc {
	return func(c echo.Context) error {
		report := agg.Run(c.Request().Context())
		return c.String(statusCode(report.Status), strings.ToUpper(report.Status.String()))
	}
}

// HealthResponse is the body of the detailed health endpoint.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Service   map[string]any           `json:"service,omitempty"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is the entry of one checker in a HealthResponse.
type CheckResponse struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Detailed answers with every check result as JSON. info, when non-nil,
// adds service metadata such as the version and upstream names.
func Detailed(agg *Aggregator, info func() map[string]any) echo.HandlerFunc {
	return func(c echo.Context) error {
		report := agg.Run(c.Request().Context())

		resp := HealthResponse{
			Status:    report.Status.String(),
			Timestamp: report.CheckedAt.UTC().Format(time.RFC3339),
			Checks:    make(map[string]CheckResponse, len(report.Results)),
		}
		if info != nil {
			resp.Service = info()
		}
		for name, r := range report.Results {
			check := CheckResponse{
				Status:   r.Status.String(),
				Message:  r.Message,
				Duration: r.Duration.String(),
				Details:  r.Details,
			}
			if r.Err != nil {
				check.Error = r.Err.Error()
			}
			resp.Checks[name] = check
		}
		return c.JSON(statusCode(report.Status), resp)
	}
}

func statusCode(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
