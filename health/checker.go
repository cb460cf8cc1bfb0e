package health

import (
	"context"
	"time"
)

// Status is the health of one component or of the relay as a whole.
// Larger values are worse.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one check.
type Result struct {
	Status  Status
	Message string
	Details map[string]any
	Err     error

	// Duration is filled in by the Aggregator.
	Duration time.Duration
}

// Healthy returns a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Degraded returns a degraded result. Degraded components still serve.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message}
}

// Unhealthy returns an unhealthy result caused by err.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Err: err}
}

// WithDetails returns r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker probes one component.
type Checker interface {
	// Name keys the checker's result in reports.
	Name() string
	Check(ctx context.Context) Result
}

type checkerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc adapts fn to a Checker called name.
func NewCheckerFunc(name string, fn func(context.Context) Result) Checker {
	return checkerFunc{name: name, fn: fn}
}

func (f checkerFunc) Name() string {
	return f.name
}

func (f checkerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}

// Pinger is implemented by components with a cheap reachability probe,
// such as the Redis cache tier.
type Pinger interface {
	Ping(ctx context.Context) error
}
