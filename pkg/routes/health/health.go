package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// CheckFunc checks one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name string
	fn   CheckFunc
	// optional checks degrade the status instead of failing it
	optional bool
}

// Checker handles health check endpoints
type Checker struct {
	checks    []check
	version   string
	startTime time.Time
	timeout   time.Duration
	ready     atomic.Bool
}

// NewChecker creates a new health checker
func NewChecker(version string) *Checker {
	return &Checker{
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
	}
}

// AddCheck registers a dependency whose failure makes the service unhealthy.
func (c *Checker) AddCheck(name string, fn CheckFunc) {
	c.checks = append(c.checks, check{name: name, fn: fn})
}

// AddOptionalCheck registers a dependency whose failure only degrades the service.
func (c *Checker) AddOptionalCheck(name string, fn CheckFunc) {
	c.checks = append(c.checks, check{name: name, fn: fn, optional: true})
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// Run executes every check and aggregates the result.
func (c *Checker) Run(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:     statusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult, len(c.checks)),
		ReportedAt: time.Now(),
	}

	for _, chk := range c.checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		err := chk.fn(checkCtx)
		latency := time.Since(start)
		cancel()

		if err == nil {
			status.Checks[chk.name] = &CheckResult{
				Status:  statusHealthy,
				Latency: latency.String(),
			}
			continue
		}

		result := &CheckResult{Status: statusUnhealthy, Message: err.Error()}
		if chk.optional {
			result.Status = statusDegraded
			if status.Status == statusHealthy {
				status.Status = statusDegraded
			}
		} else {
			status.Status = statusUnhealthy
		}
		status.Checks[chk.name] = result
	}

	return status
}

// Health returns the overall health status
func (c *Checker) Health(ctx echo.Context) error {
	status := c.Run(ctx.Request().Context())

	httpStatus := http.StatusOK
	if status.Status == statusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return ctx.JSON(httpStatus, status)
}

// Live returns the liveness status (is the service running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready.Load() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
