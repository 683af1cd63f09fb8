package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func healthy(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("connection refused") }

func TestChecker_Health(t *testing.T) {
	testCases := []struct {
		name       string
		required   CheckFunc
		optional   CheckFunc
		wantStatus string
		wantCode   int
	}{
		{name: "should be healthy when every check passes", required: healthy, optional: healthy, wantStatus: statusHealthy, wantCode: http.StatusOK},
		{name: "should degrade on an optional failure", required: healthy, optional: failing, wantStatus: statusDegraded, wantCode: http.StatusOK},
		{name: "should be unhealthy on a required failure", required: failing, optional: healthy, wantStatus: statusUnhealthy, wantCode: http.StatusServiceUnavailable},
		{name: "should stay unhealthy when both fail", required: failing, optional: failing, wantStatus: statusUnhealthy, wantCode: http.StatusServiceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			checker := NewChecker("1.2.3")
			checker.AddCheck("database", tc.required)
			checker.AddOptionalCheck("redis", tc.optional)

			e := echo.New()
			checker.RegisterRoutes(e)
			rec := get(e, "/api/v1/health")

			assert.Equal(t, tc.wantCode, rec.Code)
			var status HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
			assert.Equal(t, tc.wantStatus, status.Status)
			assert.Equal(t, "1.2.3", status.Version)
			require.Contains(t, status.Checks, "database")
			require.Contains(t, status.Checks, "redis")
		})
	}

	t.Run("should report the failure message", func(t *testing.T) {
		checker := NewChecker("dev")
		checker.AddOptionalCheck("graph", failing)

		status := checker.Run(context.Background())
		assert.Equal(t, statusDegraded, status.Checks["graph"].Status)
		assert.Equal(t, "connection refused", status.Checks["graph"].Message)
	})
}

func TestChecker_Probes(t *testing.T) {
	checker := NewChecker("dev")
	e := echo.New()
	checker.RegisterRoutes(e)

	assert.Equal(t, http.StatusOK, get(e, "/api/v1/health/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(e, "/api/v1/health/ready").Code)

	checker.SetReady(true)
	assert.Equal(t, http.StatusOK, get(e, "/api/v1/health/ready").Code)

	checker.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, get(e, "/api/v1/health/ready").Code)
}
