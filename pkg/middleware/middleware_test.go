package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	ctxutil "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type rejectingVerifier struct{ calls int }

func (v *rejectingVerifier) Verify(context.Context, string) (*oidc.IDToken, error) {
	v.calls++
	return nil, errors.New("token expired")
}

func TestContext(t *testing.T) {
	t.Run("should copy identity headers onto the context", func(t *testing.T) {
		e := echo.New()
		var tenantID, userID, requestID string
		e.GET("/", func(c echo.Context) error {
			ctx := c.Request().Context()
			tenantID = ctxutil.GetTenantID(ctx)
			userID = ctxutil.GetUserID(ctx)
			requestID = ctxutil.GetRequestID(ctx)
			return c.NoContent(http.StatusNoContent)
		}, Context())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderTenantID, "tenant-a")
		req.Header.Set(HeaderUserID, "user-1")
		req.Header.Set(echo.HeaderXRequestID, "req-1")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "tenant-a", tenantID)
		assert.Equal(t, "user-1", userID)
		assert.Equal(t, "req-1", requestID)
		assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("should generate a request id", func(t *testing.T) {
		e := echo.New()
		e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, Context())

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{name: "should map validation errors", err: models.NewValidationError("bad threshold"), wantCode: http.StatusBadRequest, wantKind: "validation_failure"},
		{name: "should map not found errors", err: models.NewNotFoundError("payee 1 not found"), wantCode: http.StatusNotFound, wantKind: "not_found"},
		{name: "should map echo errors", err: echo.NewHTTPError(http.StatusUnauthorized, "missing bearer"), wantCode: http.StatusUnauthorized},
		{name: "should hide foreign errors", err: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = Error(testLogger())
			e.GET("/", func(echo.Context) error { return tc.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tc.wantCode, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Message)
			if tc.wantKind != "" {
				assert.Equal(t, tc.wantKind, resp.Meta["kind"])
			}
		})
	}

	t.Run("should not leak foreign error text", func(t *testing.T) {
		e := echo.New()
		e.HTTPErrorHandler = Error(testLogger())
		e.GET("/", func(echo.Context) error { return errors.New("password=hunter2") })

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotContains(t, rec.Body.String(), "hunter2")
	})
}

func TestAuthentication(t *testing.T) {
	newServer := func(verifier TokenVerifier) *echo.Echo {
		e := echo.New()
		e.HTTPErrorHandler = Error(testLogger())
		e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, Authentication(testLogger(), verifier))
		return e
	}

	t.Run("should require a bearer token", func(t *testing.T) {
		verifier := &rejectingVerifier{}
		rec := httptest.NewRecorder()
		newServer(verifier).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, verifier.calls)
	})

	t.Run("should reject a token the verifier refuses", func(t *testing.T) {
		verifier := &rejectingVerifier{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc.def.ghi")
		rec := httptest.NewRecorder()
		newServer(verifier).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 1, verifier.calls)
	})
}
