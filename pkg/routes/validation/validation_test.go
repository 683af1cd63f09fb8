package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Limit int    `json:"limit" validate:"gte=0,lte=100"`
}

func bind(body string) (sample, error) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	return BindRequest[sample](c)
}

func TestBindRequest(t *testing.T) {
	t.Run("should bind a valid body", func(t *testing.T) {
		v, err := bind(`{"name":"walmart","limit":10}`)
		require.NoError(t, err)
		assert.Equal(t, "walmart", v.Name)
		assert.Equal(t, 10, v.Limit)
	})

	t.Run("should reject a failed validation", func(t *testing.T) {
		_, err := bind(`{"limit":10}`)
		assert.True(t, models.IsKind(err, models.ErrorKindValidation))
	})

	t.Run("should reject malformed json", func(t *testing.T) {
		_, err := bind(`{"name":`)
		assert.True(t, models.IsKind(err, models.ErrorKindValidation))
	})
}

func TestValidate(t *testing.T) {
	_, err := Validate(sample{Name: "x", Limit: 101})
	assert.True(t, models.IsKind(err, models.ErrorKindValidation))

	v, err := Validate(sample{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", v.Name)
}
