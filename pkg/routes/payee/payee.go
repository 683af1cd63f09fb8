package payee

import (
	"context"
	"net/http"

	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/routes/validation"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/labstack/echo/v4"
)

const defaultDiagnosticsLimit = 50

// Service is the dedupe surface the handlers call.
type Service interface {
	FindDuplicatePayees(ctx context.Context, req dedupe.FindRequest, tenantID string) (*models.DetectionResult, error)
	MergeDuplicatePayees(ctx context.Context, req dedupe.MergeRequest, tenantID string) (*models.MergeResult, error)
	ListDiagnostics(ctx context.Context, tenantID string, limit int) ([]models.Diagnostic, error)
	MergeHistory(ctx context.Context, tenantID string, payeeID int64) ([]int64, error)
}

// Handler serves the payee deduplication routes
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register registers payee routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/duplicates", h.FindDuplicates)
	g.GET("/duplicates/diagnostics", h.ListDiagnostics)
	g.POST("/merge", h.Merge)
	g.GET("/:id/merged", h.MergeHistory)
}

// FindDuplicatesQuery is the query string of GET /payees/duplicates
type FindDuplicatesQuery struct {
	Threshold       float64 `validate:"gte=0,lte=1"`
	IncludeInactive bool
	Strategy        string `validate:"omitempty,oneof=name_only contact_only comprehensive"`
	DetectionMode   string `validate:"omitempty,oneof=simple ml llm llm_direct"`
}

// MergeBody is the body of POST /payees/merge
type MergeBody struct {
	PrimaryPayeeID    int64                 `json:"primary_payee_id" validate:"required,gt=0"`
	DuplicatePayeeIDs []int64               `json:"duplicate_payee_ids" validate:"required,min=1,dive,gt=0"`
	Strategy          *models.MergeStrategy `json:"strategy,omitempty"`
	Confirmed         bool                  `json:"confirmed"`
}

func tenantFrom(ctx context.Context) (string, error) {
	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return "", models.NewValidationError("tenant id is required")
	}
	return tenantID, nil
}

// FindDuplicates returns the tenant's duplicate payee groups
func (h *Handler) FindDuplicates(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "payee_handler.FindDuplicates")
	defer span.End()

	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}

	q := FindDuplicatesQuery{Threshold: dedupe.DefaultThreshold}
	if err := echo.QueryParamsBinder(c).
		Float64("threshold", &q.Threshold).
		Bool("include_inactive", &q.IncludeInactive).
		String("strategy", &q.Strategy).
		String("detection_mode", &q.DetectionMode).
		BindError(); err != nil {
		return models.NewValidationError("invalid query: %s", err.Error())
	}
	if _, err := validation.Validate(q); err != nil {
		return err
	}

	result, err := h.service.FindDuplicatePayees(ctx, dedupe.FindRequest{
		Threshold:       q.Threshold,
		IncludeInactive: q.IncludeInactive,
		Strategy:        models.MatchStrategy(q.Strategy),
		DetectionMode:   models.DetectionMode(q.DetectionMode),
	}, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Merge folds duplicate payees into a primary
func (h *Handler) Merge(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "payee_handler.Merge")
	defer span.End()

	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}

	body, err := validation.BindRequest[MergeBody](c)
	if err != nil {
		return err
	}

	result, err := h.service.MergeDuplicatePayees(ctx, dedupe.MergeRequest{
		PrimaryPayeeID:    body.PrimaryPayeeID,
		DuplicatePayeeIDs: body.DuplicatePayeeIDs,
		Strategy:          body.Strategy,
		Confirmed:         body.Confirmed,
	}, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListDiagnostics returns the most recent semantic gateway diagnostics
func (h *Handler) ListDiagnostics(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "payee_handler.ListDiagnostics")
	defer span.End()

	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}

	limit := defaultDiagnosticsLimit
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return models.NewValidationError("invalid query: %s", err.Error())
	}
	if limit < 1 {
		limit = defaultDiagnosticsLimit
	}

	diagnostics, err := h.service.ListDiagnostics(ctx, tenantID, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, diagnostics)
}

// MergeHistoryResponse lists the payees folded into a surviving payee
type MergeHistoryResponse struct {
	PayeeID        int64   `json:"payee_id"`
	MergedPayeeIDs []int64 `json:"merged_payee_ids"`
}

// MergeHistory returns every payee merged into :id
func (h *Handler) MergeHistory(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "payee_handler.MergeHistory")
	defer span.End()

	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}

	var payeeID int64
	if err := echo.PathParamsBinder(c).MustInt64("id", &payeeID).BindError(); err != nil {
		return models.NewValidationError("invalid payee id: %s", err.Error())
	}

	ids, err := h.service.MergeHistory(ctx, tenantID, payeeID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MergeHistoryResponse{PayeeID: payeeID, MergedPayeeIDs: ids})
}
