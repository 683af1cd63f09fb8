package transaction

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "transactions"

// Repository handles the payee side of transaction persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// UpdateTransactionPayee points every transaction of fromPayeeID at toPayeeID and returns
// how many rows moved.
func (r *Repository) UpdateTransactionPayee(ctx context.Context, tenantID string, fromPayeeID, toPayeeID int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.UpdateTransactionPayee")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("payee_id", toPayeeID),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("payee_id", fromPayeeID),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reassign transactions")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign transactions")
	}

	moved, err := result.RowsAffected()
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign transactions")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"from":      fromPayeeID,
		"to":        toPayeeID,
		"moved":     moved,
	}).Debug("Reassigned transactions")
	return moved, nil
}

// ListByPayee returns the payee's transactions ordered by id
func (r *Repository) ListByPayee(ctx context.Context, tenantID string, payeeID int64) ([]models.Transaction, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.ListByPayee")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "tenant_id", "payee_id", "amount", "posted_at", "created_at", "updated_at")
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("payee_id", payeeID),
	)
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	txns := []models.Transaction{}
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list transactions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list transactions")
	}
	return txns, nil
}
