package payee

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

const table = "payees"

var columns = []string{
	"id", "tenant_id", "name", "email", "phone", "website", "address", "notes",
	"default_category_id", "default_budget_id", "is_active", "unique_key",
	"created_at", "updated_at", "deleted_at",
}

// Repository handles payee persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new payee repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a payee and fills in its id and timestamps. An empty UniqueKey is derived
// from the name.
func (r *Repository) Create(ctx context.Context, payee *models.Payee) (*models.Payee, error) {
	ctx, span := tracing.StartSpan(ctx, "payee.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	payee.CreatedAt = now
	payee.UpdatedAt = now
	if payee.UniqueKey == "" {
		payee.UniqueKey = models.UniqueKeyFor(payee.Name)
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("tenant_id", "name", "email", "phone", "website", "address", "notes",
		"default_category_id", "default_budget_id", "is_active", "unique_key", "created_at", "updated_at")
	ib.Values(payee.TenantID, payee.Name, payee.Email, payee.Phone, payee.Website, payee.Address, payee.Notes,
		payee.DefaultCategoryID, payee.DefaultBudgetID, payee.IsActive, payee.UniqueKey, payee.CreatedAt, payee.UpdatedAt)
	ib.Returning("id")

	query, args := ib.Build()
	if err := r.db.GetContext(ctx, &payee.ID, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create payee")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create payee")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": payee.ID, "tenant_id": payee.TenantID}).Debug("Created payee")
	return payee, nil
}

// FindAllPayees lists the tenant's live payees ordered by id. Inactive payees are included
// only on request.
func (r *Repository) FindAllPayees(ctx context.Context, tenantID string, includeInactive bool) ([]*models.Payee, error) {
	ctx, span := tracing.StartSpan(ctx, "payee.Repository.FindAllPayees")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	if !includeInactive {
		sb.Where(sb.Equal("is_active", true))
	}
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	payees := []*models.Payee{}
	if err := r.db.SelectContext(ctx, &payees, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list payees")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list payees")
	}
	return payees, nil
}

// FindByIDs returns the requested payees, soft-deleted ones included. Unknown ids are
// simply absent from the result.
func (r *Repository) FindByIDs(ctx context.Context, tenantID string, ids []int64) ([]*models.Payee, error) {
	ctx, span := tracing.StartSpan(ctx, "payee.Repository.FindByIDs")
	defer span.End()

	payees := []*models.Payee{}
	if len(ids) == 0 {
		return payees, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
	)
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	if err := r.db.SelectContext(ctx, &payees, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get payees by id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get payees")
	}
	return payees, nil
}

// Get retrieves a live payee by id
func (r *Repository) Get(ctx context.Context, tenantID string, id int64) (*models.Payee, error) {
	ctx, span := tracing.StartSpan(ctx, "payee.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var payee models.Payee
	if err := r.db.GetContext(ctx, &payee, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("payee %d not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get payee")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get payee")
	}
	return &payee, nil
}

// Update applies patch to a live payee. Renaming also refreshes the unique key.
func (r *Repository) Update(ctx context.Context, tenantID string, id int64, patch models.PayeePatch) (*models.Payee, error) {
	ctx, span := tracing.StartSpan(ctx, "payee.Repository.Update")
	defer span.End()

	if patch.IsEmpty() {
		return r.Get(ctx, tenantID, id)
	}

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	assignments := []string{ub.Assign("updated_at", time.Now().UTC())}
	if patch.Name != nil {
		assignments = append(assignments,
			ub.Assign("name", *patch.Name),
			ub.Assign("unique_key", models.UniqueKeyFor(*patch.Name)))
	}
	if patch.Email != nil {
		assignments = append(assignments, ub.Assign("email", *patch.Email))
	}
	if patch.Phone != nil {
		assignments = append(assignments, ub.Assign("phone", *patch.Phone))
	}
	if patch.Website != nil {
		assignments = append(assignments, ub.Assign("website", *patch.Website))
	}
	if patch.Address != nil {
		assignments = append(assignments, ub.Assign("address", *patch.Address))
	}
	if patch.Notes != nil {
		assignments = append(assignments, ub.Assign("notes", *patch.Notes))
	}
	if patch.DefaultCategoryID != nil {
		assignments = append(assignments, ub.Assign("default_category_id", *patch.DefaultCategoryID))
	}
	if patch.DefaultBudgetID != nil {
		assignments = append(assignments, ub.Assign("default_budget_id", *patch.DefaultBudgetID))
	}
	if patch.IsActive != nil {
		assignments = append(assignments, ub.Assign("is_active", *patch.IsActive))
	}
	ub.Set(assignments...)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update payee")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update payee")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, models.NewNotFoundError("payee %d not found", id)
	}

	return r.Get(ctx, tenantID, id)
}

// SoftDelete marks a live payee deleted and moves it off its unique key. The row is locked
// first so two merges racing on the same duplicate cannot both delete it.
func (r *Repository) SoftDelete(ctx context.Context, tenantID string, id int64, archivedKey string) error {
	ctx, span := tracing.StartSpan(ctx, "payee.Repository.SoftDelete")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"id": id, "tenant_id": tenantID})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete payee")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	sb := database.NewSelectBuilder()
	sb.Select("id")
	sb.From(table)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.ForUpdate()

	query, args := sb.Build()
	var lockedID int64
	if err := tx.GetContext(ctx, &lockedID, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewNotFoundError("payee %d not found", id)
		}
		log.WithError(err).Error("Failed to lock payee")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete payee")
	}

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("deleted_at", now),
		ub.Assign("updated_at", now),
		ub.Assign("is_active", false),
		ub.Assign("unique_key", archivedKey),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)

	query, args = ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to soft-delete payee")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete payee")
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete payee")
	}

	log.Info("Soft-deleted payee")
	return nil
}
