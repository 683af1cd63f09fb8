// Package merging consolidates duplicate payees into a surviving primary
package merging

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// PayeeStore is the slice of the payee repository a merge needs. FindByIDs must return
// soft-deleted rows too so already-merged duplicates can be recognised.
type PayeeStore interface {
	FindByIDs(ctx context.Context, tenantID string, ids []int64) ([]*models.Payee, error)
	Update(ctx context.Context, tenantID string, id int64, patch models.PayeePatch) (*models.Payee, error)
	SoftDelete(ctx context.Context, tenantID string, id int64, archivedKey string) error
}

// TransactionStore moves transactions between payees.
type TransactionStore interface {
	UpdateTransactionPayee(ctx context.Context, tenantID string, fromPayeeID, toPayeeID int64) (int64, error)
}

// Engine handles payee merging.
//
// No lock is held across steps. A duplicate deleted by a concurrent merge is detected when
// loaded or when soft-deleted and reported as a warning.
type Engine struct {
	logger       ectologger.Logger
	payees       PayeeStore
	transactions TransactionStore
	fieldMerger  *FieldMerger
	now          func() time.Time
}

// NewEngine creates a new merge engine
func NewEngine(logger ectologger.Logger, payees PayeeStore, transactions TransactionStore) *Engine {
	return &Engine{
		logger:       logger,
		payees:       payees,
		transactions: transactions,
		fieldMerger:  NewFieldMerger(),
		now:          time.Now,
	}
}

// ArchivedKey is the unique key a merged duplicate keeps so its original key can be reused.
func ArchivedKey(uniqueKey string, id int64, at time.Time) string {
	return fmt.Sprintf("%s#merged-%d-%d", uniqueKey, id, at.Unix())
}

// Merge folds duplicateIDs into primaryID.
//
// Validation failures abort before any write. After that every failing step becomes a
// warning on the result: a duplicate whose transactions could not be moved is left live.
func (e *Engine) Merge(ctx context.Context, tenantID string, primaryID int64, duplicateIDs []int64, strategy models.MergeStrategy, confirmed bool) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.Merge")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":        tenantID,
		"primary_payee_id": primaryID,
	})

	if !confirmed {
		return nil, models.NewValidationError("merge must be explicitly confirmed")
	}
	if len(duplicateIDs) == 0 {
		return nil, models.NewValidationError("at least one duplicate payee id is required")
	}
	if ectolinq.Contains(duplicateIDs, primaryID) {
		return nil, models.NewValidationError("primary payee %d cannot also be a duplicate", primaryID)
	}
	duplicateIDs = uniqueIDs(duplicateIDs)

	found, err := e.payees.FindByIDs(ctx, tenantID, append([]int64{primaryID}, duplicateIDs...))
	if err != nil {
		metrics.MergesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	byID := make(map[int64]*models.Payee, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	primary, ok := byID[primaryID]
	if !ok || primary.IsDeleted() {
		metrics.MergesTotal.WithLabelValues("not_found").Inc()
		return nil, models.NewNotFoundError("primary payee %d not found", primaryID)
	}

	result := &models.MergeResult{
		SurvivingPayeeID: primaryID,
		MergedPayeeIDs:   []int64{},
		Warnings:         []string{},
	}

	var live []*models.Payee
	for _, id := range duplicateIDs {
		dup, ok := byID[id]
		switch {
		case !ok:
			e.warn(result, "load", "duplicate payee %d not found, skipped", id)
		case dup.IsDeleted():
			e.warn(result, "load", "duplicate payee %d is already merged or deleted, skipped", id)
		default:
			live = append(live, dup)
		}
	}

	if strategy.MergeContactInfo && len(live) > 0 {
		patch, filled := e.fieldMerger.Backfill(primary, live)
		if !patch.IsEmpty() {
			if _, err := e.payees.Update(ctx, tenantID, primaryID, patch); err != nil {
				log.WithError(err).Error("Failed to backfill primary contact info")
				e.warn(result, "contact_info", "failed to backfill contact info on payee %d: %v", primaryID, err)
			} else {
				result.ContactFieldsBackfilled = filled
			}
		}
	}

	for _, dup := range live {
		dupLog := log.WithField("duplicate_payee_id", dup.ID)

		if strategy.PreserveTransactionHistory {
			moved, err := e.transactions.UpdateTransactionPayee(ctx, tenantID, dup.ID, primaryID)
			if err != nil {
				dupLog.WithError(err).Error("Failed to reassign transactions")
				e.warn(result, "transactions", "failed to reassign transactions of payee %d, payee left active: %v", dup.ID, err)
				continue
			}
			result.TransactionsReassigned += moved
			metrics.TransactionsReassignedTotal.Add(float64(moved))
		}

		if err := e.payees.SoftDelete(ctx, tenantID, dup.ID, ArchivedKey(dup.UniqueKey, dup.ID, e.now())); err != nil {
			if models.IsKind(err, models.ErrorKindNotFound) {
				e.warn(result, "soft_delete", "duplicate payee %d was deleted concurrently", dup.ID)
				continue
			}
			dupLog.WithError(err).Error("Failed to soft-delete duplicate payee")
			e.warn(result, "soft_delete", "failed to delete payee %d: %v", dup.ID, err)
			continue
		}
		result.MergedPayeeIDs = append(result.MergedPayeeIDs, dup.ID)
	}

	status := "success"
	if len(result.Warnings) > 0 {
		status = "partial"
	}
	metrics.MergesTotal.WithLabelValues(status).Inc()

	log.WithFields(map[string]any{
		"merged":                  len(result.MergedPayeeIDs),
		"transactions_reassigned": result.TransactionsReassigned,
		"warnings":                len(result.Warnings),
	}).Info("Payee merge complete")

	return result, nil
}

func (e *Engine) warn(result *models.MergeResult, step string, format string, args ...any) {
	metrics.MergeWarningsTotal.WithLabelValues(step).Inc()
	result.Warn(fmt.Sprintf(format, args...))
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
