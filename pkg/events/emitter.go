// Package events handles event emission for payee lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Publisher sends a payee event to the event bus.
type Publisher interface {
	PublishPayeeEvent(ctx context.Context, event *kafka.PayeeEvent) error
}

// Emitter handles event emission for Clover. A nil publisher makes every emit a no-op.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitPayeeMerged emits a payee.merged event for the surviving payee
func (e *Emitter) EmitPayeeMerged(ctx context.Context, tenantID string, result *models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitPayeeMerged")
	defer span.End()

	return e.emit(ctx, EventTypePayeeMerged, tenantID, result.SurvivingPayeeID, PayeeMergedData{
		SurvivingPayeeID:        result.SurvivingPayeeID,
		MergedPayeeIDs:          result.MergedPayeeIDs,
		TransactionsReassigned:  result.TransactionsReassigned,
		ContactFieldsBackfilled: result.ContactFieldsBackfilled,
		WarningCount:            len(result.Warnings),
	})
}

// EmitDuplicatesDetected emits a summary of a detection run
func (e *Emitter) EmitDuplicatesDetected(ctx context.Context, tenantID string, result *models.DetectionResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDuplicatesDetected")
	defer span.End()

	data := DuplicatesDetectedData{
		Mode:       result.Mode,
		Strategy:   result.Strategy,
		Threshold:  result.Threshold,
		PayeeCount: result.PayeeCount,
		GroupCount: len(result.Groups),
		PrimaryIDs: ectolinq.Map(result.Groups, func(g models.DuplicateGroup) int64 {
			return g.PrimaryPayeeID
		}),
	}
	for _, g := range result.Groups {
		switch g.RecommendedAction {
		case models.RecommendedActionMerge:
			data.MergeCount++
		case models.RecommendedActionReview:
			data.ReviewCount++
		}
	}

	return e.emit(ctx, EventTypePayeeDuplicatesDetected, tenantID, 0, data)
}

func (e *Emitter) emit(ctx context.Context, eventType EventType, tenantID string, payeeID int64, payload any) error {
	if e == nil || e.publisher == nil {
		return nil
	}

	dataJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &kafka.PayeeEvent{
		EventType: string(eventType),
		TenantID:  tenantID,
		PayeeID:   payeeID,
		Data:      dataJSON,
		Version:   SchemaVersion,
	}

	if err := e.publisher.PublishPayeeEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}

	return nil
}
