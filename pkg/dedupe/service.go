// Package dedupe is the public surface of the payee deduplication engine: finding
// duplicate payees and merging them, scoped to one tenant per call.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/semantic"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultThreshold = 0.8
	DefaultStrategy  = models.MatchStrategyComprehensive
	DefaultMode      = models.DetectionModeSimple
)

// PayeeRepository reads and writes tenant payees. FindAllPayees never returns soft-deleted
// payees. FindByIDs returns them so a merge can tell "already merged" from "missing".
type PayeeRepository interface {
	FindAllPayees(ctx context.Context, tenantID string, includeInactive bool) ([]*models.Payee, error)
	FindByIDs(ctx context.Context, tenantID string, ids []int64) ([]*models.Payee, error)
	Update(ctx context.Context, tenantID string, id int64, patch models.PayeePatch) (*models.Payee, error)
	SoftDelete(ctx context.Context, tenantID string, id int64, archivedKey string) error
}

type TransactionRepository interface {
	UpdateTransactionPayee(ctx context.Context, tenantID string, fromPayeeID, toPayeeID int64) (int64, error)
}

type DetectionCache interface {
	// Get returns the cached result or nil, and the cache generation the lookup saw.
	Get(ctx context.Context, tenantID, params string) (*models.DetectionResult, int64, error)
	// Set stores result under the generation an earlier Get returned.
	Set(ctx context.Context, tenantID, params string, generation int64, result *models.DetectionResult) error
	Invalidate(ctx context.Context, tenantID string) error
}

type DiagnosticsStore interface {
	Append(ctx context.Context, tenantID string, diagnostics []models.Diagnostic) error
	List(ctx context.Context, tenantID string, limit int) ([]models.Diagnostic, error)
}

type LineageRecorder interface {
	RecordMerge(ctx context.Context, tenantID string, survivingID int64, mergedIDs []int64, at time.Time) error
	MergedInto(ctx context.Context, tenantID string, id int64) ([]int64, error)
}

type EventEmitter interface {
	EmitPayeeMerged(ctx context.Context, tenantID string, result *models.MergeResult) error
	EmitDuplicatesDetected(ctx context.Context, tenantID string, result *models.DetectionResult) error
}

// FindRequest selects how duplicates are detected. Empty Strategy and DetectionMode take
// their defaults.
type FindRequest struct {
	Threshold       float64              `json:"threshold"`
	IncludeInactive bool                 `json:"include_inactive"`
	Strategy        models.MatchStrategy `json:"strategy"`
	DetectionMode   models.DetectionMode `json:"detection_mode"`
}

func (r *FindRequest) applyDefaults() {
	if r.Strategy == "" {
		r.Strategy = DefaultStrategy
	}
	if r.DetectionMode == "" {
		r.DetectionMode = DefaultMode
	}
}

// Validate rejects out-of-range thresholds and unknown strategies or modes.
func (r FindRequest) Validate() error {
	if r.Threshold != r.Threshold || r.Threshold < 0 || r.Threshold > 1 {
		return models.NewValidationError("threshold must be between 0 and 1, got %v", r.Threshold)
	}
	if !r.Strategy.IsValid() {
		return models.NewValidationError("unknown match strategy '%s'", r.Strategy)
	}
	if !r.DetectionMode.IsValid() {
		return models.NewValidationError("unknown detection mode '%s'", r.DetectionMode)
	}
	return nil
}

func (r FindRequest) cacheKey() string {
	return fmt.Sprintf("%s:%s:%.4f:%t", r.DetectionMode, r.Strategy, r.Threshold, r.IncludeInactive)
}

type MergeRequest struct {
	PrimaryPayeeID    int64                 `json:"primary_payee_id"`
	DuplicatePayeeIDs []int64               `json:"duplicate_payee_ids"`
	Strategy          *models.MergeStrategy `json:"strategy,omitempty"`
	Confirmed         bool                  `json:"confirmed"`
}

// Service finds and merges duplicate payees.
type Service struct {
	logger      ectologger.Logger
	payees      PayeeRepository
	grouper     *matching.Grouper
	refiner     *semantic.Refiner
	merger      *merging.Engine
	cache       DetectionCache
	diagnostics DiagnosticsStore
	lineage     LineageRecorder
	events      EventEmitter
	timeout     time.Duration
	now         func() time.Time
}

type Option func(*Service)

func WithCache(cache DetectionCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithDiagnosticsStore(store DiagnosticsStore) Option {
	return func(s *Service) { s.diagnostics = store }
}

func WithLineage(lineage LineageRecorder) Option {
	return func(s *Service) { s.lineage = lineage }
}

func WithEvents(events EventEmitter) Option {
	return func(s *Service) { s.events = events }
}

// WithDetectionTimeout bounds each FindDuplicatePayees call.
func WithDetectionTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.timeout = timeout }
}

func NewService(logger ectologger.Logger, payees PayeeRepository, transactions TransactionRepository, refiner *semantic.Refiner, opts ...Option) *Service {
	if refiner == nil {
		refiner = semantic.NewRefiner(nil, semantic.DefaultPrompts(), logger)
	}
	s := &Service{
		logger:  logger,
		payees:  payees,
		grouper: matching.NewGrouper(matching.NewComparator(matching.NewScorer())),
		refiner: refiner,
		merger:  merging.NewEngine(logger, payees, transactions),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindDuplicatePayees groups the tenant's live payees into duplicate groups.
func (s *Service) FindDuplicatePayees(ctx context.Context, req FindRequest, tenantID string) (*models.DetectionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.FindDuplicatePayees")
	defer span.End()

	req.applyDefaults()
	if tenantID == "" {
		return nil, models.NewValidationError("tenant id is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":      tenantID,
		"detection_mode": string(req.DetectionMode),
		"strategy":       string(req.Strategy),
		"threshold":      req.Threshold,
	})

	var (
		generation int64
		storable   bool
	)
	if s.cache != nil {
		cached, gen, err := s.cache.Get(ctx, tenantID, req.cacheKey())
		if err != nil {
			log.WithError(err).Warn("Detection cache lookup failed")
		} else if cached != nil {
			cached.Cached = true
			return cached, nil
		} else {
			generation, storable = gen, true
		}
	}

	started := time.Now()
	result, err := s.detect(ctx, req, tenantID)
	metrics.DetectionDuration.WithLabelValues(string(req.DetectionMode)).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.DetectionRunsTotal.WithLabelValues(string(req.DetectionMode), "error").Inc()
		log.WithError(err).Error("Duplicate detection failed")
		return nil, err
	}
	metrics.DetectionRunsTotal.WithLabelValues(string(req.DetectionMode), "success").Inc()
	for _, g := range result.Groups {
		metrics.GroupsFoundTotal.WithLabelValues(string(g.RecommendedAction)).Inc()
	}

	if s.diagnostics != nil && len(result.Diagnostics) > 0 {
		if err := s.diagnostics.Append(ctx, tenantID, result.Diagnostics); err != nil {
			log.WithError(err).Warn("Failed to store gateway diagnostics")
		}
	}
	if storable && cacheable(result) {
		if err := s.cache.Set(ctx, tenantID, req.cacheKey(), generation, result); err != nil {
			log.WithError(err).Warn("Failed to cache detection result")
		}
	}
	if s.events != nil && len(result.Groups) > 0 {
		if err := s.events.EmitDuplicatesDetected(ctx, tenantID, result); err != nil {
			log.WithError(err).Warn("Failed to emit duplicates detected event")
		}
	}

	log.WithFields(map[string]any{
		"payees":      result.PayeeCount,
		"groups":      len(result.Groups),
		"diagnostics": len(result.Diagnostics),
	}).Info("Duplicate detection complete")

	return result, nil
}

func (s *Service) detect(ctx context.Context, req FindRequest, tenantID string) (*models.DetectionResult, error) {
	payees, err := s.payees.FindAllPayees(ctx, tenantID, req.IncludeInactive)
	if err != nil {
		return nil, err
	}

	// deleted payees never take part, even if a repository returns them
	live := make([]*models.Payee, 0, len(payees))
	for _, p := range payees {
		if !p.IsDeleted() {
			live = append(live, p)
		}
	}

	result := &models.DetectionResult{
		PayeeCount: len(live),
		Mode:       req.DetectionMode,
		Strategy:   req.Strategy,
		Threshold:  req.Threshold,
	}

	switch req.DetectionMode {
	case models.DetectionModeLLMDirect:
		groups, diagnostics, err := s.refiner.Direct(ctx, live, req.Threshold)
		if err != nil {
			return nil, err
		}
		result.Groups, result.Diagnostics = groups, diagnostics

	case models.DetectionModeLLM:
		groups, stats := s.grouper.Group(live, req.Threshold, req.Strategy, req.DetectionMode)
		metrics.PairsEvaluatedTotal.WithLabelValues(string(req.DetectionMode)).Add(float64(stats.PairsEvaluated))

		byID := make(map[int64]*models.Payee, len(live))
		for _, p := range live {
			byID[p.ID] = p
		}
		refined, diagnostics, err := s.refiner.Refine(ctx, groups, byID, req.Threshold)
		if err != nil {
			return nil, err
		}
		result.Groups, result.Diagnostics = refined, diagnostics

	default:
		groups, stats := s.grouper.Group(live, req.Threshold, req.Strategy, req.DetectionMode)
		metrics.PairsEvaluatedTotal.WithLabelValues(string(req.DetectionMode)).Add(float64(stats.PairsEvaluated))
		result.Groups = groups
	}

	if result.Groups == nil {
		result.Groups = []models.DuplicateGroup{}
	}
	return result, nil
}

// cacheable is false when any gateway batch failed, so the next call retries the gateway.
func cacheable(result *models.DetectionResult) bool {
	for _, d := range result.Diagnostics {
		if d.Status != models.DiagnosticStatusSuccess {
			return false
		}
	}
	return true
}

// MergeDuplicatePayees folds the duplicates into the primary payee.
func (s *Service) MergeDuplicatePayees(ctx context.Context, req MergeRequest, tenantID string) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.MergeDuplicatePayees")
	defer span.End()

	if tenantID == "" {
		return nil, models.NewValidationError("tenant id is required")
	}
	if req.PrimaryPayeeID <= 0 {
		return nil, models.NewValidationError("primary_payee_id is required")
	}

	strategy := models.DefaultMergeStrategy()
	if req.Strategy != nil {
		strategy = *req.Strategy
	}

	result, err := s.merger.Merge(ctx, tenantID, req.PrimaryPayeeID, req.DuplicatePayeeIDs, strategy, req.Confirmed)
	if err != nil {
		return nil, err
	}

	if len(result.MergedPayeeIDs) == 0 && result.TransactionsReassigned == 0 && len(result.ContactFieldsBackfilled) == 0 {
		return result, nil
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":          tenantID,
		"surviving_payee_id": result.SurvivingPayeeID,
	})

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, tenantID); err != nil {
			log.WithError(err).Warn("Failed to invalidate detection cache")
		}
	}
	if s.lineage != nil {
		if err := s.lineage.RecordMerge(ctx, tenantID, result.SurvivingPayeeID, result.MergedPayeeIDs, s.now()); err != nil {
			log.WithError(err).Warn("Failed to record merge lineage")
		}
	}
	if s.events != nil {
		if err := s.events.EmitPayeeMerged(ctx, tenantID, result); err != nil {
			log.WithError(err).Warn("Failed to emit payee merged event")
		}
	}

	return result, nil
}

// ListDiagnostics returns the tenant's most recent gateway diagnostics, oldest first.
func (s *Service) ListDiagnostics(ctx context.Context, tenantID string, limit int) ([]models.Diagnostic, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.ListDiagnostics")
	defer span.End()

	if tenantID == "" {
		return nil, models.NewValidationError("tenant id is required")
	}
	if s.diagnostics == nil {
		return []models.Diagnostic{}, nil
	}
	return s.diagnostics.List(ctx, tenantID, limit)
}

// MergeHistory returns the ids of every payee merged into payeeID, including merges of
// merges. Without a lineage store the history is empty.
func (s *Service) MergeHistory(ctx context.Context, tenantID string, payeeID int64) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.MergeHistory")
	defer span.End()

	if tenantID == "" {
		return nil, models.NewValidationError("tenant id is required")
	}
	if payeeID <= 0 {
		return nil, models.NewValidationError("payee id must be positive")
	}
	if s.lineage == nil {
		return []int64{}, nil
	}

	ids, err := s.lineage.MergedInto(ctx, tenantID, payeeID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// GatewayAvailability reports the semantic gateway's configuration state.
func (s *Service) GatewayAvailability(ctx context.Context) semantic.Availability {
	return s.refiner.Availability(ctx)
}
